// Package secret stores the short-lived secrets the CRM presents when it
// downloads a feed.
package secret

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/crmfeed/internal/clock"
	"github.com/smallbiznis/crmfeed/internal/crmsync/domain"
	"go.uber.org/zap"
)

// TTL is how long a feed secret stays valid.
const TTL = 6 * time.Hour

const keySecret = "crmfeed:secret:%s"

// NewToken returns 32 lowercase hex characters.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// RedisStore keeps secrets in redis with a TTL, so every replica accepts
// them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context) (string, error) {
	token := NewToken()
	if err := s.client.Set(ctx, fmt.Sprintf(keySecret, token), 1, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisStore) Exists(ctx context.Context, secret string) (bool, error) {
	if secret == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, fmt.Sprintf(keySecret, secret)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryStore keeps secrets in process memory. Expired entries are dropped
// lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   clock.Clock
	secrets map[string]time.Time
}

func NewMemoryStore(ttl time.Duration, clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryStore{
		ttl:     ttl,
		clock:   clk,
		secrets: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Create(context.Context) (string, error) {
	token := NewToken()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for key, expires := range s.secrets {
		if !now.Before(expires) {
			delete(s.secrets, key)
		}
	}
	s.secrets[token] = now.Add(s.ttl)
	return token, nil
}

func (s *MemoryStore) Exists(_ context.Context, secret string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.secrets[secret]
	if !ok {
		return false, nil
	}
	if !s.clock.Now().Before(expires) {
		delete(s.secrets, secret)
		return false, nil
	}
	return true, nil
}

// NewStore keeps secrets in redis when a client is configured, so every
// replica accepts them.
func NewStore(client *redis.Client, clk clock.Clock, log *zap.Logger) domain.SecretStore {
	log = log.Named("crmsync.secret")
	if client == nil {
		log.Info("feed secrets kept in memory")
		return NewMemoryStore(TTL, clk)
	}
	log.Info("feed secrets kept in redis")
	return NewRedisStore(client, TTL)
}

var (
	_ domain.SecretStore = (*RedisStore)(nil)
	_ domain.SecretStore = (*MemoryStore)(nil)
)
