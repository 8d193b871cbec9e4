package secret

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/smallbiznis/crmfeed/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewToken(t *testing.T) {
	token := NewToken()
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), token)
	assert.NotEqual(t, token, NewToken())
}

func TestMemoryStoreExpires(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(TTL, clk)
	ctx := context.Background()

	token, err := store.Create(ctx)
	require.NoError(t, err)

	ok, err := store.Exists(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = store.Exists(ctx, "unknown")
	assert.False(t, ok)

	clk.Advance(TTL - time.Second)
	ok, _ = store.Exists(ctx, token)
	assert.True(t, ok, "still valid just before expiry")

	clk.Advance(time.Second)
	ok, _ = store.Exists(ctx, token)
	assert.False(t, ok, "expired at ttl")
}

func TestNewStoreWithoutRedis(t *testing.T) {
	store := NewStore(nil, nil, zap.NewNop())
	assert.IsType(t, &MemoryStore{}, store)
}
