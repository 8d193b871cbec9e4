package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crmfeed/internal/clock"
	"github.com/smallbiznis/crmfeed/internal/config"
	"github.com/smallbiznis/crmfeed/internal/crmsync/domain"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	"github.com/smallbiznis/crmfeed/internal/feed/identity"
	obslogger "github.com/smallbiznis/crmfeed/internal/observability/logger"
	"github.com/smallbiznis/crmfeed/internal/observability/metrics"
	"github.com/smallbiznis/crmfeed/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
	"github.com/smallbiznis/crmfeed/internal/ratelimit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// Timeout bounds one trigger request; the CRM downloads the feed
	// before it answers.
	Timeout = 120 * time.Second
	// BatchSize is the number of projects per trigger in a full sync.
	BatchSize = 150

	maxMessageLength = 512
)

type Params struct {
	fx.In

	Log     *zap.Logger
	App     config.Config
	Config  *config.FeedConfigHolder
	Orders  orderdomain.Repository
	Repo    domain.Repository
	Secrets domain.SecretStore
	GenID   *snowflake.Node
	Metrics *metrics.Metrics       `optional:"true"`
	Limiter *ratelimit.SyncLimiter `optional:"true"`
	Clock   clock.Clock            `optional:"true"`
	Client  *http.Client           `optional:"true"`
	Tracer  trace.TracerProvider   `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	siteURL    string
	crmBaseURL string
	config     *config.FeedConfigHolder
	orders     orderdomain.Repository
	repo       domain.Repository
	secrets    domain.SecretStore
	genID      *snowflake.Node
	metrics    *metrics.Metrics
	limiter    *ratelimit.SyncLimiter
	clock      clock.Clock
	client     *http.Client
	tracer     trace.Tracer
}

func New(p Params) *Service {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: Timeout}
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	tp := p.Tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Service{
		log:        p.Log.Named("crmsync.service"),
		siteURL:    strings.TrimRight(p.App.SiteURL, "/"),
		crmBaseURL: strings.TrimRight(p.App.CRMBaseURL, "/"),
		config:     p.Config,
		orders:     p.Orders,
		repo:       p.Repo,
		secrets:    p.Secrets,
		genID:      p.GenID,
		metrics:    p.Metrics,
		limiter:    p.Limiter,
		clock:      clk,
		client:     client,
		tracer:     tp.Tracer("crmfeed/crmsync"),
	}
}

// Sync asks the CRM to download the feed of projects, either "all" or a
// comma separated id list. Every request that reaches the transport is
// recorded in the sync log.
func (s *Service) Sync(ctx context.Context, projects string, test bool) (*domain.SyncLog, error) {
	projects = strings.TrimSpace(projects)
	if projects == "" {
		return nil, domain.ErrEmptySelection
	}
	if _, err := feeddomain.ParseQuery(projects + ".xml"); err != nil {
		return nil, err
	}

	opts := s.config.Get()
	if err := opts.ValidateSync(); err != nil {
		s.metrics.ObserveSync(metrics.ResultConfigError)
		s.log.Warn("sync skipped, options incomplete", zap.Error(err))
		return nil, err
	}
	test = test || opts.TestServer

	secret, err := s.secrets.Create(ctx)
	if err != nil {
		s.metrics.ObserveSync(metrics.ResultError)
		return nil, fmt.Errorf("create feed secret: %w", err)
	}

	start := time.Now()
	status, err := s.trigger(ctx, opts, s.FeedURL(projects, secret), test)
	elapsed := time.Since(start)

	entry := &domain.SyncLog{
		ID:         s.genID.Generate().Int64(),
		Projects:   projects,
		Test:       test,
		Result:     domain.ResultOK,
		HTTPStatus: status,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  s.clock.Now().UTC(),
	}
	result := metrics.ResultOK
	if err != nil {
		entry.Result = domain.ResultError
		entry.Message = truncate(err.Error(), maxMessageLength)
		result = metrics.ResultError
		if errors.Is(err, domain.ErrUpstream) {
			result = metrics.ResultUpstreamError
		}
	}
	s.metrics.ObserveSync(result)

	if logErr := s.repo.Insert(ctx, entry); logErr != nil {
		s.log.Error("failed to record sync", zap.Error(logErr))
	}

	fields := []zap.Field{
		zap.String("projects", projects),
		zap.Bool("test", test),
		zap.Int("http_status", status),
		zap.Duration("duration", elapsed),
	}
	log := obslogger.WithContext(ctx, s.log)
	if err != nil {
		log.Warn("sync request failed", append(fields, zap.Error(err))...)
		return entry, err
	}
	log.Info("sync requested", fields...)
	return entry, nil
}

// FeedURL is the address the CRM downloads the feed from.
func (s *Service) FeedURL(projects, secret string) string {
	return fmt.Sprintf("%s/feed/%s.xml?%s", s.siteURL, projects, url.Values{"secret": {secret}}.Encode())
}

// TriggerURL is the CRM endpoint that starts a feed download.
func (s *Service) TriggerURL(systemID, feedURL string, test bool) string {
	base := s.crmBaseURL
	if base == "" {
		host := "r3.minicrm.hu"
		if test {
			host = "r3-test.minicrm.hu"
		}
		base = "https://" + host
	}
	return fmt.Sprintf("%s/Api/SyncFeed/%s?%s", base, url.PathEscape(systemID), url.Values{"Source": {feedURL}}.Encode())
}

func (s *Service) trigger(ctx context.Context, opts config.FeedOptions, feedURL string, test bool) (status int, err error) {
	ctx, span := s.tracer.Start(ctx, "crmsync.trigger",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Bool("crm.test", test)),
	)
	defer func() {
		if status != 0 {
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
		tracing.RecordError(span, err)
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.TriggerURL(opts.SystemID, feedURL, test), nil)
	if err != nil {
		return 0, err
	}
	req.SetBasicAuth(opts.SystemID, opts.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxMessageLength))
		return resp.StatusCode, fmt.Errorf("%w: status %d: %s", domain.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// QueueOrders resolves changed order ids into the projects that need a
// resync. Unknown orders are skipped.
func (s *Service) QueueOrders(ctx context.Context, set *domain.ProjectSet, orderIDs []int64) error {
	refs := make([]orderdomain.ProjectRef, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			s.log.Debug("changed order not found", zap.Int64("order_id", orderID))
			continue
		}
		refs = append(refs, order.Ref())
	}
	return set.QueueOrders(refs)
}

// Flush triggers one sync for everything queued in set. An empty set is
// a no-op. Flushes share a trigger budget so an event storm cannot flood
// the CRM.
func (s *Service) Flush(ctx context.Context, set *domain.ProjectSet) (*domain.SyncLog, error) {
	if set.Len() == 0 {
		return nil, nil
	}
	res, err := s.limiter.AllowTrigger(ctx)
	if err != nil {
		return nil, fmt.Errorf("check trigger budget: %w", err)
	}
	if !res.Allowed {
		s.metrics.ObserveSync(metrics.ResultRateLimited)
		s.log.Warn("sync trigger throttled",
			zap.String("projects", set.String()),
			zap.Duration("retry_after", res.RetryAfter),
		)
		return nil, fmt.Errorf("%w: retry after %s", domain.ErrRateLimited, res.RetryAfter.Round(time.Second))
	}
	return s.Sync(ctx, set.String(), false)
}

// ProjectIDs lists the project of every order, drafts included, in order
// id order.
func (s *Service) ProjectIDs(ctx context.Context) ([]int64, error) {
	refs, err := s.orders.ListProjectRefs(ctx)
	if err != nil {
		return nil, err
	}
	set := domain.NewProjectSet()
	for _, ref := range refs {
		projectID, err := identity.OrderProjectID(ref.OrderID, ref.CustomerID)
		if err != nil {
			return nil, err
		}
		set.Add(projectID)
	}
	return set.IDs(), nil
}

// SyncAll triggers every project in batches of batchSize and stops at the
// first failed batch. It returns the number of projects triggered.
func (s *Service) SyncAll(ctx context.Context, test bool, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = BatchSize
	}
	token, ok, err := s.limiter.TryLockFullSync(ctx)
	if err != nil {
		return 0, fmt.Errorf("lock full sync: %w", err)
	}
	if !ok {
		return 0, domain.ErrSyncInProgress
	}
	defer func() {
		if err := s.limiter.ReleaseFullSync(context.WithoutCancel(ctx), token); err != nil {
			s.log.Warn("failed to release full sync lock", zap.Error(err))
		}
	}()

	ids, err := s.ProjectIDs(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		if _, err := s.Sync(ctx, domain.JoinIDs(ids[start:end]), test); err != nil {
			return synced, err
		}
		synced = end
	}
	return synced, nil
}

func (s *Service) RecentLogs(ctx context.Context, limit int) ([]domain.SyncLog, error) {
	return s.repo.ListRecent(ctx, limit, 0)
}

// LogsBefore pages through the sync log, newest first, starting below
// the entry with id before.
func (s *Service) LogsBefore(ctx context.Context, before int64, limit int) ([]domain.SyncLog, error) {
	return s.repo.ListRecent(ctx, limit, before)
}

// ValidSecret reports whether secret was issued and has not expired.
func (s *Service) ValidSecret(ctx context.Context, secret string) (bool, error) {
	return s.secrets.Exists(ctx, secret)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
