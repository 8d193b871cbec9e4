package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/crmfeed/internal/config"
	syncdomain "github.com/smallbiznis/crmfeed/internal/crmsync/domain"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	"github.com/smallbiznis/crmfeed/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	testToken  = "test-token"
	testSecret = "0123456789abcdef0123456789abcdef"
	// httptest.NewRequest uses this remote address.
	testRemoteIP = "192.0.2.1"
)

type fakeFeeds struct {
	query string
	body  []byte
	err   error
}

func (f *fakeFeeds) Render(ctx context.Context, rawQuery string) ([]byte, error) {
	_ = ctx
	f.query = rawQuery
	return f.body, f.err
}

type fakeSync struct {
	secrets  map[string]bool
	logs     []syncdomain.SyncLog
	synced   []string
	projects []int64
	syncErr  error
}

func (f *fakeSync) Sync(ctx context.Context, projects string, test bool) (*syncdomain.SyncLog, error) {
	_ = ctx
	f.synced = append(f.synced, projects)
	entry := &syncdomain.SyncLog{ID: 42, Projects: projects, Test: test, Result: syncdomain.ResultOK, HTTPStatus: http.StatusOK}
	if f.syncErr != nil {
		entry.Result = syncdomain.ResultError
		return entry, f.syncErr
	}
	return entry, nil
}

// QueueOrders treats every order id as its own project.
func (f *fakeSync) QueueOrders(ctx context.Context, set *syncdomain.ProjectSet, orderIDs []int64) error {
	_ = ctx
	for _, id := range orderIDs {
		set.Add(id)
	}
	return nil
}

func (f *fakeSync) Flush(ctx context.Context, set *syncdomain.ProjectSet) (*syncdomain.SyncLog, error) {
	if set.Len() == 0 {
		return nil, nil
	}
	return f.Sync(ctx, set.String(), false)
}

func (f *fakeSync) ProjectIDs(ctx context.Context) ([]int64, error) {
	_ = ctx
	return f.projects, nil
}

func (f *fakeSync) RecentLogs(ctx context.Context, limit int) ([]syncdomain.SyncLog, error) {
	_ = ctx
	if len(f.logs) > limit {
		return f.logs[:limit], nil
	}
	return f.logs, nil
}

// LogsBefore expects logs to be ordered newest first.
func (f *fakeSync) LogsBefore(ctx context.Context, before int64, limit int) ([]syncdomain.SyncLog, error) {
	_ = ctx
	var out []syncdomain.SyncLog
	for _, entry := range f.logs {
		if before != 0 && entry.ID >= before {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, entry)
	}
	return out, nil
}

func (f *fakeSync) ValidSecret(ctx context.Context, secret string) (bool, error) {
	_ = ctx
	return f.secrets[secret], nil
}

func testFeedOptions() config.FeedOptions {
	opts := config.DefaultFeedOptions()
	opts.AllowedIPs = []string{testRemoteIP}
	opts.CategoryID = "21"
	opts.FolderName = "Webshop"
	return opts
}

func newTestServer(t *testing.T, opts config.FeedOptions, feeds *fakeFeeds, sync *fakeSync) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if sync.secrets == nil {
		sync.secrets = map[string]bool{testSecret: true}
	}
	engine := NewEngine(observability.Config{Environment: "test"}, noop.NewTracerProvider())
	cfg := config.Config{AppVersion: "1.2.3", Environment: "test", APIToken: testToken}
	srv := newServer(engine, zap.NewNop(), cfg, config.NewStaticFeedConfigHolder(opts), feeds, sync)
	return srv.Engine()
}

func doRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestFeedServesXML(t *testing.T) {
	feeds := &fakeFeeds{body: []byte(`<?xml version="1.0" encoding="utf-8"?>` + "\n<Projects></Projects>\n")}
	r := newTestServer(t, testFeedOptions(), feeds, &fakeSync{})

	rec := doRequest(r, httptest.NewRequest(http.MethodGet, "/feed/1,2.xml?secret="+testSecret, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1,2.xml", feeds.query)
	assert.Contains(t, rec.Body.String(), "<Projects></Projects>")
}

func TestRequestsAreTraced(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	engine := NewEngine(observability.Config{Environment: "test"}, tp)
	feeds := &fakeFeeds{body: []byte("<Projects></Projects>")}
	sync := &fakeSync{secrets: map[string]bool{testSecret: true}, syncErr: syncdomain.ErrUpstream}
	cfg := config.Config{Environment: "test", APIToken: testToken}
	newServer(engine, zap.NewNop(), cfg, config.NewStaticFeedConfigHolder(testFeedOptions()), feeds, sync)

	req := httptest.NewRequest(http.MethodGet, "/feed/all.xml?secret="+testSecret, nil)
	req.Header.Set("X-Request-Id", "req-7")
	require.Equal(t, http.StatusOK, doRequest(engine, req).Code)
	require.Equal(t, http.StatusBadGateway, doRequest(engine, apiRequest(http.MethodPost, "/api/sync", triggerSyncRequest{Projects: "all"})).Code)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	feedSpan := spans[0]
	assert.Equal(t, "HTTP GET /feed/:query", feedSpan.Name())
	assert.Contains(t, feedSpan.Attributes(), attribute.String("request_id", "req-7"))
	assert.Contains(t, feedSpan.Attributes(), attribute.Int("http.status_code", http.StatusOK))
	assert.Equal(t, codes.Unset, feedSpan.Status().Code)
	for _, attr := range feedSpan.Attributes() {
		assert.NotContains(t, attr.Value.Emit(), testSecret)
	}

	syncSpan := spans[1]
	assert.Equal(t, "HTTP POST /api/sync", syncSpan.Name())
	assert.Equal(t, codes.Error, syncSpan.Status().Code)
}

func TestFeedErrorsArePlainText(t *testing.T) {
	feeds := &fakeFeeds{err: feeddomain.DomainErrorf("Invalid query")}
	r := newTestServer(t, testFeedOptions(), feeds, &fakeSync{})

	rec := doRequest(r, httptest.NewRequest(http.MethodGet, "/feed/x.xml?secret="+testSecret, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Equal(t, "Invalid query", rec.Body.String())
}

func TestFeedAccessDenied(t *testing.T) {
	tests := []struct {
		name    string
		opts    func(*config.FeedOptions)
		target  string
		header  map[string]string
		message string
	}{
		{
			name:    "address not allowed",
			opts:    func(o *config.FeedOptions) { o.AllowedIPs = []string{"127.0.0.1"} },
			target:  "/feed/all.xml?secret=" + testSecret,
			message: "192.0.2.1 IP is not allowed.",
		},
		{
			name:    "missing secret",
			target:  "/feed/all.xml",
			message: "Failed to validate secret.",
		},
		{
			name:    "unknown secret",
			target:  "/feed/all.xml?secret=nope",
			message: "Failed to validate secret.",
		},
		{
			name: "proxy address outside range",
			opts: func(o *config.FeedOptions) {
				o.ProxyHeader = "HTTP_X_REAL_IP"
				o.ProxyIPStart = "10.0.0.1"
				o.ProxyIPEnd = "10.0.0.9"
			},
			target:  "/feed/all.xml?secret=" + testSecret,
			header:  map[string]string{"X-Real-Ip": "10.0.0.10"},
			message: "Proxy ip was not in range.",
		},
		{
			name: "proxy header missing",
			opts: func(o *config.FeedOptions) {
				o.ProxyHeader = "X-Real-Ip"
				o.ProxyIPStart = "10.0.0.1"
				o.ProxyIPEnd = "10.0.0.9"
			},
			target:  "/about.xml?secret=" + testSecret,
			message: "Invalid IP in range or request was made from an invalid IP.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testFeedOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			feeds := &fakeFeeds{}
			r := newTestServer(t, opts, feeds, &fakeSync{})

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := doRequest(r, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.message, rec.Body.String())
			assert.Empty(t, feeds.query, "feed must not be rendered")
		})
	}
}

func TestFeedAccessThroughProxy(t *testing.T) {
	opts := testFeedOptions()
	opts.AllowedIPs = nil
	opts.ProxyHeader = "X-Real-Ip"
	opts.ProxyIPStart = "10.0.0.1"
	opts.ProxyIPEnd = "10.0.0.9"
	feeds := &fakeFeeds{body: []byte("<Projects></Projects>")}
	r := newTestServer(t, opts, feeds, &fakeSync{})

	req := httptest.NewRequest(http.MethodGet, "/feed/all.xml?secret="+testSecret, nil)
	req.Header.Set("X-Real-Ip", "10.0.0.9")
	rec := doRequest(r, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAbout(t *testing.T) {
	opts := testFeedOptions()
	opts.EPOEnabled = true
	opts.ShopID = 3
	sync := &fakeSync{logs: []syncdomain.SyncLog{
		{ID: 9, Projects: "all", Result: syncdomain.ResultOK, HTTPStatus: 200, CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}}
	r := newTestServer(t, opts, &fakeFeeds{}, sync)

	rec := doRequest(r, httptest.NewRequest(http.MethodGet, "/about.xml?secret="+testSecret, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, `<?xml version="1.0" encoding="utf-8"?>`))
	assert.Contains(t, body, "<Version>1.2.3</Version>")
	assert.Contains(t, body, "<ShopId>3</ShopId>")
	assert.Contains(t, body, "<Integration>extra_product_options</Integration>")
	assert.Contains(t, body, `<Entry Id="9" Date="2024-03-01T09:00:00Z" Result="ok" Test="false" HttpStatus="200" DurationMs="0"><Projects>all</Projects></Entry>`)
}

func apiRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func TestAPIRequiresToken(t *testing.T) {
	r := newTestServer(t, testFeedOptions(), &fakeFeeds{}, &fakeSync{})

	req := apiRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := doRequest(r, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":{"type":"unauthorized","message":"unauthorized"}}`, rec.Body.String())
}

func TestAPIDisabledWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := NewEngine(observability.Config{}, nil)
	newServer(engine, zap.NewNop(), config.Config{}, config.NewStaticFeedConfigHolder(testFeedOptions()), &fakeFeeds{}, &fakeSync{})

	rec := doRequest(engine, apiRequest(http.MethodGet, "/api/projects", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerSync(t *testing.T) {
	sync := &fakeSync{}
	r := newTestServer(t, testFeedOptions(), &fakeFeeds{}, sync)

	rec := doRequest(r, apiRequest(http.MethodPost, "/api/sync", triggerSyncRequest{Projects: "all", Test: true}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"all"}, sync.synced)

	var resp struct {
		Data syncLogResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "42", resp.Data.ID)
	assert.True(t, resp.Data.Test)
}

func TestTriggerSyncErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    any
		syncErr error
		status  int
		errType string
	}{
		{name: "missing projects", body: triggerSyncRequest{}, status: http.StatusBadRequest, errType: "validation_error"},
		{name: "malformed body", body: "nope", status: http.StatusBadRequest, errType: "validation_error"},
		{name: "bad selection", body: triggerSyncRequest{Projects: "a,b"}, syncErr: feeddomain.DomainErrorf("Invalid query"), status: http.StatusBadRequest, errType: "validation_error"},
		{name: "incomplete options", body: triggerSyncRequest{Projects: "all"}, syncErr: feeddomain.ConfigErrorf("The folder name is required."), status: http.StatusBadRequest, errType: "configuration_error"},
		{name: "crm failure", body: triggerSyncRequest{Projects: "all"}, syncErr: syncdomain.ErrUpstream, status: http.StatusBadGateway, errType: "upstream_error"},
		{name: "throttled", body: triggerSyncRequest{Projects: "1"}, syncErr: syncdomain.ErrRateLimited, status: http.StatusTooManyRequests, errType: "rate_limited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestServer(t, testFeedOptions(), &fakeFeeds{}, &fakeSync{syncErr: tt.syncErr})

			rec := doRequest(r, apiRequest(http.MethodPost, "/api/sync", tt.body))

			assert.Equal(t, tt.status, rec.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.errType, resp.Error.Type)
		})
	}
}

func TestOrderEvents(t *testing.T) {
	sync := &fakeSync{}
	r := newTestServer(t, testFeedOptions(), &fakeFeeds{}, sync)

	rec := doRequest(r, apiRequest(http.MethodPost, "/api/orders/events", orderEventsRequest{OrderIDs: []int64{5, 3, 5}}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"5,3"}, sync.synced, "one flush per request")

	rec = doRequest(r, apiRequest(http.MethodPost, "/api/orders/events", orderEventsRequest{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProjectsAndLogs(t *testing.T) {
	sync := &fakeSync{
		projects: []int64{7, 50000202},
		logs:     []syncdomain.SyncLog{{ID: 2}, {ID: 1}},
	}
	r := newTestServer(t, testFeedOptions(), &fakeFeeds{}, sync)

	rec := doRequest(r, apiRequest(http.MethodGet, "/api/projects", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[7,50000202]}`, rec.Body.String())

	type logPage struct {
		Data     []syncLogResponse `json:"data"`
		PageInfo struct {
			NextPageToken string `json:"next_page_token"`
			HasMore       bool   `json:"has_more"`
		} `json:"page_info"`
	}

	rec = doRequest(r, apiRequest(http.MethodGet, "/api/sync/logs?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var first logPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Len(t, first.Data, 1)
	assert.Equal(t, "2", first.Data[0].ID)
	require.True(t, first.PageInfo.HasMore)

	rec = doRequest(r, apiRequest(http.MethodGet, "/api/sync/logs?limit=1&page_token="+first.PageInfo.NextPageToken, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var second logPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Len(t, second.Data, 1)
	assert.Equal(t, "1", second.Data[0].ID)
	assert.False(t, second.PageInfo.HasMore)

	for _, target := range []string{
		"/api/sync/logs?limit=500",
		"/api/sync/logs?limit=abc",
		"/api/sync/logs?page_token=nope",
	} {
		rec = doRequest(r, apiRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestCheckProxyIP(t *testing.T) {
	assert.NoError(t, checkProxyIP("10.0.0.1", "10.0.0.1", "10.0.0.1"))
	assert.NoError(t, checkProxyIP(" 10.0.0.5 ", "10.0.0.1", "10.0.0.9"))
	assert.ErrorIs(t, checkProxyIP("10.0.0.10", "10.0.0.1", "10.0.0.9"), errAccessDenied)
	assert.ErrorIs(t, checkProxyIP("::1", "10.0.0.1", "10.0.0.9"), errAccessDenied, "IPv4 only")
	assert.ErrorIs(t, checkProxyIP("10.0.0.5, 10.0.0.6", "10.0.0.1", "10.0.0.9"), errAccessDenied)
	assert.Equal(t, "X-REAL-IP", headerName("HTTP_X_REAL_IP"))
	assert.Equal(t, "X-Forwarded-For", headerName("X-Forwarded-For"))
}
