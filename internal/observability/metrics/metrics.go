package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
)

// Result label values.
const (
	ResultOK            = "ok"
	ResultRangeError    = "range_error"
	ResultDomainError   = "domain_error"
	ResultConfigError   = "configuration_error"
	ResultUpstreamError = "upstream_error"
	ResultRateLimited   = "rate_limited"
	ResultError         = "error"
)

// Config carries the constant labels every series gets.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics exposes application-level instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	feedBuilds    *prometheus.CounterVec
	feedProjects  prometheus.Counter
	buildDuration prometheus.Observer
	syncRequests  *prometheus.CounterVec
}

// New registers the feed and sync instruments on registerer.
func New(cfg Config, registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "crmfeed"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	feedBuilds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "crmfeed_feed_builds_total",
		Help:        "Feed documents built, by outcome.",
		ConstLabels: constLabels,
	}, []string{"result"})
	feedProjects := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "crmfeed_feed_projects_total",
		Help:        "Projects rendered into successful feed documents.",
		ConstLabels: constLabels,
	})
	buildDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "crmfeed_feed_build_duration_seconds",
		Help:        "Time to load orders and render one feed document.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	})
	syncRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "crmfeed_sync_requests_total",
		Help:        "Sync triggers sent to the CRM, by outcome.",
		ConstLabels: constLabels,
	}, []string{"result"})

	collectors := []prometheus.Collector{feedBuilds, feedProjects, buildDuration, syncRequests}
	for i, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			for _, registered := range collectors[:i] {
				registerer.Unregister(registered)
			}
			return nil, err
		}
	}

	return &Metrics{
		feedBuilds:    feedBuilds,
		feedProjects:  feedProjects,
		buildDuration: buildDuration,
		syncRequests:  syncRequests,
	}, nil
}

// ObserveFeedBuild records one feed build.
func (m *Metrics) ObserveFeedBuild(projects int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.feedBuilds.WithLabelValues(ResultOf(err)).Inc()
	m.buildDuration.Observe(elapsed.Seconds())
	if err == nil && projects > 0 {
		m.feedProjects.Add(float64(projects))
	}
}

// ObserveSync records one sync trigger.
func (m *Metrics) ObserveSync(result string) {
	if m == nil {
		return
	}
	m.syncRequests.WithLabelValues(result).Inc()
}

// ResultOf maps an error onto its result label.
func ResultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, feeddomain.ErrRange):
		return ResultRangeError
	case errors.Is(err, feeddomain.ErrDomain):
		return ResultDomainError
	case errors.Is(err, feeddomain.ErrConfiguration):
		return ResultConfigError
	default:
		return ResultError
	}
}
