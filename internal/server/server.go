package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/crmfeed/internal/config"
	syncdomain "github.com/smallbiznis/crmfeed/internal/crmsync/domain"
	syncservice "github.com/smallbiznis/crmfeed/internal/crmsync/service"
	feedservice "github.com/smallbiznis/crmfeed/internal/feed/service"
	"github.com/smallbiznis/crmfeed/internal/observability"
	obsmiddleware "github.com/smallbiznis/crmfeed/internal/observability/logger"
	"github.com/smallbiznis/crmfeed/internal/observability/tracing"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// FeedRenderer renders the feed for a raw query such as "all.xml".
type FeedRenderer interface {
	Render(ctx context.Context, rawQuery string) ([]byte, error)
}

// SyncService triggers CRM downloads and answers the feed access checks.
type SyncService interface {
	Sync(ctx context.Context, projects string, test bool) (*syncdomain.SyncLog, error)
	QueueOrders(ctx context.Context, set *syncdomain.ProjectSet, orderIDs []int64) error
	Flush(ctx context.Context, set *syncdomain.ProjectSet) (*syncdomain.SyncLog, error)
	ProjectIDs(ctx context.Context) ([]int64, error)
	RecentLogs(ctx context.Context, limit int) ([]syncdomain.SyncLog, error)
	LogsBefore(ctx context.Context, before int64, limit int) ([]syncdomain.SyncLog, error)
	ValidSecret(ctx context.Context, secret string) (bool, error)
}

func NewEngine(obsCfg observability.Config, tp trace.TracerProvider) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	if tp != nil {
		r.Use(tracing.GinMiddleware(tp))
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, tp trace.TracerProvider) *gin.Engine {
	return NewEngine(obsCfg, tp)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			log.Info("http server started", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine  *gin.Engine
	log     *zap.Logger
	cfg     config.Config
	feedCfg *config.FeedConfigHolder
	feeds   FeedRenderer
	sync    SyncService
}

type ServerParams struct {
	fx.In

	Gin     *gin.Engine
	Log     *zap.Logger
	Cfg     config.Config
	FeedCfg *config.FeedConfigHolder
	FeedSvc *feedservice.Service
	SyncSvc *syncservice.Service
}

func NewServer(p ServerParams) *Server {
	return newServer(p.Gin, p.Log, p.Cfg, p.FeedCfg, p.FeedSvc, p.SyncSvc)
}

func newServer(engine *gin.Engine, log *zap.Logger, cfg config.Config, feedCfg *config.FeedConfigHolder, feeds FeedRenderer, sync SyncService) *Server {
	s := &Server{
		engine:  engine,
		log:     log.Named("http.server"),
		cfg:     cfg,
		feedCfg: feedCfg,
		feeds:   feeds,
		sync:    sync,
	}

	s.registerFeedRoutes()
	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerFeedRoutes() {
	gated := s.engine.Group("/", s.FeedAccessRequired())
	gated.GET("/feed/:query", s.Feed)
	gated.GET("/about.xml", s.About)
}

func (s *Server) registerAPIRoutes() {
	if s.cfg.APIToken == "" {
		s.log.Warn("API_TOKEN not set, sync API disabled")
		return
	}

	api := s.engine.Group("/api", s.APITokenRequired())
	api.POST("/sync", s.TriggerSync)
	api.POST("/orders/events", s.OrderEvents)
	api.GET("/projects", s.ListProjects)
	api.GET("/sync/logs", s.ListSyncLogs)
}
