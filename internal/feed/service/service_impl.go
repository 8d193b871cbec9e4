package service

import (
	"context"
	"time"

	"github.com/smallbiznis/crmfeed/internal/config"
	"github.com/smallbiznis/crmfeed/internal/feed/aggregate"
	"github.com/smallbiznis/crmfeed/internal/feed/document"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	"github.com/smallbiznis/crmfeed/internal/feed/identity"
	obslogger "github.com/smallbiznis/crmfeed/internal/observability/logger"
	"github.com/smallbiznis/crmfeed/internal/observability/metrics"
	"github.com/smallbiznis/crmfeed/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
	taxdomain "github.com/smallbiznis/crmfeed/internal/tax/domain"
	taxservice "github.com/smallbiznis/crmfeed/internal/tax/service"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  *config.FeedConfigHolder
	Orders  orderdomain.Repository
	Taxes   *taxservice.Loader
	Metrics *metrics.Metrics     `optional:"true"`
	Tracer  trace.TracerProvider `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	config  *config.FeedConfigHolder
	orders  orderdomain.Repository
	taxes   *taxservice.Loader
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func New(p Params) *Service {
	tp := p.Tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Service{
		log:     p.Log.Named("feed.service"),
		config:  p.Config,
		orders:  p.Orders,
		taxes:   p.Taxes,
		metrics: p.Metrics,
		tracer:  tp.Tracer("crmfeed/feed"),
	}
}

// Result is one rendered feed together with the groups it was built from.
type Result struct {
	Query     feeddomain.Query
	Groups    []aggregate.ProjectGroup
	Document  *document.Projects
	Precision int32
}

// Render builds and encodes the feed for a raw request such as "all.xml".
func (s *Service) Render(ctx context.Context, rawQuery string) ([]byte, error) {
	result, err := s.Build(ctx, rawQuery)
	if err != nil {
		return nil, err
	}
	return document.Encode(result.Document)
}

// Build reads the current options, loads the selected orders and a rate
// snapshot, and renders the document tree. Options are read once so a
// config reload cannot change them halfway through a build.
func (s *Service) Build(ctx context.Context, rawQuery string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "feed.Build", trace.WithAttributes(attribute.String("feed.query", rawQuery)))
	defer span.End()

	start := time.Now()
	opts := s.config.Get()

	result, err := s.build(ctx, opts, rawQuery)

	projects := 0
	if result != nil {
		projects = len(result.Document.Projects)
	}
	s.metrics.ObserveFeedBuild(projects, time.Since(start), err)
	span.SetAttributes(
		attribute.Int("feed.projects", projects),
		attribute.String("feed.result", metrics.ResultOf(err)),
	)
	tracing.RecordError(span, err)

	fields := []zap.Field{
		zap.String("query", rawQuery),
		zap.Int("projects", projects),
		zap.Duration("duration", time.Since(start)),
	}
	log := obslogger.WithContext(ctx, s.log)
	if err != nil {
		log.Warn("feed build failed", append(fields, zap.String("result", metrics.ResultOf(err)), zap.Error(err))...)
		return nil, err
	}
	log.Info("feed built", fields...)
	return result, nil
}

func (s *Service) build(ctx context.Context, opts config.FeedOptions, rawQuery string) (*Result, error) {
	docOpts, settings, err := BuildOptions(opts)
	if err != nil {
		return nil, err
	}
	query, err := feeddomain.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}

	orders, err := s.loadOrders(ctx, query)
	if err != nil {
		return nil, err
	}
	table, err := s.taxes.Load(ctx)
	if err != nil {
		return nil, err
	}

	builder, err := document.NewBuilder(s.log, docOpts, taxservice.NewReconciler(table, settings))
	if err != nil {
		return nil, err
	}
	groups, err := aggregate.GroupByProject(orders)
	if err != nil {
		return nil, err
	}
	doc, err := builder.Build(groups)
	if err != nil {
		return nil, err
	}

	return &Result{
		Query:     query,
		Groups:    groups,
		Document:  doc,
		Precision: settings.Precision,
	}, nil
}

// loadOrders resolves the query into orders, most recently modified first
// per requested id. An order reachable through two requested ids is kept
// once, at its first position.
func (s *Service) loadOrders(ctx context.Context, query feeddomain.Query) ([]orderdomain.Order, error) {
	if query.All {
		return s.orders.ListAll(ctx)
	}

	var orders []orderdomain.Order
	seen := make(map[int64]struct{})
	add := func(order orderdomain.Order) {
		if _, ok := seen[order.ID]; ok {
			return
		}
		seen[order.ID] = struct{}{}
		orders = append(orders, order)
	}

	for _, projectID := range query.ProjectIDs {
		if !identity.IsGuestProject(projectID) {
			customerOrders, err := s.orders.ListByCustomer(ctx, projectID)
			if err != nil {
				return nil, err
			}
			for _, order := range customerOrders {
				add(order)
			}
			continue
		}

		order, err := s.orders.FindByID(ctx, identity.GuestOrderID(projectID))
		if err != nil {
			return nil, err
		}
		if order == nil {
			s.log.Debug("requested order not found", zap.Int64("project_id", projectID))
			continue
		}
		add(*order)
	}
	return orders, nil
}

// Verify recomputes every rendered order's gross total and compares it
// with the recorded one.
func Verify(result *Result) error {
	for i, project := range result.Document.Projects {
		group := result.Groups[i]
		for j, node := range project.Orders {
			if err := document.CheckOrderIntegrity(group.Orders[j], node, result.Precision); err != nil {
				return err
			}
		}
	}
	return nil
}

// BuildOptions converts the integration options into builder and tax
// settings, failing with a configuration error on anything invalid.
func BuildOptions(opts config.FeedOptions) (document.Options, taxdomain.Settings, error) {
	if err := opts.Validate(); err != nil {
		return document.Options{}, taxdomain.Settings{}, err
	}
	locale, err := feeddomain.ParseLocale(opts.Locale)
	if err != nil {
		return document.Options{}, taxdomain.Settings{}, err
	}
	basis, err := taxdomain.ParseBasis(opts.TaxBasedOn)
	if err != nil {
		return document.Options{}, taxdomain.Settings{}, err
	}

	statuses := make(map[aggregate.Status]string, len(opts.ProjectStatuses))
	for key, id := range opts.ProjectStatuses {
		statuses[aggregate.Status(key)] = id
	}

	docOpts := document.Options{
		Locale:                 locale,
		ShopID:                 opts.ShopID,
		CategoryID:             opts.CategoryID,
		FolderName:             opts.FolderName,
		SyncProductDescription: opts.SyncProductDescription,
		ProjectStatusIDs:       statuses,
		FieldMappings:          opts.FieldMappings(),
		EPOEnabled:             opts.EPOEnabled,
		EPOMappings:            opts.EPOMappings(),
		VATNumberEnabled:       opts.VATNumberEnabled,
		BaseCountry:            opts.BaseLocation.Country,
	}
	settings := taxdomain.Settings{
		Basis: basis,
		BaseLocation: taxdomain.Location{
			Country:  opts.BaseLocation.Country,
			State:    opts.BaseLocation.State,
			Postcode: opts.BaseLocation.Postcode,
			City:     opts.BaseLocation.City,
		},
		Precision: int32(opts.PriceDecimals),
	}
	return docOpts, settings, nil
}
