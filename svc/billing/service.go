package billing

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/slotbook/billing/pkg/logger"
	"github.com/slotbook/billing/pkg/subscription"
	"github.com/slotbook/billing/pkg/subscription/mercadopago"
	"github.com/slotbook/billing/pkg/subscription/paddle"
	"github.com/slotbook/billing/pkg/subscription/stripe"
)

const tracerName = "github.com/slotbook/billing/svc/billing"

// Deps are the collaborators the service is built on.
type Deps struct {
	Store     subscription.Store
	Ledger    subscription.Ledger
	Escalator subscription.Escalator
	Catalog   *subscription.Catalog
	Logger    *slog.Logger
	Metrics   *subscription.Metrics
	Tracer    trace.Tracer
	Clock     func() time.Time
}

// Service serves the lifecycle API and processor webhooks.
type Service struct {
	cfg        Config
	gateway    subscription.Gateway
	reconciler *subscription.Reconciler
	sources    map[subscription.Provider]subscription.Source
	sweeper    *subscription.Sweeper
	log        *slog.Logger
}

// Option overrides parts of the wiring, mainly for tests.
type Option func(*Service)

// WithGateway replaces the selected gateway.
func WithGateway(g subscription.Gateway) Option {
	return func(s *Service) { s.gateway = g }
}

// WithSource replaces the webhook source of its processor.
func WithSource(src subscription.Source) Option {
	return func(s *Service) { s.sources[src.Provider()] = src }
}

// Registry returns the processors this service can bill through.
// MercadoPago is the fallback for unknown selector values.
func Registry(cfg Config) *subscription.Registry {
	return subscription.NewRegistry(subscription.ProviderMercadoPago).
		Register(subscription.ProviderMercadoPago, mercadopago.Factory(cfg.MercadoPago)).
		Register(subscription.ProviderStripe, stripe.Factory(cfg.Stripe)).
		Register(subscription.ProviderPaddle, paddle.Factory(cfg.Paddle))
}

// New wires the service. Panics if deps.Store is nil.
func New(cfg Config, deps Deps, opts ...Option) *Service {
	if deps.Store == nil {
		panic("billing store is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Catalog == nil {
		deps.Catalog = subscription.MustDefaultCatalog()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}
	if cfg.MaxRequestBody <= 0 {
		cfg.MaxRequestBody = 64 << 10
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 3 * time.Second
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@every 15m"
	}

	gateway := subscription.SelectGateway(Registry(cfg), cfg.Selector, subscription.Deps{
		Store:   deps.Store,
		Catalog: deps.Catalog,
		Logger:  deps.Logger,
		Clock:   deps.Clock,
		Timeout: cfg.ProcessorTimeout,
		Metrics: deps.Metrics,
	})

	recOpts := []subscription.ReconcilerOption{
		subscription.WithCatalog(deps.Catalog),
		subscription.WithLogger(deps.Logger),
		subscription.WithClock(deps.Clock),
		subscription.WithMetrics(deps.Metrics),
		subscription.WithTracer(deps.Tracer),
		subscription.WithLedgerTTL(cfg.LedgerTTL),
		subscription.WithMaxBody(cfg.MaxWebhookBody),
	}
	if deps.Ledger != nil {
		recOpts = append(recOpts, subscription.WithLedger(deps.Ledger))
	}
	if deps.Escalator != nil {
		recOpts = append(recOpts, subscription.WithEscalator(deps.Escalator))
	}

	s := &Service{
		cfg:        cfg,
		gateway:    gateway,
		reconciler: subscription.NewReconciler(deps.Store, recOpts...),
		// Webhooks are accepted from every processor, not just the selected
		// one: businesses keep their processor after the selector changes.
		sources: map[subscription.Provider]subscription.Source{
			subscription.ProviderMercadoPago: mercadopago.NewSource(cfg.MercadoPago, nil, deps.Clock),
			subscription.ProviderStripe:      stripe.NewSource(cfg.Stripe, nil),
			subscription.ProviderPaddle:      paddle.NewSource(cfg.Paddle, nil),
		},
		sweeper: subscription.NewSweeper(deps.Store, cfg.GracePeriod, deps.Logger, deps.Clock, deps.Metrics),
		log:     deps.Logger.With(logger.Component("billing_api")),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log.Info("billing service configured", logger.Provider(string(s.gateway.Provider())))
	return s
}

// Gateway returns the adapter lifecycle calls go through.
func (s *Service) Gateway() subscription.Gateway { return s.gateway }

// Sweeper returns the time-driven transition runner.
func (s *Service) Sweeper() *subscription.Sweeper { return s.sweeper }
