package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/billing/pkg/logger"
)

// DefaultProcessorTimeout bounds every processor call made by an adapter.
const DefaultProcessorTimeout = 15 * time.Second

// Deps are the shared collaborators injected into every adapter.
type Deps struct {
	Store   Store
	Catalog *Catalog
	Logger  *slog.Logger
	Clock   func() time.Time
	Timeout time.Duration
	Metrics *Metrics
}

// Core holds the processor-independent half of a Gateway. Adapters embed it
// and add the processor calls; the limit, discount and dashboard operations
// are served from here unchanged.
type Core struct {
	provider  Provider
	store     Store
	catalog   *Catalog
	validator *LimitValidator
	discounts *DiscountApplier
	dashboard *DashboardAggregator
	log       *slog.Logger
	now       func() time.Time
	timeout   time.Duration
	metrics   *Metrics
}

// NewCore wires a Core for provider. Panics if deps.Store is nil to fail fast
// during initialization.
func NewCore(provider Provider, deps Deps) *Core {
	if deps.Store == nil {
		panic("subscription store is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = MustDefaultCatalog()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultProcessorTimeout
	}
	log := deps.Logger.With(logger.Component("gateway"), logger.Provider(string(provider)))

	return &Core{
		provider:  provider,
		store:     deps.Store,
		catalog:   deps.Catalog,
		validator: NewLimitValidator(deps.Store, deps.Store, log, deps.Clock),
		discounts: NewDiscountApplier(deps.Store, deps.Catalog.Currency, log, deps.Clock),
		dashboard: NewDashboardAggregator(deps.Store, deps.Store, deps.Store, log, deps.Clock),
		log:       log,
		now:       deps.Clock,
		timeout:   deps.Timeout,
		metrics:   deps.Metrics,
	}
}

func (c *Core) Provider() Provider { return c.provider }

func (c *Core) Logger() *slog.Logger { return c.log }

func (c *Core) Catalog() *Catalog { return c.catalog }

// Now returns the current time in UTC.
func (c *Core) Now() time.Time { return c.now().UTC() }

func (c *Core) GetDashboard(ctx context.Context, businessID uuid.UUID) (*Dashboard, error) {
	return c.dashboard.Get(ctx, businessID)
}

func (c *Core) ValidatePlanLimit(ctx context.Context, businessID uuid.UUID, kind ResourceKind) (*LimitCheck, error) {
	return c.validator.Validate(ctx, businessID, kind)
}

func (c *Core) ApplyDiscountCode(ctx context.Context, businessID uuid.UUID, code string, plan PlanType, amount int64) (*DiscountResult, error) {
	return c.discounts.Apply(ctx, businessID, code, plan, amount)
}

// WithTimeout bounds a processor call.
func (c *Core) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// ProcessorError converts a processor failure into a GatewayError,
// preserving errors that are already typed.
func (c *Core) ProcessorError(op string, err error) error {
	if ge, ok := AsGatewayError(err); ok {
		if ge.Provider == "" {
			ge.Provider = c.provider
		}
		return ge
	}
	c.metrics.processorFailure(c.provider, op)
	return UpstreamError(c.provider, fmt.Errorf("%s: %w", op, err))
}

// Quote validates req and prices it, applying the discount code server-side.
// An unusable discount code is a caller error here, not a silent full-price checkout.
func (c *Core) Quote(ctx context.Context, req CheckoutRequest) (*CheckoutQuote, error) {
	if req.BusinessID == uuid.Nil {
		return nil, CallerError(ErrCodeInvalidRequest, http.StatusBadRequest, errors.New("business id is required"))
	}
	if !req.Plan.Valid() {
		return nil, CallerError(ErrCodeInvalidPlan, http.StatusBadRequest, fmt.Errorf("plan %q", req.Plan))
	}
	if !req.Cycle.Valid() {
		return nil, CallerError(ErrCodeInvalidCycle, http.StatusBadRequest, fmt.Errorf("cycle %q", req.Cycle))
	}
	price, err := c.catalog.Price(req.Plan, req.Cycle)
	if err != nil {
		return nil, CallerError(ErrCodeInvalidPlan, http.StatusBadRequest, err)
	}

	q := &CheckoutQuote{Plan: req.Plan, Cycle: req.Cycle, List: price}
	if req.DiscountCode == "" {
		return q, nil
	}
	res, err := c.discounts.Apply(ctx, req.BusinessID, req.DiscountCode, req.Plan, price.Amount)
	if err != nil {
		return nil, err
	}
	if !res.IsValid {
		return nil, CallerError(ErrCodeInvalidDiscount, http.StatusUnprocessableEntity, errors.New(res.Message))
	}
	q.Discount = res
	return q, nil
}

// RecordCheckout remembers what the business is expected to buy so that the
// processor's notification can be cross-checked later.
func (c *Core) RecordCheckout(ctx context.Context, req CheckoutRequest, q *CheckoutQuote, sessionID string) (*CheckoutSession, error) {
	now := c.Now()
	pc := &PendingCheckout{
		BusinessID: req.BusinessID,
		Provider:   c.provider,
		Plan:       q.Plan,
		Cycle:      q.Cycle,
		SessionID:  sessionID,
		Amount:     q.Final(),
		Currency:   q.List.Currency,
		CreatedAt:  now,
	}
	if err := c.store.SavePendingCheckout(ctx, pc); err != nil {
		return nil, StoreError(err)
	}
	c.appendEvent(ctx, &SubscriptionEvent{
		BusinessID:  req.BusinessID,
		Type:        EventCheckoutCreated,
		ReferenceID: sessionID,
		Metadata:    MetadataFor(req.BusinessID, q.Plan, q.Cycle).Map(),
	})
	c.log.InfoContext(ctx, "checkout session created",
		logger.BusinessID(req.BusinessID),
		logger.ReferenceID(sessionID),
		logger.Plan(string(q.Plan)),
	)
	return &CheckoutSession{
		SessionID:      sessionID,
		Amount:         q.Final(),
		DiscountAmount: q.DiscountAmount(),
		Currency:       q.List.Currency,
	}, nil
}

// Load returns the subscription a lifecycle call acts on. It must exist and
// belong to this adapter's processor.
func (c *Core) Load(ctx context.Context, businessID uuid.UUID) (*SubscriptionInfo, error) {
	sub, err := c.store.GetSubscription(ctx, businessID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, CallerError(ErrCodeSubscriptionNotFound, http.StatusNotFound, err)
	}
	if err != nil {
		return nil, StoreError(err)
	}
	if sub.Provider != c.provider {
		return nil, CallerError(ErrCodeProviderMismatch, http.StatusConflict,
			fmt.Errorf("subscription is billed by %s", sub.Provider)).WithProvider(c.provider)
	}
	return sub, nil
}

// Check validates action against sub without writing anything, so illegal
// requests are rejected before the processor is called.
func (c *Core) Check(sub *SubscriptionInfo, action Action) error {
	_, _, err := Transition(sub, action, c.Now())
	return err
}

// CheckPlanChange guards an update to plan: the transition must be allowed
// and current usage must fit the new plan's limits.
func (c *Core) CheckPlanChange(ctx context.Context, sub *SubscriptionInfo, plan PlanType) error {
	if err := c.Check(sub, ActionUpdate); err != nil {
		return err
	}
	limits, err := c.catalog.Limits(plan)
	if err != nil {
		return CallerError(ErrCodeInvalidPlan, http.StatusBadRequest, err)
	}
	return c.validator.FitsLimits(ctx, sub.BusinessID, limits)
}

// Apply performs the local half of a lifecycle call: the transition, an
// optional mutation, the upsert and a best-effort audit event.
func (c *Core) Apply(ctx context.Context, sub *SubscriptionInfo, action Action, reason string, mutate func(*SubscriptionInfo)) (*SubscriptionInfo, error) {
	now := c.Now()
	next, eventType, err := Transition(sub, action, now)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(next)
	}
	if err := c.store.UpsertSubscription(ctx, next); err != nil {
		return nil, StoreError(err)
	}

	meta := map[string]string{"action": string(action)}
	if reason != "" {
		meta["reason"] = reason
	}
	c.appendEvent(ctx, &SubscriptionEvent{
		BusinessID:  next.BusinessID,
		Type:        eventType,
		FromStatus:  sub.Status,
		ToStatus:    next.Status,
		ReferenceID: next.ProviderSubscriptionID,
		Metadata:    meta,
	})
	c.metrics.transition(c.provider, action)
	c.log.InfoContext(ctx, "subscription transitioned",
		logger.BusinessID(next.BusinessID),
		logger.Action(string(action)),
		logger.StatusChange(string(sub.Status), string(next.Status)),
	)
	return next, nil
}

// ChangePlan applies a plan update locally and records the new expectation
// for cross-checking the processor's follow-up notification.
func (c *Core) ChangePlan(ctx context.Context, sub *SubscriptionInfo, plan PlanType, cycle BillingCycle, price Money) (*SubscriptionInfo, error) {
	limits, err := c.catalog.Limits(plan)
	if err != nil {
		return nil, CallerError(ErrCodeInvalidPlan, http.StatusBadRequest, err)
	}
	next, err := c.Apply(ctx, sub, ActionUpdate, "", func(s *SubscriptionInfo) {
		s.Plan = plan
		s.Cycle = cycle
		s.Amount = price.Amount
		s.Currency = price.Currency
		s.Limits = limits
	})
	if err != nil {
		return nil, err
	}
	pc := &PendingCheckout{
		BusinessID: sub.BusinessID,
		Provider:   c.provider,
		Plan:       plan,
		Cycle:      cycle,
		SessionID:  sub.ProviderSubscriptionID,
		Amount:     price.Amount,
		Currency:   price.Currency,
		CreatedAt:  c.Now(),
	}
	if err := c.store.SavePendingCheckout(ctx, pc); err != nil {
		c.log.WarnContext(ctx, "failed to record plan change expectation",
			logger.BusinessID(sub.BusinessID),
			logger.Error(err),
		)
	}
	return next, nil
}

// ValidatePlanChange checks plan and cycle and returns the new list price.
func (c *Core) ValidatePlanChange(plan PlanType, cycle BillingCycle) (Money, error) {
	if !plan.Valid() {
		return Money{}, CallerError(ErrCodeInvalidPlan, http.StatusBadRequest, fmt.Errorf("plan %q", plan))
	}
	if !cycle.Valid() {
		return Money{}, CallerError(ErrCodeInvalidCycle, http.StatusBadRequest, fmt.Errorf("cycle %q", cycle))
	}
	price, err := c.catalog.Price(plan, cycle)
	if err != nil {
		return Money{}, CallerError(ErrCodeInvalidPlan, http.StatusBadRequest, err)
	}
	return price, nil
}

// appendEvent writes an audit event. Failures are logged and never surface.
func (c *Core) appendEvent(ctx context.Context, e *SubscriptionEvent) {
	appendEvent(ctx, c.store, c.log, c.provider, c.Now(), e)
}

func appendEvent(ctx context.Context, store EventStore, log *slog.Logger, provider Provider, now time.Time, e *SubscriptionEvent) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Provider == "" {
		e.Provider = provider
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if err := store.AppendEvent(ctx, e); err != nil {
		log.WarnContext(ctx, "failed to append subscription event",
			logger.BusinessID(e.BusinessID),
			logger.EventType(string(e.Type)),
			logger.Error(err),
		)
	}
}
