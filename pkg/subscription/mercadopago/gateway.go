package mercadopago

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/billing/pkg/subscription"
)

// Gateway bills through MercadoPago preapprovals.
type Gateway struct {
	*subscription.Core
	api API
	cfg Config
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAPI replaces the REST client, mainly for tests.
func WithAPI(api API) Option {
	return func(g *Gateway) { g.api = api }
}

// New creates a MercadoPago gateway. It performs no I/O; missing credentials
// surface as provider_not_configured on the first processor call.
func New(cfg Config, deps subscription.Deps, opts ...Option) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mercadopago.com"
	}
	if cfg.ProductName == "" {
		cfg.ProductName = "Slotbook"
	}
	g := &Gateway{
		Core: subscription.NewCore(subscription.ProviderMercadoPago, deps),
		cfg:  cfg,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.api == nil {
		g.api = NewClient(cfg.BaseURL, cfg.AccessToken, nil)
	}
	return g
}

// Factory returns a subscription.Factory for cfg.
func Factory(cfg Config) subscription.Factory {
	return func(deps subscription.Deps) subscription.Gateway {
		return New(cfg, deps)
	}
}

var _ subscription.Gateway = (*Gateway)(nil)

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutSession, error) {
	q, err := g.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Email == "" {
		return nil, subscription.CallerError(subscription.ErrCodeInvalidRequest, http.StatusBadRequest,
			errors.New("payer email is required"))
	}

	currency := q.List.Currency
	pre := &Preapproval{
		Reason:            g.reason(q.Plan, q.Cycle),
		ExternalReference: encodeReference(req.BusinessID, q.Plan, q.Cycle),
		PayerEmail:        req.Email,
		BackURL:           req.SuccessURL,
		Status:            "pending",
		AutoRecurring: AutoRecurring{
			Frequency:         frequency(q.Cycle),
			FrequencyType:     "months",
			TransactionAmount: subscription.FromMinor(q.Final(), currency).InexactFloat64(),
			CurrencyID:        currency,
		},
	}

	ctx, cancel := g.WithTimeout(ctx)
	defer cancel()
	created, err := g.api.CreatePreapproval(ctx, pre)
	if err != nil {
		return nil, g.fail("create_preapproval", err)
	}
	if created.InitPoint == "" {
		return nil, g.ProcessorError("create_preapproval", subscription.ErrNoCheckoutURL)
	}

	session, err := g.RecordCheckout(ctx, req, q, created.ID)
	if err != nil {
		return nil, err
	}
	session.RedirectURL = created.InitPoint
	return session, nil
}

// UpdateSubscription changes the recurring amount. MercadoPago cannot change
// the frequency of an existing preapproval, so a cycle change needs a new checkout.
func (g *Gateway) UpdateSubscription(ctx context.Context, businessID uuid.UUID, plan subscription.PlanType, cycle subscription.BillingCycle) (*subscription.SubscriptionInfo, error) {
	price, err := g.ValidatePlanChange(plan, cycle)
	if err != nil {
		return nil, err
	}
	sub, err := g.load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if cycle != sub.Cycle {
		return nil, subscription.CallerError(subscription.ErrCodeInvalidCycle, http.StatusConflict,
			fmt.Errorf("cannot switch from %s to %s billing on an existing preapproval", sub.Cycle, cycle))
	}
	if err := g.CheckPlanChange(ctx, sub, plan); err != nil {
		return nil, err
	}

	changes := map[string]any{
		"reason":             g.reason(plan, cycle),
		"external_reference": encodeReference(businessID, plan, cycle),
		"auto_recurring": map[string]any{
			"transaction_amount": subscription.FromMinor(price.Amount, price.Currency).InexactFloat64(),
			"currency_id":        price.Currency,
		},
	}
	if err := g.update(ctx, "update_preapproval", sub.ProviderSubscriptionID, changes); err != nil {
		return nil, err
	}
	return g.ChangePlan(ctx, sub, plan, cycle, price)
}

func (g *Gateway) CancelSubscription(ctx context.Context, businessID uuid.UUID, atPeriodEnd bool, reason string) (*subscription.SubscriptionInfo, error) {
	sub, err := g.load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	action := subscription.ActionCancel
	changes := map[string]any{"status": "cancelled"}
	if atPeriodEnd {
		action = subscription.ActionCancelAtPeriodEnd
		changes = map[string]any{
			"auto_recurring": map[string]any{"end_date": sub.CurrentPeriodEnd.UTC().Format(time.RFC3339)},
		}
	}
	if err := g.Check(sub, action); err != nil {
		return nil, err
	}
	if err := g.update(ctx, "cancel_preapproval", sub.ProviderSubscriptionID, changes); err != nil {
		return nil, err
	}
	return g.Apply(ctx, sub, action, reason, nil)
}

func (g *Gateway) PauseSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	return g.setStatus(ctx, businessID, subscription.ActionPause, "paused")
}

func (g *Gateway) ResumeSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	return g.setStatus(ctx, businessID, subscription.ActionResume, "authorized")
}

// ReactivateSubscription clears a scheduled cancellation or re-authorizes a
// suspended preapproval. Canceled preapprovals cannot be revived.
func (g *Gateway) ReactivateSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	sub, err := g.load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if err := g.Check(sub, subscription.ActionReactivate); err != nil {
		return nil, err
	}
	changes := map[string]any{"status": "authorized"}
	if sub.PendingCancellation() {
		changes["auto_recurring"] = map[string]any{"end_date": nil}
	}
	if err := g.update(ctx, "reactivate_preapproval", sub.ProviderSubscriptionID, changes); err != nil {
		return nil, err
	}
	return g.Apply(ctx, sub, subscription.ActionReactivate, "", nil)
}

func (g *Gateway) setStatus(ctx context.Context, businessID uuid.UUID, action subscription.Action, status string) (*subscription.SubscriptionInfo, error) {
	sub, err := g.load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if err := g.Check(sub, action); err != nil {
		return nil, err
	}
	if err := g.update(ctx, string(action)+"_preapproval", sub.ProviderSubscriptionID, map[string]any{"status": status}); err != nil {
		return nil, err
	}
	return g.Apply(ctx, sub, action, "", nil)
}

func (g *Gateway) load(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	sub, err := g.Load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if sub.ProviderSubscriptionID == "" {
		return nil, subscription.CallerError(subscription.ErrCodeSubscriptionNotFound, http.StatusNotFound,
			errors.New("subscription has no preapproval yet"))
	}
	return sub, nil
}

func (g *Gateway) update(ctx context.Context, op, id string, changes map[string]any) error {
	ctx, cancel := g.WithTimeout(ctx)
	defer cancel()
	if _, err := g.api.UpdatePreapproval(ctx, id, changes); err != nil {
		return g.fail(op, err)
	}
	return nil
}

func (g *Gateway) fail(op string, err error) error {
	return g.ProcessorError(op, classify(err))
}

func (g *Gateway) reason(plan subscription.PlanType, cycle subscription.BillingCycle) string {
	return fmt.Sprintf("%s %s (%s)", g.cfg.ProductName, plan, cycle)
}

// classify types client errors the gateway and source can act on.
// Anything else is left for ProcessorError to wrap as an upstream failure.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return subscription.NotConfiguredError(subscription.ProviderMercadoPago, err)
	case errors.Is(err, ErrNotFound):
		return subscription.IntegrityError(subscription.ErrCodeResourceNotFound, true, err).
			WithProvider(subscription.ProviderMercadoPago)
	}
	return err
}

func frequency(cycle subscription.BillingCycle) int {
	if cycle == subscription.CycleYearly {
		return 12
	}
	return 1
}
