package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v82"

	"github.com/slotbook/billing/pkg/subscription"
)

// Gateway bills through Stripe Checkout and Stripe subscriptions.
type Gateway struct {
	*subscription.Core
	api API
	cfg Config
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAPI replaces the Stripe client, mainly for tests.
func WithAPI(api API) Option {
	return func(g *Gateway) { g.api = api }
}

// New creates a Stripe gateway. It performs no I/O.
func New(cfg Config, deps subscription.Deps, opts ...Option) *Gateway {
	if cfg.ProductName == "" {
		cfg.ProductName = "Slotbook"
	}
	g := &Gateway{
		Core: subscription.NewCore(subscription.ProviderStripe, deps),
		cfg:  cfg,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.api == nil {
		g.api = newSDKAPI(cfg.SecretKey)
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

// CreateCheckoutSession opens a subscription-mode Checkout page priced inline
// with the server-side quote, so discounts never depend on Stripe coupons.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutSession, error) {
	q, err := g.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	meta := subscription.MetadataFor(req.BusinessID, q.Plan, q.Cycle).Map()

	params := &stripesdk.CheckoutSessionParams{
		Mode:              stripesdk.String(string(stripesdk.CheckoutSessionModeSubscription)),
		SuccessURL:        stripesdk.String(req.SuccessURL),
		CancelURL:         stripesdk.String(req.CancelURL),
		ClientReferenceID: stripesdk.String(req.BusinessID.String()),
		LineItems: []*stripesdk.CheckoutSessionLineItemParams{{
			Quantity: stripesdk.Int64(1),
			PriceData: &stripesdk.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripesdk.String(strings.ToLower(q.List.Currency)),
				UnitAmount: stripesdk.Int64(q.Final()),
				Recurring: &stripesdk.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval: stripesdk.String(interval(q.Cycle)),
				},
				ProductData: &stripesdk.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripesdk.String(fmt.Sprintf("%s %s", g.cfg.ProductName, q.Plan)),
				},
			},
		}},
		SubscriptionData: &stripesdk.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
		Metadata: meta,
	}
	if req.Email != "" {
		params.CustomerEmail = stripesdk.String(req.Email)
	}

	ctx, cancel := g.WithTimeout(ctx)
	defer cancel()
	cs, err := g.api.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, g.fail("create_checkout_session", err)
	}
	if cs.URL == "" {
		return nil, g.ProcessorError("create_checkout_session", subscription.ErrNoCheckoutURL)
	}

	session, err := g.RecordCheckout(ctx, req, q, cs.ID)
	if err != nil {
		return nil, err
	}
	session.RedirectURL = cs.URL
	return session, nil
}

// UpdateSubscription swaps the subscription item to the configured price for
// plan and cycle, prorating the difference.
func (g *Gateway) UpdateSubscription(ctx context.Context, businessID uuid.UUID, plan subscription.PlanType, cycle subscription.BillingCycle) (*subscription.SubscriptionInfo, error) {
	price, err := g.ValidatePlanChange(plan, cycle)
	if err != nil {
		return nil, err
	}
	priceID, err := g.cfg.PriceID(plan, cycle)
	if err != nil {
		return nil, subscription.NotConfiguredError(subscription.ProviderStripe, err)
	}
	sub, err := g.load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if err := g.CheckPlanChange(ctx, sub, plan); err != nil {
		return nil, err
	}

	ctx, cancel := g.WithTimeout(ctx)
	defer cancel()
	current, err := g.api.GetSubscription(ctx, sub.ProviderSubscriptionID)
	if err != nil {
		return nil, g.fail("get_subscription", err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, g.ProcessorError("get_subscription", errors.New("subscription has no items"))
	}

	params := &stripesdk.SubscriptionParams{
		Items: []*stripesdk.SubscriptionItemsParams{{
			ID:    stripesdk.String(current.Items.Data[0].ID),
			Price: stripesdk.String(priceID),
		}},
		ProrationBehavior: stripesdk.String("create_prorations"),
		Metadata:          subscription.MetadataFor(businessID, plan, cycle).Map(),
	}
	if _, err := g.api.UpdateSubscription(ctx, sub.ProviderSubscriptionID, params); err != nil {
		return nil, g.fail("update_subscription", err)
	}
	return g.ChangePlan(ctx, sub, plan, cycle, price)
}

func (g *Gateway) CancelSubscription(ctx context.Context, businessID uuid.UUID, atPeriodEnd bool, reason string) (*subscription.SubscriptionInfo, error) {
	sub, err := g.load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	action := subscription.ActionCancel
	if atPeriodEnd {
		action = subscription.ActionCancelAtPeriodEnd
	}
	if err := g.Check(sub, action); err != nil {
		return nil, err
	}

	ctx, cancel := g.WithTimeout(ctx)
	defer cancel()
	if atPeriodEnd {
		params := &stripesdk.SubscriptionParams{CancelAtPeriodEnd: stripesdk.Bool(true)}
		if _, err := g.api.UpdateSubscription(ctx, sub.ProviderSubscriptionID, params); err != nil {
			return nil, g.fail("cancel_subscription", err)
		}
	} else {
		params := &stripesdk.SubscriptionCancelParams{}
		if reason != "" {
			params.CancellationDetails = &stripesdk.SubscriptionCancelCancellationDetailsParams{
				Comment: stripesdk.String(reason),
			}
		}
		if _, err := g.api.CancelSubscription(ctx, sub.ProviderSubscriptionID, params); err != nil {
			return nil, g.fail("cancel_subscription", err)
		}
	}
	return g.Apply(ctx, sub, action, reason, nil)
}

// PauseSubscription pauses payment collection; invoices created while paused are voided.
func (g *Gateway) PauseSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	params := &stripesdk.SubscriptionParams{
		PauseCollection: &stripesdk.SubscriptionPauseCollectionParams{
			Behavior: stripesdk.String(string(stripesdk.SubscriptionPauseCollectionBehaviorVoid)),
		},
	}
	return g.update(ctx, businessID, subscription.ActionPause, params)
}

func (g *Gateway) ResumeSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	return g.update(ctx, businessID, subscription.ActionResume, resumeParams())
}

// ReactivateSubscription withdraws a scheduled cancellation and resumes collection.
func (g *Gateway) ReactivateSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	params := resumeParams()
	params.CancelAtPeriodEnd = stripesdk.Bool(false)
	return g.update(ctx, businessID, subscription.ActionReactivate, params)
}

func (g *Gateway) update(ctx context.Context, businessID uuid.UUID, action subscription.Action, params *stripesdk.SubscriptionParams) (*subscription.SubscriptionInfo, error) {
	sub, err := g.load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if err := g.Check(sub, action); err != nil {
		return nil, err
	}

	ctx, cancel := g.WithTimeout(ctx)
	defer cancel()
	if _, err := g.api.UpdateSubscription(ctx, sub.ProviderSubscriptionID, params); err != nil {
		return nil, g.fail(string(action)+"_subscription", err)
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
			errors.New("checkout has not completed yet"))
	}
	return sub, nil
}

func (g *Gateway) fail(op string, err error) error {
	return g.ProcessorError(op, classify(err))
}

// resumeParams clears pause_collection, which Stripe expects as an empty value.
func resumeParams() *stripesdk.SubscriptionParams {
	params := &stripesdk.SubscriptionParams{}
	params.AddExtra("pause_collection", "")
	return params
}

// classify types SDK errors the gateway and source can act on.
func classify(err error) error {
	if errors.Is(err, ErrNotConfigured) {
		return subscription.NotConfiguredError(subscription.ProviderStripe, err)
	}
	var se *stripesdk.Error
	if errors.As(err, &se) {
		switch {
		case se.HTTPStatusCode == http.StatusNotFound || se.Code == stripesdk.ErrorCodeResourceMissing:
			return subscription.IntegrityError(subscription.ErrCodeResourceNotFound, true, err).
				WithProvider(subscription.ProviderStripe)
		case se.HTTPStatusCode == http.StatusUnauthorized:
			return subscription.NotConfiguredError(subscription.ProviderStripe, err)
		}
	}
	return err
}

func interval(cycle subscription.BillingCycle) string {
	if cycle == subscription.CycleYearly {
		return string(stripesdk.PriceRecurringIntervalYear)
	}
	return string(stripesdk.PriceRecurringIntervalMonth)
}
