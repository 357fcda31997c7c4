package paddle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PaddleHQ/paddle-go-sdk/v4/pkg/paddleerr"
	"github.com/google/uuid"

	"github.com/slotbook/billing/pkg/subscription"
)

// Gateway bills through Paddle transactions and subscriptions.
// Paddle prices from its own catalog, so each plan and cycle needs a
// configured price id and discount codes need a Paddle discount id.
type Gateway struct {
	*subscription.Core
	api API
	cfg Config
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAPI replaces the Paddle client, mainly for tests.
func WithAPI(api API) Option {
	return func(g *Gateway) { g.api = api }
}

// New creates a Paddle gateway. It performs no I/O.
func New(cfg Config, deps subscription.Deps, opts ...Option) *Gateway {
	g := &Gateway{
		Core: subscription.NewCore(subscription.ProviderPaddle, deps),
		cfg:  cfg,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.api == nil {
		g.api = newSDKAPI(cfg)
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
	priceID, err := g.cfg.PriceID(q.Plan, q.Cycle)
	if err != nil {
		return nil, subscription.NotConfiguredError(subscription.ProviderPaddle, err)
	}

	in := TransactionInput{
		PriceID:    priceID,
		CustomData: subscription.MetadataFor(req.BusinessID, q.Plan, q.Cycle).Map(),
		SuccessURL: req.SuccessURL,
	}
	if q.Discount != nil && q.Discount.Discount != nil {
		ref := q.Discount.Discount.ProviderRefs[subscription.ProviderPaddle]
		if ref == "" {
			return nil, subscription.CallerError(subscription.ErrCodeDiscountNotSupported, http.StatusUnprocessableEntity,
				fmt.Errorf("discount %s has no paddle counterpart", q.Discount.Discount.Code))
		}
		in.DiscountID = ref
	}

	ctx, cancel := g.WithTimeout(ctx)
	defer cancel()
	txn, err := g.api.CreateTransaction(ctx, in)
	if err != nil {
		return nil, g.fail("create_transaction", err)
	}
	if txn.Checkout == nil || txn.Checkout.URL == nil || *txn.Checkout.URL == "" {
		return nil, g.ProcessorError("create_transaction", subscription.ErrNoCheckoutURL)
	}

	session, err := g.RecordCheckout(ctx, req, q, txn.ID)
	if err != nil {
		return nil, err
	}
	session.RedirectURL = *txn.Checkout.URL
	return session, nil
}

func (g *Gateway) UpdateSubscription(ctx context.Context, businessID uuid.UUID, plan subscription.PlanType, cycle subscription.BillingCycle) (*subscription.SubscriptionInfo, error) {
	price, err := g.ValidatePlanChange(plan, cycle)
	if err != nil {
		return nil, err
	}
	priceID, err := g.cfg.PriceID(plan, cycle)
	if err != nil {
		return nil, subscription.NotConfiguredError(subscription.ProviderPaddle, err)
	}
	sub, err := g.load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if err := g.CheckPlanChange(ctx, sub, plan); err != nil {
		return nil, err
	}

	change := SubscriptionChange{
		PriceID:    priceID,
		CustomData: subscription.MetadataFor(businessID, plan, cycle).Map(),
	}
	if err := g.call(ctx, "update_subscription", func(ctx context.Context) error {
		_, err := g.api.UpdateSubscription(ctx, sub.ProviderSubscriptionID, change)
		return err
	}); err != nil {
		return nil, err
	}
	return g.ChangePlan(ctx, sub, plan, cycle, price)
}

func (g *Gateway) CancelSubscription(ctx context.Context, businessID uuid.UUID, atPeriodEnd bool, reason string) (*subscription.SubscriptionInfo, error) {
	action := subscription.ActionCancel
	if atPeriodEnd {
		action = subscription.ActionCancelAtPeriodEnd
	}
	return g.transition(ctx, businessID, action, reason, func(ctx context.Context, id string) error {
		_, err := g.api.CancelSubscription(ctx, id, atPeriodEnd)
		return err
	})
}

func (g *Gateway) PauseSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	return g.transition(ctx, businessID, subscription.ActionPause, "", func(ctx context.Context, id string) error {
		_, err := g.api.PauseSubscription(ctx, id)
		return err
	})
}

func (g *Gateway) ResumeSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	return g.transition(ctx, businessID, subscription.ActionResume, "", func(ctx context.Context, id string) error {
		_, err := g.api.ResumeSubscription(ctx, id)
		return err
	})
}

// ReactivateSubscription removes a scheduled cancellation. Suspended
// subscriptions are resumed instead, which makes Paddle retry collection.
func (g *Gateway) ReactivateSubscription(ctx context.Context, businessID uuid.UUID) (*subscription.SubscriptionInfo, error) {
	sub, err := g.load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if err := g.Check(sub, subscription.ActionReactivate); err != nil {
		return nil, err
	}
	if err := g.call(ctx, "reactivate_subscription", func(ctx context.Context) error {
		if sub.PendingCancellation() {
			_, err := g.api.UpdateSubscription(ctx, sub.ProviderSubscriptionID, SubscriptionChange{ClearScheduledChange: true})
			return err
		}
		_, err := g.api.ResumeSubscription(ctx, sub.ProviderSubscriptionID)
		return err
	}); err != nil {
		return nil, err
	}
	return g.Apply(ctx, sub, subscription.ActionReactivate, "", nil)
}

func (g *Gateway) transition(ctx context.Context, businessID uuid.UUID, action subscription.Action, reason string, fn func(ctx context.Context, id string) error) (*subscription.SubscriptionInfo, error) {
	sub, err := g.load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if err := g.Check(sub, action); err != nil {
		return nil, err
	}
	if err := g.call(ctx, string(action)+"_subscription", func(ctx context.Context) error {
		return fn(ctx, sub.ProviderSubscriptionID)
	}); err != nil {
		return nil, err
	}
	return g.Apply(ctx, sub, action, reason, nil)
}

func (g *Gateway) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := g.WithTimeout(ctx)
	defer cancel()
	if err := fn(ctx); err != nil {
		return g.fail(op, err)
	}
	return nil
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

// classify types SDK errors the gateway and source can act on.
func classify(err error) error {
	if errors.Is(err, ErrNotConfigured) {
		return subscription.NotConfiguredError(subscription.ProviderPaddle, err)
	}
	var pe *paddleerr.Error
	if errors.As(err, &pe) {
		switch {
		case pe.Code == "not_found" || strings.HasSuffix(pe.Code, "_not_found"):
			return subscription.IntegrityError(subscription.ErrCodeResourceNotFound, true, err).
				WithProvider(subscription.ProviderPaddle)
		case pe.Code == "authentication_malformed" || pe.Code == "authentication_missing" || pe.Code == "forbidden":
			return subscription.NotConfiguredError(subscription.ProviderPaddle, err)
		}
	}
	return err
}
