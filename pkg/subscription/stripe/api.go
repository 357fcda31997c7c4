package stripe

import (
	"context"
	"errors"

	stripesdk "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// ErrNotConfigured is returned by every call when no secret key is set.
var ErrNotConfigured = errors.New("stripe: secret key is not configured")

// API is the subset of the Stripe API the adapter uses.
type API interface {
	CreateCheckoutSession(ctx context.Context, params *stripesdk.CheckoutSessionParams) (*stripesdk.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripesdk.CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*stripesdk.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, params *stripesdk.SubscriptionParams) (*stripesdk.Subscription, error)
	CancelSubscription(ctx context.Context, id string, params *stripesdk.SubscriptionCancelParams) (*stripesdk.Subscription, error)
	GetInvoice(ctx context.Context, id string) (*stripesdk.Invoice, error)
}

// sdkAPI adapts a per-key stripe client to API. It never touches the
// package-level stripe.Key, so several keys can coexist in one process.
type sdkAPI struct {
	sc *client.API
}

func newSDKAPI(secretKey string) API {
	if secretKey == "" {
		return unconfiguredAPI{}
	}
	return &sdkAPI{sc: client.New(secretKey, nil)}
}

func (a *sdkAPI) CreateCheckoutSession(ctx context.Context, params *stripesdk.CheckoutSessionParams) (*stripesdk.CheckoutSession, error) {
	params.Context = ctx
	return a.sc.CheckoutSessions.New(params)
}

func (a *sdkAPI) GetCheckoutSession(ctx context.Context, id string) (*stripesdk.CheckoutSession, error) {
	params := &stripesdk.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")
	return a.sc.CheckoutSessions.Get(id, params)
}

func (a *sdkAPI) GetSubscription(ctx context.Context, id string) (*stripesdk.Subscription, error) {
	params := &stripesdk.SubscriptionParams{}
	params.Context = ctx
	return a.sc.Subscriptions.Get(id, params)
}

func (a *sdkAPI) UpdateSubscription(ctx context.Context, id string, params *stripesdk.SubscriptionParams) (*stripesdk.Subscription, error) {
	params.Context = ctx
	return a.sc.Subscriptions.Update(id, params)
}

func (a *sdkAPI) CancelSubscription(ctx context.Context, id string, params *stripesdk.SubscriptionCancelParams) (*stripesdk.Subscription, error) {
	params.Context = ctx
	return a.sc.Subscriptions.Cancel(id, params)
}

func (a *sdkAPI) GetInvoice(ctx context.Context, id string) (*stripesdk.Invoice, error) {
	params := &stripesdk.InvoiceParams{}
	params.Context = ctx
	return a.sc.Invoices.Get(id, params)
}

type unconfiguredAPI struct{}

func (unconfiguredAPI) CreateCheckoutSession(context.Context, *stripesdk.CheckoutSessionParams) (*stripesdk.CheckoutSession, error) {
	return nil, ErrNotConfigured
}

func (unconfiguredAPI) GetCheckoutSession(context.Context, string) (*stripesdk.CheckoutSession, error) {
	return nil, ErrNotConfigured
}

func (unconfiguredAPI) GetSubscription(context.Context, string) (*stripesdk.Subscription, error) {
	return nil, ErrNotConfigured
}

func (unconfiguredAPI) UpdateSubscription(context.Context, string, *stripesdk.SubscriptionParams) (*stripesdk.Subscription, error) {
	return nil, ErrNotConfigured
}

func (unconfiguredAPI) CancelSubscription(context.Context, string, *stripesdk.SubscriptionCancelParams) (*stripesdk.Subscription, error) {
	return nil, ErrNotConfigured
}

func (unconfiguredAPI) GetInvoice(context.Context, string) (*stripesdk.Invoice, error) {
	return nil, ErrNotConfigured
}
