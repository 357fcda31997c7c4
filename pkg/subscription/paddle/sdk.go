package paddle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"
)

type sdkAPI struct {
	client *paddlesdk.SDK
}

// newSDKAPI builds the SDK client. It never fails: a missing key or an
// unknown environment yields an API whose calls return ErrNotConfigured.
func newSDKAPI(cfg Config) API {
	if cfg.APIKey == "" {
		return unconfiguredAPI{err: ErrNotConfigured}
	}

	var (
		client *paddlesdk.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddlesdk.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddlesdk.New(cfg.APIKey)
	default:
		err = fmt.Errorf("invalid paddle environment: %s", cfg.Environment)
	}
	if err != nil {
		return unconfiguredAPI{err: errors.Join(ErrNotConfigured, err)}
	}
	return &sdkAPI{client: client}
}

func (a *sdkAPI) CreateTransaction(ctx context.Context, in TransactionInput) (*paddlesdk.Transaction, error) {
	item := paddlesdk.NewCreateTransactionItemsTransactionItemFromCatalog(&paddlesdk.TransactionItemFromCatalog{
		PriceID:  in.PriceID,
		Quantity: 1,
	})
	req := &paddlesdk.CreateTransactionRequest{
		Items:      []paddlesdk.CreateTransactionItems{*item},
		CustomData: customData(in.CustomData),
	}
	if in.DiscountID != "" {
		req.DiscountID = paddlesdk.PtrTo(in.DiscountID)
	}
	if in.SuccessURL != "" {
		req.Checkout = &paddlesdk.TransactionCheckout{URL: paddlesdk.PtrTo(in.SuccessURL)}
	}
	return a.client.TransactionsClient.CreateTransaction(ctx, req)
}

func (a *sdkAPI) GetTransaction(ctx context.Context, id string) (*paddlesdk.Transaction, error) {
	return a.client.TransactionsClient.GetTransaction(ctx, &paddlesdk.GetTransactionRequest{TransactionID: id})
}

func (a *sdkAPI) GetSubscription(ctx context.Context, id string) (*paddlesdk.Subscription, error) {
	return a.client.SubscriptionsClient.GetSubscription(ctx, &paddlesdk.GetSubscriptionRequest{SubscriptionID: id})
}

func (a *sdkAPI) UpdateSubscription(ctx context.Context, id string, change SubscriptionChange) (*paddlesdk.Subscription, error) {
	req := &paddlesdk.UpdateSubscriptionRequest{SubscriptionID: id}
	if change.PriceID != "" {
		item := paddlesdk.NewUpdateSubscriptionItemsSubscriptionUpdateItemFromCatalog(&paddlesdk.SubscriptionUpdateItemFromCatalog{
			PriceID:  change.PriceID,
			Quantity: 1,
		})
		req.Items = paddlesdk.NewPatchField([]paddlesdk.UpdateSubscriptionItems{*item})
		req.ProrationBillingMode = paddlesdk.NewPatchField(paddlesdk.ProrationBillingModeProratedImmediately)
	}
	if change.CustomData != nil {
		req.CustomData = paddlesdk.NewPatchField(customData(change.CustomData))
	}
	if change.ClearScheduledChange {
		req.ScheduledChange = paddlesdk.NewNullPatchField[*paddlesdk.SubscriptionScheduledChange]()
	}
	return a.client.SubscriptionsClient.UpdateSubscription(ctx, req)
}

func (a *sdkAPI) CancelSubscription(ctx context.Context, id string, atPeriodEnd bool) (*paddlesdk.Subscription, error) {
	effective := paddlesdk.EffectiveFromImmediately
	if atPeriodEnd {
		effective = paddlesdk.EffectiveFromNextBillingPeriod
	}
	return a.client.SubscriptionsClient.CancelSubscription(ctx, &paddlesdk.CancelSubscriptionRequest{
		SubscriptionID: id,
		EffectiveFrom:  paddlesdk.PtrTo(effective),
	})
}

func (a *sdkAPI) PauseSubscription(ctx context.Context, id string) (*paddlesdk.Subscription, error) {
	return a.client.SubscriptionsClient.PauseSubscription(ctx, &paddlesdk.PauseSubscriptionRequest{
		SubscriptionID: id,
		EffectiveFrom:  paddlesdk.PtrTo(paddlesdk.EffectiveFromImmediately),
	})
}

func (a *sdkAPI) ResumeSubscription(ctx context.Context, id string) (*paddlesdk.Subscription, error) {
	return a.client.SubscriptionsClient.ResumeSubscription(ctx, &paddlesdk.ResumeSubscriptionRequest{SubscriptionID: id})
}

func customData(m map[string]string) paddlesdk.CustomData {
	out := make(paddlesdk.CustomData, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type unconfiguredAPI struct {
	err error
}

func (u unconfiguredAPI) CreateTransaction(context.Context, TransactionInput) (*paddlesdk.Transaction, error) {
	return nil, u.err
}

func (u unconfiguredAPI) GetTransaction(context.Context, string) (*paddlesdk.Transaction, error) {
	return nil, u.err
}

func (u unconfiguredAPI) GetSubscription(context.Context, string) (*paddlesdk.Subscription, error) {
	return nil, u.err
}

func (u unconfiguredAPI) UpdateSubscription(context.Context, string, SubscriptionChange) (*paddlesdk.Subscription, error) {
	return nil, u.err
}

func (u unconfiguredAPI) CancelSubscription(context.Context, string, bool) (*paddlesdk.Subscription, error) {
	return nil, u.err
}

func (u unconfiguredAPI) PauseSubscription(context.Context, string) (*paddlesdk.Subscription, error) {
	return nil, u.err
}

func (u unconfiguredAPI) ResumeSubscription(context.Context, string) (*paddlesdk.Subscription, error) {
	return nil, u.err
}
