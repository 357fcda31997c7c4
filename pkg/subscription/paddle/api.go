package paddle

import (
	"context"
	"errors"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// ErrNotConfigured is returned by every call when the client could not be built.
var ErrNotConfigured = errors.New("paddle: API key is not configured")

// TransactionInput describes a checkout transaction for one catalog price.
type TransactionInput struct {
	PriceID    string
	CustomData map[string]string
	DiscountID string
	SuccessURL string
}

// SubscriptionChange describes an update to an existing subscription.
type SubscriptionChange struct {
	PriceID              string
	CustomData           map[string]string
	ClearScheduledChange bool
}

// API is the subset of the Paddle Billing API the adapter uses.
type API interface {
	CreateTransaction(ctx context.Context, in TransactionInput) (*paddlesdk.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*paddlesdk.Transaction, error)
	GetSubscription(ctx context.Context, id string) (*paddlesdk.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, change SubscriptionChange) (*paddlesdk.Subscription, error)
	CancelSubscription(ctx context.Context, id string, atPeriodEnd bool) (*paddlesdk.Subscription, error)
	PauseSubscription(ctx context.Context, id string) (*paddlesdk.Subscription, error)
	ResumeSubscription(ctx context.Context, id string) (*paddlesdk.Subscription, error)
}
