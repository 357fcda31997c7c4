package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStore persists the canonical subscription row.
// Each business has exactly one subscription, so BusinessID serves as the primary key.
type SubscriptionStore interface {
	// GetSubscription returns ErrSubscriptionNotFound if no row exists.
	GetSubscription(ctx context.Context, businessID uuid.UUID) (*SubscriptionInfo, error)

	// UpsertSubscription creates or replaces the row keyed by BusinessID.
	UpsertSubscription(ctx context.Context, sub *SubscriptionInfo) error

	// ListSweepCandidates returns rows with a cancellation due at or before now,
	// and past_due rows whose period ended more than grace before now.
	ListSweepCandidates(ctx context.Context, now time.Time, grace time.Duration) ([]SubscriptionInfo, error)
}

// PaymentStore persists charge attempts keyed by (provider, reference id).
type PaymentStore interface {
	UpsertPayment(ctx context.Context, payment *PaymentHistory) error
	// GetPayment returns ErrPaymentNotFound if no row exists.
	GetPayment(ctx context.Context, provider Provider, referenceID string) (*PaymentHistory, error)
	// ListPayments returns the newest payments first.
	ListPayments(ctx context.Context, businessID uuid.UUID, limit int) ([]PaymentHistory, error)
}

// EventStore appends audit events.
type EventStore interface {
	AppendEvent(ctx context.Context, event *SubscriptionEvent) error
}

// CheckoutStore keeps the latest pending checkout expectation per business.
type CheckoutStore interface {
	SavePendingCheckout(ctx context.Context, pc *PendingCheckout) error
	// GetPendingCheckout returns ErrPendingCheckoutNotFound if none was recorded.
	GetPendingCheckout(ctx context.Context, businessID uuid.UUID) (*PendingCheckout, error)
	// DeletePendingCheckout removes pc if it is still the recorded expectation.
	// A newer checkout saved in the meantime is kept.
	DeletePendingCheckout(ctx context.Context, pc *PendingCheckout) error
}

// DiscountStore looks up discount codes. Codes are read-only to this package.
type DiscountStore interface {
	// GetDiscount returns ErrDiscountNotFound for unknown codes.
	GetDiscount(ctx context.Context, code string) (*DiscountCode, error)
}

// UsageCounter reports how many of a resource a business currently has.
// Monthly kinds are counted within the calendar month containing now.
type UsageCounter interface {
	CountUsage(ctx context.Context, businessID uuid.UUID, kind ResourceKind, now time.Time) (int64, error)
}

// Store is the full persistence boundary of the billing engine.
type Store interface {
	SubscriptionStore
	PaymentStore
	EventStore
	CheckoutStore
	DiscountStore
	UsageCounter
}
