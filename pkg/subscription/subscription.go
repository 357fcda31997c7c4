package subscription

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionInfo is the canonical record of a business's subscription.
// Each business has exactly one row; BusinessID is the primary key and every
// write is an upsert. Rows are never hard-deleted.
type SubscriptionInfo struct {
	BusinessID             uuid.UUID    `json:"business_id"` // Primary key - one subscription per business
	Provider               Provider     `json:"provider"`
	ProviderSubscriptionID string       `json:"provider_subscription_id,omitempty"`
	ProviderCustomerID     string       `json:"provider_customer_id,omitempty"`
	Plan                   PlanType     `json:"plan"`
	Cycle                  BillingCycle `json:"billing_cycle"`
	Status                 Status       `json:"status"`
	CurrentPeriodStart     time.Time    `json:"current_period_start"`
	CurrentPeriodEnd       time.Time    `json:"current_period_end"`
	TrialEnd               *time.Time   `json:"trial_end,omitempty"`
	CanceledAt             *time.Time   `json:"canceled_at,omitempty"`
	PausedAt               *time.Time   `json:"paused_at,omitempty"`
	CancelAtPeriodEnd      bool         `json:"cancel_at_period_end"` // deferred cancellation pending
	Amount                 int64        `json:"amount"`
	Currency               string       `json:"currency"`
	Limits                 PlanLimits   `json:"limits"` // snapshot of the plan row at last write
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// PendingCancellation reports whether a cancellation is scheduled for period end.
func (s *SubscriptionInfo) PendingCancellation() bool {
	return s.CancelAtPeriodEnd && !s.Status.Terminal()
}

// DaysUntilRenewalAt returns whole days until the current period ends, rounded up.
// Returns 0 if the period has already ended.
func (s *SubscriptionInfo) DaysUntilRenewalAt(now time.Time) int {
	remaining := s.CurrentPeriodEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// sameTerms reports whether other describes the same processor-side state.
func (s *SubscriptionInfo) sameTerms(other *SubscriptionInfo) bool {
	return s.Provider == other.Provider &&
		s.ProviderSubscriptionID == other.ProviderSubscriptionID &&
		s.Plan == other.Plan &&
		s.Cycle == other.Cycle &&
		s.Status == other.Status &&
		s.Amount == other.Amount &&
		s.Currency == other.Currency
}

// PaymentHistory records one charge attempt. It is keyed by the processor's
// reference id, so replays of the same notification converge on one row.
type PaymentHistory struct {
	ID            uuid.UUID     `json:"id"`
	BusinessID    uuid.UUID     `json:"business_id"`
	Provider      Provider      `json:"provider"`
	ReferenceID   string        `json:"reference_id"`
	Status        PaymentStatus `json:"status"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// EventType classifies audit events.
type EventType string

const (
	EventCheckoutCreated    EventType = "checkout_created"
	EventWebhookReconciled  EventType = "webhook_reconciled"
	EventPlanUpdated        EventType = "plan_updated"
	EventCanceled           EventType = "canceled"
	EventCancelScheduled    EventType = "cancel_scheduled"
	EventPaused             EventType = "paused"
	EventResumed            EventType = "resumed"
	EventReactivated        EventType = "reactivated"
	EventSwept              EventType = "swept"
	EventCheckoutReconciled EventType = "checkout_reconciled"
)

// SubscriptionEvent is an append-only audit record. Losing one never affects
// the correctness of SubscriptionInfo or PaymentHistory.
type SubscriptionEvent struct {
	ID          uuid.UUID
	BusinessID  uuid.UUID
	Provider    Provider
	Type        EventType
	FromStatus  Status
	ToStatus    Status
	ReferenceID string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// PendingCheckout is the expectation recorded when a checkout session is
// opened or a plan change is requested. Incoming notifications are checked
// against it before their metadata is trusted.
type PendingCheckout struct {
	BusinessID uuid.UUID
	Provider   Provider
	Plan       PlanType
	Cycle      BillingCycle
	SessionID  string
	Amount     int64
	Currency   string
	CreatedAt  time.Time
}

// Matches reports whether plan and cycle agree with the expectation.
func (p *PendingCheckout) Matches(plan PlanType, cycle BillingCycle) bool {
	return p.Plan == plan && p.Cycle == cycle
}
