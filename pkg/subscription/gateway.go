package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Gateway is the processor-independent contract the platform bills through.
// Every processor adapter implements it; callers never see processor types.
type Gateway interface {
	Provider() Provider

	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	UpdateSubscription(ctx context.Context, businessID uuid.UUID, plan PlanType, cycle BillingCycle) (*SubscriptionInfo, error)
	// CancelSubscription cancels now, or at the end of the current period when atPeriodEnd is set.
	CancelSubscription(ctx context.Context, businessID uuid.UUID, atPeriodEnd bool, reason string) (*SubscriptionInfo, error)
	PauseSubscription(ctx context.Context, businessID uuid.UUID) (*SubscriptionInfo, error)
	ResumeSubscription(ctx context.Context, businessID uuid.UUID) (*SubscriptionInfo, error)
	ReactivateSubscription(ctx context.Context, businessID uuid.UUID) (*SubscriptionInfo, error)

	GetDashboard(ctx context.Context, businessID uuid.UUID) (*Dashboard, error)
	ValidatePlanLimit(ctx context.Context, businessID uuid.UUID, kind ResourceKind) (*LimitCheck, error)
	ApplyDiscountCode(ctx context.Context, businessID uuid.UUID, code string, plan PlanType, amount int64) (*DiscountResult, error)
}

// CheckoutRequest opens a hosted payment page for a plan.
type CheckoutRequest struct {
	BusinessID   uuid.UUID
	Plan         PlanType
	Cycle        BillingCycle
	DiscountCode string
	Email        string // payer email, required by some processors
	SuccessURL   string
	CancelURL    string
}

// CheckoutSession is the processor-hosted page the user is redirected to.
type CheckoutSession struct {
	SessionID      string `json:"session_id"`
	RedirectURL    string `json:"redirect_url"`
	Amount         int64  `json:"amount"`
	DiscountAmount int64  `json:"discount_amount"`
	Currency       string `json:"currency"`
}

// CheckoutQuote is the server-side price of a checkout request.
type CheckoutQuote struct {
	Plan     PlanType
	Cycle    BillingCycle
	List     Money
	Discount *DiscountResult // nil when no code was given
}

// Final returns the amount the business will be charged.
func (q *CheckoutQuote) Final() int64 {
	if q.Discount != nil && q.Discount.IsValid {
		return q.Discount.FinalAmount
	}
	return q.List.Amount
}

// DiscountAmount returns the amount taken off the list price.
func (q *CheckoutQuote) DiscountAmount() int64 {
	if q.Discount != nil && q.Discount.IsValid {
		return q.Discount.DiscountAmount
	}
	return 0
}

// Metadata is the tag set echoed back by processors so notifications can be
// attributed to a business.
type Metadata struct {
	BusinessID string
	Plan       string
	Cycle      string
}

// Metadata keys written on every processor-side object.
const (
	MetaBusinessID = "business_id"
	MetaPlan       = "plan_type"
	MetaCycle      = "billing_cycle"
)

// Map renders m as a string map for processor APIs.
func (m Metadata) Map() map[string]string {
	return map[string]string{
		MetaBusinessID: m.BusinessID,
		MetaPlan:       m.Plan,
		MetaCycle:      m.Cycle,
	}
}

// MetadataFor builds the tags for a business, plan and cycle.
func MetadataFor(businessID uuid.UUID, plan PlanType, cycle BillingCycle) Metadata {
	return Metadata{BusinessID: businessID.String(), Plan: string(plan), Cycle: string(cycle)}
}

// MetadataFromMap reads the tags from a processor metadata map.
func MetadataFromMap(m map[string]string) Metadata {
	return Metadata{BusinessID: m[MetaBusinessID], Plan: m[MetaPlan], Cycle: m[MetaCycle]}
}
