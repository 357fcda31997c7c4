package subscription

import "time"

// ResourceKind is a countable business resource that plans put a ceiling on.
type ResourceKind string

const (
	ResourceLocations           ResourceKind = "locations"
	ResourceEmployees           ResourceKind = "employees"
	ResourceServices            ResourceKind = "services"
	ResourceMonthlyAppointments ResourceKind = "monthly_appointments"
)

// ResourceKinds lists every kind in a stable order.
var ResourceKinds = []ResourceKind{
	ResourceLocations,
	ResourceEmployees,
	ResourceServices,
	ResourceMonthlyAppointments,
}

// Valid reports whether k is a known resource kind.
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceLocations, ResourceEmployees, ResourceServices, ResourceMonthlyAppointments:
		return true
	}
	return false
}

const (
	// Unlimited indicates no limit for a resource (-1 chosen for SQL compatibility)
	Unlimited int64 = -1
)

// PlanType is a commercial tier.
type PlanType string

const (
	PlanStarter      PlanType = "starter"
	PlanProfessional PlanType = "professional"
	PlanBusiness     PlanType = "business"
	PlanEnterprise   PlanType = "enterprise"
)

// Valid reports whether p is a known plan tier.
func (p PlanType) Valid() bool {
	switch p {
	case PlanStarter, PlanProfessional, PlanBusiness, PlanEnterprise:
		return true
	}
	return false
}

// BillingCycle is the renewal period of a subscription.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Valid reports whether c is a known billing cycle.
func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleYearly
}

// PeriodEnd returns the end of a billing period that starts at from.
func (c BillingCycle) PeriodEnd(from time.Time) time.Time {
	if c == CycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// Status is the canonical, processor-independent subscription state.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrialing  Status = "trialing"
	StatusPastDue   Status = "past_due"
	StatusCanceled  Status = "canceled"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
	StatusExpired   Status = "expired"
	StatusPaused    Status = "paused"
)

// Terminal reports whether no lifecycle transition leaves s.
// Leaving a terminal state requires a new checkout.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusExpired
}

// Usable reports whether a business in status s may use its plan.
func (s Status) Usable() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusPastDue:
		return true
	}
	return false
}

// PaymentStatus is the canonical state of a single charge attempt.
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentPending   PaymentStatus = "pending"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Provider names a payment processor.
type Provider string

const (
	ProviderMercadoPago Provider = "mercadopago"
	ProviderStripe      Provider = "stripe"
	ProviderPaddle      Provider = "paddle"
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  // Amount in smallest currency unit (cents for USD)
	Currency string // ISO 4217 currency code
}

// StatusMapping translates a processor's native status vocabulary into
// canonical statuses. Lookups are total: unknown values map to StatusInactive.
type StatusMapping map[string]Status

// Map returns the canonical status for native.
func (m StatusMapping) Map(native string) Status {
	if s, ok := m[native]; ok {
		return s
	}
	return StatusInactive
}

// PaymentMapping translates native charge states. Unknown values map to PaymentPending.
type PaymentMapping map[string]PaymentStatus

// Map returns the canonical payment status for native.
func (m PaymentMapping) Map(native string) PaymentStatus {
	if s, ok := m[native]; ok {
		return s
	}
	return PaymentPending
}
