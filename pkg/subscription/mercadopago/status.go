package mercadopago

import "github.com/slotbook/billing/pkg/subscription"

// Payment and preapproval statuses share one vocabulary, so one table serves both.
var statusMapping = subscription.StatusMapping{
	"approved":     subscription.StatusActive,
	"authorized":   subscription.StatusActive,
	"pending":      subscription.StatusTrialing,
	"in_process":   subscription.StatusTrialing,
	"in_mediation": subscription.StatusPastDue,
	"rejected":     subscription.StatusPastDue,
	"refunded":     subscription.StatusCanceled,
	"charged_back": subscription.StatusCanceled,
	"cancelled":    subscription.StatusCanceled,
	"paused":       subscription.StatusPaused,
}

var paymentMapping = subscription.PaymentMapping{
	"approved":     subscription.PaymentCompleted,
	"pending":      subscription.PaymentPending,
	"in_process":   subscription.PaymentPending,
	"authorized":   subscription.PaymentPending,
	"in_mediation": subscription.PaymentPending,
	"rejected":     subscription.PaymentFailed,
	"cancelled":    subscription.PaymentFailed,
	"refunded":     subscription.PaymentRefunded,
	"charged_back": subscription.PaymentRefunded,
}

// MapStatus translates a MercadoPago payment or preapproval status.
func MapStatus(native string) subscription.Status {
	return statusMapping.Map(native)
}

// MapPaymentStatus translates a MercadoPago payment status.
func MapPaymentStatus(native string) subscription.PaymentStatus {
	return paymentMapping.Map(native)
}
