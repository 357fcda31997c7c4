package stripe

import (
	stripesdk "github.com/stripe/stripe-go/v82"

	"github.com/slotbook/billing/pkg/subscription"
)

var statusMapping = subscription.StatusMapping{
	string(stripesdk.SubscriptionStatusActive):            subscription.StatusActive,
	string(stripesdk.SubscriptionStatusTrialing):          subscription.StatusTrialing,
	string(stripesdk.SubscriptionStatusPastDue):           subscription.StatusPastDue,
	string(stripesdk.SubscriptionStatusUnpaid):            subscription.StatusSuspended,
	string(stripesdk.SubscriptionStatusCanceled):          subscription.StatusCanceled,
	string(stripesdk.SubscriptionStatusIncomplete):        subscription.StatusInactive,
	string(stripesdk.SubscriptionStatusIncompleteExpired): subscription.StatusExpired,
	string(stripesdk.SubscriptionStatusPaused):            subscription.StatusPaused,
}

// MapStatus translates a Stripe subscription status.
func MapStatus(native string) subscription.Status {
	return statusMapping.Map(native)
}

// MapInvoiceStatus translates a Stripe invoice into a payment status.
// An open invoice Stripe already tried to charge counts as a failed attempt.
func MapInvoiceStatus(inv *stripesdk.Invoice) subscription.PaymentStatus {
	switch inv.Status {
	case stripesdk.InvoiceStatusPaid:
		return subscription.PaymentCompleted
	case stripesdk.InvoiceStatusOpen:
		if inv.Attempted {
			return subscription.PaymentFailed
		}
		return subscription.PaymentPending
	case stripesdk.InvoiceStatusDraft:
		return subscription.PaymentPending
	case stripesdk.InvoiceStatusUncollectible, stripesdk.InvoiceStatusVoid:
		return subscription.PaymentFailed
	}
	return subscription.PaymentPending
}
