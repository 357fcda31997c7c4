package paddle

import (
	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/slotbook/billing/pkg/subscription"
)

var statusMapping = subscription.StatusMapping{
	string(paddlesdk.SubscriptionStatusActive):   subscription.StatusActive,
	string(paddlesdk.SubscriptionStatusTrialing): subscription.StatusTrialing,
	string(paddlesdk.SubscriptionStatusPastDue):  subscription.StatusPastDue,
	string(paddlesdk.SubscriptionStatusPaused):   subscription.StatusPaused,
	string(paddlesdk.SubscriptionStatusCanceled): subscription.StatusCanceled,
}

var paymentMapping = subscription.PaymentMapping{
	string(paddlesdk.TransactionStatusCompleted): subscription.PaymentCompleted,
	string(paddlesdk.TransactionStatusPaid):      subscription.PaymentCompleted,
	string(paddlesdk.TransactionStatusDraft):     subscription.PaymentPending,
	string(paddlesdk.TransactionStatusReady):     subscription.PaymentPending,
	string(paddlesdk.TransactionStatusBilled):    subscription.PaymentPending,
	string(paddlesdk.TransactionStatusPastDue):   subscription.PaymentFailed,
	string(paddlesdk.TransactionStatusCanceled):  subscription.PaymentFailed,
}

// MapStatus translates a Paddle subscription status.
func MapStatus(native string) subscription.Status {
	return statusMapping.Map(native)
}

// MapTransactionStatus translates a Paddle transaction status.
func MapTransactionStatus(native string) subscription.PaymentStatus {
	return paymentMapping.Map(native)
}
