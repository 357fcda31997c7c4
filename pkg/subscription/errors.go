package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrInvalidBillingCycle      = errors.New("invalid billing cycle")

	ErrSubscriptionNotFound    = errors.New("subscription not found")
	ErrPendingCheckoutNotFound = errors.New("pending checkout not found")
	ErrDiscountNotFound        = errors.New("discount code not found")
	ErrPaymentNotFound         = errors.New("payment not found")

	ErrFailedToCountResourceUsage = errors.New("failed to count resource usage")

	ErrMissingAPIKey             = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret      = errors.New("billing provider webhook secret is required")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrMalformedNotification     = errors.New("malformed webhook notification")
	ErrNoCheckoutURL             = errors.New("no checkout URL returned from provider")
	ErrMissingPriceID            = errors.New("price ID is required")
)

// ErrorClass tells callers who is at fault and whether a retry can help.
type ErrorClass string

const (
	// ClassCaller covers invalid input or an illegal transition (4xx).
	ClassCaller ErrorClass = "caller"
	// ClassUpstream covers processor failures and timeouts (5xx, retryable).
	ClassUpstream ErrorClass = "upstream"
	// ClassIntegrity covers data the engine cannot trust.
	ClassIntegrity ErrorClass = "integrity"
)

// Stable error codes. Callers branch on these, never on message text.
const (
	ErrCodeInvalidPlan                  = "invalid_plan"
	ErrCodeInvalidCycle                 = "invalid_billing_cycle"
	ErrCodeInvalidAmount                = "invalid_amount"
	ErrCodeInvalidRequest               = "invalid_request"
	ErrCodeUnknownResourceKind          = "unknown_resource_kind"
	ErrCodeSubscriptionNotFound         = "subscription_not_found"
	ErrCodeInvalidTransition            = "invalid_transition"
	ErrCodeReactivationRequiresCheckout = "reactivation_requires_checkout"
	ErrCodeInvalidDiscount              = "invalid_discount"
	ErrCodeDiscountNotSupported         = "discount_not_supported"
	ErrCodeProviderMismatch             = "provider_mismatch"
	ErrCodeDowngradeExceedsUsage        = "downgrade_exceeds_usage"

	ErrCodeUpstreamFailure       = "upstream_failure"
	ErrCodeUpstreamTimeout       = "upstream_timeout"
	ErrCodeProviderNotConfigured = "provider_not_configured"
	ErrCodeStoreFailure          = "store_failure"

	ErrCodeResourceNotFound = "resource_not_found"
	ErrCodeMissingMetadata  = "missing_metadata"
	ErrCodeInvalidMetadata  = "invalid_metadata"
	ErrCodeCheckoutMismatch = "checkout_mismatch"
)

// GatewayError is the typed failure returned by every gateway operation and
// by the reconciler. The message is for logs only.
type GatewayError struct {
	Code      string
	Class     ErrorClass
	Provider  Provider
	Status    int  // HTTP-style status for the caller
	Retryable bool // a later retry of the same request may succeed
	Err       error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("billing: %s (%s", e.Code, e.Class)
	if e.Provider != "" {
		msg += ", " + string(e.Provider)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

// CallerError builds a 4xx error.
func CallerError(code string, status int, err error) *GatewayError {
	return &GatewayError{Code: code, Class: ClassCaller, Status: status, Err: err}
}

// UpstreamError builds a retryable 5xx error. Context deadlines become upstream_timeout.
func UpstreamError(provider Provider, err error) *GatewayError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{Code: ErrCodeUpstreamTimeout, Class: ClassUpstream, Provider: provider, Status: http.StatusGatewayTimeout, Retryable: true, Err: err}
	}
	return &GatewayError{Code: ErrCodeUpstreamFailure, Class: ClassUpstream, Provider: provider, Status: http.StatusBadGateway, Retryable: true, Err: err}
}

// IntegrityError builds an error for data the engine cannot trust. A retryable
// integrity error asks the processor to redeliver; a permanent one goes to manual review.
func IntegrityError(code string, retryable bool, err error) *GatewayError {
	status := http.StatusUnprocessableEntity
	if retryable {
		status = http.StatusServiceUnavailable
	}
	return &GatewayError{Code: code, Class: ClassIntegrity, Status: status, Retryable: retryable, Err: err}
}

// NotConfiguredError reports an adapter selected without credentials.
// It is not retryable: the deployment has to be fixed first.
func NotConfiguredError(provider Provider, err error) *GatewayError {
	return &GatewayError{Code: ErrCodeProviderNotConfigured, Class: ClassUpstream, Provider: provider, Status: http.StatusServiceUnavailable, Err: err}
}

// StoreError wraps a persistence failure. Store outages are transient.
func StoreError(err error) *GatewayError {
	return &GatewayError{Code: ErrCodeStoreFailure, Class: ClassUpstream, Status: http.StatusServiceUnavailable, Retryable: true, Err: err}
}

// WithProvider sets the provider and returns e.
func (e *GatewayError) WithProvider(p Provider) *GatewayError {
	e.Provider = p
	return e
}

// AsGatewayError extracts a *GatewayError from err's chain.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// CodeOf returns the stable code of err, or "" if err carries none.
func CodeOf(err error) string {
	if ge, ok := AsGatewayError(err); ok {
		return ge.Code
	}
	return ""
}

// IsRetryable reports whether err is a GatewayError marked retryable.
func IsRetryable(err error) bool {
	ge, ok := AsGatewayError(err)
	return ok && ge.Retryable
}

// HTTPStatus maps err to a response status. Untyped errors are 500.
func HTTPStatus(err error) int {
	if ge, ok := AsGatewayError(err); ok && ge.Status != 0 {
		return ge.Status
	}
	return http.StatusInternalServerError
}
