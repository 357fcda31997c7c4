package webhook

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrMalformedSignature   = errors.New("malformed webhook signature header")
	ErrSignatureMismatch    = errors.New("webhook signature mismatch")
	ErrSignatureExpired     = errors.New("webhook signature timestamp outside tolerance")
)
