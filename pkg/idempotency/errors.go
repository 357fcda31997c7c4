package idempotency

import "errors"

var (
	ErrEmptyKey      = errors.New("idempotency key is empty")
	ErrLedgerFailure = errors.New("idempotency ledger unavailable")
)
