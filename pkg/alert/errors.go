package alert

import "errors"

var (
	ErrInvalidConfig    = errors.New("invalid alert configuration")
	ErrFailedToEscalate = errors.New("failed to send review alert")
)
