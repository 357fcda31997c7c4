package alert

import (
	"context"
	"errors"
	"log/slog"

	"github.com/slotbook/billing/pkg/logger"
	"github.com/slotbook/billing/pkg/subscription"
)

// LogEscalator writes review items to the log at error level.
type LogEscalator struct {
	log *slog.Logger
}

// NewLogEscalator creates a LogEscalator. A nil logger uses slog.Default.
func NewLogEscalator(log *slog.Logger) *LogEscalator {
	if log == nil {
		log = slog.Default()
	}
	return &LogEscalator{log: log.With(logger.Component("review"))}
}

func (e *LogEscalator) Escalate(ctx context.Context, item subscription.ReviewItem) error {
	e.log.ErrorContext(ctx, "billing notification needs manual review",
		logger.Provider(string(item.Provider)),
		logger.EventID(item.EventID),
		logger.EventType(item.NativeType),
		logger.ReferenceID(item.ReferenceID),
		logger.BusinessID(item.BusinessID),
		logger.ErrorCode(item.Code),
		slog.String("reason", item.Reason),
	)
	return nil
}

// Fanout sends each item to every escalator and joins their errors.
type Fanout []subscription.Escalator

func (f Fanout) Escalate(ctx context.Context, item subscription.ReviewItem) error {
	var errs []error
	for _, e := range f {
		if err := e.Escalate(ctx, item); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New returns the escalator described by cfg: always the log, plus email
// when Postmark is configured.
func New(cfg Config, log *slog.Logger) (subscription.Escalator, error) {
	logEsc := NewLogEscalator(log)
	if !cfg.emailEnabled() {
		return logEsc, nil
	}
	mail, err := NewPostmarkEscalator(cfg)
	if err != nil {
		return nil, err
	}
	return Fanout{logEsc, mail}, nil
}
