package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/slotbook/billing/pkg/logger"
)

// DefaultGracePeriod is how long a past_due subscription keeps working after its period ends.
const DefaultGracePeriod = 7 * 24 * time.Hour

// Sweeper applies time-driven transitions the processors may never notify:
// cancellations deferred to period end and overdue past_due subscriptions.
type Sweeper struct {
	store   Store
	log     *slog.Logger
	now     func() time.Time
	grace   time.Duration
	metrics *Metrics
}

// NewSweeper creates a Sweeper. A non-positive grace uses DefaultGracePeriod.
func NewSweeper(store Store, grace time.Duration, log *slog.Logger, now func() time.Time, metrics *Metrics) *Sweeper {
	if store == nil {
		panic("subscription store is required")
	}
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{store: store, log: log.With(logger.Component("sweeper")), now: now, grace: grace, metrics: metrics}
}

// Run sweeps once and returns how many subscriptions changed.
// A failure on one row does not stop the others; all failures are joined.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	now := s.now().UTC()
	candidates, err := s.store.ListSweepCandidates(ctx, now, s.grace)
	if err != nil {
		return 0, StoreError(err)
	}

	var (
		changed int
		errs    []error
	)
	for i := range candidates {
		sub := &candidates[i]
		action := ActionSuspend
		if sub.CancelAtPeriodEnd && !sub.CurrentPeriodEnd.After(now) {
			action = ActionSweepCancel
		}

		next, eventType, err := Transition(sub, action, now)
		if err != nil {
			s.log.WarnContext(ctx, "sweep transition rejected",
				logger.BusinessID(sub.BusinessID),
				logger.Action(string(action)),
				logger.Error(err),
			)
			continue
		}
		if err := s.store.UpsertSubscription(ctx, next); err != nil {
			errs = append(errs, err)
			continue
		}
		appendEvent(ctx, s.store, s.log, sub.Provider, now, &SubscriptionEvent{
			BusinessID: sub.BusinessID,
			Type:       eventType,
			FromStatus: sub.Status,
			ToStatus:   next.Status,
			Metadata:   map[string]string{"action": string(action)},
		})
		s.metrics.swept(action)
		changed++
	}

	if changed > 0 {
		s.log.InfoContext(ctx, "sweep finished", slog.Int("changed", changed))
	}
	if len(errs) > 0 {
		return changed, StoreError(errors.Join(errs...))
	}
	return changed, nil
}
