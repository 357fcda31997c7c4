package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/billing/pkg/logger"
)

// Limit check messages.
const (
	LimitWithinPlan = "within_plan_limit"
	LimitUnlimited  = "unlimited"
	LimitReached    = "limit_reached"
)

// LimitCheck answers whether a business may create one more unit of a resource.
type LimitCheck struct {
	Allowed bool   `json:"allowed"`
	Current int64  `json:"current"`
	Limit   int64  `json:"limit"`
	Message string `json:"message"`
}

// LimitValidator checks resource creation against the business's plan.
type LimitValidator struct {
	subs    SubscriptionStore
	counter UsageCounter
	log     *slog.Logger
	now     func() time.Time
}

// NewLimitValidator creates a validator. Panics if a required dependency is nil.
func NewLimitValidator(subs SubscriptionStore, counter UsageCounter, log *slog.Logger, now func() time.Time) *LimitValidator {
	if subs == nil || counter == nil {
		panic("subscription store and usage counter are required")
	}
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &LimitValidator{subs: subs, counter: counter, log: log, now: now}
}

// Validate reports whether businessID may add one more kind.
// An unlimited ceiling is allowed before any comparison happens.
func (v *LimitValidator) Validate(ctx context.Context, businessID uuid.UUID, kind ResourceKind) (*LimitCheck, error) {
	if !kind.Valid() {
		return nil, CallerError(ErrCodeUnknownResourceKind, http.StatusBadRequest, fmt.Errorf("resource kind %q", kind))
	}

	sub, err := v.subs.GetSubscription(ctx, businessID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, CallerError(ErrCodeSubscriptionNotFound, http.StatusNotFound, err)
	}
	if err != nil {
		return nil, StoreError(err)
	}

	limit, _ := sub.Limits.For(kind)
	now := v.now().UTC()

	if limit == Unlimited {
		current, err := v.counter.CountUsage(ctx, businessID, kind, now)
		if err != nil {
			// Usage is informational for unlimited plans.
			v.log.WarnContext(ctx, "failed to count usage for unlimited resource",
				logger.BusinessID(businessID),
				logger.Resource(string(kind)),
				logger.Error(err),
			)
			current = 0
		}
		return &LimitCheck{Allowed: true, Current: current, Limit: Unlimited, Message: LimitUnlimited}, nil
	}

	current, err := v.counter.CountUsage(ctx, businessID, kind, now)
	if err != nil {
		return nil, StoreError(errors.Join(ErrFailedToCountResourceUsage, err))
	}

	check := &LimitCheck{Current: current, Limit: limit, Allowed: current < limit, Message: LimitWithinPlan}
	if !check.Allowed {
		check.Message = LimitReached
	}
	return check, nil
}

// FitsLimits fails with downgrade_exceeds_usage when the business already
// holds more of a resource than limits allow. The monthly appointment counter
// resets every period and is not checked.
func (v *LimitValidator) FitsLimits(ctx context.Context, businessID uuid.UUID, limits PlanLimits) error {
	now := v.now().UTC()
	for _, kind := range ResourceKinds {
		if kind == ResourceMonthlyAppointments {
			continue
		}
		limit, _ := limits.For(kind)
		if limit == Unlimited {
			continue
		}
		current, err := v.counter.CountUsage(ctx, businessID, kind, now)
		if err != nil {
			return StoreError(errors.Join(ErrFailedToCountResourceUsage, err))
		}
		if current > limit {
			return CallerError(ErrCodeDowngradeExceedsUsage, http.StatusConflict,
				fmt.Errorf("%s: %d in use, plan allows %d", kind, current, limit))
		}
	}
	return nil
}
