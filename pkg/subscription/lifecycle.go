package subscription

import (
	"fmt"
	"net/http"
	"time"
)

// Action is an explicit lifecycle request against a subscription.
type Action string

const (
	ActionUpdate            Action = "update"
	ActionCancel            Action = "cancel"
	ActionCancelAtPeriodEnd Action = "cancel_at_period_end"
	ActionPause             Action = "pause"
	ActionResume            Action = "resume"
	ActionReactivate        Action = "reactivate"
	ActionSweepCancel       Action = "sweep_cancel"
	ActionSuspend           Action = "suspend"
)

type transition struct {
	to    Status // empty keeps the current status
	guard func(*SubscriptionInfo) bool
	apply func(*SubscriptionInfo, time.Time)
	event EventType
}

// lifecycle is indexed as [from][action]. Several candidates per pair are
// tried in order; the first whose guard passes wins.
var lifecycle = map[Status]map[Action][]transition{}

func allow(action Action, from []Status, t transition) {
	for _, s := range from {
		if lifecycle[s] == nil {
			lifecycle[s] = make(map[Action][]transition)
		}
		lifecycle[s][action] = append(lifecycle[s][action], t)
	}
}

var nonTerminal = []Status{StatusActive, StatusTrialing, StatusPastDue, StatusSuspended, StatusInactive, StatusPaused}

func pendingCancel(s *SubscriptionInfo) bool { return s.CancelAtPeriodEnd }

func init() {
	allow(ActionUpdate, nonTerminal, transition{event: EventPlanUpdated})

	allow(ActionCancel, nonTerminal, transition{
		to:    StatusCanceled,
		event: EventCanceled,
		apply: func(s *SubscriptionInfo, now time.Time) {
			s.CanceledAt = &now
			s.CancelAtPeriodEnd = false
		},
	})
	allow(ActionCancelAtPeriodEnd, nonTerminal, transition{
		guard: func(s *SubscriptionInfo) bool { return !s.CancelAtPeriodEnd },
		event: EventCancelScheduled,
		apply: func(s *SubscriptionInfo, _ time.Time) { s.CancelAtPeriodEnd = true },
	})

	allow(ActionPause, []Status{StatusActive, StatusTrialing, StatusPastDue}, transition{
		to:    StatusPaused,
		event: EventPaused,
		apply: func(s *SubscriptionInfo, now time.Time) { s.PausedAt = &now },
	})
	allow(ActionResume, []Status{StatusPaused}, transition{
		to:    StatusActive,
		event: EventResumed,
		apply: func(s *SubscriptionInfo, _ time.Time) { s.PausedAt = nil },
	})

	clearCancel := func(s *SubscriptionInfo, _ time.Time) { s.CancelAtPeriodEnd = false }
	allow(ActionReactivate, []Status{StatusSuspended, StatusInactive}, transition{
		to:    StatusActive,
		event: EventReactivated,
		apply: clearCancel,
	})
	allow(ActionReactivate, nonTerminal, transition{guard: pendingCancel, event: EventReactivated, apply: clearCancel})

	allow(ActionSweepCancel, nonTerminal, transition{
		to:    StatusCanceled,
		guard: pendingCancel,
		event: EventSwept,
		apply: func(s *SubscriptionInfo, _ time.Time) {
			end := s.CurrentPeriodEnd
			s.CanceledAt = &end
			s.CancelAtPeriodEnd = false
		},
	})
	allow(ActionSuspend, []Status{StatusPastDue}, transition{to: StatusSuspended, event: EventSwept})
}

// Transition returns a copy of sub after action is applied at now, together
// with the audit event type. Illegal requests return a caller error.
func Transition(sub *SubscriptionInfo, action Action, now time.Time) (*SubscriptionInfo, EventType, error) {
	if sub.Status.Terminal() && action == ActionReactivate {
		return nil, "", CallerError(ErrCodeReactivationRequiresCheckout, http.StatusConflict,
			fmt.Errorf("subscription is %s; a new checkout is required", sub.Status))
	}

	for _, t := range lifecycle[sub.Status][action] {
		if t.guard != nil && !t.guard(sub) {
			continue
		}
		next := *sub
		if t.to != "" {
			next.Status = t.to
		}
		if t.apply != nil {
			t.apply(&next, now)
		}
		next.UpdatedAt = now
		return &next, t.event, nil
	}

	return nil, "", CallerError(ErrCodeInvalidTransition, http.StatusConflict,
		fmt.Errorf("cannot %s a subscription in status %s", action, sub.Status))
}
