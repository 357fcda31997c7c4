package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/billing/pkg/subscription"
)

func TestTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		from          subscription.Status
		pendingCancel bool
		action        subscription.Action
		want          subscription.Status
		wantCancel    bool
		wantEvent     subscription.EventType
		wantCode      string
	}{
		{name: "pause active", from: subscription.StatusActive, action: subscription.ActionPause, want: subscription.StatusPaused, wantEvent: subscription.EventPaused},
		{name: "pause past due", from: subscription.StatusPastDue, action: subscription.ActionPause, want: subscription.StatusPaused, wantEvent: subscription.EventPaused},
		{name: "pause suspended", from: subscription.StatusSuspended, action: subscription.ActionPause, wantCode: subscription.ErrCodeInvalidTransition},
		{name: "resume paused", from: subscription.StatusPaused, action: subscription.ActionResume, want: subscription.StatusActive, wantEvent: subscription.EventResumed},
		{name: "resume active", from: subscription.StatusActive, action: subscription.ActionResume, wantCode: subscription.ErrCodeInvalidTransition},
		{name: "cancel now", from: subscription.StatusActive, pendingCancel: true, action: subscription.ActionCancel, want: subscription.StatusCanceled, wantEvent: subscription.EventCanceled},
		{name: "cancel at period end", from: subscription.StatusTrialing, action: subscription.ActionCancelAtPeriodEnd, want: subscription.StatusTrialing, wantCancel: true, wantEvent: subscription.EventCancelScheduled},
		{name: "cancel at period end twice", from: subscription.StatusActive, pendingCancel: true, action: subscription.ActionCancelAtPeriodEnd, wantCode: subscription.ErrCodeInvalidTransition},
		{name: "cancel canceled", from: subscription.StatusCanceled, action: subscription.ActionCancel, wantCode: subscription.ErrCodeInvalidTransition},
		{name: "reactivate suspended", from: subscription.StatusSuspended, action: subscription.ActionReactivate, want: subscription.StatusActive, wantEvent: subscription.EventReactivated},
		{name: "reactivate inactive", from: subscription.StatusInactive, action: subscription.ActionReactivate, want: subscription.StatusActive, wantEvent: subscription.EventReactivated},
		{name: "reactivate pending cancellation", from: subscription.StatusActive, pendingCancel: true, action: subscription.ActionReactivate, want: subscription.StatusActive, wantEvent: subscription.EventReactivated},
		{name: "reactivate healthy active", from: subscription.StatusActive, action: subscription.ActionReactivate, wantCode: subscription.ErrCodeInvalidTransition},
		{name: "reactivate canceled", from: subscription.StatusCanceled, action: subscription.ActionReactivate, wantCode: subscription.ErrCodeReactivationRequiresCheckout},
		{name: "reactivate expired", from: subscription.StatusExpired, action: subscription.ActionReactivate, wantCode: subscription.ErrCodeReactivationRequiresCheckout},
		{name: "update paused", from: subscription.StatusPaused, action: subscription.ActionUpdate, want: subscription.StatusPaused, wantEvent: subscription.EventPlanUpdated},
		{name: "update expired", from: subscription.StatusExpired, action: subscription.ActionUpdate, wantCode: subscription.ErrCodeInvalidTransition},
		{name: "suspend past due", from: subscription.StatusPastDue, action: subscription.ActionSuspend, want: subscription.StatusSuspended, wantEvent: subscription.EventSwept},
		{name: "suspend active", from: subscription.StatusActive, action: subscription.ActionSuspend, wantCode: subscription.ErrCodeInvalidTransition},
		{name: "sweep cancel requires pending", from: subscription.StatusActive, action: subscription.ActionSweepCancel, wantCode: subscription.ErrCodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sub := &subscription.SubscriptionInfo{
				Status:            tt.from,
				CancelAtPeriodEnd: tt.pendingCancel,
				CurrentPeriodEnd:  testNow.AddDate(0, 0, 5),
			}

			next, event, err := subscription.Transition(sub, tt.action, testNow)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, subscription.CodeOf(err))
				assert.Equal(t, 409, subscription.HTTPStatus(err))
				assert.Nil(t, next)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, next.Status)
			assert.Equal(t, tt.wantCancel, next.CancelAtPeriodEnd)
			assert.Equal(t, tt.wantEvent, event)
			assert.Equal(t, testNow, next.UpdatedAt)
			assert.Equal(t, tt.from, sub.Status, "input must not be mutated")
		})
	}
}

func TestTransition_PauseThenResume(t *testing.T) {
	t.Parallel()

	sub := &subscription.SubscriptionInfo{Status: subscription.StatusActive}
	paused, _, err := subscription.Transition(sub, subscription.ActionPause, testNow)
	require.NoError(t, err)
	require.NotNil(t, paused.PausedAt)

	resumed, _, err := subscription.Transition(paused, subscription.ActionResume, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, resumed.Status)
	assert.Nil(t, resumed.PausedAt)
}

func TestTransition_SweepCancelStampsPeriodEnd(t *testing.T) {
	t.Parallel()

	end := testNow.Add(-time.Hour)
	sub := &subscription.SubscriptionInfo{Status: subscription.StatusActive, CancelAtPeriodEnd: true, CurrentPeriodEnd: end}
	next, event, err := subscription.Transition(sub, subscription.ActionSweepCancel, testNow)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCanceled, next.Status)
	assert.Equal(t, subscription.EventSwept, event)
	require.NotNil(t, next.CanceledAt)
	assert.Equal(t, end, *next.CanceledAt)
	assert.False(t, next.CancelAtPeriodEnd)
}
