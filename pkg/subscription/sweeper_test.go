package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/billing/pkg/logger"
	"github.com/slotbook/billing/pkg/subscription"
)

func TestSweeper_Run(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := subscription.NewMemoryStore()

	ended := testNow.Add(-time.Hour)
	dueCancel := seed(store, subscription.PlanStarter, subscription.StatusActive, func(s *subscription.SubscriptionInfo) {
		s.CancelAtPeriodEnd = true
		s.CurrentPeriodEnd = ended
	})
	futureCancel := seed(store, subscription.PlanStarter, subscription.StatusActive, func(s *subscription.SubscriptionInfo) {
		s.CancelAtPeriodEnd = true
	})
	overdue := seed(store, subscription.PlanStarter, subscription.StatusPastDue, func(s *subscription.SubscriptionInfo) {
		s.CurrentPeriodEnd = testNow.AddDate(0, 0, -8)
	})
	inGrace := seed(store, subscription.PlanStarter, subscription.StatusPastDue, func(s *subscription.SubscriptionInfo) {
		s.CurrentPeriodEnd = testNow.AddDate(0, 0, -3)
	})
	alreadyCanceled := seed(store, subscription.PlanStarter, subscription.StatusCanceled, func(s *subscription.SubscriptionInfo) {
		s.CurrentPeriodEnd = ended
	})

	metrics := subscription.NewMetrics(prometheus.NewRegistry())
	sweeper := subscription.NewSweeper(store, 0, logger.Noop(), fixedClock, metrics)

	changed, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	sub, err := store.GetSubscription(ctx, dueCancel)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
	assert.Equal(t, ended, *sub.CanceledAt)
	assert.False(t, sub.CancelAtPeriodEnd)

	events := store.Events(dueCancel)
	require.Len(t, events, 1)
	assert.Equal(t, subscription.EventSwept, events[0].Type)
	assert.Equal(t, "sweep_cancel", events[0].Metadata["action"])

	sub, err = store.GetSubscription(ctx, overdue)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusSuspended, sub.Status)

	for id, want := range map[uuid.UUID]subscription.Status{
		futureCancel:    subscription.StatusActive,
		inGrace:         subscription.StatusPastDue,
		alreadyCanceled: subscription.StatusCanceled,
	} {
		sub, err := store.GetSubscription(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, sub.Status)
		assert.Empty(t, store.Events(id))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SweptTotal.WithLabelValues("sweep_cancel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SweptTotal.WithLabelValues("suspend")))

	again, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, again, "a second sweep finds nothing to do")
}
