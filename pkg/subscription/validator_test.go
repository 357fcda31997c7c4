package subscription_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/billing/pkg/logger"
	"github.com/slotbook/billing/pkg/subscription"
)

func TestLimitValidator_Validate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("starter with one location cannot add another", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		id := seed(store, subscription.PlanStarter, subscription.StatusActive)
		store.SetUsage(id, subscription.ResourceLocations, 1)
		v := subscription.NewLimitValidator(store, store, logger.Noop(), fixedClock)

		check, err := v.Validate(ctx, id, subscription.ResourceLocations)
		require.NoError(t, err)
		assert.False(t, check.Allowed)
		assert.Equal(t, int64(1), check.Current)
		assert.Equal(t, int64(1), check.Limit)
		assert.Equal(t, subscription.LimitReached, check.Message)
	})

	t.Run("over the ceiling after a downgrade", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		id := seed(store, subscription.PlanStarter, subscription.StatusActive)
		store.SetUsage(id, subscription.ResourceEmployees, 5)
		v := subscription.NewLimitValidator(store, store, logger.Noop(), fixedClock)

		check, err := v.Validate(ctx, id, subscription.ResourceEmployees)
		require.NoError(t, err)
		assert.Equal(t, &subscription.LimitCheck{Allowed: false, Current: 5, Limit: 3, Message: subscription.LimitReached}, check)
	})

	t.Run("below the ceiling is allowed", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		id := seed(store, subscription.PlanProfessional, subscription.StatusActive)
		store.SetUsage(id, subscription.ResourceEmployees, 9)
		v := subscription.NewLimitValidator(store, store, logger.Noop(), fixedClock)

		check, err := v.Validate(ctx, id, subscription.ResourceEmployees)
		require.NoError(t, err)
		assert.True(t, check.Allowed)
		assert.Equal(t, subscription.LimitWithinPlan, check.Message)
	})

	t.Run("unlimited is allowed before any comparison", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		id := seed(store, subscription.PlanEnterprise, subscription.StatusActive)
		counter := failingCounter{MemoryStore: store, fail: map[subscription.ResourceKind]bool{subscription.ResourceServices: true}}
		v := subscription.NewLimitValidator(store, counter, logger.Noop(), fixedClock)

		check, err := v.Validate(ctx, id, subscription.ResourceServices)
		require.NoError(t, err)
		assert.True(t, check.Allowed)
		assert.Equal(t, subscription.Unlimited, check.Limit)
		assert.Equal(t, subscription.LimitUnlimited, check.Message)
	})

	t.Run("uses the stored limit snapshot", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		id := seed(store, subscription.PlanStarter, subscription.StatusActive, func(s *subscription.SubscriptionInfo) {
			s.Limits.MaxServices = subscription.Unlimited
		})
		store.SetUsage(id, subscription.ResourceServices, 500)
		v := subscription.NewLimitValidator(store, store, logger.Noop(), fixedClock)

		check, err := v.Validate(ctx, id, subscription.ResourceServices)
		require.NoError(t, err)
		assert.True(t, check.Allowed)
		assert.Equal(t, int64(500), check.Current)
	})

	t.Run("count failure on a finite limit is a store error", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		id := seed(store, subscription.PlanStarter, subscription.StatusActive)
		counter := failingCounter{MemoryStore: store, fail: map[subscription.ResourceKind]bool{subscription.ResourceEmployees: true}}
		v := subscription.NewLimitValidator(store, counter, logger.Noop(), fixedClock)

		_, err := v.Validate(ctx, id, subscription.ResourceEmployees)
		assert.Equal(t, subscription.ErrCodeStoreFailure, subscription.CodeOf(err))
		assert.ErrorIs(t, err, subscription.ErrFailedToCountResourceUsage)
	})

	t.Run("unknown resource kind", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		v := subscription.NewLimitValidator(store, store, logger.Noop(), fixedClock)

		_, err := v.Validate(ctx, uuid.New(), "rooms")
		assert.Equal(t, subscription.ErrCodeUnknownResourceKind, subscription.CodeOf(err))
		assert.Equal(t, http.StatusBadRequest, subscription.HTTPStatus(err))
	})

	t.Run("no subscription", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		v := subscription.NewLimitValidator(store, store, logger.Noop(), fixedClock)

		_, err := v.Validate(ctx, uuid.New(), subscription.ResourceLocations)
		assert.Equal(t, subscription.ErrCodeSubscriptionNotFound, subscription.CodeOf(err))
		assert.Equal(t, http.StatusNotFound, subscription.HTTPStatus(err))
	})
}

func TestLimitValidator_FitsLimits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	catalog := subscription.MustDefaultCatalog()
	starter, err := catalog.Limits(subscription.PlanStarter)
	require.NoError(t, err)
	enterprise, err := catalog.Limits(subscription.PlanEnterprise)
	require.NoError(t, err)

	tests := []struct {
		name     string
		usage    map[subscription.ResourceKind]int64
		limits   subscription.PlanLimits
		wantCode string
	}{
		{name: "usage within the smaller plan", usage: map[subscription.ResourceKind]int64{subscription.ResourceEmployees: 3}, limits: starter},
		{name: "employees over the smaller plan", usage: map[subscription.ResourceKind]int64{subscription.ResourceEmployees: 4}, limits: starter, wantCode: subscription.ErrCodeDowngradeExceedsUsage},
		{name: "locations over the smaller plan", usage: map[subscription.ResourceKind]int64{subscription.ResourceLocations: 2}, limits: starter, wantCode: subscription.ErrCodeDowngradeExceedsUsage},
		{name: "monthly appointments are not checked", usage: map[subscription.ResourceKind]int64{subscription.ResourceMonthlyAppointments: 900}, limits: starter},
		{name: "unlimited plan accepts any usage", usage: map[subscription.ResourceKind]int64{subscription.ResourceServices: 5000}, limits: enterprise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := subscription.NewMemoryStore()
			id := seed(store, subscription.PlanProfessional, subscription.StatusActive)
			for kind, n := range tt.usage {
				store.SetUsage(id, kind, n)
			}
			v := subscription.NewLimitValidator(store, store, logger.Noop(), fixedClock)

			err := v.FitsLimits(ctx, id, tt.limits)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantCode, subscription.CodeOf(err))
			assert.Equal(t, http.StatusConflict, subscription.HTTPStatus(err))
		})
	}

	t.Run("count failure is a store error", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		id := seed(store, subscription.PlanProfessional, subscription.StatusActive)
		counter := failingCounter{MemoryStore: store, fail: map[subscription.ResourceKind]bool{subscription.ResourceLocations: true}}
		v := subscription.NewLimitValidator(store, counter, logger.Noop(), fixedClock)

		err := v.FitsLimits(ctx, id, starter)
		assert.Equal(t, subscription.ErrCodeStoreFailure, subscription.CodeOf(err))
	})
}
