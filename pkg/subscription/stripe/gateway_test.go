package stripe

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	stripesdk "github.com/stripe/stripe-go/v82"

	"github.com/slotbook/billing/pkg/logger"
	"github.com/slotbook/billing/pkg/subscription"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestGateway(t *testing.T) (*Gateway, *MockAPI, *subscription.MemoryStore) {
	t.Helper()
	api := &MockAPI{}
	store := subscription.NewMemoryStore()
	cfg := Config{
		SecretKey: "sk_test",
		PriceIDs:  map[string]string{"business_monthly": "price_business_m"},
	}
	g := New(cfg, subscription.Deps{
		Store:  store,
		Logger: logger.Noop(),
		Clock:  func() time.Time { return testNow },
	}, WithAPI(api))
	return g, api, store
}

func seedSubscription(t *testing.T, store *subscription.MemoryStore, status subscription.Status) uuid.UUID {
	t.Helper()
	id := uuid.New()
	limits, err := subscription.MustDefaultCatalog().Limits(subscription.PlanProfessional)
	require.NoError(t, err)
	require.NoError(t, store.UpsertSubscription(context.Background(), &subscription.SubscriptionInfo{
		BusinessID:             id,
		Provider:               subscription.ProviderStripe,
		ProviderSubscriptionID: "sub_1",
		Plan:                   subscription.PlanProfessional,
		Cycle:                  subscription.CycleMonthly,
		Status:                 status,
		CurrentPeriodStart:     testNow.AddDate(0, 0, -5),
		CurrentPeriodEnd:       testNow.AddDate(0, 0, 25),
		Amount:                 7900,
		Currency:               "USD",
		Limits:                 limits,
	}))
	return id
}

func TestGateway_CreateCheckoutSession(t *testing.T) {
	t.Parallel()
	g, api, store := newTestGateway(t)
	store.PutDiscount(subscription.DiscountCode{Code: "WELCOME", Kind: subscription.DiscountFixed, Amount: 1000, Currency: "USD"})
	businessID := uuid.New()

	api.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p *stripesdk.CheckoutSessionParams) bool {
		item := p.LineItems[0]
		return *p.Mode == "subscription" &&
			*item.PriceData.UnitAmount == 6900 &&
			*item.PriceData.Currency == "usd" &&
			*item.PriceData.Recurring.Interval == "month" &&
			p.SubscriptionData.Metadata[subscription.MetaBusinessID] == businessID.String() &&
			p.SubscriptionData.Metadata[subscription.MetaPlan] == "professional"
	})).Return(&stripesdk.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.test/cs_1"}, nil).Once()

	session, err := g.CreateCheckoutSession(context.Background(), subscription.CheckoutRequest{
		BusinessID:   businessID,
		Plan:         subscription.PlanProfessional,
		Cycle:        subscription.CycleMonthly,
		DiscountCode: "welcome",
		SuccessURL:   "https://app.test/ok",
		CancelURL:    "https://app.test/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.SessionID)
	assert.Equal(t, "https://checkout.stripe.test/cs_1", session.RedirectURL)
	assert.Equal(t, int64(6900), session.Amount)
	assert.Equal(t, int64(1000), session.DiscountAmount)
	api.AssertExpectations(t)
}

func TestGateway_InvalidDiscountIsRejected(t *testing.T) {
	t.Parallel()
	g, api, _ := newTestGateway(t)

	_, err := g.CreateCheckoutSession(context.Background(), subscription.CheckoutRequest{
		BusinessID:   uuid.New(),
		Plan:         subscription.PlanStarter,
		Cycle:        subscription.CycleMonthly,
		DiscountCode: "NOPE",
	})
	assert.Equal(t, subscription.ErrCodeInvalidDiscount, subscription.CodeOf(err))
	api.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestGateway_NotConfigured(t *testing.T) {
	t.Parallel()
	g := New(Config{}, subscription.Deps{Store: subscription.NewMemoryStore(), Logger: logger.Noop()})

	_, err := g.CreateCheckoutSession(context.Background(), subscription.CheckoutRequest{
		BusinessID: uuid.New(),
		Plan:       subscription.PlanStarter,
		Cycle:      subscription.CycleMonthly,
	})
	assert.Equal(t, subscription.ErrCodeProviderNotConfigured, subscription.CodeOf(err))
}

func TestGateway_UpdateSubscription(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("swaps price on the first item", func(t *testing.T) {
		t.Parallel()
		g, api, store := newTestGateway(t)
		id := seedSubscription(t, store, subscription.StatusActive)

		api.On("GetSubscription", mock.Anything, "sub_1").Return(&stripesdk.Subscription{
			ID:    "sub_1",
			Items: &stripesdk.SubscriptionItemList{Data: []*stripesdk.SubscriptionItem{{ID: "si_1"}}},
		}, nil).Once()
		api.On("UpdateSubscription", mock.Anything, "sub_1", mock.MatchedBy(func(p *stripesdk.SubscriptionParams) bool {
			return *p.Items[0].ID == "si_1" && *p.Items[0].Price == "price_business_m" && p.Metadata[subscription.MetaPlan] == "business"
		})).Return(&stripesdk.Subscription{ID: "sub_1"}, nil).Once()

		sub, err := g.UpdateSubscription(ctx, id, subscription.PlanBusiness, subscription.CycleMonthly)
		require.NoError(t, err)
		assert.Equal(t, subscription.PlanBusiness, sub.Plan)
		assert.Equal(t, int64(19900), sub.Amount)
		assert.Equal(t, int64(50), sub.Limits.MaxEmployees)
		api.AssertExpectations(t)
	})

	t.Run("missing price id", func(t *testing.T) {
		t.Parallel()
		g, api, store := newTestGateway(t)
		id := seedSubscription(t, store, subscription.StatusActive)

		_, err := g.UpdateSubscription(ctx, id, subscription.PlanEnterprise, subscription.CycleYearly)
		assert.Equal(t, subscription.ErrCodeProviderNotConfigured, subscription.CodeOf(err))
		assert.ErrorIs(t, err, subscription.ErrMissingPriceID)
		api.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
	})

	t.Run("processor 404", func(t *testing.T) {
		t.Parallel()
		g, api, store := newTestGateway(t)
		id := seedSubscription(t, store, subscription.StatusActive)
		api.On("GetSubscription", mock.Anything, "sub_1").
			Return(nil, &stripesdk.Error{HTTPStatusCode: 404, Code: stripesdk.ErrorCodeResourceMissing}).Once()

		_, err := g.UpdateSubscription(ctx, id, subscription.PlanBusiness, subscription.CycleMonthly)
		assert.Equal(t, subscription.ErrCodeResourceNotFound, subscription.CodeOf(err))
	})
}

func TestGateway_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("pause then resume", func(t *testing.T) {
		t.Parallel()
		g, api, store := newTestGateway(t)
		id := seedSubscription(t, store, subscription.StatusActive)

		api.On("UpdateSubscription", mock.Anything, "sub_1", mock.MatchedBy(func(p *stripesdk.SubscriptionParams) bool {
			return p.PauseCollection != nil && *p.PauseCollection.Behavior == "void"
		})).Return(&stripesdk.Subscription{ID: "sub_1"}, nil).Once()
		api.On("UpdateSubscription", mock.Anything, "sub_1", mock.MatchedBy(func(p *stripesdk.SubscriptionParams) bool {
			return p.PauseCollection == nil && p.CancelAtPeriodEnd == nil
		})).Return(&stripesdk.Subscription{ID: "sub_1"}, nil).Once()

		paused, err := g.PauseSubscription(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPaused, paused.Status)

		resumed, err := g.ResumeSubscription(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, resumed.Status)
		api.AssertExpectations(t)
	})

	t.Run("cancel at period end then reactivate", func(t *testing.T) {
		t.Parallel()
		g, api, store := newTestGateway(t)
		id := seedSubscription(t, store, subscription.StatusActive)

		api.On("UpdateSubscription", mock.Anything, "sub_1", mock.MatchedBy(func(p *stripesdk.SubscriptionParams) bool {
			return p.CancelAtPeriodEnd != nil && *p.CancelAtPeriodEnd
		})).Return(&stripesdk.Subscription{ID: "sub_1"}, nil).Once()
		api.On("UpdateSubscription", mock.Anything, "sub_1", mock.MatchedBy(func(p *stripesdk.SubscriptionParams) bool {
			return p.CancelAtPeriodEnd != nil && !*p.CancelAtPeriodEnd
		})).Return(&stripesdk.Subscription{ID: "sub_1"}, nil).Once()

		scheduled, err := g.CancelSubscription(ctx, id, true, "")
		require.NoError(t, err)
		assert.True(t, scheduled.PendingCancellation())

		reactivated, err := g.ReactivateSubscription(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, reactivated.Status)
		assert.False(t, reactivated.CancelAtPeriodEnd)
		api.AssertExpectations(t)
	})

	t.Run("immediate cancel passes the reason", func(t *testing.T) {
		t.Parallel()
		g, api, store := newTestGateway(t)
		id := seedSubscription(t, store, subscription.StatusTrialing)

		api.On("CancelSubscription", mock.Anything, "sub_1", mock.MatchedBy(func(p *stripesdk.SubscriptionCancelParams) bool {
			return p.CancellationDetails != nil && *p.CancellationDetails.Comment == "closing shop"
		})).Return(&stripesdk.Subscription{ID: "sub_1"}, nil).Once()

		sub, err := g.CancelSubscription(ctx, id, false, "closing shop")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, sub.Status)
	})

	t.Run("provider mismatch", func(t *testing.T) {
		t.Parallel()
		g, _, store := newTestGateway(t)
		id := uuid.New()
		require.NoError(t, store.UpsertSubscription(ctx, &subscription.SubscriptionInfo{
			BusinessID: id, Provider: subscription.ProviderPaddle, Status: subscription.StatusActive,
		}))

		_, err := g.PauseSubscription(ctx, id)
		assert.Equal(t, subscription.ErrCodeProviderMismatch, subscription.CodeOf(err))
	})
}
