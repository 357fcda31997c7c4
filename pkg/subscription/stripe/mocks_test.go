package stripe

import (
	"context"

	"github.com/stretchr/testify/mock"
	stripesdk "github.com/stripe/stripe-go/v82"
)

// MockAPI is a mock implementation of API.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) CreateCheckoutSession(ctx context.Context, params *stripesdk.CheckoutSessionParams) (*stripesdk.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripesdk.CheckoutSession), args.Error(1)
}

func (m *MockAPI) GetCheckoutSession(ctx context.Context, id string) (*stripesdk.CheckoutSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripesdk.CheckoutSession), args.Error(1)
}

func (m *MockAPI) GetSubscription(ctx context.Context, id string) (*stripesdk.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripesdk.Subscription), args.Error(1)
}

func (m *MockAPI) UpdateSubscription(ctx context.Context, id string, params *stripesdk.SubscriptionParams) (*stripesdk.Subscription, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripesdk.Subscription), args.Error(1)
}

func (m *MockAPI) CancelSubscription(ctx context.Context, id string, params *stripesdk.SubscriptionCancelParams) (*stripesdk.Subscription, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripesdk.Subscription), args.Error(1)
}

func (m *MockAPI) GetInvoice(ctx context.Context, id string) (*stripesdk.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripesdk.Invoice), args.Error(1)
}
