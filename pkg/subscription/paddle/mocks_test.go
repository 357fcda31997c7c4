package paddle

import (
	"context"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/stretchr/testify/mock"
)

// MockAPI is a mock implementation of API.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) CreateTransaction(ctx context.Context, in TransactionInput) (*paddlesdk.Transaction, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paddlesdk.Transaction), args.Error(1)
}

func (m *MockAPI) GetTransaction(ctx context.Context, id string) (*paddlesdk.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paddlesdk.Transaction), args.Error(1)
}

func (m *MockAPI) GetSubscription(ctx context.Context, id string) (*paddlesdk.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paddlesdk.Subscription), args.Error(1)
}

func (m *MockAPI) UpdateSubscription(ctx context.Context, id string, change SubscriptionChange) (*paddlesdk.Subscription, error) {
	args := m.Called(ctx, id, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paddlesdk.Subscription), args.Error(1)
}

func (m *MockAPI) CancelSubscription(ctx context.Context, id string, atPeriodEnd bool) (*paddlesdk.Subscription, error) {
	args := m.Called(ctx, id, atPeriodEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paddlesdk.Subscription), args.Error(1)
}

func (m *MockAPI) PauseSubscription(ctx context.Context, id string) (*paddlesdk.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paddlesdk.Subscription), args.Error(1)
}

func (m *MockAPI) ResumeSubscription(ctx context.Context, id string) (*paddlesdk.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paddlesdk.Subscription), args.Error(1)
}
