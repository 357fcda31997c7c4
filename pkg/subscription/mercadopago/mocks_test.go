package mercadopago

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockAPI is a mock implementation of API.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) CreatePreapproval(ctx context.Context, p *Preapproval) (*Preapproval, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Preapproval), args.Error(1)
}

func (m *MockAPI) GetPreapproval(ctx context.Context, id string) (*Preapproval, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Preapproval), args.Error(1)
}

func (m *MockAPI) UpdatePreapproval(ctx context.Context, id string, changes map[string]any) (*Preapproval, error) {
	args := m.Called(ctx, id, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Preapproval), args.Error(1)
}

func (m *MockAPI) GetPayment(ctx context.Context, id string) (*Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}
