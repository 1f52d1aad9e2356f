package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storefront/internal/domain"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, message interface{}) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

type MockOrderFinalizer struct {
	mock.Mock
}

func (m *MockOrderFinalizer) FinalizeOrder(ctx context.Context, orderID uint64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

type MockOrderCache struct {
	mock.Mock
}

// GetOrLoad calls load unless a cached order was configured for the call.
func (m *MockOrderCache) GetOrLoad(ctx context.Context, id uint64, load func(context.Context) (*domain.Order, error)) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if cached := args.Get(0); cached != nil {
		return cached.(*domain.Order), args.Error(1)
	}
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return load(ctx)
}

func (m *MockOrderCache) Invalidate(ctx context.Context, id uint64) {
	m.Called(ctx, id)
}
