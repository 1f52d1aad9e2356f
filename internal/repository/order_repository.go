package repository

import (
	"context"
	"time"

	"storefront/internal/domain"
)

// StatusChange holds the columns written together with a status transition.
type StatusChange struct {
	CancelReason *string
	ReturnReason *string
	DeliveredAt  *time.Time
}

type OrderRepository interface {
	// Create inserts the header only; ErrDuplicateOrderNumber on a number collision.
	Create(ctx context.Context, order *domain.Order) error
	CreateLines(ctx context.Context, lines []domain.OrderLine) error
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	// FindByIDForUpdate locks the order row when called inside a transaction.
	FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Order, error)
	Lines(ctx context.Context, orderID uint64) ([]domain.OrderLine, error)
	ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]domain.Order, error)
	ListAll(ctx context.Context, limit, offset int) ([]domain.Order, error)
	// CompareAndSetStatus moves the order from -> to only if it is still in from.
	CompareAndSetStatus(ctx context.Context, id uint64, from, to domain.OrderStatus, change StatusChange) (bool, error)
}
