package repository

import (
	"context"

	"storefront/internal/domain"
)

type CartRepository interface {
	// FindLineForUpdate locks the (user, product) line when called inside a transaction.
	FindLineForUpdate(ctx context.Context, userID, productID uint64) (*domain.CartLine, error)
	// FindLine and LinesForUpdate lock the rows they return when called inside a transaction.
	FindLine(ctx context.Context, lineID uint64) (*domain.CartLine, error)
	LinesForUpdate(ctx context.Context, userID uint64) ([]domain.CartLine, error)
	Insert(ctx context.Context, line *domain.CartLine) error
	SetQuantity(ctx context.Context, lineID uint64, qty int) error
	Items(ctx context.Context, userID uint64) ([]domain.CartItem, error)
	Count(ctx context.Context, userID uint64) (int, error)
	Delete(ctx context.Context, userID, lineID uint64) (bool, error)
	Clear(ctx context.Context, userID uint64) (int64, error)
	DeleteByProduct(ctx context.Context, productID uint64) (int64, error)
}
