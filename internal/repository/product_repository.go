package repository

import (
	"context"

	"storefront/internal/domain"
)

type ProductRepository interface {
	FindByID(ctx context.Context, id uint64) (*domain.Product, error)
	// AdjustStock applies stock = stock + delta as one conditional statement and
	// reports false, without writing, when the result would go negative.
	AdjustStock(ctx context.Context, id uint64, delta int) (bool, error)
	Update(ctx context.Context, id uint64, patch domain.ProductPatch) error
	LowStock(ctx context.Context, threshold int) ([]domain.Product, error)
}
