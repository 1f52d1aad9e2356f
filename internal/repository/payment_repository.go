package repository

import (
	"context"

	"storefront/internal/domain"
)

type PaymentRepository interface {
	// Upsert writes the single payment row of an order, replacing a previous attempt.
	Upsert(ctx context.Context, p *domain.Payment) error
	FindByOrderID(ctx context.Context, orderID uint64) (*domain.Payment, error)
	CompareAndSetStatus(ctx context.Context, orderID uint64, from, to domain.PaymentStatus) (bool, error)
}
