package mysql

import (
	"context"

	"gorm.io/gorm"

	"storefront/internal/repository"
)

type store struct {
	db *gorm.DB
}

// NewStore wraps a pool handle owned by the caller.
func NewStore(db *gorm.DB) repository.Store {
	return &store{db: db}
}

func (s *store) Products() repository.ProductRepository { return &productRepo{db: s.db} }
func (s *store) Carts() repository.CartRepository       { return &cartRepo{db: s.db} }
func (s *store) Orders() repository.OrderRepository     { return &orderRepo{db: s.db} }
func (s *store) Payments() repository.PaymentRepository { return &paymentRepo{db: s.db} }

func (s *store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&store{db: tx})
	})
}
