package repository

import (
	"context"
	"errors"
)

// ErrConflict reports a unique-constraint violation on a write.
var ErrConflict = errors.New("repository: unique constraint conflict")

// Store groups the repositories that share one connection or transaction.
type Store interface {
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	// WithTx runs fn against a transactional Store. Returning an error rolls
	// every write back; returning nil commits them together.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
