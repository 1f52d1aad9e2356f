package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrUnauthorized       = errors.New("order does not belong to caller")
	ErrNotEligible        = errors.New("order is not eligible for this action")
	ErrTransactionFailure = errors.New("order transaction failed")

	ErrOrderNotFound        = errors.New("order not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrProductInactive      = errors.New("product is not available")
	ErrInvalidQuantity      = errors.New("quantity must be greater than zero")
	ErrCartLineNotFound     = errors.New("cart item not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrDuplicateOrderNumber = errors.New("order number already taken")
	ErrRestockIncomplete    = errors.New("stock restoration incomplete")
	ErrInvalidProductPatch  = errors.New("invalid product update")
	ErrCartChanged          = errors.New("cart changed during checkout")
)

// InsufficientStockError carries the product that ran short. It matches
// ErrInsufficientStock under errors.Is.
type InsufficientStockError struct {
	ProductID uint64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.Available < 0 {
		return fmt.Sprintf("insufficient stock for product %d (requested %d)", e.ProductID, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for product %d (requested %d, available %d)", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type RestockFailure struct {
	ProductID uint64
	Quantity  int
	Err       error
}

// RestockError lists order lines whose stock could not be put back after the
// order status change was already committed. Each entry needs manual reconciliation.
type RestockError struct {
	OrderID  uint64
	Failures []RestockFailure
}

func (e *RestockError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("product %d x%d", f.ProductID, f.Quantity))
	}
	return fmt.Sprintf("order %d: %s: %s", e.OrderID, ErrRestockIncomplete, strings.Join(parts, ", "))
}

func (e *RestockError) Is(target error) bool {
	return target == ErrRestockIncomplete
}
