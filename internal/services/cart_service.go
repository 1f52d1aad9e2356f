package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

type CartService struct {
	store repository.Store
	log   *slog.Logger
}

func NewCartService(store repository.Store) *CartService {
	return &CartService{
		store: store,
		log:   slog.Default().With("component", "cart"),
	}
}

// AddItem inserts a line or merges qty into the user's existing line for the
// product. The merged quantity may not exceed current stock.
func (s *CartService) AddItem(ctx context.Context, userID, productID uint64, qty int) (*domain.CartLine, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	line, err := s.addItem(ctx, userID, productID, qty)
	if errors.Is(err, repository.ErrConflict) {
		// A concurrent add created the line first; merge into it.
		line, err = s.addItem(ctx, userID, productID, qty)
	}
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (s *CartService) addItem(ctx context.Context, userID, productID uint64, qty int) (*domain.CartLine, error) {
	var out *domain.CartLine
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		p, err := tx.Products().FindByID(ctx, productID)
		if err != nil {
			return fmt.Errorf("load product %d: %w", productID, err)
		}
		if p == nil {
			return domain.ErrProductNotFound
		}
		if !p.IsActive {
			return domain.ErrProductInactive
		}

		existing, err := tx.Carts().FindLineForUpdate(ctx, userID, productID)
		if err != nil {
			return fmt.Errorf("load cart line: %w", err)
		}

		want := qty
		if existing != nil {
			want += existing.Quantity
		}
		if want > p.Stock {
			return &domain.InsufficientStockError{ProductID: productID, Requested: want, Available: p.Stock}
		}

		if existing != nil {
			if err := tx.Carts().SetQuantity(ctx, existing.ID, want); err != nil {
				return fmt.Errorf("update cart line: %w", err)
			}
			existing.Quantity = want
			out = existing
			return nil
		}

		line := &domain.CartLine{UserID: userID, ProductID: productID, Quantity: qty}
		if err := tx.Carts().Insert(ctx, line); err != nil {
			return err
		}
		out = line
		return nil
	})
	return out, err
}

func (s *CartService) Items(ctx context.Context, userID uint64) ([]domain.CartItem, error) {
	items, err := s.store.Carts().Items(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return items, nil
}

// Total sums quantity times live price over lines whose product is active.
func (s *CartService) Total(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	items, err := s.Items(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.CartTotal(items), nil
}

func (s *CartService) Count(ctx context.Context, userID uint64) (int, error) {
	return s.store.Carts().Count(ctx, userID)
}

// UpdateQuantity sets the quantity of one of the user's lines. The line is
// locked while the product's stock is checked.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, lineID uint64, qty int) (*domain.CartLine, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var out *domain.CartLine
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		line, err := tx.Carts().FindLine(ctx, lineID)
		if err != nil {
			return fmt.Errorf("load cart line: %w", err)
		}
		if line == nil || line.UserID != userID {
			return domain.ErrCartLineNotFound
		}

		p, err := tx.Products().FindByID(ctx, line.ProductID)
		if err != nil {
			return fmt.Errorf("load product %d: %w", line.ProductID, err)
		}
		if p == nil {
			return domain.ErrProductNotFound
		}
		if !p.IsActive {
			return domain.ErrProductInactive
		}
		if qty > p.Stock {
			return &domain.InsufficientStockError{ProductID: p.ID, Requested: qty, Available: p.Stock}
		}

		if err := tx.Carts().SetQuantity(ctx, lineID, qty); err != nil {
			return fmt.Errorf("update cart line: %w", err)
		}
		line.Quantity = qty
		out = line
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveItem deletes the line if it belongs to the user. Removing a line that
// is already gone is not an error.
func (s *CartService) RemoveItem(ctx context.Context, userID, lineID uint64) error {
	deleted, err := s.store.Carts().Delete(ctx, userID, lineID)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	if !deleted {
		s.log.DebugContext(ctx, "cart line not removed", "user_id", userID, "line_id", lineID)
	}
	return nil
}

func (s *CartService) Clear(ctx context.Context, userID uint64) error {
	if _, err := s.store.Carts().Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// DeleteByProduct drops the product from every cart.
func (s *CartService) DeleteByProduct(ctx context.Context, productID uint64) (int64, error) {
	n, err := s.store.Carts().DeleteByProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("remove product %d from carts: %w", productID, err)
	}
	return n, nil
}
