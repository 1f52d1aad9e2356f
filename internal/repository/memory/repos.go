package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

type productRepo struct {
	r   runner
	now func() time.Time
}

func (p *productRepo) FindByID(_ context.Context, id uint64) (*domain.Product, error) {
	var out *domain.Product
	err := p.r.run(func(st *state) error {
		if prod, ok := st.products[id]; ok {
			out = &prod
		}
		return nil
	})
	return out, err
}

func (p *productRepo) AdjustStock(_ context.Context, id uint64, delta int) (bool, error) {
	var applied bool
	err := p.r.run(func(st *state) error {
		prod, ok := st.products[id]
		if !ok || prod.Stock+delta < 0 {
			return nil
		}
		prod.Stock += delta
		prod.UpdatedAt = p.now()
		st.products[id] = prod
		applied = true
		return nil
	})
	return applied, err
}

func (p *productRepo) Update(_ context.Context, id uint64, patch domain.ProductPatch) error {
	if patch.Empty() {
		return nil
	}
	return p.r.run(func(st *state) error {
		prod, ok := st.products[id]
		if !ok {
			return nil
		}
		if patch.Name != nil {
			prod.Name = *patch.Name
		}
		if patch.Price != nil {
			prod.Price = *patch.Price
		}
		if patch.IsActive != nil {
			prod.IsActive = *patch.IsActive
		}
		prod.UpdatedAt = p.now()
		st.products[id] = prod
		return nil
	})
}

func (p *productRepo) LowStock(_ context.Context, threshold int) ([]domain.Product, error) {
	var out []domain.Product
	err := p.r.run(func(st *state) error {
		for _, prod := range st.products {
			if prod.IsActive && prod.Stock < threshold {
				out = append(out, prod)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stock != out[j].Stock {
			return out[i].Stock < out[j].Stock
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

type cartRepo struct {
	r   runner
	now func() time.Time
}

func (c *cartRepo) FindLineForUpdate(_ context.Context, userID, productID uint64) (*domain.CartLine, error) {
	var out *domain.CartLine
	err := c.r.run(func(st *state) error {
		for _, l := range st.cart {
			if l.UserID == userID && l.ProductID == productID {
				line := l
				out = &line
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (c *cartRepo) FindLine(_ context.Context, lineID uint64) (*domain.CartLine, error) {
	var out *domain.CartLine
	err := c.r.run(func(st *state) error {
		if l, ok := st.cart[lineID]; ok {
			out = &l
		}
		return nil
	})
	return out, err
}

func (c *cartRepo) LinesForUpdate(_ context.Context, userID uint64) ([]domain.CartLine, error) {
	var out []domain.CartLine
	err := c.r.run(func(st *state) error {
		for _, l := range st.cart {
			if l.UserID == userID {
				out = append(out, l)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (c *cartRepo) Insert(_ context.Context, line *domain.CartLine) error {
	return c.r.run(func(st *state) error {
		for _, l := range st.cart {
			if l.UserID == line.UserID && l.ProductID == line.ProductID {
				return repository.ErrConflict
			}
		}
		st.seqCart++
		line.ID = st.seqCart
		if line.AddedAt.IsZero() {
			line.AddedAt = c.now()
		}
		st.cart[line.ID] = *line
		return nil
	})
}

func (c *cartRepo) SetQuantity(_ context.Context, lineID uint64, qty int) error {
	return c.r.run(func(st *state) error {
		if l, ok := st.cart[lineID]; ok {
			l.Quantity = qty
			st.cart[lineID] = l
		}
		return nil
	})
}

func (c *cartRepo) Items(_ context.Context, userID uint64) ([]domain.CartItem, error) {
	var out []domain.CartItem
	err := c.r.run(func(st *state) error {
		for _, l := range st.cart {
			if l.UserID != userID {
				continue
			}
			prod, ok := st.products[l.ProductID]
			if !ok || !prod.IsActive {
				continue
			}
			out = append(out, domain.CartItem{
				CartLineID: l.ID,
				ProductID:  l.ProductID,
				Name:       prod.Name,
				Price:      prod.Price,
				Stock:      prod.Stock,
				Quantity:   l.Quantity,
				Subtotal:   prod.Price.Mul(decimal.NewFromInt(int64(l.Quantity))),
				AddedAt:    l.AddedAt,
			})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.After(out[j].AddedAt)
		}
		return out[i].CartLineID > out[j].CartLineID
	})
	return out, err
}

func (c *cartRepo) Count(_ context.Context, userID uint64) (int, error) {
	var n int
	err := c.r.run(func(st *state) error {
		for _, l := range st.cart {
			if l.UserID == userID {
				n += l.Quantity
			}
		}
		return nil
	})
	return n, err
}

func (c *cartRepo) Delete(_ context.Context, userID, lineID uint64) (bool, error) {
	var deleted bool
	err := c.r.run(func(st *state) error {
		if l, ok := st.cart[lineID]; ok && l.UserID == userID {
			delete(st.cart, lineID)
			deleted = true
		}
		return nil
	})
	return deleted, err
}

func (c *cartRepo) Clear(_ context.Context, userID uint64) (int64, error) {
	return c.deleteWhere(func(l domain.CartLine) bool { return l.UserID == userID })
}

func (c *cartRepo) DeleteByProduct(_ context.Context, productID uint64) (int64, error) {
	return c.deleteWhere(func(l domain.CartLine) bool { return l.ProductID == productID })
}

func (c *cartRepo) deleteWhere(match func(domain.CartLine) bool) (int64, error) {
	var n int64
	err := c.r.run(func(st *state) error {
		for id, l := range st.cart {
			if match(l) {
				delete(st.cart, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type orderRepo struct {
	r   runner
	now func() time.Time
}

func (o *orderRepo) Create(_ context.Context, order *domain.Order) error {
	return o.r.run(func(st *state) error {
		for _, existing := range st.orders {
			if existing.OrderNumber == order.OrderNumber {
				return domain.ErrDuplicateOrderNumber
			}
		}
		st.seqOrder++
		order.ID = st.seqOrder
		now := o.now()
		order.CreatedAt, order.UpdatedAt = now, now

		header := *order
		header.Lines, header.Payment = nil, nil
		st.orders[order.ID] = header
		return nil
	})
}

func (o *orderRepo) CreateLines(_ context.Context, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return o.r.run(func(st *state) error {
		for i := range lines {
			if _, ok := st.orders[lines[i].OrderID]; !ok {
				return errors.New("insert order lines: unknown order")
			}
			for _, existing := range st.lines[lines[i].OrderID] {
				if existing.ProductID == lines[i].ProductID {
					return repository.ErrConflict
				}
			}
			st.seqLine++
			lines[i].ID = st.seqLine
			st.lines[lines[i].OrderID] = append(st.lines[lines[i].OrderID], lines[i])
		}
		return nil
	})
}

func (o *orderRepo) FindByID(_ context.Context, id uint64) (*domain.Order, error) {
	var out *domain.Order
	err := o.r.run(func(st *state) error {
		if ord, ok := st.orders[id]; ok {
			out = &ord
		}
		return nil
	})
	return out, err
}

// FindByIDForUpdate needs no row lock here; transactions already hold the store lock.
func (o *orderRepo) FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Order, error) {
	return o.FindByID(ctx, id)
}

func (o *orderRepo) Lines(_ context.Context, orderID uint64) ([]domain.OrderLine, error) {
	var out []domain.OrderLine
	err := o.r.run(func(st *state) error {
		out = append(out, st.lines[orderID]...)
		return nil
	})
	return out, err
}

func (o *orderRepo) ListByUser(_ context.Context, userID uint64, limit, offset int) ([]domain.Order, error) {
	return o.list(func(ord domain.Order) bool { return ord.UserID == userID }, limit, offset)
}

func (o *orderRepo) ListAll(_ context.Context, limit, offset int) ([]domain.Order, error) {
	return o.list(func(domain.Order) bool { return true }, limit, offset)
}

func (o *orderRepo) list(match func(domain.Order) bool, limit, offset int) ([]domain.Order, error) {
	var all []domain.Order
	err := o.r.run(func(st *state) error {
		for _, ord := range st.orders {
			if match(ord) {
				all = append(all, ord)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (o *orderRepo) CompareAndSetStatus(_ context.Context, id uint64, from, to domain.OrderStatus, change repository.StatusChange) (bool, error) {
	var applied bool
	err := o.r.run(func(st *state) error {
		ord, ok := st.orders[id]
		if !ok || ord.Status != from {
			return nil
		}
		ord.Status = to
		if change.CancelReason != nil {
			reason := *change.CancelReason
			ord.CancelReason = &reason
		}
		if change.ReturnReason != nil {
			reason := *change.ReturnReason
			ord.ReturnReason = &reason
		}
		if change.DeliveredAt != nil {
			at := *change.DeliveredAt
			ord.DeliveredAt = &at
		}
		ord.UpdatedAt = o.now()
		st.orders[id] = ord
		applied = true
		return nil
	})
	return applied, err
}

type paymentRepo struct {
	r   runner
	now func() time.Time
}

func (p *paymentRepo) Upsert(_ context.Context, pay *domain.Payment) error {
	return p.r.run(func(st *state) error {
		now := p.now()
		stored := *pay
		if prev, ok := st.payments[pay.OrderID]; ok {
			stored.ID = prev.ID
			stored.CreatedAt = prev.CreatedAt
		} else {
			st.seqPayment++
			stored.ID = st.seqPayment
			stored.CreatedAt = now
		}
		stored.UpdatedAt = now
		st.payments[pay.OrderID] = stored
		*pay = stored
		return nil
	})
}

func (p *paymentRepo) FindByOrderID(_ context.Context, orderID uint64) (*domain.Payment, error) {
	var out *domain.Payment
	err := p.r.run(func(st *state) error {
		if pay, ok := st.payments[orderID]; ok {
			out = &pay
		}
		return nil
	})
	return out, err
}

func (p *paymentRepo) CompareAndSetStatus(_ context.Context, orderID uint64, from, to domain.PaymentStatus) (bool, error) {
	var applied bool
	err := p.r.run(func(st *state) error {
		pay, ok := st.payments[orderID]
		if !ok || pay.Status != from {
			return nil
		}
		pay.Status = to
		pay.UpdatedAt = p.now()
		st.payments[orderID] = pay
		applied = true
		return nil
	})
	return applied, err
}
