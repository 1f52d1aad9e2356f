// Package memory is a process-local repository.Store. It backs DB_DRIVER=memory
// and the service tests. Transactions take the store lock for their whole
// duration and work on a copy of the state that is swapped in on commit.
package memory

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

type state struct {
	products map[uint64]domain.Product
	cart     map[uint64]domain.CartLine
	orders   map[uint64]domain.Order
	lines    map[uint64][]domain.OrderLine
	payments map[uint64]domain.Payment // by order id

	seqProduct, seqCart, seqOrder, seqLine, seqPayment uint64
}

func newState() *state {
	return &state{
		products: map[uint64]domain.Product{},
		cart:     map[uint64]domain.CartLine{},
		orders:   map[uint64]domain.Order{},
		lines:    map[uint64][]domain.OrderLine{},
		payments: map[uint64]domain.Payment{},
	}
}

func (s *state) clone() *state {
	c := *s
	c.products = make(map[uint64]domain.Product, len(s.products))
	for k, v := range s.products {
		c.products[k] = v
	}
	c.cart = make(map[uint64]domain.CartLine, len(s.cart))
	for k, v := range s.cart {
		c.cart[k] = v
	}
	c.orders = make(map[uint64]domain.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.lines = make(map[uint64][]domain.OrderLine, len(s.lines))
	for k, v := range s.lines {
		c.lines[k] = append([]domain.OrderLine(nil), v...)
	}
	c.payments = make(map[uint64]domain.Payment, len(s.payments))
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return &c
}

// runner executes fn against the state it guards.
type runner interface {
	run(fn func(st *state) error) error
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) run(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) Products() repository.ProductRepository {
	return &productRepo{r: s, now: s.now}
}
func (s *Store) Carts() repository.CartRepository { return &cartRepo{r: s, now: s.now} }
func (s *Store) Orders() repository.OrderRepository {
	return &orderRepo{r: s, now: s.now}
}
func (s *Store) Payments() repository.PaymentRepository {
	return &paymentRepo{r: s, now: s.now}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&txStore{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// SeedProduct inserts a catalog row, assigning an id when p.ID is zero.
func (s *Store) SeedProduct(p domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		s.st.seqProduct++
		p.ID = s.st.seqProduct
	} else if p.ID > s.st.seqProduct {
		s.st.seqProduct = p.ID
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.st.products[p.ID] = p
	return p
}

// txStore runs with Store.mu already held by WithTx.
type txStore struct {
	st  *state
	now func() time.Time
}

func (t *txStore) run(fn func(st *state) error) error { return fn(t.st) }

func (t *txStore) Products() repository.ProductRepository {
	return &productRepo{r: t, now: t.now}
}
func (t *txStore) Carts() repository.CartRepository { return &cartRepo{r: t, now: t.now} }
func (t *txStore) Orders() repository.OrderRepository {
	return &orderRepo{r: t, now: t.now}
}
func (t *txStore) Payments() repository.PaymentRepository {
	return &paymentRepo{r: t, now: t.now}
}

// WithTx inside a transaction joins it.
func (t *txStore) WithTx(_ context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}
