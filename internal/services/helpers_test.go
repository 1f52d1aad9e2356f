package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/mocks"
	"storefront/internal/repository"
	"storefront/internal/repository/memory"
)

const (
	testUserID  = uint64(1)
	otherUserID = uint64(2)
	returnWin   = 7 * 24 * time.Hour
)

var testShipping = domain.Shipping{
	Address: "12 Lake Road",
	City:    "Pune",
	State:   "MH",
	Pincode: "411001",
	Phone:   "9800000000",
}

type fixture struct {
	store  *memory.Store
	pub    *mocks.MockPublisher
	orders *OrderService
	carts  *CartService
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.NewStore(), nil)
}

// newFixtureWithStore lets a test wrap the memory store; services use wrapped
// when it is non-nil.
func newFixtureWithStore(t *testing.T, store *memory.Store, wrapped repository.Store) *fixture {
	t.Helper()
	pub := new(mocks.MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	var s repository.Store = store
	if wrapped != nil {
		s = wrapped
	}

	f := &fixture{
		store: store,
		pub:   pub,
		carts: NewCartService(s),
		now:   time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC),
	}
	f.orders = NewOrderService(s, pub, returnWin)
	f.orders.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) seed(name, price string, stock int) domain.Product {
	return f.store.SeedProduct(domain.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	})
}

func (f *fixture) stockOf(t *testing.T, productID uint64) int {
	t.Helper()
	p, err := f.store.Products().FindByID(context.Background(), productID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Stock
}

// checkout adds the given quantities to the user's cart and places the order.
func (f *fixture) checkout(t *testing.T, userID uint64, qty map[uint64]int) *domain.Order {
	t.Helper()
	ctx := context.Background()
	for productID, q := range qty {
		_, err := f.carts.AddItem(ctx, userID, productID, q)
		require.NoError(t, err)
	}
	order, err := f.orders.CreateOrder(ctx, userID, testShipping)
	require.NoError(t, err)
	return order
}

func (f *fixture) published(pattern string) int {
	n := 0
	for _, c := range f.pub.Calls {
		if c.Method == "Publish" && c.Arguments.String(1) == pattern {
			n++
		}
	}
	return n
}

var errInjected = errors.New("injected storage failure")

// faultyStore fails selected operations of the wrapped store, including
// inside transactions.
type faultyStore struct {
	repository.Store
	failRestock map[uint64]bool
	failClear   bool
}

func (f *faultyStore) Products() repository.ProductRepository {
	return &faultyProducts{ProductRepository: f.Store.Products(), f: f}
}

func (f *faultyStore) Carts() repository.CartRepository {
	return &faultyCarts{CartRepository: f.Store.Carts(), f: f}
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return f.Store.WithTx(ctx, func(tx repository.Store) error {
		return fn(&faultyStore{Store: tx, failRestock: f.failRestock, failClear: f.failClear})
	})
}

type faultyProducts struct {
	repository.ProductRepository
	f *faultyStore
}

func (p *faultyProducts) AdjustStock(ctx context.Context, id uint64, delta int) (bool, error) {
	if delta > 0 && p.f.failRestock[id] {
		return false, errInjected
	}
	return p.ProductRepository.AdjustStock(ctx, id, delta)
}

type faultyCarts struct {
	repository.CartRepository
	f *faultyStore
}

func (c *faultyCarts) Clear(ctx context.Context, userID uint64) (int64, error) {
	if c.f.failClear {
		return 0, errInjected
	}
	return c.CartRepository.Clear(ctx, userID)
}
