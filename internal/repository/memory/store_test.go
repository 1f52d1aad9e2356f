package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

func TestAdjustStockNeverNegative(t *testing.T) {
	s := NewStore()
	p := s.SeedProduct(domain.Product{Name: "Lamp", Price: decimal.NewFromInt(20), Stock: 10, IsActive: true})
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Products().AdjustStock(ctx, p.ID, -1)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, applied)
	assert.Equal(t, 0, got.Stock)
}

func TestAdjustStockUnknownProduct(t *testing.T) {
	s := NewStore()
	ok, err := s.Products().AdjustStock(context.Background(), 404, 1)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestWithTxRollback(t *testing.T) {
	s := NewStore()
	p := s.SeedProduct(domain.Product{Name: "Cup", Price: decimal.NewFromInt(5), Stock: 3, IsActive: true})
	ctx := context.Background()

	boom := errors.New("abort")
	err := s.WithTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Products().AdjustStock(ctx, p.ID, -3)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.Carts().Insert(ctx, &domain.CartLine{UserID: 1, ProductID: p.ID, Quantity: 1}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, _ := s.Products().FindByID(ctx, p.ID)
	assert.Equal(t, 3, got.Stock)
	n, _ := s.Carts().Count(ctx, 1)
	assert.Zero(t, n)
}

func TestWithTxCommit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	order := &domain.Order{OrderNumber: "ORD20261015000001", UserID: 2, Status: domain.StatusPending}
	err := s.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		return tx.Orders().CreateLines(ctx, []domain.OrderLine{{OrderID: order.ID, ProductID: 1, Quantity: 2}})
	})
	require.NoError(t, err)

	lines, err := s.Orders().Lines(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestOrderNumberUnique(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Orders().Create(ctx, &domain.Order{OrderNumber: "ORD1", UserID: 1}))
	err := s.Orders().Create(ctx, &domain.Order{OrderNumber: "ORD1", UserID: 2})
	assert.ErrorIs(t, err, domain.ErrDuplicateOrderNumber)
}

func TestCartLineUniquePerProduct(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Carts().Insert(ctx, &domain.CartLine{UserID: 1, ProductID: 9, Quantity: 1}))
	err := s.Carts().Insert(ctx, &domain.CartLine{UserID: 1, ProductID: 9, Quantity: 2})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestCartItemsSkipInactiveProducts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	live := s.SeedProduct(domain.Product{Name: "Pen", Price: decimal.RequireFromString("1.25"), Stock: 50, IsActive: true})
	gone := s.SeedProduct(domain.Product{Name: "Ink", Price: decimal.NewFromInt(4), Stock: 5, IsActive: false})

	require.NoError(t, s.Carts().Insert(ctx, &domain.CartLine{UserID: 3, ProductID: live.ID, Quantity: 4}))
	require.NoError(t, s.Carts().Insert(ctx, &domain.CartLine{UserID: 3, ProductID: gone.ID, Quantity: 1}))

	items, err := s.Carts().Items(ctx, 3)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, decimal.NewFromInt(5).Equal(items[0].Subtotal))
}

func TestOrderCompareAndSetStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	order := &domain.Order{OrderNumber: "ORD2", UserID: 1, Status: domain.StatusPending}
	require.NoError(t, s.Orders().Create(ctx, order))

	reason := "wrong size"
	ok, err := s.Orders().CompareAndSetStatus(ctx, order.ID, domain.StatusPending, domain.StatusCancelled,
		repository.StatusChange{CancelReason: &reason})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Orders().CompareAndSetStatus(ctx, order.ID, domain.StatusPending, domain.StatusCancelled,
		repository.StatusChange{})
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := s.Orders().FindByID(ctx, order.ID)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, "wrong size", *got.CancelReason)
}

func TestPaymentUpsertKeepsID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	first := &domain.Payment{OrderID: 7, TransactionID: "TXN1", Method: domain.MethodCard, Status: domain.PaymentFailed}
	require.NoError(t, s.Payments().Upsert(ctx, first))
	second := &domain.Payment{OrderID: 7, TransactionID: "TXN2", Method: domain.MethodUPI, Status: domain.PaymentSuccess}
	require.NoError(t, s.Payments().Upsert(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	got, _ := s.Payments().FindByOrderID(ctx, 7)
	assert.Equal(t, "TXN2", got.TransactionID)
}

func TestListByUserPaginates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, n := range []string{"A", "B", "C"} {
		require.NoError(t, s.Orders().Create(ctx, &domain.Order{OrderNumber: n, UserID: 4}))
	}
	require.NoError(t, s.Orders().Create(ctx, &domain.Order{OrderNumber: "D", UserID: 5}))

	page, err := s.Orders().ListByUser(ctx, 4, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "C", page[0].OrderNumber)

	page, err = s.Orders().ListByUser(ctx, 4, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "A", page[0].OrderNumber)
}

func TestLinesForUpdateReturnsOwnLines(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Carts().Insert(ctx, &domain.CartLine{UserID: 6, ProductID: 2, Quantity: 1}))
	require.NoError(t, s.Carts().Insert(ctx, &domain.CartLine{UserID: 7, ProductID: 2, Quantity: 4}))
	require.NoError(t, s.Carts().Insert(ctx, &domain.CartLine{UserID: 6, ProductID: 3, Quantity: 2}))

	lines, err := s.Carts().LinesForUpdate(ctx, 6)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Less(t, lines[0].ID, lines[1].ID)
	assert.Equal(t, 2, lines[1].Quantity)
}
