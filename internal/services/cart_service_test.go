package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

func TestCartService_AddItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	active := f.seed("Notebook", "3.50", 10)
	inactive := f.store.SeedProduct(domain.Product{Name: "Retired", Price: decimal.NewFromInt(1), Stock: 10})

	tests := []struct {
		name      string
		productID uint64
		qty       int
		wantErr   error
	}{
		{name: "zero quantity", productID: active.ID, qty: 0, wantErr: domain.ErrInvalidQuantity},
		{name: "negative quantity", productID: active.ID, qty: -2, wantErr: domain.ErrInvalidQuantity},
		{name: "unknown product", productID: 999, qty: 1, wantErr: domain.ErrProductNotFound},
		{name: "inactive product", productID: inactive.ID, qty: 1, wantErr: domain.ErrProductInactive},
		{name: "more than stock", productID: active.ID, qty: 11, wantErr: domain.ErrInsufficientStock},
		{name: "valid", productID: active.ID, qty: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := f.carts.AddItem(ctx, testUserID, tt.productID, tt.qty)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, line)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.qty, line.Quantity)
		})
	}
}

func TestCartService_AddItemMergesUpToStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seed("Candle", "7.00", 5)

	first, err := f.carts.AddItem(ctx, testUserID, p.ID, 3)
	require.NoError(t, err)

	_, err = f.carts.AddItem(ctx, testUserID, p.ID, 3)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	var short *domain.InsufficientStockError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, 6, short.Requested)
	assert.Equal(t, 5, short.Available)

	items, err := f.carts.Items(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)

	merged, err := f.carts.AddItem(ctx, testUserID, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, 5, merged.Quantity)
}

func TestCartService_ConcurrentAddsMergeIntoOneLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seed("Marble", "0.50", 100)

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := f.carts.AddItem(ctx, testUserID, p.ID, 2)
			return err
		})
	}
	require.NoError(t, g.Wait())

	items, err := f.carts.Items(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 20, items[0].Quantity)
}

func TestCartService_TotalsUseLivePrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed("Tea", "4.25", 20)
	b := f.seed("Honey", "9.00", 20)

	_, err := f.carts.AddItem(ctx, testUserID, a.ID, 4)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, testUserID, b.ID, 1)
	require.NoError(t, err)

	total, err := f.carts.Total(ctx, testUserID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("26").Equal(total), total.String())

	price := decimal.RequireFromString("10.00")
	_, err = NewProductService(f.store, 5).UpdateProduct(ctx, b.ID, domain.ProductPatch{Price: &price})
	require.NoError(t, err)

	total, err = f.carts.Total(ctx, testUserID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("27").Equal(total), total.String())

	n, err := f.carts.Count(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCartService_UpdateQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seed("Towel", "11.00", 6)
	line, err := f.carts.AddItem(ctx, testUserID, p.ID, 1)
	require.NoError(t, err)

	tests := []struct {
		name    string
		user    uint64
		lineID  uint64
		qty     int
		wantErr error
	}{
		{name: "zero", user: testUserID, lineID: line.ID, qty: 0, wantErr: domain.ErrInvalidQuantity},
		{name: "above stock", user: testUserID, lineID: line.ID, qty: 7, wantErr: domain.ErrInsufficientStock},
		{name: "foreign line", user: otherUserID, lineID: line.ID, qty: 2, wantErr: domain.ErrCartLineNotFound},
		{name: "missing line", user: testUserID, lineID: 777, qty: 2, wantErr: domain.ErrCartLineNotFound},
		{name: "at stock", user: testUserID, lineID: line.ID, qty: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.carts.UpdateQuantity(ctx, tt.user, tt.lineID, tt.qty)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.qty, got.Quantity)
		})
	}
}

// outsideTxStore fails every cart and product access made outside WithTx.
type outsideTxStore struct {
	repository.Store
}

func (s outsideTxStore) Carts() repository.CartRepository       { return failingCarts{} }
func (s outsideTxStore) Products() repository.ProductRepository { return failingProducts{} }

type failingCarts struct{ repository.CartRepository }

func (failingCarts) FindLine(context.Context, uint64) (*domain.CartLine, error) { return nil, errInjected }
func (failingCarts) SetQuantity(context.Context, uint64, int) error           { return errInjected }

type failingProducts struct{ repository.ProductRepository }

func (failingProducts) FindByID(context.Context, uint64) (*domain.Product, error) { return nil, errInjected }

func TestCartService_UpdateQuantityRunsInTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seed("Candle", "6.00", 4)
	line, err := f.carts.AddItem(ctx, testUserID, p.ID, 1)
	require.NoError(t, err)

	carts := NewCartService(outsideTxStore{Store: f.store})
	got, err := carts.UpdateQuantity(ctx, testUserID, line.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)

	_, err = carts.UpdateQuantity(ctx, testUserID, line.ID, 5)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	n, err := f.carts.Count(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCartService_RemoveAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed("Soap", "2.00", 10)
	b := f.seed("Sponge", "1.00", 10)

	la, err := f.carts.AddItem(ctx, testUserID, a.ID, 1)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, testUserID, b.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.carts.RemoveItem(ctx, otherUserID, la.ID))
	n, _ := f.carts.Count(ctx, testUserID)
	assert.Equal(t, 2, n)

	require.NoError(t, f.carts.RemoveItem(ctx, testUserID, la.ID))
	require.NoError(t, f.carts.RemoveItem(ctx, testUserID, la.ID))
	n, _ = f.carts.Count(ctx, testUserID)
	assert.Equal(t, 1, n)

	require.NoError(t, f.carts.Clear(ctx, testUserID))
	items, err := f.carts.Items(ctx, testUserID)
	require.NoError(t, err)
	assert.Empty(t, items)
}
