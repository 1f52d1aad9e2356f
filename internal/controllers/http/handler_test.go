package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/repository/memory"
	"storefront/internal/services"
	"storefront/internal/telemetry"
)

const testSecret = "test-secret"

type testServer struct {
	router *gin.Engine
	store  *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	orders := services.NewOrderService(store, nil, 7*24*time.Hour)
	h := NewHandler(
		services.NewCartService(store),
		orders,
		services.NewPaymentService(store, orders, nil),
		services.NewProductService(store, 10),
	)

	tp, err := telemetry.New(context.Background(), config.Telemetry{})
	require.NoError(t, err)

	r := gin.New()
	r.Use(Telemetry(tp))
	h.RegisterRoutes(r, testSecret)
	return &testServer{router: r, store: store}
}

func token(t *testing.T, userID any, role string) string {
	t.Helper()
	claims := jwt.MapClaims{"userId": userID, "exp": time.Now().Add(time.Hour).Unix()}
	if role != "" {
		claims["role"] = role
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

var validShipping = map[string]any{
	"shipping": map[string]any{
		"address": "4 Hill View",
		"city":    "Mysuru",
		"state":   "KA",
		"pincode": "570001",
		"phone":   "9876543210",
	},
}

func TestAuthGuard(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		tok    string
		header string
		want   int
	}{
		{name: "no token", path: "/cart", want: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/cart", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", path: "/cart", tok: "not.a.jwt", want: http.StatusUnauthorized},
		{name: "numeric user id", path: "/cart", tok: token(t, 7, ""), want: http.StatusOK},
		{name: "string user id", path: "/cart", tok: token(t, "7", ""), want: http.StatusOK},
		{name: "missing user id", path: "/cart", tok: token(t, nil, ""), want: http.StatusUnauthorized},
		{name: "customer on admin route", path: "/admin/orders", tok: token(t, 7, "customer"), want: http.StatusForbidden},
		{name: "admin on admin route", path: "/admin/orders", tok: token(t, 1, RoleAdmin), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.tok != "" {
				req.Header.Set("Authorization", "Bearer "+tt.tok)
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestCheckoutPayAndCancelFlow(t *testing.T) {
	s := newTestServer(t)
	p := s.store.SeedProduct(domain.Product{Name: "Kettle", Price: decimal.RequireFromString("40.00"), Stock: 10, IsActive: true})
	buyer := token(t, 5, "")

	w := s.do(t, http.MethodPost, "/cart/items", buyer, AddCartItemRequest{ProductID: p.ID, Quantity: 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/cart", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cart := decode[CartResponse](t, w)
	assert.Equal(t, 3, cart.Count)
	assert.True(t, decimal.RequireFromString("120").Equal(cart.Total))

	w = s.do(t, http.MethodPost, "/orders", buyer, validShipping)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[domain.Order](t, w)
	assert.Equal(t, domain.StatusPending, order.Status)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/payment", order.ID), buyer,
		map[string]string{"method": "Card", "cardNumber": "4111111111111111"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payment := decode[domain.Payment](t, w)
	assert.Equal(t, domain.PaymentSuccess, payment.Status)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", order.ID), buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.StatusConfirmed, decode[domain.Order](t, w).Status)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", order.ID), token(t, 6, ""), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", order.ID), token(t, 6, ""), ReasonRequest{Reason: "not mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", order.ID), buyer, ReasonRequest{Reason: "changed my mind"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[OrderActionResponse](t, w)
	assert.Equal(t, domain.StatusCancelled, resp.Order.Status)
	assert.Empty(t, resp.Warning)

	stock, err := s.store.Products().FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stock.Stock)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", order.ID), buyer, ReasonRequest{Reason: "again"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCheckoutErrors(t *testing.T) {
	s := newTestServer(t)
	p := s.store.SeedProduct(domain.Product{Name: "Lamp", Price: decimal.NewFromInt(15), Stock: 5, IsActive: true})
	buyer := token(t, 8, "")

	w := s.do(t, http.MethodPost, "/orders", buyer, validShipping)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrEmptyCart.Error())

	w = s.do(t, http.MethodPost, "/orders", buyer, map[string]any{"shipping": map[string]any{"address": "x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/cart/items", buyer, AddCartItemRequest{ProductID: p.ID, Quantity: 3})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, http.MethodPost, "/cart/items", buyer, AddCartItemRequest{ProductID: p.ID, Quantity: 3})
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, float64(p.ID), body["productId"])
	assert.Equal(t, float64(6), body["requested"])
	assert.Equal(t, float64(5), body["available"])

	w = s.do(t, http.MethodPost, "/cart/items", buyer, AddCartItemRequest{ProductID: 999, Quantity: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPatch, "/cart/items/abc", buyer, UpdateCartItemRequest{Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	p := s.store.SeedProduct(domain.Product{Name: "Globe", Price: decimal.NewFromInt(45), Stock: 4, IsActive: true})
	admin := token(t, 1, RoleAdmin)
	buyer := token(t, 9, "")

	w := s.do(t, http.MethodPost, fmt.Sprintf("/admin/products/%d/stock", p.ID), admin, AdjustStockRequest{Delta: -5})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = s.do(t, http.MethodPost, fmt.Sprintf("/admin/products/%d/stock", p.ID), admin, AdjustStockRequest{Delta: 6})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, decode[domain.Product](t, w).Stock)

	w = s.do(t, http.MethodPatch, fmt.Sprintf("/admin/products/%d", p.ID), admin, map[string]any{"price": "49.99"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decimal.RequireFromString("49.99").Equal(decode[domain.Product](t, w).Price))

	w = s.do(t, http.MethodPost, "/cart/items", buyer, AddCartItemRequest{ProductID: p.ID, Quantity: 1})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, http.MethodPost, "/orders", buyer, validShipping)
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[domain.Order](t, w)

	w = s.do(t, http.MethodPatch, fmt.Sprintf("/admin/orders/%d/status", order.ID), admin, AdvanceStatusRequest{Status: "Shipped"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = s.do(t, http.MethodPatch, fmt.Sprintf("/admin/orders/%d/status", order.ID), admin, AdvanceStatusRequest{Status: "Lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPatch, fmt.Sprintf("/admin/orders/%d/status", order.ID), admin, AdvanceStatusRequest{Status: "Confirmed"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/payment", order.ID), buyer, map[string]string{"method": "COD"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPatch, fmt.Sprintf("/admin/orders/%d/status", order.ID), admin, AdvanceStatusRequest{Status: "Processing"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.StatusProcessing, decode[domain.Order](t, w).Status)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/admin/orders/%d/cancel", order.ID), admin, ReasonRequest{Reason: "out of region"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/admin/products/low-stock?threshold=20", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]domain.Product](t, w)["products"], 1)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/admin/products/%d", p.ID), admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/admin/orders?page=1&perPage=5", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestWriteErrorHidesTransactionDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/orders", nil)

	writeError(c, fmt.Errorf("%w: %v", domain.ErrTransactionFailure, "Error 1213: Deadlock found when trying to get lock"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "Deadlock")
	assert.Contains(t, w.Body.String(), genericFailure)
}

func TestWriteErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrEmptyCart, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", domain.ErrNotEligible), http.StatusConflict},
		{domain.ErrOrderNotFound, http.StatusNotFound},
		{domain.ErrProductInactive, http.StatusUnprocessableEntity},
		{domain.ErrCartChanged, http.StatusConflict},
		{&domain.InsufficientStockError{ProductID: 1, Requested: 2, Available: -1}, http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		writeError(c, tt.err)
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
