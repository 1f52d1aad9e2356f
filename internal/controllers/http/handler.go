package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"storefront/internal/domain"
	"storefront/internal/services"
	"storefront/internal/telemetry"
)

type Handler struct {
	carts    *services.CartService
	orders   *services.OrderService
	payments *services.PaymentService
	products *services.ProductService
	health   func(context.Context) error
}

func NewHandler(carts *services.CartService, orders *services.OrderService, payments *services.PaymentService, products *services.ProductService) *Handler {
	return &Handler{
		carts:    carts,
		orders:   orders,
		payments: payments,
		products: products,
		health:   func(context.Context) error { return nil },
	}
}

// SetHealthCheck installs the dependency probe behind GET /healthz.
func (h *Handler) SetHealthCheck(fn func(context.Context) error) {
	if fn != nil {
		h.health = fn
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	r.GET("/healthz", h.Healthz)

	user := r.Group("/", AuthGuard(jwtSecret))
	user.GET("/cart", h.GetCart)
	user.GET("/cart/count", h.CartCount)
	user.POST("/cart/items", h.AddCartItem)
	user.PATCH("/cart/items/:id", h.UpdateCartItem)
	user.DELETE("/cart/items/:id", h.RemoveCartItem)
	user.DELETE("/cart", h.ClearCart)

	user.POST("/orders", h.Checkout)
	user.GET("/orders", h.ListOrders)
	user.GET("/orders/:id", h.GetOrder)
	user.POST("/orders/:id/payment", h.PayOrder)
	user.POST("/orders/:id/cancel", h.CancelOrder)
	user.POST("/orders/:id/return", h.ReturnOrder)

	admin := r.Group("/admin", AuthGuard(jwtSecret, RoleAdmin))
	admin.GET("/orders", h.AdminListOrders)
	admin.PATCH("/orders/:id/status", h.AdminAdvanceStatus)
	admin.POST("/orders/:id/cancel", h.AdminCancelOrder)
	admin.PATCH("/products/:id", h.AdminUpdateProduct)
	admin.POST("/products/:id/stock", h.AdminAdjustStock)
	admin.DELETE("/products/:id", h.AdminDeleteProduct)
	admin.GET("/products/low-stock", h.AdminLowStock)
}

// Telemetry records a span and RED metrics per request. 5xx responses count as errors.
func Telemetry(p *telemetry.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, done := p.TrackOperation(c.Request.Context(), c.Request.Method+" "+route,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		)
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		var err error
		if c.Writer.Status() >= http.StatusInternalServerError {
			err = errors.New(http.StatusText(c.Writer.Status()))
		}
		done(err)
	}
}

func (h *Handler) Healthz(c *gin.Context) {
	if err := h.health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) GetCart(c *gin.Context) {
	items, err := h.carts.Items(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}

	count := 0
	for _, it := range items {
		count += it.Quantity
	}
	if items == nil {
		items = []domain.CartItem{}
	}
	c.JSON(http.StatusOK, CartResponse{Items: items, Total: domain.CartTotal(items), Count: count})
}

func (h *Handler) CartCount(c *gin.Context) {
	n, err := h.carts.Count(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *Handler) AddCartItem(c *gin.Context) {
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	line, err := h.carts.AddItem(c.Request.Context(), currentUser(c), req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	lineID, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	line, err := h.carts.UpdateQuantity(c.Request.Context(), currentUser(c), lineID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	lineID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.carts.RemoveItem(c.Request.Context(), currentUser(c), lineID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), currentUser(c), req.Shipping.toDomain())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) ListOrders(c *gin.Context) {
	page, perPage := pageParams(c)
	orders, err := h.orders.ListUserOrders(c.Request.Context(), currentUser(c), page, perPage)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": nonNil(orders), "page": page, "perPage": perPage})
}

func (h *Handler) GetOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.orders.GetOrderForUser(c.Request.Context(), orderID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) PayOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := h.payments.ProcessPayment(c.Request.Context(), currentUser(c), orderID, services.PaymentRequest{
		Method:     domain.PaymentMethod(req.Method),
		CardNumber: req.CardNumber,
		UpiID:      req.UpiID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.CancelOrder(c.Request.Context(), orderID, currentUser(c), req.Reason)
	writeOrderAction(c, order, err)
}

func (h *Handler) ReturnOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.ReturnOrder(c.Request.Context(), orderID, currentUser(c), req.Reason)
	writeOrderAction(c, order, err)
}

func (h *Handler) AdminListOrders(c *gin.Context) {
	page, perPage := pageParams(c)
	orders, err := h.orders.ListAllOrders(c.Request.Context(), page, perPage)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": nonNil(orders), "page": page, "perPage": perPage})
}

func (h *Handler) AdminAdvanceStatus(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}
	var req AdvanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	next, valid := domain.ParseOrderStatus(req.Status)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	order, err := h.orders.AdvanceStatus(c.Request.Context(), orderID, next)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) AdminCancelOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.AdminCancel(c.Request.Context(), orderID, req.Reason)
	writeOrderAction(c, order, err)
}

func (h *Handler) AdminUpdateProduct(c *gin.Context) {
	productID, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.products.UpdateProduct(c.Request.Context(), productID, req.toPatch())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) AdminAdjustStock(c *gin.Context) {
	productID, ok := pathID(c)
	if !ok {
		return
	}
	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.products.AdjustStock(c.Request.Context(), productID, req.Delta)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) AdminDeleteProduct(c *gin.Context) {
	productID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.products.DeleteProduct(c.Request.Context(), productID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AdminLowStock(c *gin.Context) {
	threshold, _ := strconv.Atoi(c.Query("threshold"))
	products, err := h.products.LowStock(c.Request.Context(), threshold)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": nonNil(products)})
}

// writeOrderAction answers cancel and return. A restock shortfall still
// returns 200 because the status change is committed.
func writeOrderAction(c *gin.Context, order *domain.Order, err error) {
	if err != nil {
		var restock *domain.RestockError
		if !errors.As(err, &restock) || order == nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, OrderActionResponse{
			Order:   order,
			Warning: "stock for some items could not be restored and has been flagged for reconciliation",
		})
		return
	}
	c.JSON(http.StatusOK, OrderActionResponse{Order: order})
}

func pathID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("perPage", "10"))
	if err != nil || perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
