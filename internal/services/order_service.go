package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/domain"
	rabbit "storefront/internal/infra/rabbitmq"
	"storefront/internal/repository"
	"storefront/internal/telemetry"
)

const (
	maxOrderNumberAttempts = 3
	defaultPerPage         = 10
	maxPerPage             = 100
)

type OrderService struct {
	store        repository.Store
	publisher    rabbit.PublisherInterface
	cache        OrderCache
	returnWindow time.Duration
	now          func() time.Time
	orderNumber  func(time.Time) string
	log          *slog.Logger

	ordersCreated   metric.Int64Counter
	restockFailures metric.Int64Counter
}

func NewOrderService(store repository.Store, pub rabbit.PublisherInterface, returnWindow time.Duration) *OrderService {
	if pub == nil {
		pub = rabbit.NoopPublisher{}
	}
	s := &OrderService{
		store:        store,
		publisher:    pub,
		cache:        noCache{},
		returnWindow: returnWindow,
		now:          func() time.Time { return time.Now().UTC() },
		orderNumber:  newOrderNumber,
		log:          slog.Default().With("component", "orders"),
	}

	meter := otel.Meter(telemetry.InstrumentationName)
	var err error
	if s.ordersCreated, err = meter.Int64Counter("storefront.orders.created",
		metric.WithDescription("Orders committed at checkout")); err != nil {
		s.log.Warn("orders counter unavailable", "error", err)
	}
	if s.restockFailures, err = meter.Int64Counter("storefront.inventory.restock_failures",
		metric.WithDescription("Order lines whose stock could not be restored")); err != nil {
		s.log.Warn("restock counter unavailable", "error", err)
	}
	return s
}

func (s *OrderService) SetCache(c OrderCache) {
	if c != nil {
		s.cache = c
	}
}

// SetClock replaces the time source used for order numbers, delivery stamps
// and the return window.
func (s *OrderService) SetClock(now func() time.Time) {
	s.now = now
}

func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD%s%06d", now.Format("20060102"), rand.IntN(1_000_000))
}

// CreateOrder turns the user's cart into a Pending order. Stock is decremented
// for every line in the same transaction that writes the order, so either the
// order exists with its stock reserved or nothing changed.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint64, shipping domain.Shipping) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(attribute.Int64("user.id", int64(userID))))
	defer span.End()

	items, err := s.store.Carts().Items(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	inventory := NewInventoryService(s.store)
	for _, it := range items {
		ok, err := inventory.CheckStock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &domain.InsufficientStockError{ProductID: it.ProductID, Requested: it.Quantity, Available: it.Stock}
		}
	}

	// Lines are written and decremented in product id order so concurrent
	// checkouts lock rows in the same sequence.
	lines := make([]domain.OrderLine, 0, len(items))
	snapshot := make(map[uint64]int, len(items))
	for _, it := range items {
		snapshot[it.CartLineID] = it.Quantity
		lines = append(lines, domain.OrderLine{
			ProductID:    it.ProductID,
			ProductName:  it.Name,
			ProductPrice: it.Price,
			Quantity:     it.Quantity,
			Subtotal:     it.Subtotal,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	total := domain.LinesTotal(lines)

	var order *domain.Order
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order = &domain.Order{
			OrderNumber: s.orderNumber(s.now()),
			UserID:      userID,
			TotalAmount: total,
			Shipping:    shipping,
			Status:      domain.StatusPending,
		}
		err = s.store.WithTx(ctx, func(tx repository.Store) error {
			return s.placeOrder(ctx, tx, order, lines, snapshot)
		})
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			break
		}
		s.log.WarnContext(ctx, "order number collision", "order_number", order.OrderNumber, "attempt", attempt)
	}

	if err != nil {
		span.RecordError(err)
		var short *domain.InsufficientStockError
		if errors.As(err, &short) {
			return nil, err
		}
		if errors.Is(err, domain.ErrCartChanged) {
			s.log.WarnContext(ctx, "cart changed during checkout", "user_id", userID)
			return nil, err
		}
		s.log.ErrorContext(ctx, "create order transaction failed",
			"user_id", userID,
			"order_number", order.OrderNumber,
			"lines", len(lines),
			"total", total.StringFixed(2),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrTransactionFailure, err)
	}

	if s.ordersCreated != nil {
		s.ordersCreated.Add(ctx, 1)
	}
	s.log.InfoContext(ctx, "order created", "order_id", order.ID, "order_number", order.OrderNumber, "user_id", userID)
	publishEvent(ctx, s.publisher, s.log, domain.EventOrderCreated, domain.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      userID,
		TotalAmount: order.TotalAmount,
		LineCount:   len(order.Lines),
		CreatedAt:   order.CreatedAt,
	})
	return order, nil
}

// placeOrder runs inside the checkout transaction. The user's cart lines are
// locked first and must still match the snapshot the order was priced from;
// a concurrent checkout or cart edit aborts with ErrCartChanged.
func (s *OrderService) placeOrder(ctx context.Context, tx repository.Store, order *domain.Order, lines []domain.OrderLine, snapshot map[uint64]int) error {
	locked, err := tx.Carts().LinesForUpdate(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}
	current := make(map[uint64]int, len(locked))
	for _, l := range locked {
		current[l.ID] = l.Quantity
	}
	for lineID, qty := range snapshot {
		if q, ok := current[lineID]; !ok || q != qty {
			return domain.ErrCartChanged
		}
	}

	if err := tx.Orders().Create(ctx, order); err != nil {
		return err
	}

	rows := make([]domain.OrderLine, len(lines))
	copy(rows, lines)
	for i := range rows {
		rows[i].OrderID = order.ID
	}
	if err := tx.Orders().CreateLines(ctx, rows); err != nil {
		return err
	}

	inventory := NewInventoryService(tx)
	for _, l := range rows {
		ok, err := inventory.AdjustStock(ctx, l.ProductID, -l.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.InsufficientStockError{ProductID: l.ProductID, Requested: l.Quantity, Available: -1}
		}
	}

	cleared, err := tx.Carts().Clear(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	if cleared < int64(len(snapshot)) {
		return domain.ErrCartChanged
	}
	order.Lines = rows
	return nil
}

// FinalizeOrder confirms a Pending order. Confirming an already Confirmed
// order succeeds without writing.
func (s *OrderService) FinalizeOrder(ctx context.Context, orderID uint64) error {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return err
	}

	switch order.Status {
	case domain.StatusConfirmed:
		return nil
	case domain.StatusPending:
	default:
		return domain.ErrNotEligible
	}

	ok, err := s.store.Orders().CompareAndSetStatus(ctx, orderID, domain.StatusPending, domain.StatusConfirmed, repository.StatusChange{})
	if err != nil {
		return fmt.Errorf("confirm order %d: %w", orderID, err)
	}
	if !ok {
		current, err := s.findOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status == domain.StatusConfirmed {
			return nil
		}
		return domain.ErrNotEligible
	}

	s.cache.Invalidate(ctx, orderID)
	publishEvent(ctx, s.publisher, s.log, domain.EventOrderConfirmed, s.statusEvent(order, domain.StatusConfirmed, ""))
	return nil
}

// CancelOrder cancels the caller's order and puts its stock back.
// A *domain.RestockError is returned together with the cancelled order when
// some lines could not be restocked.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID uint64, reason string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrder", trace.WithAttributes(attribute.Int64("order.id", int64(orderID))))
	defer span.End()

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	return s.cancel(ctx, order, reason)
}

// AdminCancel cancels any order regardless of owner.
func (s *OrderService) AdminCancel(ctx context.Context, orderID uint64, reason string) (*domain.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, order, reason)
}

func (s *OrderService) cancel(ctx context.Context, order *domain.Order, reason string) (*domain.Order, error) {
	if !order.Status.Cancellable() {
		return nil, domain.ErrNotEligible
	}
	return s.compensate(ctx, order, domain.StatusCancelled,
		repository.StatusChange{CancelReason: &reason}, domain.EventOrderCancelled, reason)
}

// ReturnOrder accepts a return of a delivered order inside the return window.
func (s *OrderService) ReturnOrder(ctx context.Context, orderID, userID uint64, reason string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ReturnOrder", trace.WithAttributes(attribute.Int64("order.id", int64(orderID))))
	defer span.End()

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	if !order.ReturnableAt(s.now(), s.returnWindow) {
		return nil, domain.ErrNotEligible
	}
	return s.compensate(ctx, order, domain.StatusReturned,
		repository.StatusChange{ReturnReason: &reason}, domain.EventOrderReturned, reason)
}

// compensate commits the status change (and any refund) first, then restores
// stock line by line. Restoration is best effort: each failed line is logged,
// published for reconciliation and reported in a RestockError.
func (s *OrderService) compensate(ctx context.Context, order *domain.Order, to domain.OrderStatus,
	change repository.StatusChange, event, reason string) (*domain.Order, error) {

	var lines []domain.OrderLine
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Orders().CompareAndSetStatus(ctx, order.ID, order.Status, to, change)
		if err != nil {
			return fmt.Errorf("set status %s: %w", to, err)
		}
		if !ok {
			return domain.ErrNotEligible
		}

		pay, err := tx.Payments().FindByOrderID(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if pay != nil && pay.Status == domain.PaymentSuccess {
			if _, err := tx.Payments().CompareAndSetStatus(ctx, order.ID, domain.PaymentSuccess, domain.PaymentRefunded); err != nil {
				return fmt.Errorf("refund payment: %w", err)
			}
		}

		lines, err = tx.Orders().Lines(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load order lines: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotEligible) {
			return nil, err
		}
		s.log.ErrorContext(ctx, "order status transaction failed",
			"order_id", order.ID, "from", order.Status, "to", to, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrTransactionFailure, err)
	}

	failures := s.restock(ctx, order.ID, lines)

	s.cache.Invalidate(ctx, order.ID)
	publishEvent(ctx, s.publisher, s.log, event, s.statusEvent(order, to, reason))

	updated, err := s.store.Orders().FindByID(ctx, order.ID)
	if err != nil || updated == nil {
		fallback := *order
		fallback.Status = to
		updated = &fallback
	}
	updated.Lines = lines

	if len(failures) > 0 {
		return updated, &domain.RestockError{OrderID: order.ID, Failures: failures}
	}
	return updated, nil
}

func (s *OrderService) restock(ctx context.Context, orderID uint64, lines []domain.OrderLine) []domain.RestockFailure {
	inventory := NewInventoryService(s.store)
	var failures []domain.RestockFailure
	for _, l := range lines {
		ok, err := inventory.AdjustStock(ctx, l.ProductID, l.Quantity)
		if err == nil && ok {
			continue
		}
		if err == nil {
			err = domain.ErrProductNotFound
		}
		failures = append(failures, domain.RestockFailure{ProductID: l.ProductID, Quantity: l.Quantity, Err: err})

		s.log.WarnContext(ctx, "stock restoration failed",
			"reconcile", true,
			"order_id", orderID,
			"product_id", l.ProductID,
			"quantity", l.Quantity,
			"error", err,
		)
		if s.restockFailures != nil {
			s.restockFailures.Add(ctx, 1, metric.WithAttributes(attribute.Int64("product.id", int64(l.ProductID))))
		}
		publishEvent(ctx, s.publisher, s.log, domain.EventInventoryReconcile, domain.InventoryReconcileEvent{
			OrderID:   orderID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Error:     err.Error(),
			At:        s.now(),
		})
	}
	return failures
}

// AdvanceStatus applies a forward fulfilment move. Cancelled and Returned are
// not reachable here.
func (s *OrderService) AdvanceStatus(ctx context.Context, orderID uint64, next domain.OrderStatus) (*domain.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if next.IsTerminal() || !order.Status.CanAdvanceTo(next) {
		return nil, domain.ErrInvalidTransition
	}

	var change repository.StatusChange
	if next == domain.StatusDelivered {
		at := s.now()
		change.DeliveredAt = &at
	}

	ok, err := s.store.Orders().CompareAndSetStatus(ctx, orderID, order.Status, next, change)
	if err != nil {
		return nil, fmt.Errorf("advance order %d to %s: %w", orderID, next, err)
	}
	if !ok {
		return nil, domain.ErrNotEligible
	}

	s.cache.Invalidate(ctx, orderID)
	publishEvent(ctx, s.publisher, s.log, domain.EventOrderStatusChanged, s.statusEvent(order, next, ""))
	return s.findOrder(ctx, orderID)
}

// GetOrderForUser returns the order with lines and payment. Orders owned by
// someone else are reported as not found.
func (s *OrderService) GetOrderForUser(ctx context.Context, orderID, userID uint64) (*domain.Order, error) {
	order, err := s.cache.GetOrLoad(ctx, orderID, func(ctx context.Context) (*domain.Order, error) {
		return s.loadOrderDetail(ctx, orderID)
	})
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) loadOrderDetail(ctx context.Context, orderID uint64) (*domain.Order, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil || order == nil {
		return order, err
	}
	if order.Lines, err = s.store.Orders().Lines(ctx, orderID); err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	if order.Payment, err = s.store.Payments().FindByOrderID(ctx, orderID); err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	return order, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID uint64, page, perPage int) ([]domain.Order, error) {
	limit, offset := paginate(page, perPage)
	return s.store.Orders().ListByUser(ctx, userID, limit, offset)
}

func (s *OrderService) ListAllOrders(ctx context.Context, page, perPage int) ([]domain.Order, error) {
	limit, offset := paginate(page, perPage)
	return s.store.Orders().ListAll(ctx, limit, offset)
}

func paginate(page, perPage int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return perPage, (page - 1) * perPage
}

func (s *OrderService) findOrder(ctx context.Context, orderID uint64) (*domain.Order, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *OrderService) statusEvent(o *domain.Order, to domain.OrderStatus, reason string) domain.OrderStatusEvent {
	return domain.OrderStatusEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		From:        o.Status,
		To:          to,
		Reason:      reason,
		OccurredAt:  s.now(),
	}
}
