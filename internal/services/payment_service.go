package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/domain"
	rabbit "storefront/internal/infra/rabbitmq"
	"storefront/internal/repository"
)

// PaymentRequest is what the buyer submitted. Only the field matching Method is read.
type PaymentRequest struct {
	Method     domain.PaymentMethod
	CardNumber string
	UpiID      string
}

// PaymentDecider decides the outcome of a simulated payment.
type PaymentDecider func(req PaymentRequest) domain.PaymentStatus

var upiPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,256}@[a-zA-Z]{2,64}$`)

// DefaultDecider keeps COD pending, accepts cards that pass the Luhn check and
// UPI ids shaped like handle@provider.
func DefaultDecider(req PaymentRequest) domain.PaymentStatus {
	switch req.Method {
	case domain.MethodCOD:
		return domain.PaymentPending
	case domain.MethodCard:
		if luhnValid(normalizeCard(req.CardNumber)) {
			return domain.PaymentSuccess
		}
	case domain.MethodUPI:
		if upiPattern.MatchString(strings.TrimSpace(req.UpiID)) {
			return domain.PaymentSuccess
		}
	}
	return domain.PaymentFailed
}

func normalizeCard(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(number)
}

func luhnValid(digits string) bool {
	if len(digits) < 12 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

type PaymentService struct {
	store     repository.Store
	finalizer OrderFinalizer
	publisher rabbit.PublisherInterface
	cache     OrderCache
	decide    PaymentDecider
	now       func() time.Time
	log       *slog.Logger
}

func NewPaymentService(store repository.Store, finalizer OrderFinalizer, pub rabbit.PublisherInterface) *PaymentService {
	if pub == nil {
		pub = rabbit.NoopPublisher{}
	}
	return &PaymentService{
		store:     store,
		finalizer: finalizer,
		publisher: pub,
		cache:     noCache{},
		decide:    DefaultDecider,
		now:       func() time.Time { return time.Now().UTC() },
		log:       slog.Default().With("component", "payments"),
	}
}

func (s *PaymentService) SetDecider(d PaymentDecider) {
	if d != nil {
		s.decide = d
	}
}

func (s *PaymentService) SetCache(c OrderCache) {
	if c != nil {
		s.cache = c
	}
}

func payable(order *domain.Order, userID uint64) error {
	switch {
	case order == nil:
		return domain.ErrOrderNotFound
	case order.UserID != userID:
		return domain.ErrUnauthorized
	case order.Status != domain.StatusPending:
		return domain.ErrNotEligible
	}
	return nil
}

func (s *PaymentService) transactionID() string {
	return fmt.Sprintf("TXN%s%06d", s.now().Format("20060102150405"), rand.IntN(1_000_000))
}

// ProcessPayment records a simulated payment for a Pending order and confirms
// the order when the payment is accepted. A failed payment leaves the order
// Pending with its stock still held.
func (s *PaymentService) ProcessPayment(ctx context.Context, userID, orderID uint64, req PaymentRequest) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.ProcessPayment",
		trace.WithAttributes(attribute.Int64("order.id", int64(orderID)), attribute.String("payment.method", string(req.Method))))
	defer span.End()

	if _, ok := domain.ParsePaymentMethod(string(req.Method)); !ok {
		return nil, domain.ErrInvalidPaymentMethod
	}

	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if err := payable(order, userID); err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		OrderID:       orderID,
		TransactionID: s.transactionID(),
		Method:        req.Method,
		Amount:        order.TotalAmount,
		Status:        s.decide(req),
	}
	switch req.Method {
	case domain.MethodCard:
		if card := normalizeCard(req.CardNumber); len(card) >= 4 {
			last := card[len(card)-4:]
			payment.CardLastFour = &last
		}
	case domain.MethodUPI:
		upi := strings.TrimSpace(req.UpiID)
		payment.UpiID = &upi
	}

	// Status is re-checked with the order row locked until the upsert commits.
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		locked, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock order %d: %w", orderID, err)
		}
		if err := payable(locked, userID); err != nil {
			return err
		}
		payment.Amount = locked.TotalAmount
		return tx.Payments().Upsert(ctx, payment)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotEligible) || errors.Is(err, domain.ErrOrderNotFound) || errors.Is(err, domain.ErrUnauthorized) {
			return nil, err
		}
		s.log.ErrorContext(ctx, "payment write failed", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrTransactionFailure, err)
	}
	s.cache.Invalidate(ctx, orderID)

	s.log.InfoContext(ctx, "payment processed",
		"order_id", orderID,
		"transaction_id", payment.TransactionID,
		"method", payment.Method,
		"status", payment.Status,
	)
	publishEvent(ctx, s.publisher, s.log, domain.EventPaymentProcessed, domain.PaymentProcessedEvent{
		OrderID:       orderID,
		TransactionID: payment.TransactionID,
		Method:        payment.Method,
		Status:        payment.Status,
		Amount:        payment.Amount,
	})

	if payment.Accepted() {
		if err := s.finalizer.FinalizeOrder(ctx, orderID); err != nil {
			s.log.ErrorContext(ctx, "order finalization failed after payment",
				"order_id", orderID, "transaction_id", payment.TransactionID, "error", err)
			return payment, fmt.Errorf("finalize order %d: %w", orderID, err)
		}
	}
	return payment, nil
}
