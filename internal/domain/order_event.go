package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderConfirmed     = "order.confirmed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderReturned      = "order.returned"
	EventOrderStatusChanged = "order.status.changed"
	EventPaymentProcessed   = "payment.processed"
	EventInventoryReconcile = "inventory.reconcile"
)

type OrderCreatedEvent struct {
	OrderID     uint64          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	UserID      uint64          `json:"userId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	LineCount   int             `json:"lineCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type OrderStatusEvent struct {
	OrderID     uint64      `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	From        OrderStatus `json:"from"`
	To          OrderStatus `json:"to"`
	Reason      string      `json:"reason,omitempty"`
	OccurredAt  time.Time   `json:"occurredAt"`
}

type PaymentProcessedEvent struct {
	OrderID       uint64          `json:"orderId"`
	TransactionID string          `json:"transactionId"`
	Method        PaymentMethod   `json:"method"`
	Status        PaymentStatus   `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
}

type InventoryReconcileEvent struct {
	OrderID   uint64    `json:"orderId"`
	ProductID uint64    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}
