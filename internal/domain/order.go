package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusConfirmed  OrderStatus = "Confirmed"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
	StatusReturned   OrderStatus = "Returned"
)

// fulfilmentTransitions lists the forward moves an operator may apply.
// Confirmed is reached only through payment, Cancelled and Returned only
// through the compensating paths.
var fulfilmentTransitions = map[OrderStatus][]OrderStatus{
	StatusConfirmed:  {StatusProcessing},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusReturned:
		return st, true
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusReturned
}

func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	for _, allowed := range fulfilmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusReturned:
		return false
	}
	return true
}

// Shipping is copied onto the order at checkout, never referenced.
type Shipping struct {
	Address string `json:"address" gorm:"size:255;not null"`
	City    string `json:"city" gorm:"size:100;not null"`
	State   string `json:"state" gorm:"size:100;not null"`
	Pincode string `json:"pincode" gorm:"size:20;not null"`
	Phone   string `json:"phone" gorm:"size:20;not null"`
}

type Order struct {
	ID           uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderNumber  string          `json:"orderNumber" gorm:"size:32;not null;uniqueIndex"`
	UserID       uint64          `json:"userId" gorm:"not null;index"`
	TotalAmount  decimal.Decimal `json:"totalAmount" gorm:"type:decimal(12,2);not null"`
	Shipping     Shipping        `json:"shipping" gorm:"embedded;embeddedPrefix:shipping_"`
	Status       OrderStatus     `json:"status" gorm:"type:enum('Pending','Confirmed','Processing','Shipped','Delivered','Cancelled','Returned');default:'Pending';index"`
	CancelReason *string         `json:"cancelReason,omitempty" gorm:"size:500"`
	ReturnReason *string         `json:"returnReason,omitempty" gorm:"size:500"`
	DeliveredAt  *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`

	Lines   []OrderLine `json:"lines,omitempty" gorm:"foreignKey:OrderID"`
	Payment *Payment    `json:"payment,omitempty" gorm:"foreignKey:OrderID"`
}

// OrderLine snapshots name and price so later catalog edits never rewrite history.
type OrderLine struct {
	ID           uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID      uint64          `json:"orderId" gorm:"not null;uniqueIndex:idx_order_line_product"`
	ProductID    uint64          `json:"productId" gorm:"not null;uniqueIndex:idx_order_line_product"`
	ProductName  string          `json:"productName" gorm:"size:255;not null"`
	ProductPrice decimal.Decimal `json:"productPrice" gorm:"type:decimal(12,2);not null"`
	Quantity     int             `json:"quantity" gorm:"not null"`
	Subtotal     decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
}

// LinesTotal sums the line subtotals; an order's TotalAmount must equal it at creation.
func LinesTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

// ReturnableAt reports whether a delivered order is still inside the return window at now.
func (o *Order) ReturnableAt(now time.Time, window time.Duration) bool {
	if o.Status != StatusDelivered || o.DeliveredAt == nil {
		return false
	}
	return now.Sub(*o.DeliveredAt) <= window
}
