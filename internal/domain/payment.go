package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCOD  PaymentMethod = "COD"
	MethodCard PaymentMethod = "Card"
	MethodUPI  PaymentMethod = "UPI"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(s); m {
	case MethodCOD, MethodCard, MethodUPI:
		return m, true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentSuccess  PaymentStatus = "Success"
	PaymentFailed   PaymentStatus = "Failed"
	PaymentRefunded PaymentStatus = "Refunded"
)

// Accepted reports whether the payment lets the order be finalized.
// Cash on delivery stays Pending until collected but is accepted at checkout.
func (p *Payment) Accepted() bool {
	return p.Status == PaymentSuccess || (p.Method == MethodCOD && p.Status == PaymentPending)
}

type Payment struct {
	ID            uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID       uint64          `json:"orderId" gorm:"not null;uniqueIndex"`
	TransactionID string          `json:"transactionId" gorm:"size:40;not null"`
	Method        PaymentMethod   `json:"method" gorm:"type:enum('COD','Card','UPI');not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Status        PaymentStatus   `json:"status" gorm:"type:enum('Pending','Success','Failed','Refunded');not null"`
	CardLastFour  *string         `json:"cardLastFour,omitempty" gorm:"size:4"`
	UpiID         *string         `json:"upiId,omitempty" gorm:"size:100"`
	CreatedAt     time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}
