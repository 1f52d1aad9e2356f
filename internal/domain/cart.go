package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `json:"userId" gorm:"not null;uniqueIndex:idx_cart_user_product"`
	ProductID uint64    `json:"productId" gorm:"not null;uniqueIndex:idx_cart_user_product;index"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	AddedAt   time.Time `json:"addedAt" gorm:"autoCreateTime"`
}

// CartItem is a cart line joined with the live product row.
type CartItem struct {
	CartLineID uint64          `json:"cartLineId"`
	ProductID  uint64          `json:"productId"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	Quantity   int             `json:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	AddedAt    time.Time       `json:"addedAt"`
}

func CartTotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}
