package http

import (
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type AddCartItemRequest struct {
	ProductID uint64 `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type CartResponse struct {
	Items []domain.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
	Count int               `json:"count"`
}

type ShippingRequest struct {
	Address string `json:"address" binding:"required,max=255"`
	City    string `json:"city" binding:"required,max=100"`
	State   string `json:"state" binding:"required,max=100"`
	Pincode string `json:"pincode" binding:"required,numeric,len=6"`
	Phone   string `json:"phone" binding:"required,numeric,min=10,max=15"`
}

func (r ShippingRequest) toDomain() domain.Shipping {
	return domain.Shipping{
		Address: r.Address,
		City:    r.City,
		State:   r.State,
		Pincode: r.Pincode,
		Phone:   r.Phone,
	}
}

type CheckoutRequest struct {
	Shipping ShippingRequest `json:"shipping" binding:"required"`
}

type PaymentRequest struct {
	Method     string `json:"method" binding:"required,oneof=COD Card UPI"`
	CardNumber string `json:"cardNumber" binding:"required_if=Method Card"`
	UpiID      string `json:"upiId" binding:"required_if=Method UPI"`
}

type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

type AdvanceStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type UpdateProductRequest struct {
	Name     *string          `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	IsActive *bool            `json:"isActive"`
}

func (r UpdateProductRequest) toPatch() domain.ProductPatch {
	return domain.ProductPatch{Name: r.Name, Price: r.Price, IsActive: r.IsActive}
}

type AdjustStockRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// OrderActionResponse carries the order after a cancel or return. Warning is
// set when the status changed but some stock could not be restored.
type OrderActionResponse struct {
	Order   *domain.Order `json:"order"`
	Warning string        `json:"warning,omitempty"`
}
