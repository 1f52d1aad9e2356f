package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string          `json:"name" gorm:"size:255;not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Stock     int             `json:"stock" gorm:"not null;default:0;check:chk_products_stock,stock >= 0"`
	IsActive  bool            `json:"isActive" gorm:"not null;default:true;index"`
	CreatedAt time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}

// ProductPatch carries the admin-editable product fields. Stock only moves
// through AdjustStock.
type ProductPatch struct {
	Name     *string
	Price    *decimal.Decimal
	IsActive *bool
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.IsActive == nil
}

// Columns maps the set fields onto their fixed column names.
func (p ProductPatch) Columns() map[string]any {
	cols := make(map[string]any, 3)
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Price != nil {
		cols["price"] = *p.Price
	}
	if p.IsActive != nil {
		cols["is_active"] = *p.IsActive
	}
	return cols
}
