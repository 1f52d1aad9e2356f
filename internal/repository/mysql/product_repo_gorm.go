package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

type productRepo struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) repository.ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) FindByID(ctx context.Context, id uint64) (*domain.Product, error) {
	var p domain.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// AdjustStock is the single writer of products.stock. The predicate and the
// increment run in one UPDATE so the row lock serialises concurrent callers.
func (r *productRepo) AdjustStock(ctx context.Context, id uint64, delta int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *productRepo) Update(ctx context.Context, id uint64, patch domain.ProductPatch) error {
	if patch.Empty() {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ?", id).
		Updates(patch.Columns()).Error
}

func (r *productRepo) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	var out []domain.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND stock < ?", true, threshold).
		Order("stock ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
