package mysql

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

type cartRepo struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) repository.CartRepository {
	return &cartRepo{db: db}
}

func (r *cartRepo) FindLineForUpdate(ctx context.Context, userID, productID uint64) (*domain.CartLine, error) {
	var line domain.CartLine
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &line, nil
}

func (r *cartRepo) FindLine(ctx context.Context, lineID uint64) (*domain.CartLine, error) {
	var line domain.CartLine
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&line, lineID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &line, nil
}

func (r *cartRepo) LinesForUpdate(ctx context.Context, userID uint64) ([]domain.CartLine, error) {
	var out []domain.CartLine
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cartRepo) Insert(ctx context.Context, line *domain.CartLine) error {
	if err := r.db.WithContext(ctx).Create(line).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

func (r *cartRepo) SetQuantity(ctx context.Context, lineID uint64, qty int) error {
	return r.db.WithContext(ctx).
		Model(&domain.CartLine{}).
		Where("id = ?", lineID).
		Update("quantity", qty).Error
}

func (r *cartRepo) Items(ctx context.Context, userID uint64) ([]domain.CartItem, error) {
	var rows []domain.CartItem
	err := r.db.WithContext(ctx).
		Table("cart_lines AS c").
		Select("c.id AS cart_line_id, c.product_id, p.name, p.price, p.stock, c.quantity, c.added_at").
		Joins("JOIN products p ON p.id = c.product_id").
		Where("c.user_id = ? AND p.is_active = ?", userID, true).
		Order("c.added_at DESC, c.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Subtotal = rows[i].Price.Mul(decimal.NewFromInt(int64(rows[i].Quantity)))
	}
	return rows, nil
}

func (r *cartRepo) Count(ctx context.Context, userID uint64) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.CartLine{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("user_id = ?", userID).
		Scan(&n).Error
	return int(n), err
}

func (r *cartRepo) Delete(ctx context.Context, userID, lineID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		Delete(&domain.CartLine{})
	return res.RowsAffected > 0, res.Error
}

func (r *cartRepo) Clear(ctx context.Context, userID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.CartLine{})
	return res.RowsAffected, res.Error
}

func (r *cartRepo) DeleteByProduct(ctx context.Context, productID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&domain.CartLine{})
	return res.RowsAffected, res.Error
}
