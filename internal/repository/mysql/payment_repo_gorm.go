package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

type paymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) repository.PaymentRepository {
	return &paymentRepo{db: db}
}

var paymentUpsertColumns = []string{
	"transaction_id", "method", "amount", "status", "card_last_four", "upi_id", "updated_at",
}

func (r *paymentRepo) Upsert(ctx context.Context, p *domain.Payment) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns(paymentUpsertColumns),
		}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}

	// LastInsertId is unreliable after ON DUPLICATE KEY UPDATE; reload the row.
	var stored domain.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", p.OrderID).First(&stored).Error; err != nil {
		return fmt.Errorf("reload payment: %w", err)
	}
	*p = stored
	return nil
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, orderID uint64) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) CompareAndSetStatus(ctx context.Context, orderID uint64, from, to domain.PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
