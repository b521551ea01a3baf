package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"beatstore/internal/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindBySessionID(ctx context.Context, sessionID string) (*model.Payment, error)
	UpdateStatusBySessionID(ctx context.Context, sessionID string, fromStatuses []string, to string) (int64, error)
	UpdateStatusByPaymentID(ctx context.Context, paymentID string, fromStatuses []string, to string) (int64, error)
	// AttachPaymentID records the processor payment id once the session
	// completes, alongside the status transition.
	AttachPaymentID(ctx context.Context, sessionID, paymentID string) error
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{db: db}
}

func (r *paymentRepoImpl) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepoImpl) FindBySessionID(ctx context.Context, sessionID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("stripe_session_id = ?", sessionID).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) UpdateStatusBySessionID(ctx context.Context, sessionID string, fromStatuses []string, to string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("stripe_session_id = ? AND status IN ?", sessionID, fromStatuses).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	return result.RowsAffected, result.Error
}

func (r *paymentRepoImpl) UpdateStatusByPaymentID(ctx context.Context, paymentID string, fromStatuses []string, to string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("stripe_payment_id = ? AND status IN ?", paymentID, fromStatuses).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	return result.RowsAffected, result.Error
}

func (r *paymentRepoImpl) AttachPaymentID(ctx context.Context, sessionID, paymentID string) error {
	return r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("stripe_session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"stripe_payment_id": paymentID,
			"updated_at":        time.Now(),
		}).Error
}
