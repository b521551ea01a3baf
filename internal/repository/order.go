package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"beatstore/internal/model"
)

type OrderRepository interface {
	// Create persists an order together with its items in one call. The
	// caller runs it inside a transaction.
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	ExistsBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (bool, error)
	// CountCreatedSince counts orders created at or after the given instant.
	// Used for daily order numbering, inside the same transaction as Create.
	CountCreatedSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error)

	FindByID(ctx context.Context, id string) (*model.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*model.Order, error)
	List(ctx context.Context, limit, offset int) ([]*model.Order, error)
	UpdateNotes(ctx context.Context, id, notes string) error

	// UpdateStatusBySessionID transitions orders matching the session id and
	// currently in one of fromStatuses. Returns rows affected; zero is a
	// legitimate no-op under out-of-order event delivery.
	UpdateStatusBySessionID(ctx context.Context, sessionID string, fromStatuses []string, to string) (int64, error)
	UpdateStatusByPaymentID(ctx context.Context, paymentID string, fromStatuses []string, to string) (int64, error)

	// UserOwnsPaidTrack reports whether the user has a paid order containing
	// the track. Gate for signed download URLs.
	UserOwnsPaidTrack(ctx context.Context, userID, trackID string) (bool, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{db: db}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) ExistsBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.Order{}).
		Where("stripe_session_id = ?", sessionID).
		Count(&count).Error

	return count > 0, err
}

func (r *orderRepoImpl) CountCreatedSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.Order{}).
		Where("created_at >= ?", since).
		Count(&count).Error

	return count, err
}

func (r *orderRepoImpl) FindByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindBySessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("stripe_session_id = ?", sessionID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) List(ctx context.Context, limit, offset int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) UpdateNotes(ctx context.Context, id, notes string) error {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"notes":      notes,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *orderRepoImpl) UpdateStatusBySessionID(ctx context.Context, sessionID string, fromStatuses []string, to string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("stripe_session_id = ? AND status IN ?", sessionID, fromStatuses).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	return result.RowsAffected, result.Error
}

func (r *orderRepoImpl) UpdateStatusByPaymentID(ctx context.Context, paymentID string, fromStatuses []string, to string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("stripe_payment_id = ? AND status IN ?", paymentID, fromStatuses).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	return result.RowsAffected, result.Error
}

func (r *orderRepoImpl) UserOwnsPaidTrack(ctx context.Context, userID, trackID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.status = ? AND order_items.track_id = ?",
			userID, model.OrderStatusPaid, trackID).
		Count(&count).Error

	return count > 0, err
}
