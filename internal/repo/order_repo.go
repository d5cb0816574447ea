// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for credit
// purchase orders.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elinhq/go-ask-backend/internal/domain"
)

// CreateOrder inserts an Order row. A unique violation on the per-user
// idempotency key maps to ErrDuplicate; callers then re-read the existing
// order and replay it.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetOrder fetches an order by id scoped to its owner, or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderByKey fetches the order created under (userID, idempotencyKey),
// or ErrNotFound.
func GetOrderByKey(ctx context.Context, db *gorm.DB, userID, key string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkOrderPaid sets the order status to paid and stamps paid_at once.
func MarkOrderPaid(ctx context.Context, db *gorm.DB, id string, paidAt time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  domain.OrderPaid,
			"paid_at": gorm.Expr("COALESCE(paid_at, ?)", paidAt),
		}).Error
}
