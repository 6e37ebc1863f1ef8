package coupons

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
)

// Repository defines persistence operations for coupons, their usage trail
// and the order fields the discount engine writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByCodeForUpdate(ctx context.Context, code string) (*models.Coupon, error)
	IncrementUsage(ctx context.Context, couponID uuid.UUID) error
	CreateUsage(ctx context.Context, usage *models.CouponUsage) error
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}
