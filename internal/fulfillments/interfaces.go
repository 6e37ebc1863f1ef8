package fulfillments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
)

// Repository defines persistence operations for fulfillments and the order
// rows the tracker reads and advances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateFulfillment(ctx context.Context, fulfillment *models.OrderFulfillment) (*models.OrderFulfillment, error)
	CreateFulfillmentItems(ctx context.Context, items []models.FulfillmentItem) error
	FindFulfillment(ctx context.Context, fulfillmentID uuid.UUID) (*models.OrderFulfillment, error)
	FindFulfillmentForUpdate(ctx context.Context, fulfillmentID uuid.UUID) (*models.OrderFulfillment, error)
	UpdateFulfillment(ctx context.Context, fulfillmentID uuid.UUID, updates map[string]any) error
	FindFulfillmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderFulfillment, error)
	// AllocatedQuantities sums live (non-cancelled) allocations per order item.
	AllocatedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error)
	// DeliveredQuantities sums delivered allocations per order item.
	DeliveredQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error
}
