package modifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
)

// Repository defines persistence operations for the modification workflow
// and the order/item/product rows an approval replays against.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateModification(ctx context.Context, modification *models.OrderModification) (*models.OrderModification, error)
	FindModification(ctx context.Context, modificationID uuid.UUID) (*models.OrderModification, error)
	FindModificationForUpdate(ctx context.Context, modificationID uuid.UUID) (*models.OrderModification, error)
	UpdateModification(ctx context.Context, modificationID uuid.UUID, updates map[string]any) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindOrderItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error)
	FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	CreateOrderItem(ctx context.Context, item *models.OrderItem) (*models.OrderItem, error)
	UpdateOrderItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error
	DeleteOrderItem(ctx context.Context, itemID uuid.UUID) error
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	FindProductForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	AdjustProductStock(ctx context.Context, productID uuid.UUID, delta int) error
	AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error
}
