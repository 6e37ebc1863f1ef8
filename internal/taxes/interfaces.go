package taxes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
)

// Repository defines persistence operations for tax configuration and the
// order fields the tax engine writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActiveRates(ctx context.Context) ([]models.TaxRate, error)
	FindRate(ctx context.Context, rateID uuid.UUID) (*models.TaxRate, error)
	FindProductOverride(ctx context.Context, productID uuid.UUID) (*models.ProductTax, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}
