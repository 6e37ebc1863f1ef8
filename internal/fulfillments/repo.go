package fulfillments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a fulfillments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateFulfillment(ctx context.Context, fulfillment *models.OrderFulfillment) (*models.OrderFulfillment, error) {
	if err := r.db.WithContext(ctx).Omit("Items").Create(fulfillment).Error; err != nil {
		return nil, err
	}
	return fulfillment, nil
}

func (r *repository) CreateFulfillmentItems(ctx context.Context, items []models.FulfillmentItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindFulfillment(ctx context.Context, fulfillmentID uuid.UUID) (*models.OrderFulfillment, error) {
	var fulfillment models.OrderFulfillment
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", fulfillmentID).
		First(&fulfillment).Error
	if err != nil {
		return nil, err
	}
	return &fulfillment, nil
}

func (r *repository) FindFulfillmentForUpdate(ctx context.Context, fulfillmentID uuid.UUID) (*models.OrderFulfillment, error) {
	var fulfillment models.OrderFulfillment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", fulfillmentID).
		First(&fulfillment).Error
	if err != nil {
		return nil, err
	}
	return &fulfillment, nil
}

func (r *repository) UpdateFulfillment(ctx context.Context, fulfillmentID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderFulfillment{}).
		Where("id = ?", fulfillmentID).
		Updates(updates).Error
}

func (r *repository) FindFulfillmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderFulfillment, error) {
	var fulfillments []models.OrderFulfillment
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&fulfillments).Error
	if err != nil {
		return nil, err
	}
	return fulfillments, nil
}

func (r *repository) AllocatedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	return r.sumQuantities(ctx, orderID, "f.status <> ?", enums.FulfillmentStatusCancelled)
}

func (r *repository) DeliveredQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	return r.sumQuantities(ctx, orderID, "f.status = ?", enums.FulfillmentStatusDelivered)
}

func (r *repository) sumQuantities(ctx context.Context, orderID uuid.UUID, statusCond string, statusArg enums.FulfillmentStatus) (map[uuid.UUID]int, error) {
	type row struct {
		OrderItemID uuid.UUID
		Total       int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Table("fulfillment_items AS fi").
		Select("fi.order_item_id AS order_item_id, COALESCE(SUM(fi.quantity), 0) AS total").
		Joins("JOIN order_fulfillments AS f ON f.id = fi.fulfillment_id").
		Where("f.order_id = ?", orderID).
		Where(statusCond, statusArg).
		Group("fi.order_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[uuid.UUID]int, len(rows))
	for _, entry := range rows {
		totals[entry.OrderItemID] = entry.Total
	}
	return totals, nil
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
