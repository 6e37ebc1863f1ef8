package models

import (
	"github.com/google/uuid"
)

// FulfillmentItem allocates a quantity of one order item to a fulfillment.
// The sum of allocations across live fulfillments never exceeds the ordered
// quantity.
type FulfillmentItem struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FulfillmentID uuid.UUID `gorm:"column:fulfillment_id;type:uuid;not null;index"`
	OrderItemID   uuid.UUID `gorm:"column:order_item_id;type:uuid;not null;index"`
	Quantity      int       `gorm:"column:quantity;not null"`
}
