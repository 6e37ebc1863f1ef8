package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
)

// OrderFulfillment is one shipment covering part or all of an order.
type OrderFulfillment struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	FulfillmentNumber string                  `gorm:"column:fulfillment_number;not null;uniqueIndex"`
	Status            enums.FulfillmentStatus `gorm:"column:status;type:fulfillment_status;not null;default:'pending'"`
	TrackingNumber    *string                 `gorm:"column:tracking_number"`
	Carrier           *string                 `gorm:"column:carrier"`
	ShippedAt         *time.Time              `gorm:"column:shipped_at"`
	DeliveredAt       *time.Time              `gorm:"column:delivered_at"`
	Items             []FulfillmentItem       `gorm:"foreignKey:FulfillmentID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
