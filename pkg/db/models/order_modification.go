package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	"github.com/shoplinkhq/shoplink-backend/pkg/types"
)

// OrderModification is a proposed structural edit to a placed order. The
// change payload is a tagged variant so approval can replay it
// deterministically; OldValue/NewValue snapshot the affected items and
// totals around the edit.
type OrderModification struct {
	ID         uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID                   `gorm:"column:order_id;type:uuid;not null;index"`
	Type       enums.ModificationType      `gorm:"column:type;type:modification_type;not null"`
	Change     types.ModificationChange    `gorm:"column:change;type:jsonb;serializer:json;not null"`
	OldValue   *types.ModificationSnapshot `gorm:"column:old_value;type:jsonb;serializer:json"`
	NewValue   *types.ModificationSnapshot `gorm:"column:new_value;type:jsonb;serializer:json"`
	Status     enums.ModificationStatus    `gorm:"column:status;type:modification_status;not null;default:'pending'"`
	CreatedBy  uuid.UUID                   `gorm:"column:created_by;type:uuid;not null"`
	ApprovedBy *uuid.UUID                  `gorm:"column:approved_by;type:uuid"`
	CreatedAt  time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
