package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/shoplinkhq/shoplink-backend/pkg/db/types"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
)

// Coupon is a reusable discount code. UsageCount never exceeds UsageLimit
// when a limit is set.
type Coupon struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code              string              `gorm:"column:code;not null;uniqueIndex:ux_coupons_code"`
	DiscountType      enums.DiscountType  `gorm:"column:discount_type;type:discount_type;not null"`
	DiscountValue     decimal.Decimal     `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinOrderAmount    decimal.Decimal     `gorm:"column:min_order_amount;type:numeric(12,2);not null;default:0"`
	MaxDiscountAmount *decimal.Decimal    `gorm:"column:max_discount_amount;type:numeric(12,2)"`
	UsageLimit        *int                `gorm:"column:usage_limit"`
	UsageCount        int                 `gorm:"column:usage_count;not null;default:0"`
	ValidFrom         time.Time           `gorm:"column:valid_from;not null"`
	ValidUntil        time.Time           `gorm:"column:valid_until;not null"`
	ApplicableTo      enums.Applicability `gorm:"column:applicable_to;type:applicability;not null;default:'all'"`
	ApplicableIDs     dbtypes.UUIDArray   `gorm:"column:applicable_ids;type:uuid[]"`
	IsActive          bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
