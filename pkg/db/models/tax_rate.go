package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/shoplinkhq/shoplink-backend/pkg/db/types"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
)

// TaxRate is one percentage rate scoped by applicability. Resolution picks a
// single rate per product; rates never stack across tiers.
type TaxRate struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string              `gorm:"column:name;not null"`
	Rate          decimal.Decimal     `gorm:"column:rate;type:numeric(6,3);not null"`
	TaxType       enums.TaxType       `gorm:"column:tax_type;type:tax_type;not null"`
	ApplicableTo  enums.Applicability `gorm:"column:applicable_to;type:applicability;not null;default:'all'"`
	ApplicableIDs dbtypes.UUIDArray   `gorm:"column:applicable_ids;type:uuid[]"`
	IsActive      bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
