package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductTax pins a product to an explicit tax rate, overriding category,
// shop and global resolution.
type ProductTax struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_taxes_product"`
	TaxRateID uuid.UUID `gorm:"column:tax_rate_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
