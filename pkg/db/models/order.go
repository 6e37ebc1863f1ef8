package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
)

// Order is the aggregate root every money-moving subsystem reads or mutates.
// Invariant: TotalAmount == SubtotalAmount - DiscountAmount + TaxAmount once
// any mutation settles.
type Order struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber    string                   `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID     uuid.UUID                `gorm:"column:customer_id;type:uuid;not null"`
	ShopID         uuid.UUID                `gorm:"column:shop_id;type:uuid;not null"`
	Status         enums.OrderStatus        `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus  enums.OrderPaymentStatus `gorm:"column:payment_status;type:order_payment_status;not null;default:'pending'"`
	Currency       enums.Currency           `gorm:"column:currency;type:text;not null;default:'USD'"`
	SubtotalAmount decimal.Decimal          `gorm:"column:subtotal_amount;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal          `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	TaxAmount      decimal.Decimal          `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	TotalAmount    decimal.Decimal          `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CouponCode     *string                  `gorm:"column:coupon_code"`
	Items          []OrderItem              `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Fulfillments   []OrderFulfillment       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
