package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
)

// Payment models escrowed funds for exactly one order. Amount snapshots the
// order total at initiation. Status only ever moves
// pending_admin -> held_by_admin -> {released_to_shop | refunded}.
// A payment outlives its order; there is no cascade from orders.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_payments_order"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Method        enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	TransactionID string              `gorm:"column:transaction_id;not null;uniqueIndex"`
	Status        enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending_admin'"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	ReleasedAt    *time.Time          `gorm:"column:released_at"`
	RefundedAt    *time.Time          `gorm:"column:refunded_at"`
	AdminNotes    *string             `gorm:"column:admin_notes"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
