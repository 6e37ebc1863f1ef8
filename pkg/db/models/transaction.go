package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
)

// Transaction is one append-only ledger entry against a wallet.
type Transaction struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID    uuid.UUID               `gorm:"column:wallet_id;type:uuid;not null;index"`
	Type        enums.TransactionType   `gorm:"column:type;type:transaction_type;not null"`
	Amount      decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Status      enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending'"`
	Reference   string                  `gorm:"column:reference;not null;uniqueIndex"`
	Description string                  `gorm:"column:description;not null"`
	RelatedType *enums.RelatedType      `gorm:"column:related_type;type:related_type"`
	RelatedID   *uuid.UUID              `gorm:"column:related_id;type:uuid"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
