package wallets

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
)

// Repository defines persistence operations for wallets and their ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWallet(ctx context.Context, wallet *models.Wallet) (*models.Wallet, error)
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	UpdateBalance(ctx context.Context, walletID uuid.UUID, balance decimal.Decimal) error
	CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	FindTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.Transaction, error)
}
