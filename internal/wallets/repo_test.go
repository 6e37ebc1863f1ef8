package wallets

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
)

func setupWalletsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	wallets := `
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  balance NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'USD',
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  reference TEXT NOT NULL UNIQUE,
  description TEXT NOT NULL,
  related_type TEXT,
  related_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(wallets).Error)
	require.NoError(t, db.Exec(transactions).Error)
	return db
}

func newWallet(t *testing.T, repo Repository, balance decimal.Decimal) *models.Wallet {
	t.Helper()

	wallet := &models.Wallet{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Balance:  balance,
		Currency: enums.CurrencyUSD,
	}
	created, err := repo.CreateWallet(context.Background(), wallet)
	require.NoError(t, err)
	return created
}

func TestRepositoryCreateAndFindWallet(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	wallet := newWallet(t, repo, decimal.NewFromInt(100))

	found, err := repo.FindByUser(ctx, wallet.UserID)
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, found.ID)
	assert.True(t, found.Balance.Equal(decimal.NewFromInt(100)))

	_, err = repo.FindByUser(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUniqueWalletPerUser(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	wallet := newWallet(t, repo, decimal.Zero)

	_, err := repo.CreateWallet(ctx, &models.Wallet{
		ID:       uuid.New(),
		UserID:   wallet.UserID,
		Balance:  decimal.Zero,
		Currency: enums.CurrencyUSD,
	})
	assert.Error(t, err)
}

func TestRepositoryUpdateBalance(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	wallet := newWallet(t, repo, decimal.NewFromInt(100))
	require.NoError(t, repo.UpdateBalance(ctx, wallet.ID, decimal.RequireFromString("42.50")))

	found, err := repo.FindByUser(ctx, wallet.UserID)
	require.NoError(t, err)
	assert.True(t, found.Balance.Equal(decimal.RequireFromString("42.50")))
}

func TestRepositoryTransactionsNewestFirst(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	wallet := newWallet(t, repo, decimal.NewFromInt(100))
	now := time.Now().UTC()
	older := &models.Transaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Type:        enums.TransactionTypeCredit,
		Amount:      decimal.NewFromInt(100),
		Status:      enums.TransactionStatusCompleted,
		Reference:   newReference(),
		Description: "top-up",
		CreatedAt:   now.Add(-time.Minute),
	}
	_, err := repo.CreateTransaction(ctx, older)
	require.NoError(t, err)
	newer := &models.Transaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Type:        enums.TransactionTypeDebit,
		Amount:      decimal.NewFromInt(40),
		Status:      enums.TransactionStatusCompleted,
		Reference:   newReference(),
		Description: "purchase",
		CreatedAt:   now,
	}
	_, err = repo.CreateTransaction(ctx, newer)
	require.NoError(t, err)

	txns, err := repo.FindTransactions(ctx, wallet.ID, 10)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "purchase", txns[0].Description)
	assert.Equal(t, "top-up", txns[1].Description)
}

func TestRepositoryUniqueReference(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	wallet := newWallet(t, repo, decimal.NewFromInt(100))
	reference := newReference()
	_, err := repo.CreateTransaction(ctx, &models.Transaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Type:        enums.TransactionTypeCredit,
		Amount:      decimal.NewFromInt(10),
		Status:      enums.TransactionStatusCompleted,
		Reference:   reference,
		Description: "first",
	})
	require.NoError(t, err)

	_, err = repo.CreateTransaction(ctx, &models.Transaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Type:        enums.TransactionTypeCredit,
		Amount:      decimal.NewFromInt(10),
		Status:      enums.TransactionStatusCompleted,
		Reference:   reference,
		Description: "duplicate",
	})
	assert.Error(t, err)
}
