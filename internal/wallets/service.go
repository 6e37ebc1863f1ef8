package wallets

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/metrics"
	"github.com/shoplinkhq/shoplink-backend/pkg/money"
	"github.com/shoplinkhq/shoplink-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RelatedRef links a ledger entry to the record that caused it.
type RelatedRef struct {
	Type enums.RelatedType
	ID   uuid.UUID
}

// EntryInput carries the data shared by credit and debit operations.
type EntryInput struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Description string
	Related     *RelatedRef
}

// TransferInput captures a peer-to-peer wallet transfer.
type TransferInput struct {
	FromUserID  uuid.UUID
	ToUserID    uuid.UUID
	Amount      decimal.Decimal
	Description string
}

// TransferResult returns both legs of a completed transfer.
type TransferResult struct {
	Debit  *models.Transaction `json:"debit"`
	Credit *models.Transaction `json:"credit"`
}

// WalletTransferEvent is emitted when a transfer completes.
type WalletTransferEvent struct {
	TransferID uuid.UUID       `json:"transfer_id"`
	FromUserID uuid.UUID       `json:"from_user_id"`
	ToUserID   uuid.UUID       `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// Service defines the wallet ledger operations.
type Service interface {
	Credit(ctx context.Context, input EntryInput) (*models.Transaction, error)
	Debit(ctx context.Context, input EntryInput) (*models.Transaction, error)
	Transfer(ctx context.Context, input TransferInput) (*TransferResult, error)
	Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	CreditTx(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.Transaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.Transaction, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.MoneyMetrics
}

// NewService builds a wallet service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, moneyMetrics *metrics.MoneyMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallets repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, metrics: moneyMetrics}, nil
}

func (s *service) Credit(ctx context.Context, input EntryInput) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.CreditTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// CreditTx increases a wallet balance inside the caller's transaction. The
// wallet is created on first credit.
func (s *service) CreditTx(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.Transaction, error) {
	if err := validateEntry(input); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	wallet, err := s.lockOrCreateWallet(ctx, repo, input.UserID)
	if err != nil {
		return nil, err
	}

	newBalance := money.Round2(wallet.Balance.Add(input.Amount))
	if err := repo.UpdateBalance(ctx, wallet.ID, newBalance); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balance")
	}

	txn, err := s.appendEntry(ctx, repo, wallet.ID, enums.TransactionTypeCredit, input)
	if err != nil {
		return nil, err
	}
	s.metrics.IncWalletOp("credit", "ok")
	return txn, nil
}

func (s *service) Debit(ctx context.Context, input EntryInput) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.DebitTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// DebitTx decreases a wallet balance inside the caller's transaction. The
// balance check and the write happen under the same row lock; on a short
// balance no transaction is created and a typed INSUFFICIENT_BALANCE error
// is the canonical failure signal.
func (s *service) DebitTx(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.Transaction, error) {
	if err := validateEntry(input); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	wallet, err := repo.FindByUserForUpdate(ctx, input.UserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found").
				WithDetails(map[string]any{"user_id": input.UserID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	if wallet.Balance.LessThan(input.Amount) {
		s.metrics.IncWalletOp("debit", "insufficient_balance")
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "wallet balance too low").
			WithDetails(map[string]any{
				"user_id":   input.UserID,
				"balance":   wallet.Balance.String(),
				"requested": input.Amount.String(),
			})
	}

	newBalance := money.Round2(wallet.Balance.Sub(input.Amount))
	if err := repo.UpdateBalance(ctx, wallet.ID, newBalance); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balance")
	}

	txn, err := s.appendEntry(ctx, repo, wallet.ID, enums.TransactionTypeDebit, input)
	if err != nil {
		return nil, err
	}
	s.metrics.IncWalletOp("debit", "ok")
	return txn, nil
}

// Transfer debits the sender then credits the receiver in one transaction.
// Wallets are locked in a fixed order by user id so two opposing transfers
// cannot deadlock.
func (s *service) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if input.FromUserID == uuid.Nil || input.ToUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "both user ids required")
	}
	if input.FromUserID == input.ToUserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer to the same wallet")
	}
	if !money.IsPositive(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	transferID := uuid.New()
	related := &RelatedRef{Type: enums.RelatedTypeTransfer, ID: transferID}
	description := input.Description
	if description == "" {
		description = "wallet transfer"
	}

	var result *TransferResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Lock order is fixed by user id, not by transfer direction.
		first, second := input.FromUserID, input.ToUserID
		if strings.Compare(second.String(), first.String()) < 0 {
			first, second = second, first
		}
		if _, err := repo.FindByUserForUpdate(ctx, first); err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
		}
		if _, err := repo.FindByUserForUpdate(ctx, second); err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
		}

		debit, err := s.DebitTx(ctx, tx, EntryInput{
			UserID:      input.FromUserID,
			Amount:      input.Amount,
			Description: description,
			Related:     related,
		})
		if err != nil {
			return err
		}
		credit, err := s.CreditTx(ctx, tx, EntryInput{
			UserID:      input.ToUserID,
			Amount:      input.Amount,
			Description: description,
			Related:     related,
		})
		if err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventWalletTransfer,
			AggregateType: enums.AggregateWallet,
			AggregateID:   debit.WalletID,
			Version:       1,
			Data: WalletTransferEvent{
				TransferID: transferID,
				FromUserID: input.FromUserID,
				ToUserID:   input.ToUserID,
				Amount:     input.Amount,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		result = &TransferResult{Debit: debit, Credit: credit}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncWalletOp("transfer", "ok")
	return result, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	wallet, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) lockOrCreateWallet(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := repo.FindByUserForUpdate(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	created, err := repo.CreateWallet(ctx, &models.Wallet{
		UserID:   userID,
		Balance:  decimal.Zero,
		Currency: enums.CurrencyUSD,
	})
	if err == nil {
		return created, nil
	}
	// A concurrent first credit can win the insert; fall back to its row.
	wallet, findErr := repo.FindByUserForUpdate(ctx, userID)
	if findErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	return wallet, nil
}

func (s *service) appendEntry(ctx context.Context, repo Repository, walletID uuid.UUID, entryType enums.TransactionType, input EntryInput) (*models.Transaction, error) {
	txn := &models.Transaction{
		WalletID:    walletID,
		Type:        entryType,
		Amount:      input.Amount,
		Status:      enums.TransactionStatusCompleted,
		Reference:   newReference(),
		Description: input.Description,
	}
	if input.Related != nil {
		relatedType := input.Related.Type
		relatedID := input.Related.ID
		txn.RelatedType = &relatedType
		txn.RelatedID = &relatedID
	}
	created, err := repo.CreateTransaction(ctx, txn)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}
	return created, nil
}

func validateEntry(input EntryInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !money.IsPositive(input.Amount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.Description == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	return nil
}

func newReference() string {
	return "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
