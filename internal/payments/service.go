package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/internal/wallets"
	"github.com/shoplinkhq/shoplink-backend/pkg/db"
	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/gateway"
	"github.com/shoplinkhq/shoplink-backend/pkg/metrics"
	"github.com/shoplinkhq/shoplink-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Charger captures and settles customer funds with the payment gateway.
type Charger interface {
	Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error)
}

// WalletLedger credits escrow money to a wallet inside the payment
// transaction.
type WalletLedger interface {
	CreditTx(ctx context.Context, tx *gorm.DB, input wallets.EntryInput) (*models.Transaction, error)
}

// InitiateInput captures the data required to put an order's funds in escrow.
type InitiateInput struct {
	OrderID uuid.UUID
	Method  enums.PaymentMethod
	Amount  decimal.Decimal
}

// ReleaseInput captures the admin decision to pay the shop.
type ReleaseInput struct {
	PaymentID uuid.UUID
	AdminID   uuid.UUID
	Notes     *string
}

// RefundInput captures the decision to return funds to the customer.
type RefundInput struct {
	PaymentID uuid.UUID
	Reason    string
}

// PaymentEvent is the payload emitted on every payment transition.
type PaymentEvent struct {
	PaymentID uuid.UUID           `json:"payment_id"`
	OrderID   uuid.UUID           `json:"order_id"`
	Amount    decimal.Decimal     `json:"amount"`
	Status    enums.PaymentStatus `json:"status"`
}

// Service defines the escrow payment state machine.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*models.Payment, error)
	Release(ctx context.Context, input ReleaseInput) (*models.Payment, error)
	Refund(ctx context.Context, input RefundInput) (*models.Payment, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	charger Charger
	ledger  WalletLedger
	outbox  outboxPublisher
	metrics *metrics.MoneyMetrics
}

// NewService builds a payment service with the required dependencies.
func NewService(repo Repository, tx txRunner, charger Charger, ledger WalletLedger, outbox outboxPublisher, moneyMetrics *metrics.MoneyMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if charger == nil {
		return nil, fmt.Errorf("gateway charger required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		charger: charger,
		ledger:  ledger,
		outbox:  outbox,
		metrics: moneyMetrics,
	}, nil
}

// Initiate charges the gateway and records the payment as held in escrow.
// The gateway call happens before the transaction opens so a slow PSP never
// holds row locks.
func (s *service) Initiate(ctx context.Context, input InitiateInput) (*models.Payment, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.Method))
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.PaymentStatus != enums.OrderPaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid or refunded").
			WithDetails(map[string]any{"order_id": order.ID, "payment_status": order.PaymentStatus})
	}
	if _, err := s.repo.FindPaymentByOrder(ctx, input.OrderID); err == nil {
		return nil, duplicatePayment(input.OrderID)
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payment")
	}

	amount := input.Amount
	if amount.IsZero() {
		amount = order.TotalAmount
	}
	if !amount.Equal(order.TotalAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount does not match order total").
			WithDetails(map[string]any{
				"order_id": order.ID,
				"amount":   amount.String(),
				"total":    order.TotalAmount.String(),
			})
	}

	charge, err := s.charger.Charge(ctx, gateway.ChargeRequest{
		OrderID:  order.ID,
		Amount:   amount,
		Currency: order.Currency,
		Method:   input.Method,
	})
	if err != nil {
		return nil, err
	}

	var payment *models.Payment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := repo.FindOrderForUpdate(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if locked.PaymentStatus != enums.OrderPaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid or refunded").
				WithDetails(map[string]any{"order_id": locked.ID, "payment_status": locked.PaymentStatus})
		}

		paidAt := charge.PaidAt
		payment = &models.Payment{
			OrderID:       locked.ID,
			Amount:        amount,
			Method:        input.Method,
			TransactionID: charge.TransactionID,
			Status:        enums.PaymentStatusHeldByAdmin,
			PaidAt:        &paidAt,
		}
		if _, err := repo.CreatePayment(ctx, payment); err != nil {
			if db.IsUniqueViolation(err, "ux_payments_order") {
				return duplicatePayment(locked.ID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		if err := repo.UpdateOrder(ctx, locked.ID, map[string]any{
			"payment_status": enums.OrderPaymentStatusPaid,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}

		history := &models.OrderStatusHistory{
			OrderID: locked.ID,
			Status:  locked.Status,
			Note:    "payment received, funds held in escrow",
		}
		if err := repo.AppendStatusHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		return s.outbox.Emit(ctx, tx, s.paymentEvent(enums.EventPaymentInitiated, payment))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncPayment("initiate")
	return payment, nil
}

// Release moves escrowed funds to the shop wallet. Legal only while the
// payment is held_by_admin.
func (s *service) Release(ctx context.Context, input ReleaseInput) (*models.Payment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		payment, err = repo.FindPaymentForUpdate(ctx, input.PaymentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status != enums.PaymentStatusHeldByAdmin {
			return transitionError(payment, enums.PaymentStatusReleasedToShop)
		}

		order, err := repo.FindOrderForUpdate(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":      enums.PaymentStatusReleasedToShop,
			"released_at": now,
		}
		if input.Notes != nil {
			updates["admin_notes"] = *input.Notes
		}
		if err := repo.UpdatePayment(ctx, payment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		payment.Status = enums.PaymentStatusReleasedToShop
		payment.ReleasedAt = &now
		payment.AdminNotes = input.Notes

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status": enums.OrderStatusConfirmed,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}

		if _, err := s.ledger.CreditTx(ctx, tx, wallets.EntryInput{
			UserID:      order.ShopID,
			Amount:      payment.Amount,
			Description: fmt.Sprintf("escrow release for order %s", order.OrderNumber),
			Related:     &wallets.RelatedRef{Type: enums.RelatedTypePayment, ID: payment.ID},
		}); err != nil {
			return err
		}

		history := &models.OrderStatusHistory{
			OrderID: order.ID,
			Status:  enums.OrderStatusConfirmed,
			Note:    "escrow released to shop",
			ActorID: &input.AdminID,
		}
		if err := repo.AppendStatusHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		return s.outbox.Emit(ctx, tx, s.paymentEvent(enums.EventPaymentReleased, payment))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncPayment("release")
	return payment, nil
}

// Refund returns escrowed funds to the customer wallet and cancels the
// order. Refunding twice or refunding released funds is a state conflict.
func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Payment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		payment, err = repo.FindPaymentForUpdate(ctx, input.PaymentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status == enums.PaymentStatusRefunded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already refunded").
				WithDetails(map[string]any{"payment_id": payment.ID})
		}
		if payment.Status == enums.PaymentStatusReleasedToShop {
			return transitionError(payment, enums.PaymentStatusRefunded)
		}

		order, err := repo.FindOrderForUpdate(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		now := time.Now().UTC()
		if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":      enums.PaymentStatusRefunded,
			"refunded_at": now,
			"admin_notes": input.Reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		payment.Status = enums.PaymentStatusRefunded
		payment.RefundedAt = &now
		payment.AdminNotes = &input.Reason

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":         enums.OrderStatusCancelled,
			"payment_status": enums.OrderPaymentStatusRefunded,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		if _, err := s.ledger.CreditTx(ctx, tx, wallets.EntryInput{
			UserID:      order.CustomerID,
			Amount:      payment.Amount,
			Description: fmt.Sprintf("refund for order %s: %s", order.OrderNumber, input.Reason),
			Related:     &wallets.RelatedRef{Type: enums.RelatedTypePayment, ID: payment.ID},
		}); err != nil {
			return err
		}

		history := &models.OrderStatusHistory{
			OrderID: order.ID,
			Status:  enums.OrderStatusCancelled,
			Note:    fmt.Sprintf("payment refunded: %s", input.Reason),
		}
		if err := repo.AppendStatusHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		return s.outbox.Emit(ctx, tx, s.paymentEvent(enums.EventPaymentRefunded, payment))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncPayment("refund")
	return payment, nil
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	payment, err := s.repo.FindPaymentByOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) paymentEvent(eventType enums.OutboxEventType, payment *models.Payment) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Data: PaymentEvent{
			PaymentID: payment.ID,
			OrderID:   payment.OrderID,
			Amount:    payment.Amount,
			Status:    payment.Status,
		},
	}
}

func duplicatePayment(orderID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "payment already exists for order").
		WithDetails(map[string]any{"order_id": orderID})
}

func transitionError(payment *models.Payment, attempted enums.PaymentStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "payment state transition disallowed").
		WithDetails(map[string]any{
			"payment_id": payment.ID,
			"current":    payment.Status,
			"attempted":  attempted,
		})
}
