package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/internal/wallets"
	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/gateway"
	"github.com/shoplinkhq/shoplink-backend/pkg/outbox"
)

type stubPaymentsRepo struct {
	payments map[uuid.UUID]*models.Payment
	orders   map[uuid.UUID]*models.Order
	history  []models.OrderStatusHistory
}

func newStubPaymentsRepo() *stubPaymentsRepo {
	return &stubPaymentsRepo{
		payments: make(map[uuid.UUID]*models.Payment),
		orders:   make(map[uuid.UUID]*models.Order),
	}
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubPaymentsRepo) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	for _, existing := range s.payments {
		if existing.OrderID == payment.OrderID {
			return nil, gorm.ErrDuplicatedKey
		}
	}
	s.payments[payment.ID] = payment
	return payment, nil
}

func (s *stubPaymentsRepo) FindPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, ok := s.payments[paymentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return payment, nil
}

func (s *stubPaymentsRepo) FindPaymentForUpdate(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	return s.FindPayment(ctx, paymentID)
}

func (s *stubPaymentsRepo) FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	for _, payment := range s.payments {
		if payment.OrderID == orderID {
			return payment, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPaymentsRepo) UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	payment, ok := s.payments[paymentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"].(enums.PaymentStatus); ok {
		payment.Status = status
	}
	return nil
}

func (s *stubPaymentsRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubPaymentsRepo) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.FindOrder(ctx, orderID)
}

func (s *stubPaymentsRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	order, ok := s.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"].(enums.OrderStatus); ok {
		order.Status = status
	}
	if paymentStatus, ok := updates["payment_status"].(enums.OrderPaymentStatus); ok {
		order.PaymentStatus = paymentStatus
	}
	return nil
}

func (s *stubPaymentsRepo) AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	s.history = append(s.history, *entry)
	return nil
}

type stubCharger struct {
	err     error
	charges []gateway.ChargeRequest
}

func (s *stubCharger) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.charges = append(s.charges, req)
	return &gateway.ChargeResult{TransactionID: "txn_test", PaidAt: time.Now().UTC()}, nil
}

type stubLedger struct {
	credits []wallets.EntryInput
	err     error
}

func (s *stubLedger) CreditTx(ctx context.Context, tx *gorm.DB, input wallets.EntryInput) (*models.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.credits = append(s.credits, input)
	return &models.Transaction{ID: uuid.New(), Amount: input.Amount}, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type paymentFixture struct {
	repo      *stubPaymentsRepo
	charger   *stubCharger
	ledger    *stubLedger
	publisher *stubOutboxPublisher
	svc       Service
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		repo:      newStubPaymentsRepo(),
		charger:   &stubCharger{},
		ledger:    &stubLedger{},
		publisher: &stubOutboxPublisher{},
	}
	svc, err := NewService(f.repo, stubTxRunner{}, f.charger, f.ledger, f.publisher, nil)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	f.svc = svc
	return f
}

func (f *paymentFixture) seedOrder(total decimal.Decimal) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-TEST00000001",
		CustomerID:    uuid.New(),
		ShopID:        uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.OrderPaymentStatusPending,
		TotalAmount:   total,
		Currency:      enums.CurrencyUSD,
	}
	f.repo.orders[order.ID] = order
	return order
}

func TestInitiateHoldsFundsInEscrow(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(decimal.NewFromInt(210))

	payment, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if payment.Status != enums.PaymentStatusHeldByAdmin {
		t.Fatalf("expected held_by_admin, got %s", payment.Status)
	}
	if !payment.Amount.Equal(order.TotalAmount) {
		t.Fatalf("expected amount %s, got %s", order.TotalAmount, payment.Amount)
	}
	if payment.PaidAt == nil {
		t.Fatal("expected paid_at to be set")
	}
	if order.PaymentStatus != enums.OrderPaymentStatusPaid {
		t.Fatalf("expected order marked paid, got %s", order.PaymentStatus)
	}
	if len(f.charger.charges) != 1 {
		t.Fatalf("expected one gateway charge, got %d", len(f.charger.charges))
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].EventType != enums.EventPaymentInitiated {
		t.Fatalf("expected payment initiated event, got %+v", f.publisher.events)
	}
}

func TestInitiateRejectsAmountMismatch(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(decimal.NewFromInt(210))

	_, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCard,
		Amount:  decimal.NewFromInt(200),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.charger.charges) != 0 {
		t.Fatal("gateway must not be charged on a rejected amount")
	}
}

func TestInitiateRejectsSecondPayment(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(decimal.NewFromInt(100))

	if _, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCard,
	}); err != nil {
		t.Fatalf("first initiate failed: %v", err)
	}

	_, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCard,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on paid order, got %v", err)
	}
}

func TestReleaseCreditsShopWallet(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(decimal.NewFromInt(150))
	payment, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodWallet,
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	released, err := f.svc.Release(context.Background(), ReleaseInput{
		PaymentID: payment.ID,
		AdminID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if released.Status != enums.PaymentStatusReleasedToShop {
		t.Fatalf("expected released_to_shop, got %s", released.Status)
	}
	if released.ReleasedAt == nil {
		t.Fatal("expected released_at to be set")
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected order confirmed, got %s", order.Status)
	}
	if len(f.ledger.credits) != 1 {
		t.Fatalf("expected one wallet credit, got %d", len(f.ledger.credits))
	}
	credit := f.ledger.credits[0]
	if credit.UserID != order.ShopID {
		t.Fatalf("expected credit to shop %s, got %s", order.ShopID, credit.UserID)
	}
	if !credit.Amount.Equal(payment.Amount) {
		t.Fatalf("expected credit of %s, got %s", payment.Amount, credit.Amount)
	}
}

func TestReleaseTwiceIsStateConflict(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(decimal.NewFromInt(150))
	payment, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	adminID := uuid.New()
	if _, err := f.svc.Release(context.Background(), ReleaseInput{PaymentID: payment.ID, AdminID: adminID}); err != nil {
		t.Fatalf("first release failed: %v", err)
	}

	_, err = f.svc.Release(context.Background(), ReleaseInput{PaymentID: payment.ID, AdminID: adminID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on double release, got %v", err)
	}
	if len(f.ledger.credits) != 1 {
		t.Fatalf("shop must be credited exactly once, got %d credits", len(f.ledger.credits))
	}
}

func TestRefundReturnsFundsToCustomer(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(decimal.NewFromInt(80))
	payment, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	refunded, err := f.svc.Refund(context.Background(), RefundInput{
		PaymentID: payment.ID,
		Reason:    "item out of stock",
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.Status != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", refunded.Status)
	}
	if order.Status != enums.OrderStatusCancelled || order.PaymentStatus != enums.OrderPaymentStatusRefunded {
		t.Fatalf("expected cancelled refunded order, got %s/%s", order.Status, order.PaymentStatus)
	}
	if len(f.ledger.credits) != 1 || f.ledger.credits[0].UserID != order.CustomerID {
		t.Fatalf("expected refund credit to customer, got %+v", f.ledger.credits)
	}
	if len(f.publisher.events) != 2 || f.publisher.events[1].EventType != enums.EventPaymentRefunded {
		t.Fatalf("expected refund event, got %+v", f.publisher.events)
	}
}

func TestRefundAfterReleaseRejected(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(decimal.NewFromInt(80))
	payment, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if _, err := f.svc.Release(context.Background(), ReleaseInput{PaymentID: payment.ID, AdminID: uuid.New()}); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	_, err = f.svc.Refund(context.Background(), RefundInput{PaymentID: payment.ID, Reason: "buyer remorse"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict refunding released funds, got %v", err)
	}
}

func TestRefundTwiceRejected(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(decimal.NewFromInt(80))
	payment, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if _, err := f.svc.Refund(context.Background(), RefundInput{PaymentID: payment.ID, Reason: "first"}); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	_, err = f.svc.Refund(context.Background(), RefundInput{PaymentID: payment.ID, Reason: "second"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on double refund, got %v", err)
	}
	if len(f.ledger.credits) != 1 {
		t.Fatalf("customer must be credited exactly once, got %d credits", len(f.ledger.credits))
	}
}

func TestGatewayDeclineAbortsInitiate(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(decimal.NewFromInt(50))
	f.charger.err = pkgerrors.New(pkgerrors.CodeDependency, "gateway declined the charge")

	_, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCard,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(f.repo.payments) != 0 {
		t.Fatal("no payment row may exist after a declined charge")
	}
	if order.PaymentStatus != enums.OrderPaymentStatusPending {
		t.Fatalf("order payment status must stay pending, got %s", order.PaymentStatus)
	}
}
