package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/internal/coupons"
	"github.com/shoplinkhq/shoplink-backend/internal/fulfillments"
	"github.com/shoplinkhq/shoplink-backend/internal/modifications"
	"github.com/shoplinkhq/shoplink-backend/internal/orders"
	"github.com/shoplinkhq/shoplink-backend/internal/payments"
	"github.com/shoplinkhq/shoplink-backend/internal/taxes"
	"github.com/shoplinkhq/shoplink-backend/internal/wallets"
	"github.com/shoplinkhq/shoplink-backend/pkg/config"
	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubIdempotencyStore struct {
	entries map[string]string
}

func newStubIdempotencyStore() *stubIdempotencyStore {
	return &stubIdempotencyStore{entries: make(map[string]string)}
}

func (s *stubIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	return s.entries[key], nil
}

func (s *stubIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.entries[key]; ok {
		return false, nil
	}
	s.entries[key] = value.(string)
	return true, nil
}

func (s *stubIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (s *stubIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

type stubOrdersService struct {
	createCalls int
	order       *models.Order
}

func (s *stubOrdersService) Create(ctx context.Context, input orders.CreateInput) (*models.Order, error) {
	s.createCalls++
	return s.order, nil
}

func (s *stubOrdersService) Get(ctx context.Context, orderID uuid.UUID) (*orders.OrderDetail, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &orders.OrderDetail{Order: s.order}, nil
}

type stubPaymentsService struct {
	initiateCalls int
	payment       *models.Payment
}

func (s *stubPaymentsService) Initiate(ctx context.Context, input payments.InitiateInput) (*models.Payment, error) {
	s.initiateCalls++
	return s.payment, nil
}

func (s *stubPaymentsService) Release(ctx context.Context, input payments.ReleaseInput) (*models.Payment, error) {
	return s.payment, nil
}

func (s *stubPaymentsService) Refund(ctx context.Context, input payments.RefundInput) (*models.Payment, error) {
	return s.payment, nil
}

func (s *stubPaymentsService) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	return s.payment, nil
}

type stubWalletsService struct {
	transferCalls int
}

func (s *stubWalletsService) Credit(ctx context.Context, input wallets.EntryInput) (*models.Transaction, error) {
	return &models.Transaction{ID: uuid.New(), Amount: input.Amount}, nil
}

func (s *stubWalletsService) Debit(ctx context.Context, input wallets.EntryInput) (*models.Transaction, error) {
	return &models.Transaction{ID: uuid.New(), Amount: input.Amount}, nil
}

func (s *stubWalletsService) Transfer(ctx context.Context, input wallets.TransferInput) (*wallets.TransferResult, error) {
	s.transferCalls++
	return &wallets.TransferResult{}, nil
}

func (s *stubWalletsService) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return &models.Wallet{ID: uuid.New(), UserID: userID}, nil
}

func (s *stubWalletsService) CreditTx(ctx context.Context, tx *gorm.DB, input wallets.EntryInput) (*models.Transaction, error) {
	return s.Credit(ctx, input)
}

func (s *stubWalletsService) DebitTx(ctx context.Context, tx *gorm.DB, input wallets.EntryInput) (*models.Transaction, error) {
	return s.Debit(ctx, input)
}

type stubCouponsService struct{}

func (stubCouponsService) Validate(ctx context.Context, input coupons.ValidateInput) (*coupons.ValidationResult, error) {
	return &coupons.ValidationResult{OK: true}, nil
}

func (stubCouponsService) Apply(ctx context.Context, orderID uuid.UUID, code string) (decimal.Decimal, error) {
	return decimal.NewFromInt(10), nil
}

type stubTaxesService struct{}

func (stubTaxesService) ResolveRate(ctx context.Context, product models.Product) (*models.TaxRate, error) {
	return nil, nil
}

func (stubTaxesService) CalculateOrderTax(ctx context.Context, orderID uuid.UUID) (*taxes.TaxResult, error) {
	return &taxes.TaxResult{TotalTax: decimal.Zero}, nil
}

type stubModificationsService struct{}

func (stubModificationsService) Request(ctx context.Context, input modifications.RequestInput) (*models.OrderModification, error) {
	return &models.OrderModification{ID: uuid.New(), Status: enums.ModificationStatusPending}, nil
}

func (stubModificationsService) Approve(ctx context.Context, input modifications.DecisionInput) (*models.OrderModification, error) {
	return &models.OrderModification{ID: input.ModificationID, Status: enums.ModificationStatusApproved}, nil
}

func (stubModificationsService) Reject(ctx context.Context, input modifications.DecisionInput) (*models.OrderModification, error) {
	return &models.OrderModification{ID: input.ModificationID, Status: enums.ModificationStatusRejected}, nil
}

type stubFulfillmentsService struct{}

func (stubFulfillmentsService) Create(ctx context.Context, input fulfillments.CreateInput) (*models.OrderFulfillment, error) {
	return &models.OrderFulfillment{ID: uuid.New(), Status: enums.FulfillmentStatusPending}, nil
}

func (stubFulfillmentsService) Ship(ctx context.Context, input fulfillments.ShipInput) (*models.OrderFulfillment, error) {
	return &models.OrderFulfillment{ID: input.FulfillmentID, Status: enums.FulfillmentStatusShipped}, nil
}

func (stubFulfillmentsService) Deliver(ctx context.Context, fulfillmentID uuid.UUID) (*models.OrderFulfillment, error) {
	return &models.OrderFulfillment{ID: fulfillmentID, Status: enums.FulfillmentStatusDelivered}, nil
}

func (stubFulfillmentsService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderFulfillment, error) {
	return nil, nil
}

type routerFixture struct {
	handler  http.Handler
	store    *stubIdempotencyStore
	orders   *stubOrdersService
	payments *stubPaymentsService
	wallets  *stubWalletsService
}

func newTestRouter(t *testing.T) *routerFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Env = "test"
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})

	orderID := uuid.New()
	ordersSvc := &stubOrdersService{order: &models.Order{
		ID:          orderID,
		OrderNumber: "ORD-20260901-TEST01",
		Status:      enums.OrderStatusPending,
	}}
	paymentsSvc := &stubPaymentsService{payment: &models.Payment{
		ID:      uuid.New(),
		OrderID: orderID,
		Status:  enums.PaymentStatusHeldByAdmin,
	}}
	walletsSvc := &stubWalletsService{}
	store := newStubIdempotencyStore()

	handler := NewRouter(
		cfg,
		logg,
		stubPinger{},
		stubPinger{},
		store,
		nil,
		ordersSvc,
		paymentsSvc,
		walletsSvc,
		stubCouponsService{},
		stubTaxesService{},
		stubModificationsService{},
		stubFulfillmentsService{},
	)
	return &routerFixture{
		handler:  handler,
		store:    store,
		orders:   ordersSvc,
		payments: paymentsSvc,
		wallets:  walletsSvc,
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	fixture := newTestRouter(t)

	live := doRequest(t, fixture.handler, http.MethodGet, "/health/live", "", nil)
	if live.Code != http.StatusOK {
		t.Fatalf("expected live 200, got %d", live.Code)
	}
	ready := doRequest(t, fixture.handler, http.MethodGet, "/health/ready", "", nil)
	if ready.Code != http.StatusOK {
		t.Fatalf("expected ready 200, got %d", ready.Code)
	}
	metrics := doRequest(t, fixture.handler, http.MethodGet, "/metrics", "", nil)
	if metrics.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", metrics.Code)
	}
}

func TestCreateOrderRoute(t *testing.T) {
	fixture := newTestRouter(t)

	body := `{"customer_id":"` + uuid.New().String() + `","shop_id":"` + uuid.New().String() + `","items":[{"product_id":"` + uuid.New().String() + `","quantity":2}]}`
	rec := doRequest(t, fixture.handler, http.MethodPost, "/api/v1/orders", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if fixture.orders.createCalls != 1 {
		t.Fatalf("expected one create call, got %d", fixture.orders.createCalls)
	}

	var envelope struct {
		Data models.Order `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.OrderNumber != "ORD-20260901-TEST01" {
		t.Fatalf("unexpected order number %q", envelope.Data.OrderNumber)
	}
}

func TestCreateOrderRejectsBadBody(t *testing.T) {
	fixture := newTestRouter(t)

	rec := doRequest(t, fixture.handler, http.MethodPost, "/api/v1/orders", `{"customer_id":"nope"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if fixture.orders.createCalls != 0 {
		t.Fatal("service must not be reached on validation failure")
	}
}

func TestOrderDetailNotFound(t *testing.T) {
	fixture := newTestRouter(t)

	rec := doRequest(t, fixture.handler, http.MethodGet, "/api/v1/orders/"+uuid.New().String(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPaymentInitiateRequiresIdempotencyKey(t *testing.T) {
	fixture := newTestRouter(t)

	body := `{"order_id":"` + uuid.New().String() + `","method":"card","amount":"100.00"}`
	rec := doRequest(t, fixture.handler, http.MethodPost, "/api/v1/payments", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", rec.Code)
	}
	if fixture.payments.initiateCalls != 0 {
		t.Fatal("service must not run without an idempotency key")
	}
}

func TestPaymentInitiateReplaysStoredResponse(t *testing.T) {
	fixture := newTestRouter(t)

	body := `{"order_id":"` + uuid.New().String() + `","method":"card","amount":"100.00"}`
	headers := map[string]string{"Idempotency-Key": "key-1"}

	first := doRequest(t, fixture.handler, http.MethodPost, "/api/v1/payments", body, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	second := doRequest(t, fixture.handler, http.MethodPost, "/api/v1/payments", body, headers)
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatal("replay must return the stored response body")
	}
	if fixture.payments.initiateCalls != 1 {
		t.Fatalf("expected a single initiate call, got %d", fixture.payments.initiateCalls)
	}
}

func TestPaymentInitiateRejectsKeyReuseWithNewBody(t *testing.T) {
	fixture := newTestRouter(t)

	headers := map[string]string{"Idempotency-Key": "key-1"}
	first := doRequest(t, fixture.handler, http.MethodPost, "/api/v1/payments",
		`{"order_id":"`+uuid.New().String()+`","method":"card","amount":"100.00"}`, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}

	second := doRequest(t, fixture.handler, http.MethodPost, "/api/v1/payments",
		`{"order_id":"`+uuid.New().String()+`","method":"card","amount":"999.00"}`, headers)
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 on key reuse, got %d: %s", second.Code, second.Body.String())
	}
}

func TestWalletTransferRoute(t *testing.T) {
	fixture := newTestRouter(t)

	body := `{"from_user_id":"` + uuid.New().String() + `","to_user_id":"` + uuid.New().String() + `","amount":"25.00","description":"test transfer"}`
	rec := doRequest(t, fixture.handler, http.MethodPost, "/api/v1/wallets/transfer", body,
		map[string]string{"Idempotency-Key": "transfer-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if fixture.wallets.transferCalls != 1 {
		t.Fatalf("expected one transfer call, got %d", fixture.wallets.transferCalls)
	}
}

func TestModificationDecisionRoutes(t *testing.T) {
	fixture := newTestRouter(t)

	body := `{"approver_id":"` + uuid.New().String() + `"}`
	headers := map[string]string{"Idempotency-Key": "decision-1"}
	approve := doRequest(t, fixture.handler, http.MethodPost,
		"/api/v1/modifications/"+uuid.New().String()+"/approve", body, headers)
	if approve.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", approve.Code, approve.Body.String())
	}

	headers = map[string]string{"Idempotency-Key": "decision-2"}
	reject := doRequest(t, fixture.handler, http.MethodPost,
		"/api/v1/modifications/"+uuid.New().String()+"/reject", body, headers)
	if reject.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", reject.Code, reject.Body.String())
	}
}

func TestFulfillmentRoutes(t *testing.T) {
	fixture := newTestRouter(t)

	orderID := uuid.New().String()
	createBody := `{"items":[{"order_item_id":"` + uuid.New().String() + `","quantity":1}]}`
	create := doRequest(t, fixture.handler, http.MethodPost,
		"/api/v1/orders/"+orderID+"/fulfillments", createBody,
		map[string]string{"Idempotency-Key": "ful-1"})
	if create.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", create.Code, create.Body.String())
	}

	ship := doRequest(t, fixture.handler, http.MethodPost,
		"/api/v1/fulfillments/"+uuid.New().String()+"/ship",
		`{"tracking_number":"TRK-1","carrier":"ups"}`,
		map[string]string{"Idempotency-Key": "ful-2"})
	if ship.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", ship.Code, ship.Body.String())
	}

	list := doRequest(t, fixture.handler, http.MethodGet, "/api/v1/orders/"+orderID+"/fulfillments", "", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", list.Code)
	}
}
