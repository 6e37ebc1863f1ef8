package modifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/outbox"
	"github.com/shoplinkhq/shoplink-backend/pkg/types"
)

type stubModificationsRepo struct {
	modifications map[uuid.UUID]*models.OrderModification
	orders        map[uuid.UUID]*models.Order
	items         map[uuid.UUID]*models.OrderItem
	products      map[uuid.UUID]*models.Product
	history       []models.OrderStatusHistory
}

func newStubModificationsRepo() *stubModificationsRepo {
	return &stubModificationsRepo{
		modifications: make(map[uuid.UUID]*models.OrderModification),
		orders:        make(map[uuid.UUID]*models.Order),
		items:         make(map[uuid.UUID]*models.OrderItem),
		products:      make(map[uuid.UUID]*models.Product),
	}
}

func (s *stubModificationsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubModificationsRepo) CreateModification(ctx context.Context, modification *models.OrderModification) (*models.OrderModification, error) {
	if modification.ID == uuid.Nil {
		modification.ID = uuid.New()
	}
	s.modifications[modification.ID] = modification
	return modification, nil
}

func (s *stubModificationsRepo) FindModification(ctx context.Context, modificationID uuid.UUID) (*models.OrderModification, error) {
	modification, ok := s.modifications[modificationID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return modification, nil
}

func (s *stubModificationsRepo) FindModificationForUpdate(ctx context.Context, modificationID uuid.UUID) (*models.OrderModification, error) {
	return s.FindModification(ctx, modificationID)
}

func (s *stubModificationsRepo) UpdateModification(ctx context.Context, modificationID uuid.UUID, updates map[string]any) error {
	modification, ok := s.modifications[modificationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"].(enums.ModificationStatus); ok {
		modification.Status = status
	}
	return nil
}

func (s *stubModificationsRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubModificationsRepo) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.FindOrder(ctx, orderID)
}

func (s *stubModificationsRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	order, ok := s.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if subtotal, ok := updates["subtotal_amount"].(decimal.Decimal); ok {
		order.SubtotalAmount = subtotal
	}
	if total, ok := updates["total_amount"].(decimal.Decimal); ok {
		order.TotalAmount = total
	}
	return nil
}

func (s *stubModificationsRepo) FindOrderItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	item, ok := s.items[itemID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

func (s *stubModificationsRepo) FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var out []models.OrderItem
	for _, item := range s.items {
		if item.OrderID == orderID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *stubModificationsRepo) CreateOrderItem(ctx context.Context, item *models.OrderItem) (*models.OrderItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.items[item.ID] = item
	return item, nil
}

func (s *stubModificationsRepo) UpdateOrderItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	item, ok := s.items[itemID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if quantity, ok := updates["quantity"].(int); ok {
		item.Quantity = quantity
	}
	if total, ok := updates["total_price"].(decimal.Decimal); ok {
		item.TotalPrice = total
	}
	return nil
}

func (s *stubModificationsRepo) DeleteOrderItem(ctx context.Context, itemID uuid.UUID) error {
	delete(s.items, itemID)
	return nil
}

func (s *stubModificationsRepo) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func (s *stubModificationsRepo) FindProductForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	return s.FindProduct(ctx, productID)
}

func (s *stubModificationsRepo) AdjustProductStock(ctx context.Context, productID uuid.UUID, delta int) error {
	product, ok := s.products[productID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	product.StockQuantity += delta
	return nil
}

func (s *stubModificationsRepo) AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	s.history = append(s.history, *entry)
	return nil
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

type modificationFixture struct {
	repo      *stubModificationsRepo
	publisher *stubOutboxPublisher
	svc       Service
}

func newModificationFixture(t *testing.T) *modificationFixture {
	t.Helper()
	f := &modificationFixture{
		repo:      newStubModificationsRepo(),
		publisher: &stubOutboxPublisher{},
	}
	svc, err := NewService(f.repo, stubTxRunner{}, f.publisher)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	f.svc = svc
	return f
}

func (f *modificationFixture) seedOrder() *models.Order {
	order := &models.Order{
		ID:             uuid.New(),
		CustomerID:     uuid.New(),
		ShopID:         uuid.New(),
		Status:         enums.OrderStatusPending,
		SubtotalAmount: decimal.NewFromInt(100),
		TotalAmount:    decimal.NewFromInt(100),
	}
	f.repo.orders[order.ID] = order
	return order
}

func (f *modificationFixture) seedProduct(price decimal.Decimal, stock int) *models.Product {
	product := &models.Product{
		ID:            uuid.New(),
		ShopID:        uuid.New(),
		CategoryID:    uuid.New(),
		Price:         price,
		StockQuantity: stock,
		IsActive:      true,
	}
	f.repo.products[product.ID] = product
	return product
}

func (f *modificationFixture) seedItem(order *models.Order, product *models.Product, quantity int) *models.OrderItem {
	item := &models.OrderItem{
		ID:         uuid.New(),
		OrderID:    order.ID,
		ProductID:  product.ID,
		Quantity:   quantity,
		UnitPrice:  product.Price,
		TotalPrice: product.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
	f.repo.items[item.ID] = item
	return item
}

func addItemChange(productID uuid.UUID, quantity int) types.ModificationChange {
	return types.ModificationChange{
		Type:    enums.ModificationTypeAddItem,
		AddItem: &types.AddItemChange{ProductID: productID, Quantity: quantity},
	}
}

func TestRequestRecordsPendingModification(t *testing.T) {
	f := newModificationFixture(t)
	order := f.seedOrder()
	product := f.seedProduct(decimal.NewFromInt(25), 10)

	modification, err := f.svc.Request(context.Background(), RequestInput{
		OrderID:     order.ID,
		Change:      addItemChange(product.ID, 2),
		RequestedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if modification.Status != enums.ModificationStatusPending {
		t.Fatalf("expected pending, got %s", modification.Status)
	}
	// A request only records intent; the order and stock stay untouched.
	if !order.SubtotalAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("order changed on request: %s", order.SubtotalAmount)
	}
	if product.StockQuantity != 10 {
		t.Fatalf("stock changed on request: %d", product.StockQuantity)
	}
}

func TestRequestRejectsInsufficientStock(t *testing.T) {
	f := newModificationFixture(t)
	order := f.seedOrder()
	product := f.seedProduct(decimal.NewFromInt(25), 1)

	_, err := f.svc.Request(context.Background(), RequestInput{
		OrderID:     order.ID,
		Change:      addItemChange(product.ID, 5),
		RequestedBy: uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}
}

func TestRequestRejectsShippedOrder(t *testing.T) {
	f := newModificationFixture(t)
	order := f.seedOrder()
	order.Status = enums.OrderStatusShipped
	product := f.seedProduct(decimal.NewFromInt(25), 10)

	_, err := f.svc.Request(context.Background(), RequestInput{
		OrderID:     order.ID,
		Change:      addItemChange(product.ID, 1),
		RequestedBy: uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestApproveAddItemUpdatesOrderAndStock(t *testing.T) {
	f := newModificationFixture(t)
	order := f.seedOrder()
	product := f.seedProduct(decimal.NewFromInt(25), 10)
	requesterID := uuid.New()

	modification, err := f.svc.Request(context.Background(), RequestInput{
		OrderID:     order.ID,
		Change:      addItemChange(product.ID, 2),
		RequestedBy: requesterID,
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	approved, err := f.svc.Approve(context.Background(), DecisionInput{
		ModificationID: modification.ID,
		ApproverID:     uuid.New(),
	})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != enums.ModificationStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if !order.SubtotalAmount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected subtotal 150, got %s", order.SubtotalAmount)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected total 150, got %s", order.TotalAmount)
	}
	if product.StockQuantity != 8 {
		t.Fatalf("expected stock 8, got %d", product.StockQuantity)
	}
	if approved.OldValue == nil || approved.NewValue == nil {
		t.Fatal("expected before/after snapshots")
	}
	if !approved.NewValue.SubtotalAmount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected snapshot subtotal 150, got %s", approved.NewValue.SubtotalAmount)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].EventType != enums.EventOrderModified {
		t.Fatalf("expected order modified event, got %+v", f.publisher.events)
	}
}

func TestApproveTwiceIsStateConflict(t *testing.T) {
	f := newModificationFixture(t)
	order := f.seedOrder()
	product := f.seedProduct(decimal.NewFromInt(25), 10)

	modification, err := f.svc.Request(context.Background(), RequestInput{
		OrderID:     order.ID,
		Change:      addItemChange(product.ID, 1),
		RequestedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	approverID := uuid.New()
	if _, err := f.svc.Approve(context.Background(), DecisionInput{ModificationID: modification.ID, ApproverID: approverID}); err != nil {
		t.Fatalf("first approve failed: %v", err)
	}

	_, err = f.svc.Approve(context.Background(), DecisionInput{ModificationID: modification.ID, ApproverID: approverID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on re-approve, got %v", err)
	}
	if product.StockQuantity != 9 {
		t.Fatalf("stock must be reserved exactly once, got %d", product.StockQuantity)
	}
}

func TestApproveRemoveItemRestoresStock(t *testing.T) {
	f := newModificationFixture(t)
	order := f.seedOrder()
	product := f.seedProduct(decimal.NewFromInt(20), 3)
	item := f.seedItem(order, product, 2)
	order.SubtotalAmount = decimal.NewFromInt(100)
	order.TotalAmount = decimal.NewFromInt(100)

	modification, err := f.svc.Request(context.Background(), RequestInput{
		OrderID: order.ID,
		Change: types.ModificationChange{
			Type:       enums.ModificationTypeRemoveItem,
			RemoveItem: &types.RemoveItemChange{OrderItemID: item.ID},
		},
		RequestedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if _, err := f.svc.Approve(context.Background(), DecisionInput{ModificationID: modification.ID, ApproverID: uuid.New()}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if _, ok := f.repo.items[item.ID]; ok {
		t.Fatal("expected item to be removed")
	}
	if product.StockQuantity != 5 {
		t.Fatalf("expected stock restored to 5, got %d", product.StockQuantity)
	}
	if !order.SubtotalAmount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected subtotal 60, got %s", order.SubtotalAmount)
	}
}

func TestApproveUpdateQuantityAdjustsLine(t *testing.T) {
	f := newModificationFixture(t)
	order := f.seedOrder()
	product := f.seedProduct(decimal.NewFromInt(10), 4)
	item := f.seedItem(order, product, 2)
	order.SubtotalAmount = decimal.NewFromInt(20)
	order.TotalAmount = decimal.NewFromInt(20)

	modification, err := f.svc.Request(context.Background(), RequestInput{
		OrderID: order.ID,
		Change: types.ModificationChange{
			Type:           enums.ModificationTypeUpdateQuantity,
			UpdateQuantity: &types.UpdateQuantityChange{OrderItemID: item.ID, NewQuantity: 5},
		},
		RequestedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if _, err := f.svc.Approve(context.Background(), DecisionInput{ModificationID: modification.ID, ApproverID: uuid.New()}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if item.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", item.Quantity)
	}
	if !item.TotalPrice.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected line total 50, got %s", item.TotalPrice)
	}
	if product.StockQuantity != 1 {
		t.Fatalf("expected stock 1 after reserving 3 extra, got %d", product.StockQuantity)
	}
	if !order.SubtotalAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected subtotal 50, got %s", order.SubtotalAmount)
	}
}

func TestApproveFailsWhenStockRanOut(t *testing.T) {
	f := newModificationFixture(t)
	order := f.seedOrder()
	product := f.seedProduct(decimal.NewFromInt(25), 5)

	modification, err := f.svc.Request(context.Background(), RequestInput{
		OrderID:     order.ID,
		Change:      addItemChange(product.ID, 4),
		RequestedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	// Stock drains between request and approval.
	product.StockQuantity = 2

	_, err = f.svc.Approve(context.Background(), DecisionInput{ModificationID: modification.ID, ApproverID: uuid.New()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK at approval, got %v", err)
	}
}

func TestRejectLeavesOrderUntouched(t *testing.T) {
	f := newModificationFixture(t)
	order := f.seedOrder()
	product := f.seedProduct(decimal.NewFromInt(25), 10)

	modification, err := f.svc.Request(context.Background(), RequestInput{
		OrderID:     order.ID,
		Change:      addItemChange(product.ID, 2),
		RequestedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	rejected, err := f.svc.Reject(context.Background(), DecisionInput{ModificationID: modification.ID, ApproverID: uuid.New()})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != enums.ModificationStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if !order.SubtotalAmount.Equal(decimal.NewFromInt(100)) || product.StockQuantity != 10 {
		t.Fatal("rejected modification must not touch order or stock")
	}

	_, err = f.svc.Approve(context.Background(), DecisionInput{ModificationID: modification.ID, ApproverID: uuid.New()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict approving a rejected request, got %v", err)
	}
}
