package modifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/money"
	"github.com/shoplinkhq/shoplink-backend/pkg/outbox"
	"github.com/shoplinkhq/shoplink-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RequestInput captures a proposed order edit.
type RequestInput struct {
	OrderID     uuid.UUID
	Change      types.ModificationChange
	RequestedBy uuid.UUID
}

// DecisionInput identifies the modification an approver acts on.
type DecisionInput struct {
	ModificationID uuid.UUID
	ApproverID     uuid.UUID
}

// OrderModifiedEvent is emitted when an approved edit lands on the order.
type OrderModifiedEvent struct {
	ModificationID uuid.UUID              `json:"modification_id"`
	OrderID        uuid.UUID              `json:"order_id"`
	Type           enums.ModificationType `json:"type"`
	TotalAmount    decimal.Decimal        `json:"total_amount"`
}

// Service defines the order modification workflow.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.OrderModification, error)
	Approve(ctx context.Context, input DecisionInput) (*models.OrderModification, error)
	Reject(ctx context.Context, input DecisionInput) (*models.OrderModification, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a modification service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("modifications repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox}, nil
}

// Request validates the proposed edit and records it as pending. The order
// itself is never touched here; only an approval mutates it.
func (s *service) Request(ctx context.Context, input RequestInput) (*models.OrderModification, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.RequestedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "requester identity missing")
	}
	if err := input.Change.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid modification payload")
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !orderModifiable(order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be modified").
			WithDetails(map[string]any{"order_id": order.ID, "status": order.Status})
	}

	switch input.Change.Type {
	case enums.ModificationTypeAddItem:
		product, err := s.repo.FindProduct(ctx, input.Change.AddItem.ProductID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if product.StockQuantity < input.Change.AddItem.Quantity {
			return nil, insufficientStock(product.ID, input.Change.AddItem.Quantity, product.StockQuantity)
		}

	case enums.ModificationTypeRemoveItem:
		if _, err := s.findOrderItem(ctx, s.repo, order.ID, input.Change.RemoveItem.OrderItemID); err != nil {
			return nil, err
		}

	case enums.ModificationTypeUpdateQuantity:
		item, err := s.findOrderItem(ctx, s.repo, order.ID, input.Change.UpdateQuantity.OrderItemID)
		if err != nil {
			return nil, err
		}
		extra := input.Change.UpdateQuantity.NewQuantity - item.Quantity
		if extra > 0 {
			product, err := s.repo.FindProduct(ctx, item.ProductID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if product.StockQuantity < extra {
				return nil, insufficientStock(product.ID, extra, product.StockQuantity)
			}
		}
	}

	modification := &models.OrderModification{
		OrderID:   order.ID,
		Type:      input.Change.Type,
		Change:    input.Change,
		Status:    enums.ModificationStatusPending,
		CreatedBy: input.RequestedBy,
	}
	if _, err := s.repo.CreateModification(ctx, modification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create modification")
	}
	return modification, nil
}

// Approve replays the stored payload against the order under row locks.
// This is the single place that mutates Order/OrderItem rows for a request.
func (s *service) Approve(ctx context.Context, input DecisionInput) (*models.OrderModification, error) {
	if err := validateDecision(input); err != nil {
		return nil, err
	}

	var modification *models.OrderModification
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		modification, err = repo.FindModificationForUpdate(ctx, input.ModificationID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "modification not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load modification")
		}
		if modification.Status.IsTerminal() {
			return alreadyProcessed(modification)
		}

		order, err := repo.FindOrderForUpdate(ctx, modification.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if !orderModifiable(order.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be modified").
				WithDetails(map[string]any{"order_id": order.ID, "status": order.Status})
		}

		oldValue, newValue, subtotal, err := s.replay(ctx, repo, order, modification.Change)
		if err != nil {
			return err
		}

		total := money.Round2(subtotal.Sub(order.DiscountAmount).Add(order.TaxAmount))
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"subtotal_amount": subtotal,
			"total_amount":    total,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order totals")
		}

		// Map updates bypass gorm's field serializer, so the snapshots are
		// marshalled explicitly.
		oldJSON, err := json.Marshal(oldValue)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode old snapshot")
		}
		newJSON, err := json.Marshal(newValue)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode new snapshot")
		}
		if err := repo.UpdateModification(ctx, modification.ID, map[string]any{
			"status":      enums.ModificationStatusApproved,
			"approved_by": input.ApproverID,
			"old_value":   json.RawMessage(oldJSON),
			"new_value":   json.RawMessage(newJSON),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update modification")
		}
		modification.Status = enums.ModificationStatusApproved
		modification.ApprovedBy = &input.ApproverID
		modification.OldValue = oldValue
		modification.NewValue = newValue

		history := &models.OrderStatusHistory{
			OrderID: order.ID,
			Status:  order.Status,
			Note:    fmt.Sprintf("order modification %s approved (%s)", modification.ID, modification.Type),
			ActorID: &input.ApproverID,
		}
		if err := repo.AppendStatusHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderModified,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: OrderModifiedEvent{
				ModificationID: modification.ID,
				OrderID:        order.ID,
				Type:           modification.Type,
				TotalAmount:    total,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return modification, nil
}

// Reject marks the request rejected and leaves the order untouched.
func (s *service) Reject(ctx context.Context, input DecisionInput) (*models.OrderModification, error) {
	if err := validateDecision(input); err != nil {
		return nil, err
	}

	var modification *models.OrderModification
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		modification, err = repo.FindModificationForUpdate(ctx, input.ModificationID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "modification not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load modification")
		}
		if modification.Status.IsTerminal() {
			return alreadyProcessed(modification)
		}

		if err := repo.UpdateModification(ctx, modification.ID, map[string]any{
			"status":      enums.ModificationStatusRejected,
			"approved_by": input.ApproverID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update modification")
		}
		modification.Status = enums.ModificationStatusRejected
		modification.ApprovedBy = &input.ApproverID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return modification, nil
}

// replay applies the tagged change, adjusting stock alongside, and returns
// the before/after snapshots plus the recomputed subtotal.
func (s *service) replay(ctx context.Context, repo Repository, order *models.Order, change types.ModificationChange) (*types.ModificationSnapshot, *types.ModificationSnapshot, decimal.Decimal, error) {
	switch change.Type {
	case enums.ModificationTypeAddItem:
		return s.replayAddItem(ctx, repo, order, change.AddItem)
	case enums.ModificationTypeRemoveItem:
		return s.replayRemoveItem(ctx, repo, order, change.RemoveItem)
	case enums.ModificationTypeUpdateQuantity:
		return s.replayUpdateQuantity(ctx, repo, order, change.UpdateQuantity)
	default:
		return nil, nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid modification type %q", change.Type))
	}
}

func (s *service) replayAddItem(ctx context.Context, repo Repository, order *models.Order, change *types.AddItemChange) (*types.ModificationSnapshot, *types.ModificationSnapshot, decimal.Decimal, error) {
	product, err := repo.FindProductForUpdate(ctx, change.ProductID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
	}
	if product.StockQuantity < change.Quantity {
		return nil, nil, decimal.Zero, insufficientStock(product.ID, change.Quantity, product.StockQuantity)
	}
	if err := repo.AdjustProductStock(ctx, product.ID, -change.Quantity); err != nil {
		return nil, nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}

	lineTotal := money.Round2(product.Price.Mul(decimal.NewFromInt(int64(change.Quantity))))
	item := &models.OrderItem{
		OrderID:    order.ID,
		ProductID:  product.ID,
		Quantity:   change.Quantity,
		UnitPrice:  product.Price,
		TotalPrice: lineTotal,
	}
	if _, err := repo.CreateOrderItem(ctx, item); err != nil {
		return nil, nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order item")
	}

	subtotal := money.Round2(order.SubtotalAmount.Add(lineTotal))
	oldValue := snapshot(nil, order.SubtotalAmount, order.TotalAmount)
	newValue := snapshot([]models.OrderItem{*item}, subtotal, totalFor(order, subtotal))
	return oldValue, newValue, subtotal, nil
}

func (s *service) replayRemoveItem(ctx context.Context, repo Repository, order *models.Order, change *types.RemoveItemChange) (*types.ModificationSnapshot, *types.ModificationSnapshot, decimal.Decimal, error) {
	item, err := s.findOrderItem(ctx, repo, order.ID, change.OrderItemID)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}
	if err := repo.DeleteOrderItem(ctx, item.ID); err != nil {
		return nil, nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order item")
	}
	if err := repo.AdjustProductStock(ctx, item.ProductID, item.Quantity); err != nil {
		return nil, nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
	}

	subtotal := money.Round2(order.SubtotalAmount.Sub(item.TotalPrice))
	oldValue := snapshot([]models.OrderItem{*item}, order.SubtotalAmount, order.TotalAmount)
	newValue := snapshot(nil, subtotal, totalFor(order, subtotal))
	return oldValue, newValue, subtotal, nil
}

func (s *service) replayUpdateQuantity(ctx context.Context, repo Repository, order *models.Order, change *types.UpdateQuantityChange) (*types.ModificationSnapshot, *types.ModificationSnapshot, decimal.Decimal, error) {
	item, err := s.findOrderItem(ctx, repo, order.ID, change.OrderItemID)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}

	extra := change.NewQuantity - item.Quantity
	if extra > 0 {
		product, err := repo.FindProductForUpdate(ctx, item.ProductID)
		if err != nil {
			return nil, nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
		}
		if product.StockQuantity < extra {
			return nil, nil, decimal.Zero, insufficientStock(product.ID, extra, product.StockQuantity)
		}
	}
	if extra != 0 {
		if err := repo.AdjustProductStock(ctx, item.ProductID, -extra); err != nil {
			return nil, nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
		}
	}

	newTotal := money.Round2(item.UnitPrice.Mul(decimal.NewFromInt(int64(change.NewQuantity))))
	if err := repo.UpdateOrderItem(ctx, item.ID, map[string]any{
		"quantity":    change.NewQuantity,
		"total_price": newTotal,
	}); err != nil {
		return nil, nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item")
	}

	subtotal := money.Round2(order.SubtotalAmount.Sub(item.TotalPrice).Add(newTotal))
	oldValue := snapshot([]models.OrderItem{*item}, order.SubtotalAmount, order.TotalAmount)

	updated := *item
	updated.Quantity = change.NewQuantity
	updated.TotalPrice = newTotal
	newValue := snapshot([]models.OrderItem{updated}, subtotal, totalFor(order, subtotal))
	return oldValue, newValue, subtotal, nil
}

func (s *service) findOrderItem(ctx context.Context, repo Repository, orderID, itemID uuid.UUID) (*models.OrderItem, error) {
	item, err := repo.FindOrderItem(ctx, itemID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
	}
	if item.OrderID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item belongs to a different order")
	}
	return item, nil
}

func snapshot(items []models.OrderItem, subtotal, total decimal.Decimal) *types.ModificationSnapshot {
	captured := make([]types.ItemSnapshot, 0, len(items))
	for _, item := range items {
		captured = append(captured, types.ItemSnapshot{
			OrderItemID: item.ID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice,
		})
	}
	return &types.ModificationSnapshot{
		Items:          captured,
		SubtotalAmount: subtotal,
		TotalAmount:    total,
	}
}

func totalFor(order *models.Order, subtotal decimal.Decimal) decimal.Decimal {
	return money.Round2(subtotal.Sub(order.DiscountAmount).Add(order.TaxAmount))
}

func orderModifiable(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusPending, enums.OrderStatusConfirmed, enums.OrderStatusProcessing:
		return true
	default:
		return false
	}
}

func validateDecision(input DecisionInput) error {
	if input.ModificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "modification id required")
	}
	if input.ApproverID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "approver identity missing")
	}
	return nil
}

func alreadyProcessed(modification *models.OrderModification) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "modification already processed").
		WithDetails(map[string]any{
			"modification_id": modification.ID,
			"status":          modification.Status,
		})
}

func insufficientStock(productID uuid.UUID, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock").
		WithDetails(map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		})
}
