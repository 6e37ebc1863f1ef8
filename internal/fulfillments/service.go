package fulfillments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinkhq/shoplink-backend/pkg/db/models"
	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
	pkgerrors "github.com/shoplinkhq/shoplink-backend/pkg/errors"
	"github.com/shoplinkhq/shoplink-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Allocation assigns a quantity of one order item to a new fulfillment.
type Allocation struct {
	OrderItemID uuid.UUID
	Quantity    int
}

// CreateInput captures a new shipment covering part or all of an order.
type CreateInput struct {
	OrderID uuid.UUID
	Items   []Allocation
}

// ShipInput captures the carrier handoff of a pending fulfillment.
type ShipInput struct {
	FulfillmentID  uuid.UUID
	TrackingNumber string
	Carrier        string
}

// FulfillmentEvent is the payload emitted on ship and deliver transitions.
type FulfillmentEvent struct {
	FulfillmentID uuid.UUID               `json:"fulfillment_id"`
	OrderID       uuid.UUID               `json:"order_id"`
	Status        enums.FulfillmentStatus `json:"status"`
}

// OrderDeliveredEvent is emitted when the whole order is covered by
// delivered fulfillments.
type OrderDeliveredEvent struct {
	OrderID uuid.UUID `json:"order_id"`
}

// Service defines the fulfillment tracker.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.OrderFulfillment, error)
	Ship(ctx context.Context, input ShipInput) (*models.OrderFulfillment, error)
	Deliver(ctx context.Context, fulfillmentID uuid.UUID) (*models.OrderFulfillment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderFulfillment, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a fulfillment service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fulfillments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox}, nil
}

// Create allocates order item quantities to a new pending fulfillment. An
// allocation that would push any item past its ordered quantity fails the
// whole call.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.OrderFulfillment, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fulfillment needs at least one item")
	}
	for _, allocation := range input.Items {
		if allocation.OrderItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item id required")
		}
		if allocation.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocation quantity must be positive")
		}
	}

	var fulfillment *models.OrderFulfillment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.Status == enums.OrderStatusCancelled || order.Status == enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be fulfilled").
				WithDetails(map[string]any{"order_id": order.ID, "status": order.Status})
		}

		items, err := repo.FindOrderItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		ordered := make(map[uuid.UUID]int, len(items))
		for _, item := range items {
			ordered[item.ID] = item.Quantity
		}

		allocated, err := repo.AllocatedQuantities(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load allocations")
		}

		seen := make(map[uuid.UUID]struct{}, len(input.Items))
		for _, allocation := range input.Items {
			if _, dup := seen[allocation.OrderItemID]; dup {
				return pkgerrors.New(pkgerrors.CodeValidation, "duplicate order item in fulfillment")
			}
			seen[allocation.OrderItemID] = struct{}{}

			orderedQty, ok := ordered[allocation.OrderItemID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found").
					WithDetails(map[string]any{"order_item_id": allocation.OrderItemID})
			}
			if allocated[allocation.OrderItemID]+allocation.Quantity > orderedQty {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "fulfillment exceeds ordered quantity").
					WithDetails(map[string]any{
						"order_item_id": allocation.OrderItemID,
						"ordered":       orderedQty,
						"allocated":     allocated[allocation.OrderItemID],
						"requested":     allocation.Quantity,
					})
			}
		}

		fulfillment = &models.OrderFulfillment{
			OrderID:           order.ID,
			FulfillmentNumber: newFulfillmentNumber(),
			Status:            enums.FulfillmentStatusPending,
		}
		if _, err := repo.CreateFulfillment(ctx, fulfillment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fulfillment")
		}

		rows := make([]models.FulfillmentItem, 0, len(input.Items))
		for _, allocation := range input.Items {
			rows = append(rows, models.FulfillmentItem{
				FulfillmentID: fulfillment.ID,
				OrderItemID:   allocation.OrderItemID,
				Quantity:      allocation.Quantity,
			})
		}
		if err := repo.CreateFulfillmentItems(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fulfillment items")
		}
		fulfillment.Items = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fulfillment, nil
}

// Ship hands a pending fulfillment to the carrier.
func (s *service) Ship(ctx context.Context, input ShipInput) (*models.OrderFulfillment, error) {
	if input.FulfillmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fulfillment id required")
	}
	if input.TrackingNumber == "" || input.Carrier == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number and carrier required")
	}

	var fulfillment *models.OrderFulfillment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		fulfillment, err = repo.FindFulfillmentForUpdate(ctx, input.FulfillmentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "fulfillment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fulfillment")
		}
		if fulfillment.Status != enums.FulfillmentStatusPending {
			return transitionError(fulfillment, enums.FulfillmentStatusShipped)
		}

		order, err := repo.FindOrderForUpdate(ctx, fulfillment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		now := time.Now().UTC()
		if err := repo.UpdateFulfillment(ctx, fulfillment.ID, map[string]any{
			"status":          enums.FulfillmentStatusShipped,
			"tracking_number": input.TrackingNumber,
			"carrier":         input.Carrier,
			"shipped_at":      now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update fulfillment")
		}
		fulfillment.Status = enums.FulfillmentStatusShipped
		fulfillment.TrackingNumber = &input.TrackingNumber
		fulfillment.Carrier = &input.Carrier
		fulfillment.ShippedAt = &now

		history := &models.OrderStatusHistory{
			OrderID: order.ID,
			Status:  order.Status,
			Note:    fmt.Sprintf("fulfillment %s shipped via %s (%s)", fulfillment.FulfillmentNumber, input.Carrier, input.TrackingNumber),
		}
		if err := repo.AppendStatusHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		return s.outbox.Emit(ctx, tx, fulfillmentEvent(enums.EventFulfillmentShipped, fulfillment))
	})
	if err != nil {
		return nil, err
	}
	return fulfillment, nil
}

// Deliver completes a shipped fulfillment and rolls the order to delivered
// once every item is fully covered by delivered fulfillments.
func (s *service) Deliver(ctx context.Context, fulfillmentID uuid.UUID) (*models.OrderFulfillment, error) {
	if fulfillmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fulfillment id required")
	}

	var fulfillment *models.OrderFulfillment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		fulfillment, err = repo.FindFulfillmentForUpdate(ctx, fulfillmentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "fulfillment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fulfillment")
		}
		if fulfillment.Status != enums.FulfillmentStatusShipped {
			return transitionError(fulfillment, enums.FulfillmentStatusDelivered)
		}

		order, err := repo.FindOrderForUpdate(ctx, fulfillment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		now := time.Now().UTC()
		if err := repo.UpdateFulfillment(ctx, fulfillment.ID, map[string]any{
			"status":       enums.FulfillmentStatusDelivered,
			"delivered_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update fulfillment")
		}
		fulfillment.Status = enums.FulfillmentStatusDelivered
		fulfillment.DeliveredAt = &now

		if err := s.outbox.Emit(ctx, tx, fulfillmentEvent(enums.EventFulfillmentDelivered, fulfillment)); err != nil {
			return err
		}

		complete, err := s.orderFullyDelivered(ctx, repo, order.ID)
		if err != nil {
			return err
		}
		if !complete || order.Status == enums.OrderStatusDelivered {
			return nil
		}

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status": enums.OrderStatusDelivered,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
		}
		history := &models.OrderStatusHistory{
			OrderID: order.ID,
			Status:  enums.OrderStatusDelivered,
			Note:    "all fulfillments delivered",
		}
		if err := repo.AppendStatusHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data:          OrderDeliveredEvent{OrderID: order.ID},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return fulfillment, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderFulfillment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	fulfillments, err := s.repo.FindFulfillmentsByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fulfillments")
	}
	return fulfillments, nil
}

func (s *service) orderFullyDelivered(ctx context.Context, repo Repository, orderID uuid.UUID) (bool, error) {
	items, err := repo.FindOrderItems(ctx, orderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	delivered, err := repo.DeliveredQuantities(ctx, orderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivered quantities")
	}
	for _, item := range items {
		if delivered[item.ID] < item.Quantity {
			return false, nil
		}
	}
	return len(items) > 0, nil
}

func fulfillmentEvent(eventType enums.OutboxEventType, fulfillment *models.OrderFulfillment) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateFulfillment,
		AggregateID:   fulfillment.ID,
		Version:       1,
		Data: FulfillmentEvent{
			FulfillmentID: fulfillment.ID,
			OrderID:       fulfillment.OrderID,
			Status:        fulfillment.Status,
		},
	}
}

func transitionError(fulfillment *models.OrderFulfillment, attempted enums.FulfillmentStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "fulfillment state transition disallowed").
		WithDetails(map[string]any{
			"fulfillment_id": fulfillment.ID,
			"current":        fulfillment.Status,
			"attempted":      attempted,
		})
}

func newFulfillmentNumber() string {
	return "FUL-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
