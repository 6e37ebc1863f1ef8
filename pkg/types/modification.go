package types

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoplinkhq/shoplink-backend/pkg/enums"
)

// AddItemChange adds a new line of product_id x quantity to the order.
type AddItemChange struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// RemoveItemChange removes an existing order item.
type RemoveItemChange struct {
	OrderItemID uuid.UUID `json:"order_item_id"`
}

// UpdateQuantityChange replaces an order item's quantity.
type UpdateQuantityChange struct {
	OrderItemID uuid.UUID `json:"order_item_id"`
	NewQuantity int       `json:"new_quantity"`
}

// ModificationChange is the tagged payload of an order modification. Exactly
// one variant matching Type is set, so approval can replay the edit without
// re-parsing loosely typed data.
type ModificationChange struct {
	Type           enums.ModificationType `json:"type"`
	AddItem        *AddItemChange         `json:"add_item,omitempty"`
	RemoveItem     *RemoveItemChange      `json:"remove_item,omitempty"`
	UpdateQuantity *UpdateQuantityChange  `json:"update_quantity,omitempty"`
}

// Validate checks the tag matches the populated variant.
func (c ModificationChange) Validate() error {
	switch c.Type {
	case enums.ModificationTypeAddItem:
		if c.AddItem == nil {
			return fmt.Errorf("add_item payload required")
		}
		if c.AddItem.ProductID == uuid.Nil {
			return fmt.Errorf("add_item: product id required")
		}
		if c.AddItem.Quantity <= 0 {
			return fmt.Errorf("add_item: quantity must be positive")
		}
	case enums.ModificationTypeRemoveItem:
		if c.RemoveItem == nil {
			return fmt.Errorf("remove_item payload required")
		}
		if c.RemoveItem.OrderItemID == uuid.Nil {
			return fmt.Errorf("remove_item: order item id required")
		}
	case enums.ModificationTypeUpdateQuantity:
		if c.UpdateQuantity == nil {
			return fmt.Errorf("update_quantity payload required")
		}
		if c.UpdateQuantity.OrderItemID == uuid.Nil {
			return fmt.Errorf("update_quantity: order item id required")
		}
		if c.UpdateQuantity.NewQuantity <= 0 {
			return fmt.Errorf("update_quantity: new quantity must be positive")
		}
	default:
		return fmt.Errorf("invalid modification type %q", c.Type)
	}
	return nil
}

// ItemSnapshot captures one order item as it stood around a modification.
type ItemSnapshot struct {
	OrderItemID uuid.UUID       `json:"order_item_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// ModificationSnapshot captures the affected items and order totals before
// or after a modification is applied.
type ModificationSnapshot struct {
	Items          []ItemSnapshot  `json:"items"`
	SubtotalAmount decimal.Decimal `json:"subtotal_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}
