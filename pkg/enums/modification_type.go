package enums

import "fmt"

// ModificationType names the structural edit requested against an order.
type ModificationType string

const (
	ModificationTypeAddItem        ModificationType = "add_item"
	ModificationTypeRemoveItem     ModificationType = "remove_item"
	ModificationTypeUpdateQuantity ModificationType = "update_quantity"
)

var validModificationTypes = []ModificationType{
	ModificationTypeAddItem,
	ModificationTypeRemoveItem,
	ModificationTypeUpdateQuantity,
}

// String implements fmt.Stringer.
func (m ModificationType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known ModificationType.
func (m ModificationType) IsValid() bool {
	for _, candidate := range validModificationTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseModificationType converts raw input into a ModificationType.
func ParseModificationType(value string) (ModificationType, error) {
	for _, candidate := range validModificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid modification type %q", value)
}
