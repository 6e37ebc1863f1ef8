package enums

import "fmt"

// RelatedType names the record a ledger transaction is linked to.
type RelatedType string

const (
	RelatedTypeOrder    RelatedType = "order"
	RelatedTypePayment  RelatedType = "payment"
	RelatedTypeTransfer RelatedType = "transfer"
)

var validRelatedTypes = []RelatedType{
	RelatedTypeOrder,
	RelatedTypePayment,
	RelatedTypeTransfer,
}

// String implements fmt.Stringer.
func (r RelatedType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RelatedType.
func (r RelatedType) IsValid() bool {
	for _, candidate := range validRelatedTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRelatedType converts raw input into a RelatedType.
func ParseRelatedType(value string) (RelatedType, error) {
	for _, candidate := range validRelatedTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid related type %q", value)
}
