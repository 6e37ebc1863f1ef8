package enums

import "fmt"

// Applicability scopes where a coupon or tax rate may be used.
type Applicability string

const (
	ApplicabilityAll        Applicability = "all"
	ApplicabilityProducts   Applicability = "products"
	ApplicabilityCategories Applicability = "categories"
	ApplicabilityShops      Applicability = "shops"
)

var validApplicabilities = []Applicability{
	ApplicabilityAll,
	ApplicabilityProducts,
	ApplicabilityCategories,
	ApplicabilityShops,
}

// String implements fmt.Stringer.
func (a Applicability) String() string {
	return string(a)
}

// IsValid reports whether the value is a known Applicability.
func (a Applicability) IsValid() bool {
	for _, candidate := range validApplicabilities {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseApplicability converts raw input into an Applicability.
func ParseApplicability(value string) (Applicability, error) {
	for _, candidate := range validApplicabilities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid applicability %q", value)
}
