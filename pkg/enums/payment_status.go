package enums

import "fmt"

// PaymentStatus tracks escrowed funds held by the platform.
type PaymentStatus string

const (
	PaymentStatusPendingAdmin   PaymentStatus = "pending_admin"
	PaymentStatusHeldByAdmin    PaymentStatus = "held_by_admin"
	PaymentStatusReleasedToShop PaymentStatus = "released_to_shop"
	PaymentStatusRefunded       PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPendingAdmin,
	PaymentStatusHeldByAdmin,
	PaymentStatusReleasedToShop,
	PaymentStatusRefunded,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentStatusReleasedToShop || p == PaymentStatusRefunded
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
