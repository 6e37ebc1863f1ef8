package enums

import "fmt"

// ModificationStatus tracks the approval state of an order modification.
type ModificationStatus string

const (
	ModificationStatusPending  ModificationStatus = "pending"
	ModificationStatusApproved ModificationStatus = "approved"
	ModificationStatusRejected ModificationStatus = "rejected"
)

var validModificationStatuses = []ModificationStatus{
	ModificationStatusPending,
	ModificationStatusApproved,
	ModificationStatusRejected,
}

// String implements fmt.Stringer.
func (m ModificationStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known ModificationStatus.
func (m ModificationStatus) IsValid() bool {
	for _, candidate := range validModificationStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the modification has been decided.
func (m ModificationStatus) IsTerminal() bool {
	return m == ModificationStatusApproved || m == ModificationStatusRejected
}

// ParseModificationStatus converts raw input into a ModificationStatus.
func ParseModificationStatus(value string) (ModificationStatus, error) {
	for _, candidate := range validModificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid modification status %q", value)
}
