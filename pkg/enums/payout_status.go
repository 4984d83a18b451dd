package enums

import "fmt"

// PayoutStatus tracks a seller payout attempt.
type PayoutStatus string

const (
	PayoutStatusCreated    PayoutStatus = "created"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusSettled    PayoutStatus = "settled"
	PayoutStatusFailed     PayoutStatus = "failed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusCreated,
	PayoutStatusProcessing,
	PayoutStatusSettled,
	PayoutStatusFailed,
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
