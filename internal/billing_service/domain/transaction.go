package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// PaymentStatus is the lifecycle state of a recharge claim.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// Value implements the driver.Valuer interface for PaymentStatus.
func (ps PaymentStatus) Value() (driver.Value, error) {
	return string(ps), nil
}

// Scan implements the sql.Scanner interface for PaymentStatus.
func (ps *PaymentStatus) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan PaymentStatus: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	*ps = PaymentStatus(strVal)
	switch *ps {
	case PaymentStatusPending, PaymentStatusApproved, PaymentStatusRejected:
		return nil
	default:
		return fmt.Errorf("unknown PaymentStatus value: %s", strVal)
	}
}

// IsTerminal reports whether no further transition is allowed.
func (ps PaymentStatus) IsTerminal() bool {
	return ps == PaymentStatusApproved || ps == PaymentStatusRejected
}

// CanTransitionTo encodes the claim state machine:
// pending -> approved, pending -> rejected. Both targets are terminal.
func (ps PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return ps == PaymentStatusPending && next.IsTerminal()
}

// PaymentClaim is a tenant-submitted recharge record. The bKash payment itself
// happens outside the system; the claim is verified manually by an admin.
type PaymentClaim struct {
	ID             string        `json:"id"`
	TenantID       string        `json:"madrasah_id"`
	Amount         float64       `json:"amount"` // currency paid, informational only
	SenderPhone    string        `json:"sender_phone"`
	TransactionRef string        `json:"transaction_id"` // external bKash reference
	Status         PaymentStatus `json:"status"`
	SMSCredited    *int64        `json:"sms_credited,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
}
