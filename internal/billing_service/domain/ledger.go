package domain

import "time"

// LedgerEntryKind is the direction of a balance change.
type LedgerEntryKind string

const (
	LedgerEntryDebit  LedgerEntryKind = "debit"
	LedgerEntryCredit LedgerEntryKind = "credit"
)

// LedgerEntry records one balance mutation. It is written in the same
// database transaction as the mutation itself.
type LedgerEntry struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"madrasah_id"`
	Kind           LedgerEntryKind `json:"kind"`
	Amount         int64           `json:"amount"`
	BalanceAfter   int64           `json:"balance_after"`
	Reference      *string         `json:"reference,omitempty"` // payment claim id for credits
	Message        *string         `json:"message,omitempty"`   // message body for debits
	RecipientCount int             `json:"recipient_count"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DebitDetails describes the send a debit pays for.
type DebitDetails struct {
	Message    string
	StudentIDs []string
}
