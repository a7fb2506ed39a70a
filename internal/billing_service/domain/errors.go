package domain

import "errors"

var (
	// ErrInsufficientBalance means the debit would make the balance negative.
	// Callers route the user to the recharge flow on this error.
	ErrInsufficientBalance = errors.New("insufficient sms balance")
	// ErrLedgerTransaction wraps unexpected failures of the atomic ledger unit.
	ErrLedgerTransaction = errors.New("ledger transaction failed")
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrTenantSuspended   = errors.New("tenant is suspended")
	ErrInvalidAmount     = errors.New("amount must be positive")

	ErrClaimNotFound          = errors.New("payment claim not found")
	ErrClaimTenantMismatch    = errors.New("payment claim belongs to another tenant")
	ErrInvalidStateTransition = errors.New("payment claim is not pending")
	ErrInvalidSMSAmount       = errors.New("sms amount must be positive")
)
