package repository

import (
	"context"

	"github.com/madrasahportal/golang_services/internal/billing_service/domain"
)

// TenantRepository reads tenants and applies administrator edits.
type TenantRepository interface {
	// GetByID returns domain.ErrTenantNotFound when no tenant has the id.
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	// TotalBalance sums sms_balance over all non-admin tenants.
	TotalBalance(ctx context.Context) (int64, error)
	// List returns non-admin tenants, newest first.
	List(ctx context.Context) ([]domain.Tenant, error)
	// UpdateProfile overwrites name, phone, active flag and gateway overrides
	// of a non-admin tenant. Text is trimmed and blank overrides become NULL.
	// The balance is never touched here.
	UpdateProfile(ctx context.Context, id string, profile domain.TenantProfile) (*domain.Tenant, error)
}

// LedgerRepository is the only writer of sms_balance for sends.
type LedgerRepository interface {
	// Debit atomically checks and decrements the balance by count and records a
	// ledger entry. Concurrent debits against one tenant are serialized by the
	// store; it returns domain.ErrInsufficientBalance or domain.ErrTenantNotFound
	// without mutating anything.
	Debit(ctx context.Context, tenantID string, count int64, details domain.DebitDetails) (*domain.LedgerEntry, error)
	ListEntries(ctx context.Context, tenantID string, limit int) ([]domain.LedgerEntry, error)
}

// PaymentRepository persists recharge claims and owns the approval unit.
type PaymentRepository interface {
	Create(ctx context.Context, claim *domain.PaymentClaim) (*domain.PaymentClaim, error)
	GetByID(ctx context.Context, id string) (*domain.PaymentClaim, error)
	ListByStatus(ctx context.Context, status domain.PaymentStatus, limit int) ([]domain.PaymentClaim, error)
	ListResolved(ctx context.Context, limit int) ([]domain.PaymentClaim, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]domain.PaymentClaim, error)

	// Approve marks a pending claim approved and credits smsAmount to the
	// tenant in one transaction. Either both effects are visible or neither.
	Approve(ctx context.Context, claimID, tenantID string, smsAmount int64) (*domain.PaymentClaim, *domain.LedgerEntry, error)
	// Reject marks a pending claim rejected. No ledger effect.
	Reject(ctx context.Context, claimID string) (*domain.PaymentClaim, error)
}

// SettingsRepository stores the global settings singleton. A missing row is
// reported by Get as (nil, nil).
type SettingsRepository interface {
	Get(ctx context.Context) (*domain.GlobalSettings, error)
	// Update writes every field, trimmed, creating the row if needed.
	Update(ctx context.Context, settings domain.GlobalSettings) error
}
