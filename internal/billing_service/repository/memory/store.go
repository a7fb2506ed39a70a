// Package memory is an in-process billing store for tests. It keeps the same
// atomicity guarantees as the postgres repositories by holding one lock per
// operation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/madrasahportal/golang_services/internal/billing_service/domain"
)

// Fault points accepted by Store.FailOn.
const (
	FaultLedgerInsert = "ledger_insert"
	FaultCredit       = "credit"
)

// Store holds tenants, claims, ledger entries and the settings row.
type Store struct {
	mu       sync.Mutex
	tenants  map[string]*domain.Tenant
	admins   map[string]bool
	claims   map[string]*domain.PaymentClaim
	entries  []domain.LedgerEntry
	settings *domain.GlobalSettings
	faults   map[string]error
}

func NewStore() *Store {
	return &Store{
		tenants: make(map[string]*domain.Tenant),
		admins:  make(map[string]bool),
		claims:  make(map[string]*domain.PaymentClaim),
		faults:  make(map[string]error),
	}
}

// PutTenant inserts or replaces a tenant. Super admins are excluded from
// TotalBalance.
func (s *Store) PutTenant(t domain.Tenant, superAdmin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.tenants[t.ID] = &cp
	s.admins[t.ID] = superAdmin
}

func (s *Store) PutSettings(g *domain.GlobalSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = g
}

// FailOn makes the next operation reaching point fail with err. The fault
// fires once.
func (s *Store) FailOn(point string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[point] = err
}

func (s *Store) takeFault(point string) error {
	err := s.faults[point]
	delete(s.faults, point)
	return err
}

// Balance is a test helper reading the current balance.
func (s *Store) Balance(tenantID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[tenantID]; ok {
		return t.SMSBalance
	}
	return 0
}

// Tenants returns the store as a repository.TenantRepository.
func (s *Store) Tenants() *TenantRepository { return &TenantRepository{s} }

// Ledger returns the store as a repository.LedgerRepository.
func (s *Store) Ledger() *LedgerRepository { return &LedgerRepository{s} }

// Payments returns the store as a repository.PaymentRepository.
func (s *Store) Payments() *PaymentRepository { return &PaymentRepository{s} }

// Settings returns the store as a repository.SettingsRepository.
func (s *Store) Settings() *SettingsRepository { return &SettingsRepository{s} }

type TenantRepository struct{ s *Store }

func (r *TenantRepository) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *TenantRepository) TotalBalance(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for id, t := range r.s.tenants {
		if !r.s.admins[id] {
			total += t.SMSBalance
		}
	}
	return total, nil
}

// List returns non-admin tenants, newest first.
func (r *TenantRepository) List(_ context.Context) ([]domain.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Tenant, 0, len(r.s.tenants))
	for id, t := range r.s.tenants {
		if !r.s.admins[id] {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *TenantRepository) UpdateProfile(_ context.Context, id string, profile domain.TenantProfile) (*domain.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok || r.s.admins[id] {
		return nil, domain.ErrTenantNotFound
	}
	p := profile.Normalized()
	t.Name = p.Name
	t.Phone = p.Phone
	t.IsActive = p.IsActive
	t.Gateway = p.Override()
	cp := *t
	return &cp, nil
}

type LedgerRepository struct{ s *Store }

func (r *LedgerRepository) Debit(_ context.Context, tenantID string, count int64, details domain.DebitDetails) (*domain.LedgerEntry, error) {
	if count <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tenants[tenantID]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	if t.SMSBalance < count {
		return nil, domain.ErrInsufficientBalance
	}
	if err := r.s.takeFault(FaultLedgerInsert); err != nil {
		return nil, err
	}

	t.SMSBalance -= count
	message := details.Message
	entry := domain.LedgerEntry{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Kind:           domain.LedgerEntryDebit,
		Amount:         count,
		BalanceAfter:   t.SMSBalance,
		Message:        &message,
		RecipientCount: int(count),
		CreatedAt:      time.Now().UTC(),
	}
	r.s.entries = append(r.s.entries, entry)
	return &entry, nil
}

func (r *LedgerRepository) ListEntries(_ context.Context, tenantID string, limit int) ([]domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.LedgerEntry
	for i := len(r.s.entries) - 1; i >= 0; i-- {
		if r.s.entries[i].TenantID != tenantID {
			continue
		}
		out = append(out, r.s.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type PaymentRepository struct{ s *Store }

func (r *PaymentRepository) Create(_ context.Context, claim *domain.PaymentClaim) (*domain.PaymentClaim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	claim.Status = domain.PaymentStatusPending
	claim.CreatedAt = time.Now().UTC()
	cp := *claim
	r.s.claims[claim.ID] = &cp
	return claim, nil
}

func (r *PaymentRepository) GetByID(_ context.Context, id string) (*domain.PaymentClaim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.claims[id]
	if !ok {
		return nil, domain.ErrClaimNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *PaymentRepository) ListByStatus(_ context.Context, status domain.PaymentStatus, limit int) ([]domain.PaymentClaim, error) {
	return r.filter(func(c *domain.PaymentClaim) bool { return c.Status == status }, limit), nil
}

func (r *PaymentRepository) ListResolved(_ context.Context, limit int) ([]domain.PaymentClaim, error) {
	return r.filter(func(c *domain.PaymentClaim) bool { return c.Status.IsTerminal() }, limit), nil
}

func (r *PaymentRepository) ListByTenant(_ context.Context, tenantID string, limit int) ([]domain.PaymentClaim, error) {
	return r.filter(func(c *domain.PaymentClaim) bool { return c.TenantID == tenantID }, limit), nil
}

// filter returns matching claims newest first.
func (r *PaymentRepository) filter(match func(*domain.PaymentClaim) bool, limit int) []domain.PaymentClaim {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.PaymentClaim
	for _, c := range r.s.claims {
		if match(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *PaymentRepository) Approve(_ context.Context, claimID, tenantID string, smsAmount int64) (*domain.PaymentClaim, *domain.LedgerEntry, error) {
	if smsAmount <= 0 {
		return nil, nil, domain.ErrInvalidSMSAmount
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, err := r.resolvableClaim(claimID, domain.PaymentStatusApproved)
	if err != nil {
		return nil, nil, err
	}
	if c.TenantID != tenantID {
		return nil, nil, domain.ErrClaimTenantMismatch
	}
	t, ok := r.s.tenants[tenantID]
	if !ok {
		return nil, nil, domain.ErrTenantNotFound
	}
	// Faults fire before any mutation so a failed approval leaves no trace.
	if err := r.s.takeFault(FaultCredit); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	t.SMSBalance += smsAmount
	c.Status = domain.PaymentStatusApproved
	c.SMSCredited = &smsAmount
	c.ResolvedAt = &now

	ref := claimID
	entry := domain.LedgerEntry{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Kind:         domain.LedgerEntryCredit,
		Amount:       smsAmount,
		BalanceAfter: t.SMSBalance,
		Reference:    &ref,
		CreatedAt:    now,
	}
	r.s.entries = append(r.s.entries, entry)

	cp := *c
	return &cp, &entry, nil
}

func (r *PaymentRepository) Reject(_ context.Context, claimID string) (*domain.PaymentClaim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, err := r.resolvableClaim(claimID, domain.PaymentStatusRejected)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c.Status = domain.PaymentStatusRejected
	c.ResolvedAt = &now
	cp := *c
	return &cp, nil
}

// resolvableClaim returns the claim if it may move to next. It must be called
// with the lock held.
func (r *PaymentRepository) resolvableClaim(claimID string, next domain.PaymentStatus) (*domain.PaymentClaim, error) {
	c, ok := r.s.claims[claimID]
	if !ok {
		return nil, domain.ErrClaimNotFound
	}
	if !c.Status.CanTransitionTo(next) {
		return nil, domain.ErrInvalidStateTransition
	}
	return c, nil
}

type SettingsRepository struct{ s *Store }

func (r *SettingsRepository) Get(_ context.Context) (*domain.GlobalSettings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.settings == nil {
		return nil, nil
	}
	cp := *r.s.settings
	return &cp, nil
}

func (r *SettingsRepository) Update(_ context.Context, settings domain.GlobalSettings) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	trimmed := settings.Trimmed()
	r.s.settings = &trimmed
	return nil
}
