package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/madrasahportal/golang_services/internal/billing_service/domain"
	"github.com/madrasahportal/golang_services/internal/billing_service/repository"
)

// LedgerService owns every balance decrement caused by a send.
type LedgerService struct {
	ledger  repository.LedgerRepository
	tenants repository.TenantRepository
	logger  *slog.Logger
}

func NewLedgerService(ledger repository.LedgerRepository, tenants repository.TenantRepository, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		ledger:  ledger,
		tenants: tenants,
		logger:  logger.With("service", "ledger"),
	}
}

// Debit atomically checks and decrements the tenant balance by count.
// Known domain failures are returned as-is; anything else is wrapped in
// domain.ErrLedgerTransaction. The balance is untouched on every error.
func (s *LedgerService) Debit(ctx context.Context, tenantID string, count int64, details domain.DebitDetails) (*domain.LedgerEntry, error) {
	entry, err := s.ledger.Debit(ctx, tenantID, count, details)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientBalance):
			ledgerDebitsCounter.WithLabelValues("insufficient").Inc()
			return nil, err
		case errors.Is(err, domain.ErrTenantNotFound):
			ledgerDebitsCounter.WithLabelValues("not_found").Inc()
			return nil, err
		case errors.Is(err, domain.ErrInvalidAmount):
			ledgerDebitsCounter.WithLabelValues("error").Inc()
			return nil, err
		default:
			ledgerDebitsCounter.WithLabelValues("error").Inc()
			s.logger.ErrorContext(ctx, "Ledger debit failed", "tenant_id", tenantID, "count", count, "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrLedgerTransaction, err)
		}
	}

	ledgerDebitsCounter.WithLabelValues("success").Inc()
	smsDebitedCounter.Add(float64(count))
	s.logger.InfoContext(ctx, "SMS balance debited", "tenant_id", tenantID, "count", count, "balance_after", entry.BalanceAfter)
	return entry, nil
}

// Balance returns the tenant's current SMS balance.
func (s *LedgerService) Balance(ctx context.Context, tenantID string) (int64, error) {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return t.SMSBalance, nil
}

// TotalBalance is the sum of balances across all non-admin tenants.
func (s *LedgerService) TotalBalance(ctx context.Context) (int64, error) {
	return s.tenants.TotalBalance(ctx)
}

func (s *LedgerService) History(ctx context.Context, tenantID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.ledger.ListEntries(ctx, tenantID, limit)
}
