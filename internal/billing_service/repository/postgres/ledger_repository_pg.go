package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/madrasahportal/golang_services/internal/billing_service/domain"
	"github.com/madrasahportal/golang_services/internal/billing_service/repository"
	"github.com/madrasahportal/golang_services/internal/platform/database"
)

const (
	// The WHERE guard makes check-and-decrement a single statement; the row lock
	// it takes serializes concurrent debits of the same tenant.
	debitBalanceQuery  = `UPDATE madrasahs SET sms_balance = sms_balance - $2 WHERE id = $1 AND sms_balance >= $2 RETURNING sms_balance`
	creditBalanceQuery = `UPDATE madrasahs SET sms_balance = sms_balance + $2 WHERE id = $1 RETURNING sms_balance`
	tenantExistsQuery  = `SELECT sms_balance FROM madrasahs WHERE id = $1`

	insertLedgerEntryQuery = `INSERT INTO sms_ledger_entries (id, madrasah_id, kind, amount, balance_after, reference, message, recipient_count, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

type PgLedgerRepository struct {
	db     database.Pool
	logger *slog.Logger
}

func NewPgLedgerRepository(db database.Pool, logger *slog.Logger) repository.LedgerRepository {
	return &PgLedgerRepository{db: db, logger: logger.With("component", "ledger_repository_pg")}
}

func (r *PgLedgerRepository) Debit(ctx context.Context, tenantID string, count int64, details domain.DebitDetails) (*domain.LedgerEntry, error) {
	if count <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var entry *domain.LedgerEntry
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var balanceAfter int64
		err := tx.QueryRow(ctx, debitBalanceQuery, tenantID, count).Scan(&balanceAfter)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return classifyMissingDebit(ctx, tx, tenantID)
			}
			return fmt.Errorf("decrement balance: %w", err)
		}

		message := details.Message
		entry = &domain.LedgerEntry{
			ID:             uuid.NewString(),
			TenantID:       tenantID,
			Kind:           domain.LedgerEntryDebit,
			Amount:         count,
			BalanceAfter:   balanceAfter,
			Message:        &message,
			RecipientCount: int(count),
			CreatedAt:      time.Now().UTC(),
		}
		return insertLedgerEntry(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "Debited sms balance", "tenant_id", tenantID, "count", count, "balance_after", entry.BalanceAfter)
	return entry, nil
}

// classifyMissingDebit distinguishes an unknown tenant from a short balance
// after the guarded UPDATE matched no row.
func classifyMissingDebit(ctx context.Context, q database.Querier, tenantID string) error {
	var balance int64
	err := q.QueryRow(ctx, tenantExistsQuery, tenantID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTenantNotFound
		}
		return fmt.Errorf("read balance: %w", err)
	}
	return domain.ErrInsufficientBalance
}

// creditTenant increments the balance inside q's transaction and records the entry.
func creditTenant(ctx context.Context, q database.Querier, tenantID string, amount int64, reference string) (*domain.LedgerEntry, error) {
	var balanceAfter int64
	err := q.QueryRow(ctx, creditBalanceQuery, tenantID, amount).Scan(&balanceAfter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, fmt.Errorf("increment balance: %w", err)
	}

	entry := &domain.LedgerEntry{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Kind:         domain.LedgerEntryCredit,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Reference:    &reference,
		CreatedAt:    time.Now().UTC(),
	}
	if err := insertLedgerEntry(ctx, q, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func insertLedgerEntry(ctx context.Context, q database.Querier, e *domain.LedgerEntry) error {
	_, err := q.Exec(ctx, insertLedgerEntryQuery,
		e.ID, e.TenantID, string(e.Kind), e.Amount, e.BalanceAfter, e.Reference, e.Message, e.RecipientCount, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (r *PgLedgerRepository) ListEntries(ctx context.Context, tenantID string, limit int) ([]domain.LedgerEntry, error) {
	query := `
		SELECT id, madrasah_id, kind, amount, balance_after, reference, message, recipient_count, created_at
		FROM sms_ledger_entries
		WHERE madrasah_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.TenantID, &kind, &e.Amount, &e.BalanceAfter, &e.Reference, &e.Message, &e.RecipientCount, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = domain.LedgerEntryKind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
