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
	claimColumns = `id, madrasah_id, amount, sender_phone, transaction_id, status, sms_credited, created_at, resolved_at`

	approveClaimQuery = `UPDATE transactions SET status = 'approved', sms_credited = $3, resolved_at = $4 WHERE id = $1 AND madrasah_id = $2 AND status = 'pending' RETURNING ` + claimColumns
	rejectClaimQuery  = `UPDATE transactions SET status = 'rejected', resolved_at = $2 WHERE id = $1 AND status = 'pending' RETURNING ` + claimColumns
	claimStateQuery   = `SELECT madrasah_id, status FROM transactions WHERE id = $1`
)

type PgPaymentRepository struct {
	db     database.Pool
	logger *slog.Logger
}

func NewPgPaymentRepository(db database.Pool, logger *slog.Logger) repository.PaymentRepository {
	return &PgPaymentRepository{db: db, logger: logger.With("component", "payment_repository_pg")}
}

func scanClaim(row pgx.Row) (*domain.PaymentClaim, error) {
	var c domain.PaymentClaim
	err := row.Scan(&c.ID, &c.TenantID, &c.Amount, &c.SenderPhone, &c.TransactionRef, &c.Status, &c.SMSCredited, &c.CreatedAt, &c.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PgPaymentRepository) Create(ctx context.Context, claim *domain.PaymentClaim) (*domain.PaymentClaim, error) {
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	claim.Status = domain.PaymentStatusPending
	claim.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO transactions (id, madrasah_id, amount, sender_phone, transaction_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		claim.ID, claim.TenantID, claim.Amount, claim.SenderPhone, claim.TransactionRef, claim.Status, claim.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert payment claim: %w", err)
	}
	return claim, nil
}

func (r *PgPaymentRepository) GetByID(ctx context.Context, id string) (*domain.PaymentClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM transactions WHERE id = $1`
	claim, err := scanClaim(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClaimNotFound
		}
		return nil, err
	}
	return claim, nil
}

func (r *PgPaymentRepository) ListByStatus(ctx context.Context, status domain.PaymentStatus, limit int) ([]domain.PaymentClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM transactions WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, status, limit)
}

func (r *PgPaymentRepository) ListResolved(ctx context.Context, limit int) ([]domain.PaymentClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM transactions WHERE status <> 'pending' ORDER BY created_at DESC LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *PgPaymentRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]domain.PaymentClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM transactions WHERE madrasah_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, tenantID, limit)
}

func (r *PgPaymentRepository) list(ctx context.Context, query string, args ...any) ([]domain.PaymentClaim, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []domain.PaymentClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *PgPaymentRepository) Approve(ctx context.Context, claimID, tenantID string, smsAmount int64) (*domain.PaymentClaim, *domain.LedgerEntry, error) {
	if smsAmount <= 0 {
		return nil, nil, domain.ErrInvalidSMSAmount
	}

	var (
		claim *domain.PaymentClaim
		entry *domain.LedgerEntry
	)
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		claim, err = scanClaim(tx.QueryRow(ctx, approveClaimQuery, claimID, tenantID, smsAmount, time.Now().UTC()))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return classifyUnresolvable(ctx, tx, claimID, tenantID)
			}
			return fmt.Errorf("mark claim approved: %w", err)
		}

		entry, err = creditTenant(ctx, tx, tenantID, smsAmount, claimID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	r.logger.InfoContext(ctx, "Payment claim approved", "claim_id", claimID, "tenant_id", tenantID, "sms_amount", smsAmount, "balance_after", entry.BalanceAfter)
	return claim, entry, nil
}

func (r *PgPaymentRepository) Reject(ctx context.Context, claimID string) (*domain.PaymentClaim, error) {
	claim, err := scanClaim(r.db.QueryRow(ctx, rejectClaimQuery, claimID, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, classifyUnresolvable(ctx, r.db, claimID, "")
		}
		return nil, fmt.Errorf("mark claim rejected: %w", err)
	}
	return claim, nil
}

// classifyUnresolvable explains why a guarded status UPDATE matched no row.
// An empty tenantID skips the ownership check.
func classifyUnresolvable(ctx context.Context, q database.Querier, claimID, tenantID string) error {
	var (
		owner  string
		status domain.PaymentStatus
	)
	err := q.QueryRow(ctx, claimStateQuery, claimID).Scan(&owner, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrClaimNotFound
		}
		return fmt.Errorf("read claim state: %w", err)
	}
	if status != domain.PaymentStatusPending {
		return fmt.Errorf("%w: claim %s is %s", domain.ErrInvalidStateTransition, claimID, status)
	}
	if tenantID != "" && owner != tenantID {
		return domain.ErrClaimTenantMismatch
	}
	// Pending and owned but the UPDATE missed it: a concurrent resolution won.
	return fmt.Errorf("%w: claim %s changed concurrently", domain.ErrInvalidStateTransition, claimID)
}
