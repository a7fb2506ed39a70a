package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/madrasahportal/golang_services/internal/billing_service/domain"
	"github.com/madrasahportal/golang_services/internal/billing_service/repository"
	"github.com/madrasahportal/golang_services/internal/platform/database"
)

const (
	tenantColumns = `id, name, COALESCE(phone, ''), COALESCE(sms_balance, 0), COALESCE(is_active, TRUE), reve_api_key, reve_secret_key, reve_caller_id, reve_client_id, created_at`

	getTenantQuery    = `SELECT ` + tenantColumns + ` FROM madrasahs WHERE id = $1`
	listTenantsQuery  = `SELECT ` + tenantColumns + ` FROM madrasahs WHERE is_super_admin = FALSE ORDER BY created_at DESC`
	totalBalanceQuery = `SELECT COALESCE(SUM(sms_balance), 0) FROM madrasahs WHERE is_super_admin = FALSE`

	updateTenantProfileQuery = `UPDATE madrasahs SET name = $2, phone = $3, is_active = $4, reve_api_key = $5, reve_secret_key = $6, reve_caller_id = $7, reve_client_id = $8 WHERE id = $1 AND is_super_admin = FALSE RETURNING ` + tenantColumns
)

type PgTenantRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgTenantRepository(db database.Querier, logger *slog.Logger) repository.TenantRepository {
	return &PgTenantRepository{db: db, logger: logger.With("component", "tenant_repository_pg")}
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(
		&t.ID, &t.Name, &t.Phone, &t.SMSBalance, &t.IsActive,
		&t.Gateway.APIKey, &t.Gateway.SecretKey, &t.Gateway.CallerID, &t.Gateway.ClientID,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PgTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	t, err := scanTenant(r.db.QueryRow(ctx, getTenantQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *PgTenantRepository) TotalBalance(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, totalBalanceQuery).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PgTenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.db.Query(ctx, listTenantsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *PgTenantRepository) UpdateProfile(ctx context.Context, id string, profile domain.TenantProfile) (*domain.Tenant, error) {
	p := profile.Normalized()
	o := p.Override()
	t, err := scanTenant(r.db.QueryRow(ctx, updateTenantProfileQuery,
		id, p.Name, p.Phone, p.IsActive, o.APIKey, o.SecretKey, o.CallerID, o.ClientID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, fmt.Errorf("update tenant profile: %w", err)
	}
	r.logger.InfoContext(ctx, "Tenant profile updated", "tenant_id", id, "is_active", t.IsActive)
	return t, nil
}
