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

// GlobalSettingsID is the primary key of the system_settings singleton row.
const GlobalSettingsID = "00000000-0000-0000-0000-000000000001"

const upsertSettingsQuery = `INSERT INTO system_settings (id, reve_api_key, reve_secret_key, reve_caller_id, reve_client_id, bkash_number, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	ON CONFLICT (id) DO UPDATE SET
		reve_api_key = EXCLUDED.reve_api_key,
		reve_secret_key = EXCLUDED.reve_secret_key,
		reve_caller_id = EXCLUDED.reve_caller_id,
		reve_client_id = EXCLUDED.reve_client_id,
		bkash_number = EXCLUDED.bkash_number,
		updated_at = EXCLUDED.updated_at`

type PgSettingsRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgSettingsRepository(db database.Querier, logger *slog.Logger) repository.SettingsRepository {
	return &PgSettingsRepository{db: db, logger: logger.With("component", "settings_repository_pg")}
}

func (r *PgSettingsRepository) Get(ctx context.Context) (*domain.GlobalSettings, error) {
	query := `SELECT COALESCE(reve_api_key, ''), COALESCE(reve_secret_key, ''), COALESCE(reve_caller_id, ''), COALESCE(reve_client_id, ''), COALESCE(bkash_number, '') FROM system_settings WHERE id = $1`

	var s domain.GlobalSettings
	err := r.db.QueryRow(ctx, query, GlobalSettingsID).Scan(
		&s.Gateway.APIKey, &s.Gateway.SecretKey, &s.Gateway.CallerID, &s.Gateway.ClientID, &s.SupportNumber,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *PgSettingsRepository) Update(ctx context.Context, settings domain.GlobalSettings) error {
	s := settings.Trimmed()
	_, err := r.db.Exec(ctx, upsertSettingsQuery,
		GlobalSettingsID, s.Gateway.APIKey, s.Gateway.SecretKey, s.Gateway.CallerID, s.Gateway.ClientID, s.SupportNumber,
	)
	if err != nil {
		return fmt.Errorf("update global settings: %w", err)
	}
	r.logger.InfoContext(ctx, "Global settings updated")
	return nil
}
