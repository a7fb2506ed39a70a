package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	coreSmsDomain "github.com/madrasahportal/golang_services/internal/core_sms/domain"
	"github.com/madrasahportal/golang_services/internal/platform/database"
	"github.com/madrasahportal/golang_services/internal/sms_sending_service/repository"
)

type PgRecipientRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgRecipientRepository(db database.Querier, logger *slog.Logger) repository.RecipientRepository {
	return &PgRecipientRepository{db: db, logger: logger.With("component", "recipient_repository_pg")}
}

func (r *PgRecipientRepository) ListByStudentIDs(ctx context.Context, tenantID string, ids []string) ([]coreSmsDomain.Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, student_name, guardian_phone FROM students WHERE madrasah_id = $1 AND id = ANY($2) AND COALESCE(guardian_phone, '') <> ''`

	found, err := r.collect(ctx, query, tenantID, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]coreSmsDomain.Recipient, len(found))
	for _, rc := range found {
		byID[rc.StudentID] = rc
	}
	out := make([]coreSmsDomain.Recipient, 0, len(found))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		rc, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, rc)
	}
	if skipped := len(ids) - len(out); skipped > 0 {
		r.logger.DebugContext(ctx, "Some student ids had no usable recipient", "tenant_id", tenantID, "skipped", skipped)
	}
	return out, nil
}

func (r *PgRecipientRepository) ListByClass(ctx context.Context, tenantID, classID string) ([]coreSmsDomain.Recipient, error) {
	query := `SELECT id, student_name, guardian_phone FROM students WHERE madrasah_id = $1 AND class_id = $2 AND COALESCE(guardian_phone, '') <> '' ORDER BY student_name`
	return r.collect(ctx, query, tenantID, classID)
}

func (r *PgRecipientRepository) collect(ctx context.Context, query string, args ...any) ([]coreSmsDomain.Recipient, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	recipients, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (coreSmsDomain.Recipient, error) {
		var rc coreSmsDomain.Recipient
		err := row.Scan(&rc.StudentID, &rc.Name, &rc.Phone)
		return rc, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan recipients: %w", err)
	}
	return recipients, nil
}
