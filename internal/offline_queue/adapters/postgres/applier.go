package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/madrasahportal/golang_services/internal/offline_queue/domain"
	"github.com/madrasahportal/golang_services/internal/platform/database"
)

// tenantColumn scopes every replayed statement to the queue's tenant.
const tenantColumn = "madrasah_id"

var columnName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Applier replays queued mutations as parameterized SQL. Only whitelisted
// tables are touched and the tenant column is always forced to the scope.
type Applier struct {
	db     database.Querier
	tables map[string]bool
	logger *slog.Logger
}

func NewApplier(db database.Querier, tables []string, logger *slog.Logger) *Applier {
	allowed := make(map[string]bool, len(tables))
	for _, t := range tables {
		allowed[t] = true
	}
	return &Applier{db: db, tables: allowed, logger: logger.With("component", "offline_applier_pg")}
}

func (a *Applier) Apply(ctx context.Context, scope string, e domain.Entry) error {
	if !a.tables[e.Table] {
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedTable, e.Table)
	}
	sql, args, err := buildStatement(scope, e)
	if err != nil {
		return err
	}
	tag, err := a.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("replay %s on %s: %w", e.Operation, e.Table, err)
	}
	a.logger.DebugContext(ctx, "Replayed offline mutation", "scope", scope, "id", e.ID, "table", e.Table, "operation", e.Operation, "rows", tag.RowsAffected())
	return nil
}

func buildStatement(scope string, e domain.Entry) (string, []any, error) {
	table := pgx.Identifier{e.Table}.Sanitize()

	switch e.Operation {
	case domain.OperationInsert:
		cols, vals, err := decodeColumns(e.Payload)
		if err != nil {
			return "", nil, err
		}
		cols, vals = withTenant(cols, vals, scope)
		placeholders := make([]string, len(cols))
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = pgx.Identifier{c}.Sanitize()
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
		return sql, vals, nil

	case domain.OperationUpdate:
		rowID, err := e.RowID()
		if err != nil {
			return "", nil, err
		}
		cols, vals, err := decodeColumns(e.Payload)
		if err != nil {
			return "", nil, err
		}
		sets := make([]string, 0, len(cols))
		args := make([]any, 0, len(cols)+2)
		for i, c := range cols {
			if c == "id" || c == tenantColumn {
				continue
			}
			args = append(args, vals[i])
			sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{c}.Sanitize(), len(args)))
		}
		if len(sets) == 0 {
			return "", nil, fmt.Errorf("%w: update has no columns", domain.ErrInvalidPayload)
		}
		args = append(args, rowID, scope)
		sql := fmt.Sprintf("UPDATE %s SET %s WHERE \"id\" = $%d AND \"%s\" = $%d", table, strings.Join(sets, ", "), len(args)-1, tenantColumn, len(args))
		return sql, args, nil

	case domain.OperationDelete:
		rowID, err := e.RowID()
		if err != nil {
			return "", nil, err
		}
		sql := fmt.Sprintf("DELETE FROM %s WHERE \"id\" = $1 AND \"%s\" = $2", table, tenantColumn)
		return sql, []any{rowID, scope}, nil
	}
	return "", nil, domain.ErrUnsupportedOperation
}

// decodeColumns returns payload keys sorted with their values.
func decodeColumns(payload []byte) ([]string, []any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, nil, domain.ErrInvalidPayload
	}

	cols := make([]string, 0, len(fields))
	for k := range fields {
		if !columnName.MatchString(k) {
			return nil, nil, fmt.Errorf("%w: bad column %q", domain.ErrInvalidPayload, k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = columnValue(fields[c])
	}
	return cols, vals, nil
}

func columnValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	case map[string]any, []any:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return t
	}
}

func withTenant(cols []string, vals []any, scope string) ([]string, []any) {
	for i, c := range cols {
		if c == tenantColumn {
			vals[i] = scope
			return cols, vals
		}
	}
	return append(cols, tenantColumn), append(vals, scope)
}
