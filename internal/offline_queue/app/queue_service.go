package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/madrasahportal/golang_services/internal/offline_queue/domain"
	"github.com/madrasahportal/golang_services/internal/offline_queue/repository"
)

// Applier executes one queued mutation against the backing store.
type Applier interface {
	Apply(ctx context.Context, scope string, entry domain.Entry) error
}

// QueueService records offline mutations and replays them in order.
type QueueService struct {
	store  repository.QueueStore
	tables map[string]bool
	logger *slog.Logger
}

func NewQueueService(store repository.QueueStore, tables []string, logger *slog.Logger) *QueueService {
	allowed := make(map[string]bool, len(tables))
	for _, t := range tables {
		allowed[strings.TrimSpace(t)] = true
	}
	return &QueueService{store: store, tables: allowed, logger: logger.With("service", "offline_queue")}
}

// Enqueue validates and appends a mutation to the scope's queue.
func (s *QueueService) Enqueue(ctx context.Context, scope, table, operation string, payload json.RawMessage) (*domain.Entry, error) {
	if !s.tables[table] {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedTable, table)
	}
	op, err := domain.ParseOperation(operation)
	if err != nil {
		return nil, err
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' || !json.Valid(payload) {
		return nil, domain.ErrInvalidPayload
	}

	entry := domain.Entry{
		ID:          uuid.NewString(),
		Table:       table,
		Operation:   op,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
		Fingerprint: domain.Fingerprint(table, op, payload),
	}
	if op != domain.OperationInsert {
		if _, err := entry.RowID(); err != nil {
			return nil, fmt.Errorf("%s needs a row id: %w", op, err)
		}
	}
	if err := s.store.Append(ctx, scope, entry); err != nil {
		return nil, err
	}
	queueEnqueuedCounter.WithLabelValues(table).Inc()
	s.logger.DebugContext(ctx, "Queued offline mutation", "scope", scope, "id", entry.ID, "table", table, "operation", op, "fingerprint", entry.Fingerprint)
	return &entry, nil
}

func (s *QueueService) Pending(ctx context.Context, scope string) ([]domain.Entry, error) {
	return s.store.List(ctx, scope)
}

// Replay applies entries oldest first. An entry is removed only after it was
// applied; failed entries stay queued and the pass continues with the next.
// Duplicate content is logged, not skipped.
func (s *QueueService) Replay(ctx context.Context, scope string, applier Applier) (*domain.ReplayReport, error) {
	entries, err := s.store.List(ctx, scope)
	if err != nil {
		return nil, err
	}

	report := &domain.ReplayReport{}
	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			report.Remaining = len(entries) - report.Applied
			return report, err
		}
		if first, dup := seen[e.Fingerprint]; dup && e.Fingerprint != "" {
			s.logger.WarnContext(ctx, "Replaying duplicate offline mutation", "scope", scope, "id", e.ID, "duplicate_of", first, "fingerprint", e.Fingerprint)
		} else {
			seen[e.Fingerprint] = e.ID
		}

		if err := applier.Apply(ctx, scope, e); err != nil {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, e.ID)
			queueReplayedCounter.WithLabelValues("failed").Inc()
			s.logger.WarnContext(ctx, "Offline mutation failed, keeping it queued", "scope", scope, "id", e.ID, "table", e.Table, "operation", e.Operation, "error", err)
			continue
		}
		if err := s.store.Remove(ctx, scope, e.ID); err != nil {
			// Applied but still queued: the next pass replays it again.
			s.logger.ErrorContext(ctx, "Failed to dequeue applied mutation", "scope", scope, "id", e.ID, "error", err)
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, e.ID)
			continue
		}
		report.Applied++
		queueReplayedCounter.WithLabelValues("applied").Inc()
	}
	report.Remaining = len(entries) - report.Applied

	s.logger.InfoContext(ctx, "Offline queue replayed", "scope", scope, "applied", report.Applied, "failed", report.Failed)
	return report, nil
}
