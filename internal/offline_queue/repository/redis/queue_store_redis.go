package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/madrasahportal/golang_services/internal/offline_queue/domain"
	"github.com/madrasahportal/golang_services/internal/offline_queue/repository"
)

const keyPrefix = "sync_queue:"

// QueueStore keeps a list of ids for order and a hash of id to entry JSON,
// both per scope. The two keys are always written in one MULTI block.
type QueueStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewQueueStore(client *redis.Client, logger *slog.Logger) repository.QueueStore {
	return &QueueStore{client: client, logger: logger.With("component", "queue_store_redis")}
}

func orderKey(scope string) string   { return keyPrefix + scope }
func entriesKey(scope string) string { return keyPrefix + scope + ":entries" }

func (s *QueueStore) Append(ctx context.Context, scope string, entry domain.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal queue entry: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, entriesKey(scope), entry.ID, data)
		pipe.RPush(ctx, orderKey(scope), entry.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append queue entry: %w", err)
	}
	return nil
}

func (s *QueueStore) List(ctx context.Context, scope string) ([]domain.Entry, error) {
	ids, err := s.client.LRange(ctx, orderKey(scope), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read queue order: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, entriesKey(scope), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read queue entries: %w", err)
	}

	entries := make([]domain.Entry, 0, len(ids))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			s.logger.WarnContext(ctx, "Queue id without entry", "scope", scope, "id", ids[i])
			continue
		}
		var e domain.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			s.logger.WarnContext(ctx, "Skipping undecodable queue entry", "scope", scope, "id", ids[i], "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *QueueStore) Remove(ctx context.Context, scope, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, orderKey(scope), 0, id)
		pipe.HDel(ctx, entriesKey(scope), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove queue entry: %w", err)
	}
	return nil
}
