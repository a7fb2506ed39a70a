package repository

import (
	"context"

	"github.com/madrasahportal/golang_services/internal/offline_queue/domain"
)

// QueueStore persists offline entries per scope (one scope per tenant) in
// insertion order.
type QueueStore interface {
	Append(ctx context.Context, scope string, entry domain.Entry) error
	// List returns entries oldest first.
	List(ctx context.Context, scope string) ([]domain.Entry, error)
	// Remove deletes one entry; removing a missing id is not an error.
	Remove(ctx context.Context, scope, id string) error
}
