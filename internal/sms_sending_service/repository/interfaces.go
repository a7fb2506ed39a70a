package repository

import (
	"context"

	coreSmsDomain "github.com/madrasahportal/golang_services/internal/core_sms/domain"
)

// RecipientRepository resolves guardian contacts for a tenant's students.
// Every lookup is scoped to the tenant; ids of other tenants are ignored.
type RecipientRepository interface {
	// ListByStudentIDs returns recipients in the order of ids. Unknown ids
	// and students without a guardian phone are skipped.
	ListByStudentIDs(ctx context.Context, tenantID string, ids []string) ([]coreSmsDomain.Recipient, error)
	// ListByClass returns all students of a class ordered by name.
	ListByClass(ctx context.Context, tenantID, classID string) ([]coreSmsDomain.Recipient, error)
}
