package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/madrasahportal/golang_services/internal/billing_service/domain"
	"github.com/madrasahportal/golang_services/internal/billing_service/repository"
)

type tenantProfileRules struct {
	Name  string `validate:"required,max=200"`
	Phone string `validate:"max=20"`
}

// TenantService lets administrators list madrasahs and edit their profile,
// active flag and gateway overrides.
type TenantService struct {
	tenants  repository.TenantRepository
	validate *validator.Validate
	logger   *slog.Logger
}

func NewTenantService(tenants repository.TenantRepository, logger *slog.Logger) *TenantService {
	return &TenantService{
		tenants:  tenants,
		validate: validator.New(),
		logger:   logger.With("service", "tenants"),
	}
}

// List returns every non-admin tenant, newest first.
func (s *TenantService) List(ctx context.Context) ([]domain.Tenant, error) {
	return s.tenants.List(ctx)
}

// UpdateProfile applies an administrator edit. Suspending a tenant takes
// effect on its next bulk send; the balance is left as is.
func (s *TenantService) UpdateProfile(ctx context.Context, tenantID string, profile domain.TenantProfile) (*domain.Tenant, error) {
	p := profile.Normalized()
	if err := s.validate.Struct(tenantProfileRules{Name: p.Name, Phone: p.Phone}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTenantProfile, err)
	}

	tenant, err := s.tenants.UpdateProfile(ctx, tenantID, p)
	if err != nil {
		return nil, err
	}
	adminUpdatesCounter.WithLabelValues("tenant").Inc()
	s.logger.InfoContext(ctx, "Tenant profile updated", "tenant_id", tenantID, "is_active", tenant.IsActive)
	return tenant, nil
}
