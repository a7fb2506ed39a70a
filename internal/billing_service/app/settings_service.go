package app

import (
	"context"
	"log/slog"

	"github.com/madrasahportal/golang_services/internal/billing_service/domain"
	"github.com/madrasahportal/golang_services/internal/billing_service/repository"
)

// SettingsService reads the global settings row and fills gaps from the
// configured defaults.
type SettingsService struct {
	repo     repository.SettingsRepository
	defaults domain.GlobalSettings
	logger   *slog.Logger
}

func NewSettingsService(repo repository.SettingsRepository, defaults domain.GlobalSettings, logger *slog.Logger) *SettingsService {
	return &SettingsService{repo: repo, defaults: defaults, logger: logger.With("service", "settings")}
}

// Get never fails: a missing row or a read error yields the defaults.
func (s *SettingsService) Get(ctx context.Context) domain.GlobalSettings {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Falling back to default global settings", "error", err)
		return s.defaults
	}
	if settings == nil {
		return s.defaults
	}
	return settings.WithDefaults(s.defaults)
}

// SupportNumber is the bKash number tenants send recharge payments to.
func (s *SettingsService) SupportNumber(ctx context.Context) string {
	return s.Get(ctx).SupportNumber
}

// Update replaces the stored global settings. Blank fields are stored blank
// and fall back to the configured defaults on read.
func (s *SettingsService) Update(ctx context.Context, settings domain.GlobalSettings) (domain.GlobalSettings, error) {
	if err := s.repo.Update(ctx, settings); err != nil {
		s.logger.ErrorContext(ctx, "Failed to update global settings", "error", err)
		return domain.GlobalSettings{}, err
	}
	adminUpdatesCounter.WithLabelValues("settings").Inc()
	s.logger.InfoContext(ctx, "Global settings updated", "support_number", settings.Trimmed().SupportNumber)
	return s.Get(ctx), nil
}
