package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	billingDomain "github.com/madrasahportal/golang_services/internal/billing_service/domain"
	coreSmsDomain "github.com/madrasahportal/golang_services/internal/core_sms/domain"
)

// GlobalSettingsAdmin reads and replaces the system-wide gateway settings.
type GlobalSettingsAdmin interface {
	Get(ctx context.Context) billingDomain.GlobalSettings
	Update(ctx context.Context, settings billingDomain.GlobalSettings) (billingDomain.GlobalSettings, error)
}

// TenantAdmin manages madrasah profiles.
type TenantAdmin interface {
	List(ctx context.Context) ([]billingDomain.Tenant, error)
	UpdateProfile(ctx context.Context, tenantID string, profile billingDomain.TenantProfile) (*billingDomain.Tenant, error)
}

type AdminHandler struct {
	settings GlobalSettingsAdmin
	tenants  TenantAdmin
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAdminHandler(settings GlobalSettingsAdmin, tenants TenantAdmin, validate *validator.Validate, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		settings: settings,
		tenants:  tenants,
		validate: validate,
		logger:   logger.With("handler", "admin"),
	}
}

// RegisterRoutes expects RequireAdmin to be applied to r.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.handleGetSettings)
	r.Put("/settings", h.handleUpdateSettings)
	r.Get("/madrasahs", h.handleListMadrasahs)
	r.Patch("/madrasahs/{madrasahID}", h.handleUpdateMadrasah)
}

func (h *AdminHandler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", chi_middleware.GetReqID(r.Context()))
}

func (h *AdminHandler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, toSettingsDTO(h.settings.Get(r.Context())))
}

func (h *AdminHandler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	var req GlobalSettingsDTO
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, r, logger, err)
		return
	}
	effective, err := h.settings.Update(r.Context(), billingDomain.GlobalSettings{
		Gateway: coreSmsDomain.GatewayCredentials{
			APIKey:    req.APIKey,
			SecretKey: req.SecretKey,
			CallerID:  req.CallerID,
			ClientID:  req.ClientID,
		},
		SupportNumber: req.BkashNumber,
	})
	if err != nil {
		writeServiceError(w, r, logger, err)
		return
	}
	jsonResponse(w, http.StatusOK, toSettingsDTO(effective))
}

func (h *AdminHandler) handleListMadrasahs(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenants.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.requestLogger(r), err)
		return
	}
	out := make([]MadrasahDTO, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toMadrasahDTO(t))
	}
	jsonResponse(w, http.StatusOK, MadrasahListResponse{Madrasahs: out})
}

func (h *AdminHandler) handleUpdateMadrasah(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	tenantID := strings.TrimSpace(chi.URLParam(r, "madrasahID"))

	var req UpdateMadrasahRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, r, logger, err)
		return
	}
	tenant, err := h.tenants.UpdateProfile(r.Context(), tenantID, billingDomain.TenantProfile{
		Name:     req.Name,
		Phone:    req.Phone,
		IsActive: *req.IsActive,
		Gateway: coreSmsDomain.GatewayCredentials{
			APIKey:    req.ReveAPIKey,
			SecretKey: req.ReveSecretKey,
			CallerID:  req.ReveCallerID,
			ClientID:  req.ReveClientID,
		},
	})
	if err != nil {
		writeServiceError(w, r, logger.With("madrasah_id", tenantID), err)
		return
	}
	jsonResponse(w, http.StatusOK, toMadrasahDTO(*tenant))
}

func toSettingsDTO(s billingDomain.GlobalSettings) GlobalSettingsDTO {
	return GlobalSettingsDTO{
		APIKey:      s.Gateway.APIKey,
		SecretKey:   s.Gateway.SecretKey,
		CallerID:    s.Gateway.CallerID,
		ClientID:    s.Gateway.ClientID,
		BkashNumber: s.SupportNumber,
	}
}

func toMadrasahDTO(t billingDomain.Tenant) MadrasahDTO {
	return MadrasahDTO{
		ID:            t.ID,
		Name:          t.Name,
		Phone:         t.Phone,
		SMSBalance:    t.SMSBalance,
		IsActive:      t.IsActive,
		ReveAPIKey:    t.Gateway.APIKey,
		ReveSecretKey: t.Gateway.SecretKey,
		ReveCallerID:  t.Gateway.CallerID,
		ReveClientID:  t.Gateway.ClientID,
		CreatedAt:     t.CreatedAt,
	}
}
