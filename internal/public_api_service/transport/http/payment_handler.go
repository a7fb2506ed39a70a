package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	billingApp "github.com/madrasahportal/golang_services/internal/billing_service/app"
	billingDomain "github.com/madrasahportal/golang_services/internal/billing_service/domain"
)

// PaymentClaims is the recharge claim workflow.
type PaymentClaims interface {
	Submit(ctx context.Context, req billingApp.SubmitClaimRequest) (*billingDomain.PaymentClaim, error)
	Approve(ctx context.Context, claimID, tenantID string, smsAmount int64) (*billingDomain.PaymentClaim, error)
	Reject(ctx context.Context, claimID string) (*billingDomain.PaymentClaim, error)
	ListPending(ctx context.Context) ([]billingDomain.PaymentClaim, error)
	ListHistory(ctx context.Context) ([]billingDomain.PaymentClaim, error)
	ListForTenant(ctx context.Context, tenantID string) ([]billingDomain.PaymentClaim, error)
}

type TotalBalancer interface {
	TotalBalance(ctx context.Context) (int64, error)
}

type PaymentHandler struct {
	claims   PaymentClaims
	totals   TotalBalancer
	validate *validator.Validate
	logger   *slog.Logger
}

func NewPaymentHandler(claims PaymentClaims, totals TotalBalancer, validate *validator.Validate, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		claims:   claims,
		totals:   totals,
		validate: validate,
		logger:   logger.With("handler", "payment"),
	}
}

// RegisterRoutes registers the tenant side of the recharge flow.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/payments", h.handleSubmit)
	r.Get("/payments", h.handleListOwn)
}

// RegisterAdminRoutes expects RequireAdmin to be applied to r.
func (h *PaymentHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/payments/pending", h.handleListPending)
	r.Get("/payments/history", h.handleListHistory)
	r.Post("/payments/{claimID}/approve", h.handleApprove)
	r.Post("/payments/{claimID}/reject", h.handleReject)
	r.Get("/stats", h.handleStats)
}

func (h *PaymentHandler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", chi_middleware.GetReqID(r.Context()))
}

func (h *PaymentHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	user, ok := authenticatedUser(w, r, logger)
	if !ok {
		return
	}

	var req SubmitPaymentRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, r, logger, err)
		return
	}
	claim, err := h.claims.Submit(r.Context(), billingApp.SubmitClaimRequest{
		TenantID:       user.TenantID,
		Amount:         req.Amount,
		SenderPhone:    req.SenderPhone,
		TransactionRef: req.TransactionRef,
	})
	if err != nil {
		writeServiceError(w, r, logger, err)
		return
	}
	jsonResponse(w, http.StatusCreated, claim)
}

func (h *PaymentHandler) handleListOwn(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	user, ok := authenticatedUser(w, r, logger)
	if !ok {
		return
	}
	h.writeClaims(w, r, logger, func(ctx context.Context) ([]billingDomain.PaymentClaim, error) {
		return h.claims.ListForTenant(ctx, user.TenantID)
	})
}

func (h *PaymentHandler) handleListPending(w http.ResponseWriter, r *http.Request) {
	h.writeClaims(w, r, h.requestLogger(r), h.claims.ListPending)
}

func (h *PaymentHandler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	h.writeClaims(w, r, h.requestLogger(r), h.claims.ListHistory)
}

func (h *PaymentHandler) writeClaims(w http.ResponseWriter, r *http.Request, logger *slog.Logger, list func(context.Context) ([]billingDomain.PaymentClaim, error)) {
	claims, err := list(r.Context())
	if err != nil {
		writeServiceError(w, r, logger, err)
		return
	}
	if claims == nil {
		claims = []billingDomain.PaymentClaim{}
	}
	jsonResponse(w, http.StatusOK, PaymentListResponse{Claims: claims})
}

func (h *PaymentHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	claimID := strings.TrimSpace(chi.URLParam(r, "claimID"))

	var req ApprovePaymentRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, r, logger, err)
		return
	}
	claim, err := h.claims.Approve(r.Context(), claimID, req.TenantID, req.SMSAmount)
	if err != nil {
		writeServiceError(w, r, logger.With("claim_id", claimID), err)
		return
	}
	jsonResponse(w, http.StatusOK, claim)
}

func (h *PaymentHandler) handleReject(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	claimID := strings.TrimSpace(chi.URLParam(r, "claimID"))

	claim, err := h.claims.Reject(r.Context(), claimID)
	if err != nil {
		writeServiceError(w, r, logger.With("claim_id", claimID), err)
		return
	}
	jsonResponse(w, http.StatusOK, claim)
}

// handleStats reports SMS credits currently held by tenants.
func (h *PaymentHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.totals.TotalBalance(r.Context())
	if err != nil {
		writeServiceError(w, r, h.requestLogger(r), err)
		return
	}
	jsonResponse(w, http.StatusOK, AdminStatsResponse{TotalDistributedSMS: total})
}
