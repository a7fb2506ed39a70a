package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	billingDomain "github.com/madrasahportal/golang_services/internal/billing_service/domain"
	coreSmsDomain "github.com/madrasahportal/golang_services/internal/core_sms/domain"
	"github.com/madrasahportal/golang_services/internal/public_api_service/middleware"
	smsApp "github.com/madrasahportal/golang_services/internal/sms_sending_service/app"
)

// Dispatcher sends messages on behalf of a tenant.
type Dispatcher interface {
	SendBulk(ctx context.Context, req smsApp.BulkSendRequest) (*smsApp.BulkSendResult, error)
	SendDirect(ctx context.Context, req smsApp.DirectSendRequest) error
}

type BalanceReader interface {
	Balance(ctx context.Context, tenantID string) (int64, error)
	History(ctx context.Context, tenantID string, limit int) ([]billingDomain.LedgerEntry, error)
}

type RechargeInfo interface {
	SupportNumber(ctx context.Context) string
}

type MessageHandler struct {
	dispatcher Dispatcher
	balances   BalanceReader
	recharge   RechargeInfo
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewMessageHandler(dispatcher Dispatcher, balances BalanceReader, recharge RechargeInfo, validate *validator.Validate, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		dispatcher: dispatcher,
		balances:   balances,
		recharge:   recharge,
		validate:   validate,
		logger:     logger.With("handler", "message"),
	}
}

// RegisterRoutes registers tenant messaging routes. AuthMiddleware must
// already be applied to r.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings/recharge", h.handleRechargeInfo)
	r.Get("/sms/balance", h.handleBalance)
	r.Get("/sms/ledger", h.handleLedger)
	r.Post("/sms/bulk", h.handleSendBulk)
	r.Post("/sms/direct", h.handleSendDirect)
	r.Post("/sms/stats", h.handleMessageStats)
}

func (h *MessageHandler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", chi_middleware.GetReqID(r.Context()))
}

func (h *MessageHandler) handleRechargeInfo(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, RechargeInfoResponse{SupportNumber: h.recharge.SupportNumber(r.Context())})
}

func (h *MessageHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	user, ok := authenticatedUser(w, r, logger)
	if !ok {
		return
	}
	balance, err := h.balances.Balance(r.Context(), user.TenantID)
	if err != nil {
		writeServiceError(w, r, logger, err)
		return
	}
	jsonResponse(w, http.StatusOK, BalanceResponse{TenantID: user.TenantID, Balance: balance})
}

func (h *MessageHandler) handleLedger(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	user, ok := authenticatedUser(w, r, logger)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonError(w, r, logger, http.StatusBadRequest, GenericErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	entries, err := h.balances.History(r.Context(), user.TenantID, limit)
	if err != nil {
		writeServiceError(w, r, logger, err)
		return
	}
	if entries == nil {
		entries = []billingDomain.LedgerEntry{}
	}
	jsonResponse(w, http.StatusOK, LedgerResponse{Entries: entries})
}

func (h *MessageHandler) handleSendBulk(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	user, ok := authenticatedUser(w, r, logger)
	if !ok {
		return
	}
	logger = logger.With("tenant_id", user.TenantID)

	var req BulkSendRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, r, logger, err)
		return
	}

	recipients := make([]coreSmsDomain.Recipient, len(req.Recipients))
	for i, rc := range req.Recipients {
		recipients[i] = coreSmsDomain.Recipient{StudentID: rc.StudentID, Name: rc.Name, Phone: rc.Phone}
	}
	result, err := h.dispatcher.SendBulk(r.Context(), smsApp.BulkSendRequest{
		TenantID:   user.TenantID,
		Message:    req.Message,
		Recipients: recipients,
		StudentIDs: req.StudentIDs,
		ClassID:    req.ClassID,
	})
	if err != nil {
		writeServiceError(w, r, logger, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

func (h *MessageHandler) handleSendDirect(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	user, ok := authenticatedUser(w, r, logger)
	if !ok {
		return
	}

	var req DirectSendRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, r, logger, err)
		return
	}
	err := h.dispatcher.SendDirect(r.Context(), smsApp.DirectSendRequest{
		TenantID: user.TenantID,
		Phone:    req.Phone,
		Message:  req.Message,
	})
	if err != nil {
		writeServiceError(w, r, logger, err)
		return
	}
	jsonResponse(w, http.StatusAccepted, DirectSendResponse{Status: "accepted"})
}

// handleMessageStats is advisory; an empty message yields zero segments.
func (h *MessageHandler) handleMessageStats(w http.ResponseWriter, r *http.Request) {
	var req MessageStatsRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, r, h.requestLogger(r), err)
		return
	}
	jsonResponse(w, http.StatusOK, coreSmsDomain.ComputeStats(req.Message))
}

func authenticatedUser(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (middleware.AuthenticatedUser, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		logger.WarnContext(r.Context(), "User not authenticated")
		jsonError(w, r, logger, http.StatusUnauthorized, GenericErrorResponse{Error: "user not authenticated"})
	}
	return user, ok
}
