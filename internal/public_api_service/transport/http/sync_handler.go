package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	offlineApp "github.com/madrasahportal/golang_services/internal/offline_queue/app"
	offlineDomain "github.com/madrasahportal/golang_services/internal/offline_queue/domain"
)

type SyncQueue interface {
	Enqueue(ctx context.Context, scope, table, operation string, payload json.RawMessage) (*offlineDomain.Entry, error)
	Pending(ctx context.Context, scope string) ([]offlineDomain.Entry, error)
	Replay(ctx context.Context, scope string, applier offlineApp.Applier) (*offlineDomain.ReplayReport, error)
}

// SyncHandler exposes the offline mutation queue. The queue scope is always
// the caller's madrasah.
type SyncHandler struct {
	queue    SyncQueue
	applier  offlineApp.Applier
	validate *validator.Validate
	logger   *slog.Logger
}

func NewSyncHandler(queue SyncQueue, applier offlineApp.Applier, validate *validator.Validate, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		queue:    queue,
		applier:  applier,
		validate: validate,
		logger:   logger.With("handler", "sync"),
	}
}

func (h *SyncHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sync/queue", h.handleEnqueue)
	r.Get("/sync/queue", h.handlePending)
	r.Post("/sync/replay", h.handleReplay)
}

func (h *SyncHandler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", chi_middleware.GetReqID(r.Context()))
}

func (h *SyncHandler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	user, ok := authenticatedUser(w, r, logger)
	if !ok {
		return
	}

	var req EnqueueRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeBadRequest(w, r, logger, err)
		return
	}
	entry, err := h.queue.Enqueue(r.Context(), user.TenantID, req.Table, req.Operation, req.Payload)
	if err != nil {
		writeServiceError(w, r, logger, err)
		return
	}
	jsonResponse(w, http.StatusAccepted, entry)
}

func (h *SyncHandler) handlePending(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	user, ok := authenticatedUser(w, r, logger)
	if !ok {
		return
	}
	entries, err := h.queue.Pending(r.Context(), user.TenantID)
	if err != nil {
		writeServiceError(w, r, logger, err)
		return
	}
	if entries == nil {
		entries = []offlineDomain.Entry{}
	}
	jsonResponse(w, http.StatusOK, QueueListResponse{Entries: entries, Count: len(entries)})
}

func (h *SyncHandler) handleReplay(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	user, ok := authenticatedUser(w, r, logger)
	if !ok {
		return
	}
	report, err := h.queue.Replay(r.Context(), user.TenantID, h.applier)
	if err != nil {
		writeServiceError(w, r, logger, err)
		return
	}
	jsonResponse(w, http.StatusOK, report)
}
