package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	billingApp "github.com/madrasahportal/golang_services/internal/billing_service/app"
	billingDomain "github.com/madrasahportal/golang_services/internal/billing_service/domain"
	offlineDomain "github.com/madrasahportal/golang_services/internal/offline_queue/domain"
	smsApp "github.com/madrasahportal/golang_services/internal/sms_sending_service/app"
)

const maxBodyBytes = 1 << 20

// insufficientBalanceMessage is shown to the user as is, so it carries both
// interface languages.
const insufficientBalanceMessage = "ব্যালেন্স পর্যাপ্ত নয়। অনুগ্রহ করে রিচার্জ করুন। / Insufficient SMS balance. Please recharge."

var errEmptyBody = errors.New("request body is empty")

func jsonResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, statusCode int, resp GenericErrorResponse) {
	logger.WarnContext(r.Context(), "API error response", "status_code", statusCode, "error", resp.Error)
	jsonResponse(w, statusCode, resp)
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func decodeAndValidate(r *http.Request, validate *validator.Validate, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return validate.Struct(dst)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, billingDomain.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, billingDomain.ErrTenantSuspended):
		return http.StatusForbidden
	case errors.Is(err, billingDomain.ErrTenantNotFound),
		errors.Is(err, billingDomain.ErrClaimNotFound),
		errors.Is(err, offlineDomain.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, billingDomain.ErrInvalidStateTransition),
		errors.Is(err, billingDomain.ErrClaimTenantMismatch):
		return http.StatusConflict
	case errors.Is(err, billingApp.ErrInvalidClaim),
		errors.Is(err, billingApp.ErrInvalidTenantProfile),
		errors.Is(err, billingDomain.ErrInvalidAmount),
		errors.Is(err, billingDomain.ErrInvalidSMSAmount),
		errors.Is(err, smsApp.ErrNoRecipients),
		errors.Is(err, smsApp.ErrEmptyMessage),
		errors.Is(err, smsApp.ErrInvalidPhone),
		errors.Is(err, offlineDomain.ErrUnsupportedTable),
		errors.Is(err, offlineDomain.ErrUnsupportedOperation),
		errors.Is(err, offlineDomain.ErrMissingRowID),
		errors.Is(err, offlineDomain.ErrInvalidPayload):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	resp := GenericErrorResponse{Error: err.Error()}
	switch status {
	case http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		resp.Error = "internal server error"
	case http.StatusPaymentRequired:
		resp.Message = insufficientBalanceMessage
	}
	jsonError(w, r, logger, status, resp)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	jsonError(w, r, logger, http.StatusBadRequest, GenericErrorResponse{Error: err.Error()})
}
