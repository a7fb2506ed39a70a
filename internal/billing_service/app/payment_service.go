package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/madrasahportal/golang_services/internal/billing_service/domain"
	"github.com/madrasahportal/golang_services/internal/billing_service/repository"
)

const defaultListLimit = 50

// SubmitClaimRequest is what a tenant reports after paying by bKash.
type SubmitClaimRequest struct {
	TenantID       string  `validate:"required"`
	Amount         float64 `validate:"gt=0"`
	SenderPhone    string  `validate:"required,min=6,max=20"`
	TransactionRef string  `validate:"required,max=64"`
}

// PaymentService drives the recharge claim lifecycle.
type PaymentService struct {
	payments repository.PaymentRepository
	validate *validator.Validate
	logger   *slog.Logger
}

func NewPaymentService(payments repository.PaymentRepository, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		payments: payments,
		validate: validator.New(),
		logger:   logger.With("service", "payments"),
	}
}

// Submit records a pending claim. No balance changes until an admin approves it.
func (s *PaymentService) Submit(ctx context.Context, req SubmitClaimRequest) (*domain.PaymentClaim, error) {
	req.SenderPhone = strings.TrimSpace(req.SenderPhone)
	req.TransactionRef = strings.TrimSpace(req.TransactionRef)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}

	claim, err := s.payments.Create(ctx, &domain.PaymentClaim{
		TenantID:       req.TenantID,
		Amount:         req.Amount,
		SenderPhone:    req.SenderPhone,
		TransactionRef: req.TransactionRef,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to store payment claim", "tenant_id", req.TenantID, "error", err)
		return nil, err
	}
	paymentClaimsCounter.WithLabelValues("submitted").Inc()
	s.logger.InfoContext(ctx, "Payment claim submitted", "claim_id", claim.ID, "tenant_id", claim.TenantID, "amount", claim.Amount)
	return claim, nil
}

// Approve credits smsAmount to the tenant and marks the claim approved as one
// unit. The amount is chosen by the administrator, not derived from the
// currency paid. Unexpected store failures are wrapped in
// domain.ErrLedgerTransaction and leave both claim and balance unchanged.
func (s *PaymentService) Approve(ctx context.Context, claimID, tenantID string, smsAmount int64) (*domain.PaymentClaim, error) {
	if smsAmount <= 0 {
		return nil, domain.ErrInvalidSMSAmount
	}
	claim, entry, err := s.payments.Approve(ctx, claimID, tenantID, smsAmount)
	if err != nil {
		paymentClaimsCounter.WithLabelValues("approve_failed").Inc()
		if isClaimStateError(err) || errors.Is(err, domain.ErrTenantNotFound) || errors.Is(err, domain.ErrInvalidSMSAmount) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Payment approval failed", "claim_id", claimID, "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrLedgerTransaction, err)
	}
	paymentClaimsCounter.WithLabelValues("approved").Inc()
	smsCreditedCounter.Add(float64(smsAmount))
	s.logger.InfoContext(ctx, "Payment claim approved", "claim_id", claimID, "tenant_id", tenantID, "sms_amount", smsAmount, "balance_after", entry.BalanceAfter)
	return claim, nil
}

func (s *PaymentService) Reject(ctx context.Context, claimID string) (*domain.PaymentClaim, error) {
	claim, err := s.payments.Reject(ctx, claimID)
	if err != nil {
		if !isClaimStateError(err) {
			s.logger.ErrorContext(ctx, "Payment rejection failed", "claim_id", claimID, "error", err)
		}
		return nil, err
	}
	paymentClaimsCounter.WithLabelValues("rejected").Inc()
	s.logger.InfoContext(ctx, "Payment claim rejected", "claim_id", claimID, "tenant_id", claim.TenantID)
	return claim, nil
}

// ListPending returns pending claims, newest first.
func (s *PaymentService) ListPending(ctx context.Context) ([]domain.PaymentClaim, error) {
	return s.payments.ListByStatus(ctx, domain.PaymentStatusPending, defaultListLimit)
}

// ListHistory returns the latest resolved claims, newest first.
func (s *PaymentService) ListHistory(ctx context.Context) ([]domain.PaymentClaim, error) {
	return s.payments.ListResolved(ctx, defaultListLimit)
}

func (s *PaymentService) ListForTenant(ctx context.Context, tenantID string) ([]domain.PaymentClaim, error) {
	return s.payments.ListByTenant(ctx, tenantID, defaultListLimit)
}

func isClaimStateError(err error) bool {
	return errors.Is(err, domain.ErrClaimNotFound) ||
		errors.Is(err, domain.ErrInvalidStateTransition) ||
		errors.Is(err, domain.ErrClaimTenantMismatch)
}
