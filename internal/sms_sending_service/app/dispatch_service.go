package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	billingDomain "github.com/madrasahportal/golang_services/internal/billing_service/domain"
	coreSmsDomain "github.com/madrasahportal/golang_services/internal/core_sms/domain"
	"github.com/madrasahportal/golang_services/internal/sms_sending_service/provider"
	"github.com/madrasahportal/golang_services/internal/sms_sending_service/repository"
)

// DefaultBatchSize is the number of recipients per gateway request.
const DefaultBatchSize = 15

// TenantReader loads a tenant's balance, status and gateway overrides.
type TenantReader interface {
	GetByID(ctx context.Context, id string) (*billingDomain.Tenant, error)
}

// SettingsReader returns the effective global settings.
type SettingsReader interface {
	Get(ctx context.Context) billingDomain.GlobalSettings
}

// Debiter performs the atomic balance check and decrement.
type Debiter interface {
	Debit(ctx context.Context, tenantID string, count int64, details billingDomain.DebitDetails) (*billingDomain.LedgerEntry, error)
}

// BulkSendRequest selects recipients in one of three ways: explicit
// Recipients, StudentIDs, or every student of ClassID.
type BulkSendRequest struct {
	TenantID   string
	Message    string
	Recipients []coreSmsDomain.Recipient
	StudentIDs []string
	ClassID    string
}

type BulkSendResult struct {
	Debited      int64 `json:"debited"`
	Batches      int   `json:"batches"`
	BalanceAfter int64 `json:"balance_after"`
}

// DirectSendRequest sends one message without touching the ledger. TenantID
// is optional; when empty only the global credentials are used.
type DirectSendRequest struct {
	TenantID string
	Phone    string
	Message  string
}

// DispatchService debits the tenant and hands gateway requests to a publisher.
type DispatchService struct {
	tenants    TenantReader
	settings   SettingsReader
	ledger     Debiter
	recipients repository.RecipientRepository
	publisher  Publisher
	batchSize  int
	logger     *slog.Logger
}

func NewDispatchService(
	tenants TenantReader,
	settings SettingsReader,
	ledger Debiter,
	recipients repository.RecipientRepository,
	publisher Publisher,
	batchSize int,
	logger *slog.Logger,
) *DispatchService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DispatchService{
		tenants:    tenants,
		settings:   settings,
		ledger:     ledger,
		recipients: recipients,
		publisher:  publisher,
		batchSize:  batchSize,
		logger:     logger.With("service", "dispatch"),
	}
}

// SendBulk debits one credit per recipient and dispatches the message in
// batches. It returns once the debit has committed; gateway outcomes are not
// awaited. On any error before the debit nothing is charged or sent.
func (s *DispatchService) SendBulk(ctx context.Context, req BulkSendRequest) (*BulkSendResult, error) {
	timer := prometheus.NewTimer(dispatchDurationHist.WithLabelValues("bulk"))
	defer timer.ObserveDuration()

	result, err := s.sendBulk(ctx, req)
	dispatchRequestsCounter.WithLabelValues("bulk", outcomeLabel(err)).Inc()
	return result, err
}

func (s *DispatchService) sendBulk(ctx context.Context, req BulkSendRequest) (*BulkSendResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	recipients, err := s.resolveRecipients(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	count := int64(len(recipients))

	tenant, settings, err := s.loadTenantAndSettings(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if !tenant.IsActive {
		return nil, billingDomain.ErrTenantSuspended
	}
	// Fast path: refuse without touching the ledger. The debit re-checks
	// atomically, so a stale read here can only cause a later refusal.
	if tenant.SMSBalance < count {
		s.logger.InfoContext(ctx, "Bulk send refused: insufficient balance", "tenant_id", req.TenantID, "required", count, "balance", tenant.SMSBalance)
		return nil, fmt.Errorf("%w: required %d, available %d", billingDomain.ErrInsufficientBalance, count, tenant.SMSBalance)
	}

	studentIDs := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r.StudentID != "" {
			studentIDs = append(studentIDs, r.StudentID)
		}
	}
	entry, err := s.ledger.Debit(ctx, req.TenantID, count, billingDomain.DebitDetails{Message: req.Message, StudentIDs: studentIDs})
	if err != nil {
		return nil, err
	}

	creds := coreSmsDomain.ResolveCredentials(tenant.Gateway, settings.Gateway)
	batches := coreSmsDomain.Partition(recipients, s.batchSize)
	reqs := make([]provider.BulkRequest, 0, len(batches))
	var skipped, nonCanonical int
	for _, b := range batches {
		phones := b.Phones()
		skipped += len(b.Recipients) - len(phones)
		for _, p := range phones {
			if !coreSmsDomain.IsCanonicalPhone(p) {
				nonCanonical++
			}
		}
		if len(phones) == 0 {
			continue
		}
		reqs = append(reqs, provider.BulkRequest{
			TenantID:    req.TenantID,
			BatchIndex:  b.Index,
			Credentials: creds,
			Phones:      phones,
			Message:     req.Message,
		})
	}
	if skipped > 0 {
		s.logger.WarnContext(ctx, "Skipped recipients without a phone number", "tenant_id", req.TenantID, "skipped", skipped)
	}
	if nonCanonical > 0 {
		s.logger.DebugContext(ctx, "Recipients with unrecognized phone formats", "tenant_id", req.TenantID, "count", nonCanonical)
	}
	s.publisher.PublishBulk(ctx, reqs)
	recipientsDispatchedCounter.Add(float64(count))

	s.logger.InfoContext(ctx, "Bulk send dispatched", "tenant_id", req.TenantID, "recipients", count, "batches", len(reqs), "balance_after", entry.BalanceAfter)
	return &BulkSendResult{Debited: count, Batches: len(reqs), BalanceAfter: entry.BalanceAfter}, nil
}

func (s *DispatchService) resolveRecipients(ctx context.Context, req BulkSendRequest) ([]coreSmsDomain.Recipient, error) {
	switch {
	case len(req.Recipients) > 0:
		return req.Recipients, nil
	case len(req.StudentIDs) > 0:
		return s.recipients.ListByStudentIDs(ctx, req.TenantID, req.StudentIDs)
	case req.ClassID != "":
		return s.recipients.ListByClass(ctx, req.TenantID, req.ClassID)
	}
	return nil, nil
}

// loadTenantAndSettings fetches both concurrently. Settings never fail.
func (s *DispatchService) loadTenantAndSettings(ctx context.Context, tenantID string) (*billingDomain.Tenant, billingDomain.GlobalSettings, error) {
	var (
		tenant   *billingDomain.Tenant
		settings billingDomain.GlobalSettings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tenant, err = s.tenants.GetByID(gctx, tenantID)
		return err
	})
	g.Go(func() error {
		settings = s.settings.Get(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, settings, err
	}
	return tenant, settings, nil
}

// SendDirect sends a single message using tenant overrides when available.
// It is fire-and-forget and never charges a balance.
func (s *DispatchService) SendDirect(ctx context.Context, req DirectSendRequest) error {
	timer := prometheus.NewTimer(dispatchDurationHist.WithLabelValues("direct"))
	defer timer.ObserveDuration()

	err := s.sendDirect(ctx, req)
	dispatchRequestsCounter.WithLabelValues("direct", outcomeLabel(err)).Inc()
	return err
}

func (s *DispatchService) sendDirect(ctx context.Context, req DirectSendRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return ErrEmptyMessage
	}
	phone := coreSmsDomain.NormalizePhone(req.Phone)
	if phone == "" {
		return ErrInvalidPhone
	}

	settings := s.settings.Get(ctx)
	var override coreSmsDomain.CredentialOverride
	if req.TenantID != "" {
		tenant, err := s.tenants.GetByID(ctx, req.TenantID)
		switch {
		case err == nil:
			override = tenant.Gateway
		case errors.Is(err, billingDomain.ErrTenantNotFound):
			s.logger.WarnContext(ctx, "Direct send for unknown tenant, using global credentials", "tenant_id", req.TenantID)
		default:
			return err
		}
	}

	s.publisher.PublishDirect(ctx, provider.DirectRequest{
		Credentials: coreSmsDomain.ResolveCredentials(override, settings.Gateway),
		Phone:       phone,
		Message:     req.Message,
	})
	s.logger.InfoContext(ctx, "Direct send dispatched", "tenant_id", req.TenantID, "to", phone)
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, billingDomain.ErrInsufficientBalance):
		return "insufficient"
	case errors.Is(err, billingDomain.ErrTenantSuspended):
		return "suspended"
	case errors.Is(err, ErrNoRecipients), errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidPhone):
		return "invalid"
	default:
		return "error"
	}
}
