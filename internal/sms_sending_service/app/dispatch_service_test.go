package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	billingDomain "github.com/madrasahportal/golang_services/internal/billing_service/domain"
	"github.com/madrasahportal/golang_services/internal/billing_service/repository/memory"
	coreSmsDomain "github.com/madrasahportal/golang_services/internal/core_sms/domain"
	"github.com/madrasahportal/golang_services/internal/sms_sending_service/provider"
)

// --- Fakes ---

type recordingPublisher struct {
	mu     sync.Mutex
	bulk   []provider.BulkRequest
	direct []provider.DirectRequest
}

func (p *recordingPublisher) PublishBulk(_ context.Context, reqs []provider.BulkRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bulk = append(p.bulk, reqs...)
}

func (p *recordingPublisher) PublishDirect(_ context.Context, req provider.DirectRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.direct = append(p.direct, req)
}

func (p *recordingPublisher) bulkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bulk)
}

type staticSettings billingDomain.GlobalSettings

func (s staticSettings) Get(context.Context) billingDomain.GlobalSettings {
	return billingDomain.GlobalSettings(s)
}

type MockDebiter struct {
	mock.Mock
}

func (m *MockDebiter) Debit(ctx context.Context, tenantID string, count int64, details billingDomain.DebitDetails) (*billingDomain.LedgerEntry, error) {
	args := m.Called(ctx, tenantID, count, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingDomain.LedgerEntry), args.Error(1)
}

type MockRecipientRepository struct {
	mock.Mock
}

func (m *MockRecipientRepository) ListByStudentIDs(ctx context.Context, tenantID string, ids []string) ([]coreSmsDomain.Recipient, error) {
	args := m.Called(ctx, tenantID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]coreSmsDomain.Recipient), args.Error(1)
}

func (m *MockRecipientRepository) ListByClass(ctx context.Context, tenantID, classID string) ([]coreSmsDomain.Recipient, error) {
	args := m.Called(ctx, tenantID, classID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]coreSmsDomain.Recipient), args.Error(1)
}

var globalSettings = staticSettings{
	Gateway: coreSmsDomain.GatewayCredentials{APIKey: "global-key", SecretKey: "global-secret", CallerID: "8809600000000", ClientID: "global-client"},
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeRecipients(n int) []coreSmsDomain.Recipient {
	out := make([]coreSmsDomain.Recipient, n)
	for i := range out {
		out[i] = coreSmsDomain.Recipient{StudentID: fmt.Sprintf("s%d", i), Phone: fmt.Sprintf("017%08d", i)}
	}
	return out
}

func strPtr(s string) *string { return &s }

// --- Tests ---

func TestSendBulk_PartitionsAndResolvesCredentials(t *testing.T) {
	store := memory.NewStore()
	store.PutTenant(billingDomain.Tenant{
		ID: "m1", SMSBalance: 100, IsActive: true,
		Gateway: coreSmsDomain.CredentialOverride{APIKey: strPtr("tenant-key"), CallerID: strPtr("  ")},
	}, false)
	pub := &recordingPublisher{}
	svc := NewDispatchService(store.Tenants(), globalSettings, store.Ledger(), nil, pub, 15, testLogger())

	result, err := svc.SendBulk(context.Background(), BulkSendRequest{TenantID: "m1", Message: "পরীক্ষা রবিবার", Recipients: makeRecipients(37)})
	require.NoError(t, err)
	assert.Equal(t, int64(37), result.Debited)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, int64(63), result.BalanceAfter)
	assert.Equal(t, int64(63), store.Balance("m1"))

	require.Len(t, pub.bulk, 3)
	sizes := []int{len(pub.bulk[0].Phones), len(pub.bulk[1].Phones), len(pub.bulk[2].Phones)}
	assert.Equal(t, []int{15, 15, 7}, sizes)
	assert.Equal(t, "8801700000000", pub.bulk[0].Phones[0])

	creds := pub.bulk[0].Credentials
	assert.Equal(t, "tenant-key", creds.APIKey)
	assert.Equal(t, "global-secret", creds.SecretKey)
	assert.Equal(t, "8809600000000", creds.CallerID)
	assert.Equal(t, "global-client", creds.ClientID)
}

func TestSendBulk_InsufficientBalanceSkipsLedgerAndGateway(t *testing.T) {
	store := memory.NewStore()
	store.PutTenant(billingDomain.Tenant{ID: "m1", SMSBalance: 2, IsActive: true}, false)
	debiter := new(MockDebiter)
	pub := &recordingPublisher{}
	svc := NewDispatchService(store.Tenants(), globalSettings, debiter, nil, pub, 15, testLogger())

	_, err := svc.SendBulk(context.Background(), BulkSendRequest{TenantID: "m1", Message: "hi", Recipients: makeRecipients(3)})
	assert.ErrorIs(t, err, billingDomain.ErrInsufficientBalance)
	debiter.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, pub.bulkCount())
	assert.Equal(t, int64(2), store.Balance("m1"))
}

func TestSendBulk_DebitFailurePreventsDispatch(t *testing.T) {
	store := memory.NewStore()
	store.PutTenant(billingDomain.Tenant{ID: "m1", SMSBalance: 50, IsActive: true}, false)
	debiter := new(MockDebiter)
	debiter.On("Debit", mock.Anything, "m1", int64(4), mock.Anything).Return(nil, billingDomain.ErrLedgerTransaction)
	pub := &recordingPublisher{}
	svc := NewDispatchService(store.Tenants(), globalSettings, debiter, nil, pub, 15, testLogger())

	_, err := svc.SendBulk(context.Background(), BulkSendRequest{TenantID: "m1", Message: "hi", Recipients: makeRecipients(4)})
	assert.ErrorIs(t, err, billingDomain.ErrLedgerTransaction)
	assert.Zero(t, pub.bulkCount())
	debiter.AssertExpectations(t)
}

func TestSendBulk_RejectsBeforeDebit(t *testing.T) {
	store := memory.NewStore()
	store.PutTenant(billingDomain.Tenant{ID: "active", SMSBalance: 50, IsActive: true}, false)
	store.PutTenant(billingDomain.Tenant{ID: "suspended", SMSBalance: 50, IsActive: false}, false)
	pub := &recordingPublisher{}
	svc := NewDispatchService(store.Tenants(), globalSettings, store.Ledger(), nil, pub, 15, testLogger())
	ctx := context.Background()

	_, err := svc.SendBulk(ctx, BulkSendRequest{TenantID: "suspended", Message: "hi", Recipients: makeRecipients(1)})
	assert.ErrorIs(t, err, billingDomain.ErrTenantSuspended)

	_, err = svc.SendBulk(ctx, BulkSendRequest{TenantID: "active", Message: "   ", Recipients: makeRecipients(1)})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.SendBulk(ctx, BulkSendRequest{TenantID: "active", Message: "hi"})
	assert.ErrorIs(t, err, ErrNoRecipients)

	_, err = svc.SendBulk(ctx, BulkSendRequest{TenantID: "ghost", Message: "hi", Recipients: makeRecipients(1)})
	assert.ErrorIs(t, err, billingDomain.ErrTenantNotFound)

	assert.Equal(t, int64(50), store.Balance("active"))
	assert.Equal(t, int64(50), store.Balance("suspended"))
	assert.Zero(t, pub.bulkCount())
}

func TestSendBulk_ResolvesStudentIDs(t *testing.T) {
	store := memory.NewStore()
	store.PutTenant(billingDomain.Tenant{ID: "m1", SMSBalance: 10, IsActive: true}, false)
	recipients := new(MockRecipientRepository)
	recipients.On("ListByStudentIDs", mock.Anything, "m1", []string{"a", "b"}).
		Return([]coreSmsDomain.Recipient{{StudentID: "a", Phone: "01711111111"}, {StudentID: "b", Phone: "1722222222"}}, nil)
	pub := &recordingPublisher{}
	svc := NewDispatchService(store.Tenants(), globalSettings, store.Ledger(), recipients, pub, 15, testLogger())

	result, err := svc.SendBulk(context.Background(), BulkSendRequest{TenantID: "m1", Message: "hi", StudentIDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Debited)
	require.Len(t, pub.bulk, 1)
	assert.Equal(t, []string{"8801711111111", "8801722222222"}, pub.bulk[0].Phones)
	recipients.AssertExpectations(t)
}

func TestSendBulk_BlankPhonesAreChargedButNotSent(t *testing.T) {
	store := memory.NewStore()
	store.PutTenant(billingDomain.Tenant{ID: "m1", SMSBalance: 10, IsActive: true}, false)
	pub := &recordingPublisher{}
	svc := NewDispatchService(store.Tenants(), globalSettings, store.Ledger(), nil, pub, 2, testLogger())

	recipients := []coreSmsDomain.Recipient{
		{StudentID: "a", Phone: "01711111111"},
		{StudentID: "b", Phone: "n/a"},
		{StudentID: "c", Phone: ""},
		{StudentID: "d", Phone: "---"},
		{StudentID: "e", Phone: "01722222222"},
	}
	result, err := svc.SendBulk(context.Background(), BulkSendRequest{TenantID: "m1", Message: "hi", Recipients: recipients})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Debited)
	assert.Equal(t, int64(5), store.Balance("m1"))

	// The middle batch holds only blank numbers and is not sent.
	require.Len(t, pub.bulk, 2)
	assert.Equal(t, 2, result.Batches)
	assert.Equal(t, []string{"8801711111111"}, pub.bulk[0].Phones)
	assert.Equal(t, 0, pub.bulk[0].BatchIndex)
	assert.Equal(t, []string{"8801722222222"}, pub.bulk[1].Phones)
	assert.Equal(t, 2, pub.bulk[1].BatchIndex)
}

func TestSendBulk_ConcurrentSendsNeverOverspend(t *testing.T) {
	store := memory.NewStore()
	store.PutTenant(billingDomain.Tenant{ID: "m1", SMSBalance: 10, IsActive: true}, false)
	pub := &recordingPublisher{}
	svc := NewDispatchService(store.Tenants(), globalSettings, store.Ledger(), nil, pub, 15, testLogger())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SendBulk(context.Background(), BulkSendRequest{TenantID: "m1", Message: "hi", Recipients: makeRecipients(3)})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, billingDomain.ErrInsufficientBalance)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, int64(1), store.Balance("m1"))
	assert.Equal(t, 3, pub.bulkCount())
}

func TestSendDirect(t *testing.T) {
	store := memory.NewStore()
	store.PutTenant(billingDomain.Tenant{ID: "m1", SMSBalance: 5, IsActive: true,
		Gateway: coreSmsDomain.CredentialOverride{SecretKey: strPtr("tenant-secret")}}, false)
	pub := &recordingPublisher{}
	svc := NewDispatchService(store.Tenants(), globalSettings, store.Ledger(), nil, pub, 15, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.SendDirect(ctx, DirectSendRequest{TenantID: "m1", Phone: "017-1234-5678", Message: "Welcome"}))
	require.NoError(t, svc.SendDirect(ctx, DirectSendRequest{TenantID: "ghost", Phone: "1812345678", Message: "Welcome"}))
	require.NoError(t, svc.SendDirect(ctx, DirectSendRequest{Phone: "8801912345678", Message: "Welcome"}))

	require.Len(t, pub.direct, 3)
	assert.Equal(t, "8801712345678", pub.direct[0].Phone)
	assert.Equal(t, "tenant-secret", pub.direct[0].Credentials.SecretKey)
	assert.Equal(t, "global-key", pub.direct[0].Credentials.APIKey)
	assert.Equal(t, "8801812345678", pub.direct[1].Phone)
	assert.Equal(t, "global-secret", pub.direct[1].Credentials.SecretKey)
	assert.Equal(t, "8801912345678", pub.direct[2].Phone)

	assert.Equal(t, int64(5), store.Balance("m1"))

	assert.ErrorIs(t, svc.SendDirect(ctx, DirectSendRequest{Phone: "n/a", Message: "x"}), ErrInvalidPhone)
	assert.ErrorIs(t, svc.SendDirect(ctx, DirectSendRequest{Phone: "01712345678", Message: ""}), ErrEmptyMessage)
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "accepted", outcomeLabel(nil))
	assert.Equal(t, "insufficient", outcomeLabel(fmt.Errorf("x: %w", billingDomain.ErrInsufficientBalance)))
	assert.Equal(t, "invalid", outcomeLabel(ErrNoRecipients))
	assert.Equal(t, "error", outcomeLabel(errors.New("other")))
}
