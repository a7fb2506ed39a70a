package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreSmsDomain "github.com/madrasahportal/golang_services/internal/core_sms/domain"
	"github.com/madrasahportal/golang_services/internal/sms_sending_service/provider"
)

type fakeGateway struct {
	mu         sync.Mutex
	bulk       []provider.BulkRequest
	direct     []provider.DirectRequest
	ctxErrs    []error
	failBatch  int
	hasFailure bool
}

func (g *fakeGateway) SendBulk(ctx context.Context, req provider.BulkRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bulk = append(g.bulk, req)
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	if g.hasFailure && req.BatchIndex == g.failBatch {
		return provider.ErrGatewayDispatch
	}
	return nil
}

func (g *fakeGateway) SendDirect(ctx context.Context, req provider.DirectRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.direct = append(g.direct, req)
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	return nil
}

func (g *fakeGateway) GetName() string { return "fake" }

func TestInProcessPublisher_SurvivesCallerCancellation(t *testing.T) {
	gw := &fakeGateway{hasFailure: true, failBatch: 1}
	pub := NewInProcessPublisher(gw, time.Second, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub.PublishBulk(ctx, []provider.BulkRequest{
		{BatchIndex: 0, Phones: []string{"8801711111111"}},
		{BatchIndex: 1, Phones: []string{"8801722222222"}},
		{BatchIndex: 2, Phones: []string{"8801733333333"}},
	})
	pub.PublishDirect(ctx, provider.DirectRequest{Phone: "8801744444444", Message: "x"})

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, pub.Wait(waitCtx))

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Len(t, gw.bulk, 3)
	assert.Len(t, gw.direct, 1)
	for _, err := range gw.ctxErrs {
		assert.NoError(t, err)
	}
}

type fakeBroker struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (b *fakeBroker) Publish(_ context.Context, subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.subjects = append(b.subjects, subject)
	b.payloads = append(b.payloads, data)
	return nil
}

func TestNATSPublisher_EncodesRequests(t *testing.T) {
	broker := &fakeBroker{}
	pub := NewNATSPublisher(broker, testLogger())
	creds := coreSmsDomain.GatewayCredentials{APIKey: "k", SecretKey: "s", CallerID: "c"}

	pub.PublishBulk(context.Background(), []provider.BulkRequest{
		{TenantID: "m1", BatchIndex: 0, Credentials: creds, Phones: []string{"8801711111111"}, Message: "hi"},
		{TenantID: "m1", BatchIndex: 1, Credentials: creds, Phones: []string{"8801722222222"}, Message: "hi"},
	})
	pub.PublishDirect(context.Background(), provider.DirectRequest{Credentials: creds, Phone: "8801733333333", Message: "yo"})

	require.Len(t, broker.subjects, 3)
	assert.Equal(t, []string{SubjectGatewayBatches, SubjectGatewayBatches, SubjectGatewayDirect}, broker.subjects)

	var decoded provider.BulkRequest
	require.NoError(t, json.Unmarshal(broker.payloads[1], &decoded))
	assert.Equal(t, 1, decoded.BatchIndex)
	assert.Equal(t, "k", decoded.Credentials.APIKey)
	assert.Equal(t, []string{"8801722222222"}, decoded.Phones)
}

func TestNATSPublisher_BrokerFailureIsSwallowed(t *testing.T) {
	broker := &fakeBroker{err: errors.New("nats: connection closed")}
	pub := NewNATSPublisher(broker, testLogger())

	assert.NotPanics(t, func() {
		pub.PublishBulk(context.Background(), []provider.BulkRequest{{BatchIndex: 0}})
		pub.PublishDirect(context.Background(), provider.DirectRequest{Phone: "8801700000000"})
	})
	assert.Empty(t, broker.subjects)
}

func TestBatchWorker_HandleMessage(t *testing.T) {
	gw := &fakeGateway{}
	worker := NewBatchWorker(gw, time.Second, testLogger())

	bulk, err := json.Marshal(provider.BulkRequest{TenantID: "m1", BatchIndex: 4, Phones: []string{"8801711111111"}, Message: "hi"})
	require.NoError(t, err)
	direct, err := json.Marshal(provider.DirectRequest{Phone: "8801722222222", Message: "yo"})
	require.NoError(t, err)

	worker.HandleMessage(&nats.Msg{Subject: SubjectGatewayBatches, Data: bulk})
	worker.HandleMessage(&nats.Msg{Subject: SubjectGatewayDirect, Data: direct})
	worker.HandleMessage(&nats.Msg{Subject: SubjectGatewayBatches, Data: []byte("not json")})
	worker.HandleMessage(&nats.Msg{Subject: "sms.other", Data: bulk})

	require.Len(t, gw.bulk, 1)
	assert.Equal(t, 4, gw.bulk[0].BatchIndex)
	require.Len(t, gw.direct, 1)
	assert.Equal(t, "yo", gw.direct[0].Message)
}

type recordingSubscriber struct {
	subjects []string
	groups   []string
}

func (s *recordingSubscriber) Subscribe(_ context.Context, subject, queueGroup string, _ nats.MsgHandler) (*nats.Subscription, error) {
	s.subjects = append(s.subjects, subject)
	s.groups = append(s.groups, queueGroup)
	return &nats.Subscription{}, nil
}

func TestBatchWorker_StartSubscribesInQueueGroup(t *testing.T) {
	sub := &recordingSubscriber{}
	worker := NewBatchWorker(&fakeGateway{}, time.Second, testLogger())

	require.NoError(t, worker.Start(context.Background(), sub))
	assert.Equal(t, []string{SubjectGatewayBatches, SubjectGatewayDirect}, sub.subjects)
	assert.Equal(t, []string{WorkerQueueGroup, WorkerQueueGroup}, sub.groups)
}
