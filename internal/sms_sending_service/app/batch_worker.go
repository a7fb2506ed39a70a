package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/madrasahportal/golang_services/internal/sms_sending_service/provider"
)

var errUnknownSubject = errors.New("unknown gateway subject")

// Subscriber is the subset of the NATS client used by BatchWorker.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, queueGroup string, handler nats.MsgHandler) (*nats.Subscription, error)
}

// BatchWorker consumes gateway requests published by NATSPublisher and calls
// the gateway. Failures are logged and counted; messages are not redelivered.
type BatchWorker struct {
	gateway provider.SMSGateway
	timeout time.Duration
	logger  *slog.Logger
}

func NewBatchWorker(gateway provider.SMSGateway, timeout time.Duration, logger *slog.Logger) *BatchWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BatchWorker{gateway: gateway, timeout: timeout, logger: logger.With("component", "batch_worker")}
}

// Start subscribes to both gateway subjects in the shared queue group.
// Subscriptions are drained when ctx is cancelled.
func (w *BatchWorker) Start(ctx context.Context, sub Subscriber) error {
	for _, subject := range []string{SubjectGatewayBatches, SubjectGatewayDirect} {
		if _, err := sub.Subscribe(ctx, subject, WorkerQueueGroup, w.HandleMessage); err != nil {
			return fmt.Errorf("failed to subscribe to NATS subject '%s': %w", subject, err)
		}
		w.logger.Info("Gateway worker subscribed", "subject", subject, "queue_group", WorkerQueueGroup)
	}
	return nil
}

// HandleMessage processes one NATS message.
func (w *BatchWorker) HandleMessage(msg *nats.Msg) {
	natsJobsReceivedCounter.WithLabelValues(msg.Subject).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.process(ctx, msg.Subject, msg.Data); err != nil {
		batchesDispatchedCounter.WithLabelValues("worker", "failed").Inc()
		w.logger.ErrorContext(ctx, "Gateway job failed", "subject", msg.Subject, "error", err)
		return
	}
	batchesDispatchedCounter.WithLabelValues("worker", "sent").Inc()
}

func (w *BatchWorker) process(ctx context.Context, subject string, data []byte) error {
	switch subject {
	case SubjectGatewayBatches:
		var req provider.BulkRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("unmarshal batch payload: %w", err)
		}
		return w.gateway.SendBulk(ctx, req)
	case SubjectGatewayDirect:
		var req provider.DirectRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("unmarshal direct payload: %w", err)
		}
		return w.gateway.SendDirect(ctx, req)
	default:
		return fmt.Errorf("%w: %s", errUnknownSubject, subject)
	}
}
