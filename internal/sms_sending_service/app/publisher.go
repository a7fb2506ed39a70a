package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/madrasahportal/golang_services/internal/sms_sending_service/provider"
)

// NATS subjects and queue group used in DISPATCH_MODE=nats.
const (
	SubjectGatewayBatches = "sms.gateway.batches"
	SubjectGatewayDirect  = "sms.gateway.direct"
	WorkerQueueGroup      = "sms_gateway_workers"
)

// Publisher hands gateway requests to an outbound transport. Implementations
// must not block on gateway I/O and never report gateway failures to the
// caller; those are logged and counted.
type Publisher interface {
	PublishBulk(ctx context.Context, reqs []provider.BulkRequest)
	PublishDirect(ctx context.Context, req provider.DirectRequest)
}

// InProcessPublisher fires gateway requests from goroutines owned by the
// process. Requests outlive the caller's context; each is bounded by timeout.
type InProcessPublisher struct {
	gateway provider.SMSGateway
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewInProcessPublisher(gateway provider.SMSGateway, timeout time.Duration, logger *slog.Logger) *InProcessPublisher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &InProcessPublisher{
		gateway: gateway,
		timeout: timeout,
		logger:  logger.With("component", "inprocess_publisher"),
	}
}

func (p *InProcessPublisher) PublishBulk(ctx context.Context, reqs []provider.BulkRequest) {
	if len(reqs) == 0 {
		return
	}
	base := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		var g errgroup.Group
		for _, req := range reqs {
			req := req
			g.Go(func() error {
				reqCtx, cancel := context.WithTimeout(base, p.timeout)
				defer cancel()
				if err := p.gateway.SendBulk(reqCtx, req); err != nil {
					batchesDispatchedCounter.WithLabelValues("inprocess", "failed").Inc()
					p.logger.WarnContext(reqCtx, "Gateway batch dispatch failed", "tenant_id", req.TenantID, "batch_index", req.BatchIndex, "recipients", len(req.Phones), "error", err)
					return err
				}
				batchesDispatchedCounter.WithLabelValues("inprocess", "sent").Inc()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			p.logger.WarnContext(base, "Some gateway batches failed", "batches", len(reqs), "first_error", err)
		}
	}()
}

func (p *InProcessPublisher) PublishDirect(ctx context.Context, req provider.DirectRequest) {
	base := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		reqCtx, cancel := context.WithTimeout(base, p.timeout)
		defer cancel()
		if err := p.gateway.SendDirect(reqCtx, req); err != nil {
			batchesDispatchedCounter.WithLabelValues("inprocess", "failed").Inc()
			p.logger.WarnContext(reqCtx, "Gateway direct dispatch failed", "to", req.Phone, "error", err)
			return
		}
		batchesDispatchedCounter.WithLabelValues("inprocess", "sent").Inc()
	}()
}

// Wait blocks until every request started so far has finished or ctx ends.
func (p *InProcessPublisher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MessagePublisher is the subset of the NATS client used for publishing.
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSPublisher enqueues gateway requests for BatchWorker instances.
type NATSPublisher struct {
	broker MessagePublisher
	logger *slog.Logger
}

func NewNATSPublisher(broker MessagePublisher, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{broker: broker, logger: logger.With("component", "nats_publisher")}
}

func (p *NATSPublisher) PublishBulk(ctx context.Context, reqs []provider.BulkRequest) {
	ctx = context.WithoutCancel(ctx)
	for _, req := range reqs {
		if err := p.publish(ctx, SubjectGatewayBatches, req); err != nil {
			batchesDispatchedCounter.WithLabelValues("nats", "failed").Inc()
			p.logger.ErrorContext(ctx, "Failed to enqueue gateway batch", "tenant_id", req.TenantID, "batch_index", req.BatchIndex, "error", err)
			continue
		}
		batchesDispatchedCounter.WithLabelValues("nats", "sent").Inc()
	}
}

func (p *NATSPublisher) PublishDirect(ctx context.Context, req provider.DirectRequest) {
	ctx = context.WithoutCancel(ctx)
	if err := p.publish(ctx, SubjectGatewayDirect, req); err != nil {
		batchesDispatchedCounter.WithLabelValues("nats", "failed").Inc()
		p.logger.ErrorContext(ctx, "Failed to enqueue direct message", "to", req.Phone, "error", err)
		return
	}
	batchesDispatchedCounter.WithLabelValues("nats", "sent").Inc()
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	return p.broker.Publish(ctx, subject, data)
}
