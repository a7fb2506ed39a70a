package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchRequestsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_sending",
			Name:      "dispatch_requests_total",
			Help:      "Send requests by kind and outcome.",
		},
		[]string{"kind", "outcome"}, // kind: "bulk", "direct"; outcome: "accepted", "insufficient", "suspended", "invalid", "error"
	)

	dispatchDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sms_sending",
			Name:      "dispatch_duration_seconds",
			Help:      "Time from request to hand-off, including the ledger debit.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	batchesDispatchedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_sending",
			Name:      "gateway_batches_total",
			Help:      "Gateway requests by transport and result.",
		},
		[]string{"transport", "status"}, // transport: "inprocess", "nats", "worker"; status: "sent", "failed"
	)

	recipientsDispatchedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sms_sending",
			Name:      "recipients_dispatched_total",
			Help:      "Recipients handed to the outbound publisher after a successful debit.",
		},
	)

	natsJobsReceivedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_sending",
			Name:      "nats_jobs_received_total",
			Help:      "Total NATS gateway jobs received by the worker.",
		},
		[]string{"subject"},
	)
)
