package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueEnqueuedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "offline_queue",
			Name:      "entries_enqueued_total",
			Help:      "Offline mutations queued, by table.",
		},
		[]string{"table"},
	)

	queueReplayedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "offline_queue",
			Name:      "entries_replayed_total",
			Help:      "Replay attempts by result.",
		},
		[]string{"result"}, // "applied", "failed"
	)
)
