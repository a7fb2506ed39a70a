package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerDebitsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "ledger_debits_total",
			Help:      "Total ledger debit attempts by outcome.",
		},
		[]string{"outcome"}, // "success", "insufficient", "not_found", "error"
	)

	smsDebitedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "sms_debited_total",
			Help:      "Total SMS credits debited from tenant balances.",
		},
	)

	paymentClaimsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "payment_claims_total",
			Help:      "Payment claim lifecycle events.",
		},
		[]string{"event"}, // "submitted", "approved", "rejected", "approve_failed"
	)

	smsCreditedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "sms_credited_total",
			Help:      "Total SMS credits granted through approved claims.",
		},
	)

	adminUpdatesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "admin_updates_total",
			Help:      "Administrator edits of settings and tenant profiles.",
		},
		[]string{"target"}, // "settings", "tenant"
	)
)
