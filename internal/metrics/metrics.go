// Package metrics регистрирует счётчики Prometheus для платёжного конвейера.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentsAdmitted количество платёжных событий, допущенных леджером.
	PaymentsAdmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_payments_admitted_total",
		Help: "Payment events admitted by the ledger.",
	}, []string{"provider"})

	// PaymentsDuplicate количество повторных доставок, отсеянных леджером.
	PaymentsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_payments_duplicate_total",
		Help: "Payment events classified as duplicates.",
	}, []string{"provider"})

	// PaymentsRejected количество событий, отклонённых после допуска.
	PaymentsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_payments_rejected_total",
		Help: "Payment events rejected after admission.",
	}, []string{"provider"})

	// VerificationFailures количество уведомлений, не прошедших проверку подлинности.
	VerificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_verification_failures_total",
		Help: "Provider notifications that failed verification.",
	}, []string{"provider", "reason"})

	// PanelSyncs результаты синхронизаций с панелью.
	PanelSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_panel_syncs_total",
		Help: "Panel reconciliation outcomes.",
	}, []string{"result"})

	// ResyncDuration длительность полного прохода синхронизации.
	ResyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_full_resync_duration_seconds",
		Help:    "Duration of a full resync pass.",
		Buckets: prometheus.DefBuckets,
	})
)
