// Package metrics содержит счётчики Prometheus биллинга.
// Экспонируются через /metrics основного HTTP-приложения.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEventsTotal считает webhook-события по виду и результату обработки.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_webhook_events_total",
		Help: "Processed Stripe webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	// CorrectiveWritesTotal считает самовосстановления просроченных подписок
	// при проверке доступа (пропущенный или запоздавший webhook).
	CorrectiveWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_corrective_writes_total",
		Help: "Stale cancel_scheduled subscriptions corrected at access-check time.",
	})

	// RetentionResyncsTotal считает запуски синхронизатора хранения по результату.
	RetentionResyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_retention_resyncs_total",
		Help: "Retention resync runs by outcome.",
	}, []string{"outcome"})

	// RetentionEntriesShiftedTotal считает реплики чата со сдвинутым TTL.
	RetentionEntriesShiftedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_retention_entries_shifted_total",
		Help: "Chat history records whose expiry was rewritten.",
	})
)
