// Package metrics содержит счётчики Prometheus, которые отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты обработки одной записи сверкой.
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

var (
	// SweepRuns число запусков каждой сверки.
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paywall",
		Name:      "sweep_runs_total",
		Help:      "Number of reconciliation sweep runs.",
	}, []string{"sweep"})

	// SweepRecords число обработанных сверкой записей по результату.
	SweepRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paywall",
		Name:      "sweep_records_total",
		Help:      "Records handled by reconciliation sweeps.",
	}, []string{"sweep", "result"})

	// Decisions решения администратора по платежам.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paywall",
		Name:      "payment_decisions_total",
		Help:      "Admin decisions on payments.",
	}, []string{"decision"})

	// BroadcastMessages отправленные и неотправленные сообщения рассылок.
	BroadcastMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paywall",
		Name:      "broadcast_messages_total",
		Help:      "Broadcast deliveries by result.",
	}, []string{"result"})
)

// Record увеличивает счётчик записей сверки sweep.
func Record(sweep, result string) {
	SweepRecords.WithLabelValues(sweep, result).Inc()
}
