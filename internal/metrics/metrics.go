package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wb_tariffs_http_attempts_total",
			Help: "Outbound HTTP attempts per client and outcome.",
		},
		[]string{"client", "outcome"},
	)

	httpRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wb_tariffs_http_retries_total",
			Help: "Outbound HTTP retries per client and reason.",
		},
		[]string{"client", "reason"},
	)

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wb_tariffs_sync_runs_total",
			Help: "Tariff synchronization runs by result.",
		},
		[]string{"result"},
	)

	syncRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wb_tariffs_sync_run_duration_seconds",
			Help:    "Tariff synchronization run duration.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	tariffUpserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wb_tariffs_upserts_total",
			Help: "Warehouse tariff upserts by action (created/updated/failed).",
		},
		[]string{"action"},
	)

	sheetPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wb_tariffs_sheet_publishes_total",
			Help: "Spreadsheet publishes by result.",
		},
		[]string{"result"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			httpAttempts, httpRetries,
			syncRuns, syncRunDuration,
			tariffUpserts, sheetPublishes,
		)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// -------- HTTP client --------

func ObserveHTTPAttempt(client, outcome string) {
	httpAttempts.WithLabelValues(norm(client), norm(outcome)).Inc()
}

func IncHTTPRetry(client, reason string) {
	httpRetries.WithLabelValues(norm(client), norm(reason)).Inc()
}

// -------- Sync --------

func ObserveSyncRun(result string, elapsed time.Duration) {
	syncRuns.WithLabelValues(norm(result)).Inc()
	syncRunDuration.Observe(elapsed.Seconds())
}

func IncTariffUpsert(action string) {
	tariffUpserts.WithLabelValues(norm(action)).Inc()
}

func IncSheetPublish(result string) {
	sheetPublishes.WithLabelValues(norm(result)).Inc()
}
