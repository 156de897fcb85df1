// Package metrics registers the Prometheus instruments for the
// reconciliation service.
package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "utilibill_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	runsTotal   *prometheus.CounterVec
	runLatency  *prometheus.HistogramVec
	runOverages prometheus.Histogram

	acquisitionAttempts *prometheus.CounterVec
	downloadBytes       prometheus.Histogram

	notificationsTotal *prometheus.CounterVec
	draftsTotal        *prometheus.CounterVec
)

// Init registers service metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		runsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconciliation_runs_total",
				Help: "Total reconciliation runs by result",
			},
			[]string{"result"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconciliation_run_seconds",
				Help:    "Reconciliation run duration in seconds",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"result"},
		)
		runOverages = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconciliation_overage_events",
				Help:    "Overage events emitted per run",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		)

		acquisitionAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "acquisition_attempts_total",
				Help: "Portal range-selection attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		)
		downloadBytes = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "acquisition_download_bytes",
				Help:    "Size of downloaded export files",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		)

		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_built_total",
				Help: "Total notification payloads built by result",
			},
			[]string{"result"},
		)
		draftsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mail_drafts_total",
				Help: "Total mail drafts created by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			runsTotal,
			runLatency,
			runOverages,
			acquisitionAttempts,
			downloadBytes,
			notificationsTotal,
			draftsTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveRun records one reconciliation run.
func ObserveRun(result string, duration time.Duration, eventCount int) {
	if result == "" {
		result = resultSuccess
	}
	if runsTotal != nil {
		runsTotal.WithLabelValues(result).Inc()
	}
	if runLatency != nil {
		runLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if result == resultSuccess && runOverages != nil {
		runOverages.Observe(float64(eventCount))
	}
}

// IncAcquisitionAttempt counts one strategy attempt.
func IncAcquisitionAttempt(strategy, outcome string) {
	if strategy == "" {
		strategy = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if acquisitionAttempts != nil {
		acquisitionAttempts.WithLabelValues(strategy, outcome).Inc()
	}
}

// ObserveDownloadSize records the size of a verified export download.
func ObserveDownloadSize(bytes int64) {
	if bytes < 0 {
		return
	}
	if downloadBytes != nil {
		downloadBytes.Observe(float64(bytes))
	}
}

// IncNotificationBuilt counts one assembled notification payload.
func IncNotificationBuilt(result string) {
	if result == "" {
		result = resultSuccess
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(result).Inc()
	}
}

// IncDraftCreated counts one mail draft creation.
func IncDraftCreated(result string) {
	if result == "" {
		result = resultSuccess
	}
	if draftsTotal != nil {
		draftsTotal.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
