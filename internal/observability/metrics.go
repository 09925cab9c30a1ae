package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "forecast_collector"

// Metrics holds the Prometheus counters, histograms, and gauges for the collector.
type Metrics struct {
	RecordsWritten   prometheus.Counter
	MessagesIngested prometheus.Counter
	BatchFailures    prometheus.Counter
	BatchDuration    prometheus.Histogram
	RecordsPurged    prometheus.Counter

	// Unix time of the last successful command, labels: command={forecast,ingest,delete-old-data,reset}.
	LastSuccess *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates all collector metrics on a dedicated registry. The
// collector is a short-lived batch job, so metrics are pushed rather than scraped.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Total weather records written to the document store.",
		}),
		MessagesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_ingested_total",
			Help:      "Total grid messages fully written.",
		}),
		BatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_failures_total",
			Help:      "Grid message batches that failed and were discarded.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of building and writing one grid message.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RecordsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_purged_total",
			Help:      "Total weather records deleted by retention.",
		}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful command run.",
		}, []string{"command"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RecordsWritten,
		m.MessagesIngested,
		m.BatchFailures,
		m.BatchDuration,
		m.RecordsPurged,
		m.LastSuccess,
	)

	return m
}

// NewMetricsForTesting creates Metrics that are not attached to any registry.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RecordsWritten:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "records_written_total"}),
		MessagesIngested: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_ingested_total"}),
		BatchFailures:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "batch_failures_total"}),
		BatchDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_duration_seconds"}),
		RecordsPurged:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "records_purged_total"}),
		LastSuccess:      prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "last_success_timestamp_seconds"}, []string{"command"}),
		registry:         prometheus.NewRegistry(),
	}
}

// MarkSuccess records the completion time of command.
func (m *Metrics) MarkSuccess(command string) {
	m.LastSuccess.WithLabelValues(command).SetToCurrentTime()
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Push sends the current metric values to a Prometheus Pushgateway, grouped
// by job. An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).AddContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
