package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics are boring counters derived from Results only. Each block run
// owns a private registry so nothing leaks between runs or tests.
type Metrics struct {
	registry *prometheus.Registry

	started  prometheus.Counter
	replicas *prometheus.CounterVec
	duration prometheus.Histogram

	failures *FailureLog
}

// NewMetrics creates and registers the replica collectors
func NewMetrics(modelID string, blockNum int) *Metrics {
	labels := prometheus.Labels{
		"model_id":  modelID,
		"block_num": fmt.Sprintf("%d", blockNum),
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "runcosi_replicas_started_total",
			Help:        "Replica attempts started",
			ConstLabels: labels,
		}),
		replicas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "runcosi_replicas_total",
			Help:        "Replica attempts finished, by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "runcosi_replica_duration_seconds",
			Help:        "Wall time of one replica attempt including packaging",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 14),
		}),
		failures: NewFailureLog(50),
	}

	// Pre-create every outcome so absent series read as zero
	for _, o := range []Outcome{OutcomeSucceeded, OutcomeSimulationFailed, OutcomePostprocessFailed} {
		m.replicas.WithLabelValues(string(o))
	}

	m.registry.MustRegister(m.started, m.replicas, m.duration)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncrStarted counts a replica attempt as started
func (m *Metrics) IncrStarted() {
	m.started.Inc()
}

// RecordResult updates counters from one frozen Result
func (m *Metrics) RecordResult(r *Result) {
	m.replicas.WithLabelValues(string(r.Outcome)).Inc()
	m.duration.Observe(r.Duration.Seconds())
	m.failures.Record(r)
}

// Failures returns the recent failed replicas
func (m *Metrics) Failures() *FailureLog {
	return m.failures
}

// WriteTextfile gathers the registry and writes it in Prometheus text
// format, suitable for the node exporter textfile collector. The file is
// replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to install metrics file %s: %w", path, err)
	}
	return nil
}
