// Package metrics records run results in the Prometheus text format for the
// node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"zap2xml/services/epg"
)

const namespace = "zap2xml"

// RunMetrics holds the gauges describing the last run. It uses its own
// registry, so nothing from the Go runtime ends up in the file.
type RunMetrics struct {
	reg *prometheus.Registry

	success    prometheus.Gauge
	lastRun    prometheus.Gauge
	duration   prometheus.Gauge
	windows    *prometheus.GaugeVec
	channels   prometheus.Gauge
	programmes prometheus.Gauge
	evicted    prometheus.Gauge
}

func NewRunMetrics() *RunMetrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	m := &RunMetrics{
		reg:        prometheus.NewRegistry(),
		success:    gauge("last_run_success", "1 if the last run wrote a guide, 0 otherwise."),
		lastRun:    gauge("last_run_timestamp_seconds", "Unix time the last run finished."),
		duration:   gauge("last_run_duration_seconds", "Wall time of the last run."),
		channels:   gauge("channels", "Channel blocks in the last guide."),
		programmes: gauge("programmes", "Programme blocks in the last guide."),
		evicted:    gauge("cache_evicted_entries", "Cache entries evicted after the last run."),
		windows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "windows",
			Help:      "Grid windows in the last run by outcome.",
		}, []string{"result"}),
	}
	m.reg.MustRegister(m.success, m.lastRun, m.duration, m.windows, m.channels, m.programmes, m.evicted)
	return m
}

// Observe records the outcome of a run. summary is ignored when runErr is
// set; the counts of a failed run are left at zero.
func (m *RunMetrics) Observe(summary *epg.RunSummary, runErr error, finished time.Time) {
	m.lastRun.Set(float64(finished.Unix()))
	if runErr != nil || summary == nil {
		m.success.Set(0)
		return
	}
	m.success.Set(1)
	m.duration.Set(summary.Duration.Seconds())
	m.windows.WithLabelValues("fetched").Set(float64(summary.Windows - summary.CachedWindows))
	m.windows.WithLabelValues("cached").Set(float64(summary.CachedWindows))
	m.windows.WithLabelValues("empty").Set(float64(summary.EmptyWindows))
	m.channels.Set(float64(summary.Channels))
	m.programmes.Set(float64(summary.Programmes))
	m.evicted.Set(float64(summary.Evicted))
}

// WriteFile writes the metrics to path, replacing it atomically.
func (m *RunMetrics) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
