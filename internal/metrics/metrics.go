// Package metrics exposes batch counters through a private Prometheus
// registry and writes them to a node_exporter textfile at the end of a run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects run metrics. A nil *Recorder is valid and records
// nothing, so callers need not check whether metrics are enabled.
type Recorder struct {
	registry *prometheus.Registry

	chunksTotal   *prometheus.CounterVec
	rowsTotal     prometheus.Counter
	audioSeconds  prometheus.Counter
	chunkDuration prometheus.Histogram
	workers       prometheus.Gauge
	chunkLength   prometheus.Gauge
	lastRun       prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New(model string) *Recorder {
	constLabels := prometheus.Labels{"model": model}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		// chunksTotal labels: status = written | abandoned
		chunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "buzzbatch_chunks_total",
				Help:        "Chunks processed by the analyzer pool",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		rowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "buzzbatch_rows_total",
			Help:        "Result rows written to output tables",
			ConstLabels: constLabels,
		}),
		audioSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "buzzbatch_audio_seconds_total",
			Help:        "Seconds of audio analysed",
			ConstLabels: constLabels,
		}),
		// Buckets: 1s, 5s, 15s, 30s, 1m, 2m, 5m, 10m, 30m
		chunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "buzzbatch_chunk_duration_seconds",
			Help:        "Wall time spent analysing one chunk",
			ConstLabels: constLabels,
			Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "buzzbatch_workers",
			Help:        "Analyzer workers in the last run",
			ConstLabels: constLabels,
		}),
		chunkLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "buzzbatch_chunk_length_seconds",
			Help:        "Maximum chunk length chosen by the resource solver",
			ConstLabels: constLabels,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "buzzbatch_last_run_timestamp_seconds",
			Help:        "Unix time the last run finished",
			ConstLabels: constLabels,
		}),
	}
	r.registry.MustRegister(r.chunksTotal, r.rowsTotal, r.audioSeconds, r.chunkDuration,
		r.workers, r.chunkLength, r.lastRun)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Plan records the solved worker count and chunk length.
func (r *Recorder) Plan(workers int, chunkLength float64) {
	if r == nil {
		return
	}
	r.workers.Set(float64(workers))
	r.chunkLength.Set(chunkLength)
}

// ChunkProcessed records a chunk whose rows reached the output table.
func (r *Recorder) ChunkProcessed(audio float64, rows int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.chunksTotal.WithLabelValues("written").Inc()
	r.rowsTotal.Add(float64(rows))
	r.audioSeconds.Add(audio)
	r.chunkDuration.Observe(elapsed.Seconds())
}

// ChunkAbandoned records a chunk the analyzer gave up on.
func (r *Recorder) ChunkAbandoned() {
	if r == nil {
		return
	}
	r.chunksTotal.WithLabelValues("abandoned").Inc()
}

// WriteTextfile stamps the finish time and writes the registry to path in
// the text exposition format.
func (r *Recorder) WriteTextfile(path string, finished time.Time) error {
	if r == nil || path == "" {
		return nil
	}
	r.lastRun.Set(float64(finished.Unix()))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
