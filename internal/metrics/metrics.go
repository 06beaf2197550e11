// Package metrics collects per-run counters for the library builder. The
// registry is private to a run and can be dumped in the node_exporter
// textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-thumbnail-library/internal/process"
)

// Recorder implements mirror.Observer on top of a Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	files          *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	directories    prometheus.Gauge
	traversalErrs  prometheus.Gauge
	archiveBytes   prometheus.Gauge
	lastRunSuccess prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thumbnail_library_files_total",
				Help: "Files visited, by media kind and outcome",
			},
			[]string{"kind", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "thumbnail_library_generation_duration_seconds",
				Help:    "Thumbnail generation duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		directories: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thumbnail_library_directories",
			Help: "Directories mirrored in the last run",
		}),
		traversalErrs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thumbnail_library_traversal_errors",
			Help: "Entries that could not be read in the last run",
		}),
		archiveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thumbnail_library_archive_size_bytes",
			Help: "Size of the archive written by the last run",
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thumbnail_library_last_run_success",
			Help: "Whether the last run completed (1 = yes, 0 = no)",
		}),
	}
	r.registry.MustRegister(r.files, r.duration, r.directories, r.traversalErrs, r.archiveBytes, r.lastRunSuccess)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveFile counts one visited file. Durations are only recorded for
// files that were actually generated.
func (r *Recorder) ObserveFile(kind string, status process.JobStatus, elapsed time.Duration) {
	r.files.WithLabelValues(kind, string(status)).Inc()
	if status == process.JobStatusSucceeded || status == process.JobStatusFailed {
		r.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

// ObserveRun records the totals of a finished run.
func (r *Recorder) ObserveRun(summary *process.Summary, archiveSize int64, ok bool) {
	if summary != nil {
		r.directories.Set(float64(summary.Dirs()))
		r.traversalErrs.Set(float64(summary.TraversalErrors()))
	}
	r.archiveBytes.Set(float64(archiveSize))
	if ok {
		r.lastRunSuccess.Set(1)
	} else {
		r.lastRunSuccess.Set(0)
	}
}

// WriteTextfile writes the registry to path for the node_exporter textfile
// collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
