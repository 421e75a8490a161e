// Package metrics counts analysis passes in a Prometheus registry that can be
// written out as a node_exporter textfile.
package metrics

import (
	"errors"

	"github.com/linuxmatters/timestruct/internal/processor"
	"github.com/prometheus/client_golang/prometheus"
)

// Pass outcomes used as the "status" label.
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid_smoothing"
	StatusMissing = "buffer_missing"
	StatusBusy    = "busy"
	StatusError   = "error"
)

// Recorder holds the pass metrics. The zero value is not usable; call New.
type Recorder struct {
	registry *prometheus.Registry

	PassesTotal    *prometheus.CounterVec
	EventsTotal    prometheus.Counter
	FramesTotal    prometheus.Counter
	PassDuration   prometheus.Histogram
	EventsPerPass  prometheus.Histogram
	LastMaxSample  prometheus.Gauge
	LastEventCount prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		PassesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timestruct_passes_total",
				Help: "Total number of analysis passes by outcome",
			},
			[]string{"status"},
		),
		EventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timestruct_events_total",
			Help: "Total number of events emitted",
		}),
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timestruct_frames_total",
			Help: "Total number of samples analysed",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timestruct_pass_duration_seconds",
			Help:    "Wall time of one analysis pass",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
		}),
		EventsPerPass: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timestruct_events_per_pass",
			Help:    "Number of events found in one pass",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
		}),
		LastMaxSample: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timestruct_last_max_sample",
			Help: "Envelope maximum before normalisation in the last successful pass",
		}),
		LastEventCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timestruct_last_event_count",
			Help: "Number of events in the last successful pass",
		}),
	}

	r.registry.MustRegister(
		r.PassesTotal,
		r.EventsTotal,
		r.FramesTotal,
		r.PassDuration,
		r.EventsPerPass,
		r.LastMaxSample,
		r.LastEventCount,
	)
	return r
}

// Registry exposes the underlying registry, for scraping or tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObservePass records the outcome of RunAnalysis.
func (r *Recorder) ObservePass(result *processor.PassResult, err error) {
	r.PassesTotal.WithLabelValues(Status(err)).Inc()
	if result == nil {
		return
	}

	r.FramesTotal.Add(float64(result.Frames))
	r.EventsTotal.Add(float64(result.Events))
	if result.Elapsed > 0 {
		r.PassDuration.Observe(result.Elapsed.Seconds())
	}
	if err == nil {
		r.EventsPerPass.Observe(float64(result.Events))
		r.LastMaxSample.Set(result.MaxSample)
		r.LastEventCount.Set(float64(result.Events))
	}
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is written atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Status maps a RunAnalysis error to a status label.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, processor.ErrInvalidSmoothing):
		return StatusInvalid
	case errors.Is(err, processor.ErrBufferNotFound):
		return StatusMissing
	case errors.Is(err, processor.ErrBusy):
		return StatusBusy
	default:
		return StatusError
	}
}
