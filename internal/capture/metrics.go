package capture

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/and161185/journeyvault/internal/model"
)

// Save outcomes recorded by Metrics.
const (
	OutcomeSaved        = "saved"
	OutcomeInvalid      = "invalid"
	OutcomeDenied       = "denied"
	OutcomeUploadFailed = "upload_failed"
	OutcomeRecordFailed = "record_failed"
)

// Metrics holds the capture pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Saves       *prometheus.CounterVec
	StepSeconds *prometheus.HistogramVec
	UploadBytes *prometheus.HistogramVec
}

// NewMetrics creates collectors registered on a private registry.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	saves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "saves_total",
			Help:      "Memory save attempts by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	steps := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "step_duration_seconds",
			Help:      "Duration of individual capture steps",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	upload := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "upload_bytes",
			Help:      "Size of uploaded media blobs",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 6),
		},
		[]string{"type"},
	)

	registry.MustRegister(saves, steps, upload)

	return &Metrics{
		registry:    registry,
		Saves:       saves,
		StepSeconds: steps,
		UploadBytes: upload,
	}
}

// Registry exposes the private registry for scraping.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) save(t model.MemoryType, outcome string) {
	if m == nil {
		return
	}
	m.Saves.WithLabelValues(string(t), outcome).Inc()
}

func (m *Metrics) step(name string, start time.Time) {
	if m == nil {
		return
	}
	m.StepSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func (m *Metrics) uploaded(t model.MemoryType, n int) {
	if m == nil {
		return
	}
	m.UploadBytes.WithLabelValues(string(t)).Observe(float64(n))
}
