// Package metrics exposes kiosk counters on a private Prometheus registry.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics contains all kiosk metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FramesTotal      *prometheus.CounterVec
	DetectorCalls    prometheus.Counter
	Recognitions     *prometheus.CounterVec
	DeferredTotal    *prometheus.CounterVec
	OverlaySessions  prometheus.Counter
	CameraBuffers    prometheus.Gauge
	FacesStored      prometheus.Gauge
	PersistFailures  prometheus.Counter
	ActiveViewSwitch *prometheus.CounterVec
}

// New creates the metrics and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FramesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kiosk",
				Subsystem: "camera",
				Name:      "frames_total",
				Help:      "Camera frames seen by the frame callback, by outcome",
			},
			[]string{"outcome"},
		),

		DetectorCalls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kiosk",
				Subsystem: "recognition",
				Name:      "detector_calls_total",
				Help:      "Sampled frames passed to the face detector",
			},
		),

		Recognitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kiosk",
				Subsystem: "recognition",
				Name:      "results_total",
				Help:      "Classified detector results (none, unknown, known)",
			},
			[]string{"result"},
		),

		DeferredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kiosk",
				Subsystem: "deferred",
				Name:      "actions_total",
				Help:      "Deferred actions by kind and status (scheduled, dropped, applied)",
			},
			[]string{"kind", "status"},
		),

		OverlaySessions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kiosk",
				Subsystem: "overlay",
				Name:      "sessions_total",
				Help:      "Making overlay sessions started",
			},
		),

		CameraBuffers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "kiosk",
				Subsystem: "camera",
				Name:      "buffers",
				Help:      "Capture buffers actually allocated",
			},
		),

		FacesStored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "kiosk",
				Subsystem: "store",
				Name:      "faces",
				Help:      "Face slots in use",
			},
		),

		PersistFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kiosk",
				Subsystem: "store",
				Name:      "persist_failures_total",
				Help:      "Face store writes that failed to persist",
			},
		),

		ActiveViewSwitch: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kiosk",
				Subsystem: "ui",
				Name:      "view_loads_total",
				Help:      "Screens loaded, by view",
			},
			[]string{"view"},
		),
	}

	m.registry.MustRegister(
		m.FramesTotal,
		m.DetectorCalls,
		m.Recognitions,
		m.DeferredTotal,
		m.OverlaySessions,
		m.CameraBuffers,
		m.FacesStored,
		m.PersistFailures,
		m.ActiveViewSwitch,
	)
	return m
}

// Registry is the registry all metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordFrame counts a frame by outcome, such as displayed or dropped.
func (m *Metrics) RecordFrame(outcome string) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(outcome).Inc()
}

// RecordDetectorCall counts one detector invocation.
func (m *Metrics) RecordDetectorCall() {
	if m == nil {
		return
	}
	m.DetectorCalls.Inc()
}

// RecordRecognition counts a classified result.
func (m *Metrics) RecordRecognition(result string) {
	if m == nil {
		return
	}
	m.Recognitions.WithLabelValues(result).Inc()
}

// RecordDeferred counts a deferred action transition.
func (m *Metrics) RecordDeferred(kind, status string) {
	if m == nil {
		return
	}
	m.DeferredTotal.WithLabelValues(kind, status).Inc()
}

// RecordOverlaySession counts an overlay start.
func (m *Metrics) RecordOverlaySession() {
	if m == nil {
		return
	}
	m.OverlaySessions.Inc()
}

// RecordCameraBuffers sets the achieved buffer count.
func (m *Metrics) RecordCameraBuffers(n int) {
	if m == nil {
		return
	}
	m.CameraBuffers.Set(float64(n))
}

// RecordFacesStored sets the number of used face slots.
func (m *Metrics) RecordFacesStored(n int) {
	if m == nil {
		return
	}
	m.FacesStored.Set(float64(n))
}

// RecordPersistFailure counts a failed face store write.
func (m *Metrics) RecordPersistFailure() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

// RecordViewLoad counts a screen load.
func (m *Metrics) RecordViewLoad(view string) {
	if m == nil {
		return
	}
	m.ActiveViewSwitch.WithLabelValues(view).Inc()
}

// WriteSummary prints every non-zero sample, one per line, sorted by name.
func (m *Metrics) WriteSummary(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			v := sampleValue(mf.GetType(), metric)
			if v == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s%s %g", mf.GetName(), labelString(metric), v))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func sampleValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	default:
		return 0
	}
}

func labelString(m *dto.Metric) string {
	pairs := m.GetLabel()
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", p.GetName(), p.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
