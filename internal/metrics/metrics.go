// Package metrics provides Prometheus-based metrics recording for the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session events reported through ObserveSession.
const (
	SessionStarted    = "started"
	SessionVerified   = "verified"
	SessionCompleted  = "completed"
	SessionCancelled  = "cancelled"
	SessionTimedOut   = "timed_out"
	SessionTerminated = "terminated"
)

// Recorder receives bot events.
type Recorder interface {
	ObserveInbound(channel, kind string)
	ObserveDuplicate(channel string)
	ObserveSession(event string)
	ObserveEnhancement(op string, enhanced bool)
	ObserveRender(templateID string, success bool, duration time.Duration)
	SetActiveSessions(n int)
}

// Noop discards everything.
type Noop struct{}

func (Noop) ObserveInbound(string, string)             {}
func (Noop) ObserveDuplicate(string)                   {}
func (Noop) ObserveSession(string)                     {}
func (Noop) ObserveEnhancement(string, bool)           {}
func (Noop) ObserveRender(string, bool, time.Duration) {}
func (Noop) SetActiveSessions(int)                     {}

// PrometheusRecorder implements Recorder on a private registry.
type PrometheusRecorder struct {
	registry       *prometheus.Registry
	inboundTotal   *prometheus.CounterVec
	duplicateTotal *prometheus.CounterVec
	sessionsTotal  *prometheus.CounterVec
	enhanceTotal   *prometheus.CounterVec
	renderTotal    *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	activeSessions prometheus.Gauge
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a recorder with Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		inboundTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resumepipe_inbound_messages_total",
				Help: "Inbound user events by channel and kind",
			},
			[]string{"channel", "kind"},
		),
		duplicateTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resumepipe_duplicate_messages_total",
				Help: "Inbound events dropped as redeliveries",
			},
			[]string{"channel"},
		),
		sessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resumepipe_session_events_total",
				Help: "Session lifecycle events",
			},
			[]string{"event"},
		),
		enhanceTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resumepipe_ai_enhancements_total",
				Help: "Best-effort AI operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		renderTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resumepipe_renders_total",
				Help: "PDF renders by template and status",
			},
			[]string{"template", "status"},
		),
		renderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resumepipe_render_duration_seconds",
				Help:    "Time spent rendering a PDF",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"template"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "resumepipe_active_sessions",
				Help: "Sessions currently held in memory",
			},
		),
	}
}

func (p *PrometheusRecorder) ObserveInbound(channel, kind string) {
	p.inboundTotal.WithLabelValues(channel, kind).Inc()
}

func (p *PrometheusRecorder) ObserveDuplicate(channel string) {
	p.duplicateTotal.WithLabelValues(channel).Inc()
}

func (p *PrometheusRecorder) ObserveSession(event string) {
	p.sessionsTotal.WithLabelValues(event).Inc()
}

func (p *PrometheusRecorder) ObserveEnhancement(op string, enhanced bool) {
	outcome := "enhanced"
	if !enhanced {
		outcome = "fallback"
	}
	p.enhanceTotal.WithLabelValues(op, outcome).Inc()
}

func (p *PrometheusRecorder) ObserveRender(templateID string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.renderTotal.WithLabelValues(templateID, status).Inc()
	p.renderDuration.WithLabelValues(templateID).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) SetActiveSessions(n int) {
	p.activeSessions.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}
