package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder exposes the exporter's own metrics through a private
// registry, served separately from the stored Tedee families.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	webhooksProcessed *prometheus.CounterVec
	webhookDuration   prometheus.Histogram
	capturesWritten   *prometheus.CounterVec
	renderDuration    prometheus.Histogram
}

// NewPrometheus creates a recorder with its own registry, including the Go
// runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()

	r := &PrometheusRecorder{
		registry: reg,
		webhooksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tedeeprom",
			Name:      "webhooks_processed_total",
			Help:      "Webhook deliveries by event and outcome.",
		}, []string{"event", "outcome"}),
		webhookDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tedeeprom",
			Name:      "webhook_duration_seconds",
			Help:      "Time spent handling one webhook delivery.",
			Buckets:   prometheus.DefBuckets,
		}),
		capturesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tedeeprom",
			Name:      "captures_written_total",
			Help:      "Raw request captures by status.",
		}, []string{"status"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tedeeprom",
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering stored metric families.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		r.webhooksProcessed,
		r.webhookDuration,
		r.capturesWritten,
		r.renderDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Registry returns the underlying registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the recorder's metrics.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// IncWebhookProcessed counts a processed webhook by event and outcome.
func (r *PrometheusRecorder) IncWebhookProcessed(event, outcome string) {
	r.webhooksProcessed.WithLabelValues(event, outcome).Inc()
}

// ObserveWebhookDuration records webhook handling duration.
func (r *PrometheusRecorder) ObserveWebhookDuration(duration time.Duration) {
	r.webhookDuration.Observe(duration.Seconds())
}

// IncCaptureWritten counts capture writes by status.
func (r *PrometheusRecorder) IncCaptureWritten(status string) {
	r.capturesWritten.WithLabelValues(status).Inc()
}

// ObserveRenderDuration records exposition render duration.
func (r *PrometheusRecorder) ObserveRenderDuration(duration time.Duration) {
	r.renderDuration.Observe(duration.Seconds())
}
