package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/tedeeprom/tedeeprom/internal/exposition"
	"github.com/tedeeprom/tedeeprom/internal/metrics"
	"github.com/tedeeprom/tedeeprom/internal/middleware"
)

// MetricsHandler serves the stored Tedee metric families for scraping.
type MetricsHandler struct {
	collector exposition.Collector
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(collector exposition.Collector, recorder metrics.Recorder, logger *slog.Logger) *MetricsHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &MetricsHandler{
		collector: collector,
		metrics:   recorder,
		logger:    logger.With("handler", "metrics"),
	}
}

// Metrics handles GET /metrics.
// The body is rendered into a buffer first so a storage failure halfway
// through yields a clean 500 instead of a truncated exposition.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var buf bytes.Buffer
	err := exposition.Render(r.Context(), &buf, h.collector)
	h.metrics.ObserveRenderDuration(time.Since(start))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render metrics",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "failed to render metrics",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	w.Header().Set("Content-Type", exposition.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
