package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/tedeeprom/tedeeprom/internal/capture"
	"github.com/tedeeprom/tedeeprom/internal/catalog"
	"github.com/tedeeprom/tedeeprom/internal/event"
	"github.com/tedeeprom/tedeeprom/internal/metrics"
	"github.com/tedeeprom/tedeeprom/internal/middleware"
	"github.com/tedeeprom/tedeeprom/internal/model"
)

// maxMultipartMemory bounds in-memory parsing of multipart bodies.
const maxMultipartMemory = 1 << 20

// jsonDataKey holds the event-specific fields in Tedee's JSON envelope.
const jsonDataKey = "data"

// ErrMalformedBody is returned when a JSON body is not an object.
var ErrMalformedBody = errors.New("malformed request body")

// EventRouter applies a payload to the metric catalog.
type EventRouter interface {
	Route(ctx context.Context, p *model.Payload) (event.Outcome, error)
}

// RequestCapturer records raw requests for debugging.
type RequestCapturer interface {
	CaptureAsync(req capture.Request, p *model.Payload)
}

// AcceptedResponse is the body of every webhook response.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// WebhookHandler receives Tedee bridge notifications.
type WebhookHandler struct {
	router   EventRouter
	capturer RequestCapturer
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. capturer and recorder may be nil.
func NewWebhookHandler(router EventRouter, capturer RequestCapturer, recorder metrics.Recorder, logger *slog.Logger) *WebhookHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &WebhookHandler{
		router:   router,
		capturer: capturer,
		metrics:  recorder,
		logger:   logger.With("handler", "webhook"),
	}
}

// Receive handles ANY /webhook.
//
// Ingestion is fail-soft: whatever the payload, the caller gets
// 200 {"status":"accepted"}. Problems are logged and counted.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	p, err := ParsePayload(r)
	if err != nil {
		h.logger.Warn("failed to read webhook body",
			"request_id", requestID,
			"content_type", r.Header.Get("Content-Type"),
			"error", err,
		)
	}

	out, routeErr := h.router.Route(ctx, p)
	outcome := h.logOutcome(ctx, requestID, p, out, routeErr)

	h.metrics.IncWebhookProcessed(out.Kind.String(), outcome)
	h.metrics.ObserveWebhookDuration(time.Since(start))

	if h.capturer != nil {
		h.capturer.CaptureAsync(capture.Request{
			RequestID:  requestID,
			Method:     r.Method,
			RemoteAddr: r.RemoteAddr,
		}, p)
	}

	writeJSON(w, http.StatusOK, AcceptedResponse{Status: "accepted"})
}

func (h *WebhookHandler) logOutcome(ctx context.Context, requestID string, p *model.Payload, out event.Outcome, err error) string {
	switch {
	case err == nil:
		h.logger.DebugContext(ctx, "webhook applied",
			"request_id", requestID,
			"event", out.Kind.String(),
			"metric", out.Metric,
			"labels", out.Labels,
		)
		return metrics.OutcomeApplied

	case errors.Is(err, model.ErrInvalidPayload):
		h.logger.WarnContext(ctx, "invalid webhook payload",
			"request_id", requestID,
			"fields", p.Keys(),
			"error", err,
		)
		return metrics.OutcomeInvalid

	case errors.Is(err, event.ErrUnknownEvent):
		h.logger.WarnContext(ctx, "unknown webhook event",
			"request_id", requestID,
			"event", p.Event(),
			"payload", payloadJSON(p),
		)
		return metrics.OutcomeUnknown

	case errors.Is(err, catalog.ErrLabelCardinalityMismatch):
		h.logger.WarnContext(ctx, "metric schema conflict",
			"request_id", requestID,
			"event", out.Kind.String(),
			"error", err,
		)
		return metrics.OutcomeConflict

	case errors.Is(err, catalog.ErrLabelCount):
		h.logger.ErrorContext(ctx, "label count mismatch",
			"request_id", requestID,
			"event", out.Kind.String(),
			"error", err,
		)
		return metrics.OutcomeError

	default:
		h.logger.ErrorContext(ctx, "failed to apply webhook",
			"request_id", requestID,
			"event", out.Kind.String(),
			"error", err,
		)
		return metrics.OutcomeError
	}
}

func payloadJSON(p *model.Payload) string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

// ParsePayload collects the request parameters into a Payload.
//
// Query and form values are read for every method; on duplicate keys the
// body wins and the first value of a repeated key is used. A JSON object
// body is accepted as well, with a nested "data" object flattened into the
// top level. The returned payload is never nil: on a body error it holds
// whatever could be read.
func ParsePayload(r *http.Request) (*model.Payload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		return parseJSON(r)
	}

	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxMultipartMemory)
	} else {
		err = r.ParseForm()
	}

	fields := make(map[string]any, len(r.Form))
	for key, values := range r.Form {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	p := model.PayloadFromMap(fields)
	if err != nil {
		return p, fmt.Errorf("parse form: %w", err)
	}
	return p, nil
}

func parseJSON(r *http.Request) (*model.Payload, error) {
	fields := make(map[string]any)

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body any
	err := dec.Decode(&body)
	switch {
	case errors.Is(err, io.EOF):
		err = nil
	case err != nil:
		err = fmt.Errorf("decode json: %w", err)
	default:
		obj, ok := body.(map[string]any)
		if !ok {
			err = fmt.Errorf("%w: json body is not an object", ErrMalformedBody)
			break
		}
		for k, v := range obj {
			fields[k] = v
		}
		if data, ok := obj[jsonDataKey].(map[string]any); ok {
			delete(fields, jsonDataKey)
			for k, v := range data {
				if _, exists := fields[k]; !exists {
					fields[k] = v
				}
			}
		}
	}

	for key, values := range r.URL.Query() {
		if _, exists := fields[key]; !exists && len(values) > 0 {
			fields[key] = values[0]
		}
	}

	return model.PayloadFromMap(fields), err
}
