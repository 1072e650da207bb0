// Package metrics provides lightweight hooks for self-instrumentation of the
// exporter. These are the exporter's own metrics, not the Tedee families
// held in storage.
package metrics

import "time"

// Webhook outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeInvalid  = "invalid"
	OutcomeUnknown  = "unknown"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Capture statuses.
const (
	CaptureSuccess = "success"
	CaptureFailed  = "failed"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Webhook ingestion
	IncWebhookProcessed(event, outcome string)
	ObserveWebhookDuration(duration time.Duration)

	// Raw request capture
	IncCaptureWritten(status string)

	// Exposition
	ObserveRenderDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
