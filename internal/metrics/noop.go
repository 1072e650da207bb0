package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncWebhookProcessed is a no-op.
func (n *NoopRecorder) IncWebhookProcessed(event, outcome string) {}

// ObserveWebhookDuration is a no-op.
func (n *NoopRecorder) ObserveWebhookDuration(duration time.Duration) {}

// IncCaptureWritten is a no-op.
func (n *NoopRecorder) IncCaptureWritten(status string) {}

// ObserveRenderDuration is a no-op.
func (n *NoopRecorder) ObserveRenderDuration(duration time.Duration) {}
