package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	WebhooksByOutcome      map[string]uint64
	WebhooksByEvent        map[string]uint64
	WebhookDurationCount   uint64
	WebhookDurationTotalNs int64
	CapturesWritten        uint64
	CapturesFailed         uint64
	RenderDurationCount    uint64
	RenderDurationTotalNs  int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu        sync.Mutex
	byOutcome map[string]uint64
	byEvent   map[string]uint64

	webhookDurationCount   uint64
	webhookDurationTotalNs int64
	capturesWritten        uint64
	capturesFailed         uint64
	renderDurationCount    uint64
	renderDurationTotalNs  int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		byOutcome: make(map[string]uint64),
		byEvent:   make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	byOutcome := make(map[string]uint64, len(m.byOutcome))
	for k, v := range m.byOutcome {
		byOutcome[k] = v
	}
	byEvent := make(map[string]uint64, len(m.byEvent))
	for k, v := range m.byEvent {
		byEvent[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		WebhooksByOutcome:      byOutcome,
		WebhooksByEvent:        byEvent,
		WebhookDurationCount:   atomic.LoadUint64(&m.webhookDurationCount),
		WebhookDurationTotalNs: atomic.LoadInt64(&m.webhookDurationTotalNs),
		CapturesWritten:        atomic.LoadUint64(&m.capturesWritten),
		CapturesFailed:         atomic.LoadUint64(&m.capturesFailed),
		RenderDurationCount:    atomic.LoadUint64(&m.renderDurationCount),
		RenderDurationTotalNs:  atomic.LoadInt64(&m.renderDurationTotalNs),
	}
}

// IncWebhookProcessed counts a processed webhook by event and outcome.
func (m *InMemoryRecorder) IncWebhookProcessed(event, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byOutcome[outcome]++
	m.byEvent[event]++
}

// ObserveWebhookDuration records webhook handling duration.
func (m *InMemoryRecorder) ObserveWebhookDuration(duration time.Duration) {
	atomic.AddUint64(&m.webhookDurationCount, 1)
	atomic.AddInt64(&m.webhookDurationTotalNs, duration.Nanoseconds())
}

// IncCaptureWritten counts capture writes by status.
func (m *InMemoryRecorder) IncCaptureWritten(status string) {
	if status == CaptureSuccess {
		atomic.AddUint64(&m.capturesWritten, 1)
		return
	}
	atomic.AddUint64(&m.capturesFailed, 1)
}

// ObserveRenderDuration records exposition render duration.
func (m *InMemoryRecorder) ObserveRenderDuration(duration time.Duration) {
	atomic.AddUint64(&m.renderDurationCount, 1)
	atomic.AddInt64(&m.renderDurationTotalNs, duration.Nanoseconds())
}
