// Package capture keeps a raw copy of every inbound webhook for debugging.
// Capturing is best-effort and independent of metric processing.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tedeeprom/tedeeprom/internal/metrics"
	"github.com/tedeeprom/tedeeprom/internal/model"
)

// DefaultTimeout bounds an asynchronous capture write.
const DefaultTimeout = 2 * time.Second

// Sink persists capture records.
type Sink interface {
	Write(ctx context.Context, rec *model.CaptureRecord) error
	Close() error
}

// Request is the request metadata attached to a capture.
type Request struct {
	RequestID  string
	Method     string
	RemoteAddr string
}

// Capturer builds capture records and hands them to a Sink.
type Capturer struct {
	sink    Sink
	logger  *slog.Logger
	metrics metrics.Recorder
	timeout time.Duration
	now     func() time.Time

	inflight sync.WaitGroup
}

// NewCapturer creates a Capturer writing to sink.
func NewCapturer(sink Sink, logger *slog.Logger, recorder metrics.Recorder, timeout time.Duration) *Capturer {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Capturer{
		sink:    sink,
		logger:  logger.With("component", "capture"),
		metrics: recorder,
		timeout: timeout,
		now:     time.Now,
	}
}

// Capture writes one record synchronously.
func (c *Capturer) Capture(ctx context.Context, req Request, p *model.Payload) error {
	rec, err := model.NewCaptureRecord(ulid.Make().String(), req.RequestID, req.Method, req.RemoteAddr, p, c.now())
	if err != nil {
		c.metrics.IncCaptureWritten(metrics.CaptureFailed)
		return fmt.Errorf("build capture record: %w", err)
	}

	if err := c.sink.Write(ctx, rec); err != nil {
		c.metrics.IncCaptureWritten(metrics.CaptureFailed)
		return fmt.Errorf("write capture %s: %w", rec.ID, err)
	}

	c.metrics.IncCaptureWritten(metrics.CaptureSuccess)
	c.logger.Debug("request captured", "capture_id", rec.ID, "event", rec.Event)
	return nil
}

// CaptureAsync captures without blocking the caller.
// Errors are logged but not returned (fire-and-forget).
func (c *Capturer) CaptureAsync(req Request, p *model.Payload) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		if err := c.Capture(ctx, req, p); err != nil {
			c.logger.Warn("failed to capture request",
				"request_id", req.RequestID,
				"error", err,
			)
		}
	}()
}

// Close waits for in-flight asynchronous captures, then closes the sink.
func (c *Capturer) Close() error {
	c.inflight.Wait()
	return c.sink.Close()
}

// NoopSink discards all records.
type NoopSink struct{}

// Write is a no-op.
func (NoopSink) Write(ctx context.Context, rec *model.CaptureRecord) error { return nil }

// Close is a no-op.
func (NoopSink) Close() error { return nil }
