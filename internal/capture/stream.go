package capture

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tedeeprom/tedeeprom/internal/model"
)

// DefaultStreamMaxLen is the approximate max length of the capture stream.
const DefaultStreamMaxLen = 10000

// StreamSink adds records to a Redis stream.
type StreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamSink creates a sink writing to stream. The client is owned by
// the caller and is not closed by the sink.
func NewStreamSink(client *redis.Client, stream string, maxLen int64) *StreamSink {
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	return &StreamSink{client: client, stream: stream, maxLen: maxLen}
}

// Write adds rec to the stream.
func (s *StreamSink) Write(ctx context.Context, rec *model.CaptureRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal capture: %w", err)
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",
		Values: map[string]interface{}{
			"capture_id": rec.ID,
			"event":      rec.Event,
			"payload":    string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *StreamSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the shared client is closed by its owner.
func (s *StreamSink) Close() error {
	return nil
}
