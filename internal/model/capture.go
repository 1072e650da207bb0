package model

import (
	"encoding/json"
	"time"
)

// CaptureRecord is the raw copy of one inbound webhook request, kept for debugging.
type CaptureRecord struct {
	ID        string `json:"id"`                   // ULID (time-sortable)
	RequestID string `json:"request_id,omitempty"` // X-Request-ID of the delivery

	// Request metadata
	Method     string `json:"method"`
	RemoteAddr string `json:"remote_addr,omitempty"`

	// Event name as received, empty when the payload had none
	Event  string   `json:"event,omitempty"`
	Fields []string `json:"fields"`

	Payload json.RawMessage `json:"payload"`

	ReceivedAt time.Time `json:"received_at"`
}

// NewCaptureRecord snapshots a payload into a capture record.
func NewCaptureRecord(id, requestID, method, remoteAddr string, p *Payload, receivedAt time.Time) (*CaptureRecord, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	rec := &CaptureRecord{
		ID:         id,
		RequestID:  requestID,
		Method:     method,
		RemoteAddr: remoteAddr,
		Fields:     []string{},
		Payload:    raw,
		ReceivedAt: receivedAt.UTC(),
	}
	if p != nil {
		rec.Event = p.Event()
		rec.Fields = p.Keys()
	}
	return rec, nil
}
