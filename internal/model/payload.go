package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Payload field names sent by the Tedee bridge.
const (
	FieldEvent        = "event"
	FieldIsConnected  = "isConnected"
	FieldDeviceType   = "deviceType"
	FieldState        = "state"
	FieldJammed       = "jammed"
	FieldBatteryLevel = "batteryLevel"
)

// ErrInvalidPayload is returned when a payload is empty or carries no event.
var ErrInvalidPayload = errors.New("invalid payload")

// Payload is a flat webhook notification as delivered by the bridge.
// Values are strings, numbers (float64, int, json.Number) or bools.
type Payload struct {
	fields map[string]any
	keys   []string
}

// NewPayload creates an empty payload.
func NewPayload() *Payload {
	return &Payload{fields: make(map[string]any)}
}

// PayloadFromMap builds a payload from an existing map.
// Key order follows the map's sorted keys since Go maps are unordered.
func PayloadFromMap(m map[string]any) *Payload {
	p := NewPayload()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		p.Set(k, m[k])
	}
	return p
}

// Set stores a field. Re-setting a key keeps its original position.
func (p *Payload) Set(key string, value any) {
	if _, ok := p.fields[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.fields[key] = value
}

// Get returns the raw value for key.
func (p *Payload) Get(key string) (any, bool) {
	v, ok := p.fields[key]
	return v, ok
}

// Keys returns field names in the order they were received.
func (p *Payload) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of fields.
func (p *Payload) Len() int {
	return len(p.fields)
}

// Event returns the event name, or "" when absent.
func (p *Payload) Event() string {
	v, ok := p.fields[FieldEvent]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Validate checks the payload is non-empty and carries an event field.
func (p *Payload) Validate() error {
	if p == nil || len(p.fields) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	v, ok := p.fields[FieldEvent]
	if !ok || v == nil {
		return fmt.Errorf("%w: missing %q field", ErrInvalidPayload, FieldEvent)
	}
	if p.Event() == "" {
		return fmt.Errorf("%w: empty %q field", ErrInvalidPayload, FieldEvent)
	}
	return nil
}

// Float returns a field coerced to float64.
// The second result is false when the field is missing or not numeric.
func (p *Payload) Float(key string) (float64, bool) {
	v, ok := p.fields[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// MarshalJSON encodes the payload as a flat JSON object.
func (p *Payload) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.fields)
}
