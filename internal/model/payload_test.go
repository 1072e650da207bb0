package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestPayload_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fields  map[string]any
		wantErr bool
	}{
		{"empty", map[string]any{}, true},
		{"missing event", map[string]any{"deviceType": 2}, true},
		{"nil event", map[string]any{"event": nil}, true},
		{"blank event", map[string]any{"event": ""}, true},
		{"valid", map[string]any{"event": "lock-status-changed"}, false},
		{"unknown event is still valid", map[string]any{"event": "foo"}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := PayloadFromMap(tt.fields).Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPayload) {
					t.Errorf("Validate() = %v, want ErrInvalidPayload", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestPayload_NilValidate(t *testing.T) {
	t.Parallel()

	var p *Payload
	if err := p.Validate(); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Validate() on nil = %v, want ErrInvalidPayload", err)
	}
}

func TestPayload_KeyOrder(t *testing.T) {
	t.Parallel()

	p := NewPayload()
	p.Set("event", "lock-status-changed")
	p.Set("state", "6")
	p.Set("deviceType", "2")
	p.Set("state", "5")

	keys := p.Keys()
	want := []string{"event", "state", "deviceType"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %s, want %s", i, keys[i], want[i])
		}
	}

	v, _ := p.Get("state")
	if v != "5" {
		t.Errorf("state = %v, want 5", v)
	}
}

func TestPayload_Float(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		value  any
		want   float64
		wantOK bool
	}{
		{"float64", 0.73, 0.73, true},
		{"int", 80, 80, true},
		{"string", "0.5", 0.5, true},
		{"padded string", " 12 ", 12, true},
		{"json number", json.Number("0.25"), 0.25, true},
		{"bool", true, 1, true},
		{"garbage", "abc", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewPayload()
			p.Set("batteryLevel", tt.value)

			got, ok := p.Float("batteryLevel")
			if ok != tt.wantOK {
				t.Fatalf("Float() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Float() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, ok := NewPayload().Float("missing"); ok {
		t.Error("Float() on missing field should report false")
	}
}

func TestNewCaptureRecord(t *testing.T) {
	t.Parallel()

	p := NewPayload()
	p.Set("event", "device-settings-changed")
	p.Set("deviceType", 4)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	rec, err := NewCaptureRecord("01HX", "req-1", "POST", "10.0.0.1", p, at)
	if err != nil {
		t.Fatalf("NewCaptureRecord() error: %v", err)
	}

	if rec.Event != "device-settings-changed" {
		t.Errorf("Event = %s, want device-settings-changed", rec.Event)
	}
	if len(rec.Fields) != 2 || rec.Fields[0] != "event" {
		t.Errorf("Fields = %v, want [event deviceType]", rec.Fields)
	}
	if rec.ReceivedAt.Location() != time.UTC {
		t.Errorf("ReceivedAt should be UTC, got %s", rec.ReceivedAt.Location())
	}

	var decoded map[string]any
	if err := json.Unmarshal(rec.Payload, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded["deviceType"] != float64(4) {
		t.Errorf("payload deviceType = %v, want 4", decoded["deviceType"])
	}
}

func TestNewCaptureRecord_EmptyPayload(t *testing.T) {
	t.Parallel()

	rec, err := NewCaptureRecord("01HX", "", "GET", "", NewPayload(), time.Now())
	if err != nil {
		t.Fatalf("NewCaptureRecord() error: %v", err)
	}
	if rec.Event != "" {
		t.Errorf("Event = %q, want empty", rec.Event)
	}
	if string(rec.Payload) != "{}" {
		t.Errorf("Payload = %s, want {}", rec.Payload)
	}
}
