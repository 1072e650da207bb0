// Package label resolves raw Tedee status codes into canonical label values.
package label

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Unknown is returned for any code a table does not map.
const Unknown = "unknown"

// Table is an immutable code to label lookup.
type Table struct {
	name   string
	values map[int]string
}

// Name returns the table name, e.g. "device_type".
func (t Table) Name() string {
	return t.name
}

// Lookup returns the label for code, or Unknown.
func (t Table) Lookup(code int) string {
	if v, ok := t.values[code]; ok {
		return v
	}
	return Unknown
}

// Lookup tables for the fields a bridge sends.
var (
	DeviceType = Table{name: "device_type", values: map[int]string{
		2: "Lock Pro",
		4: "Lock Go",
	}}

	ConnectionStatus = Table{name: "connection_status", values: map[int]string{
		0: "disconnected",
		1: "connected",
	}}

	LockState = Table{name: "lock_state", values: map[int]string{
		0:   "uncalibrated",
		1:   "calibration",
		2:   "open",
		3:   "partially_open",
		4:   "opening",
		5:   "closing",
		6:   "closed",
		7:   "pull_spring",
		8:   "pulling",
		9:   "unknown",
		255: "unpulling",
	}}

	JammedStatus = Table{name: "jammed_status", values: map[int]string{
		0: "not jammed",
		1: "jammed",
	}}
)

// Resolve maps a raw payload value through table. It never fails:
// values that cannot be read as an integer resolve to Unknown.
func Resolve(table Table, raw any) string {
	code, ok := Code(raw)
	if !ok {
		return Unknown
	}
	return table.Lookup(code)
}

// Code coerces a raw payload value into an integer code.
// Floats are truncated toward zero and bools map to 0 and 1.
func Code(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint8:
		return int(v), true
	case float64:
		return truncate(v)
	case float32:
		return truncate(float64(v))
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case json.Number:
		return parse(string(v))
	case string:
		return parse(v)
	}
	return 0, false
}

func parse(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return truncate(f)
}

func truncate(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
