package exposition

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tedeeprom/tedeeprom/internal/catalog"
	"github.com/tedeeprom/tedeeprom/internal/event"
	"github.com/tedeeprom/tedeeprom/internal/model"
	"github.com/tedeeprom/tedeeprom/internal/storage"
)

func TestRender_Scenarios(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemory()
	router := event.NewRouter(catalog.New(store, "tedee"))

	payloads := []map[string]any{
		{"event": "lock-status-changed", "state": 6, "deviceType": 2, "jammed": 0},
		{"event": "device-battery-level-changed", "deviceType": 4, "batteryLevel": 0.73},
		{"event": "device-connection-changed", "deviceType": 99, "isConnected": 1},
		{"event": "foo"},
	}
	for _, p := range payloads {
		_, _ = router.Route(ctx, model.PayloadFromMap(p))
	}

	var buf bytes.Buffer
	require.NoError(t, Render(ctx, &buf, store))
	out := buf.String()

	assert.Contains(t, out, `tedee_lock_status_changed_total{state="closed",deviceType="Lock Pro",jammed="not jammed"} 1`)
	assert.Contains(t, out, `tedee_device_battery_level_ratio{deviceType="Lock Go"} 0.73`)
	assert.Contains(t, out, `tedee_device_connection_changed_total{deviceType="unknown",isConnected="connected"} 1`)
	assert.Contains(t, out, "# TYPE tedee_device_battery_level_ratio gauge")
	assert.Contains(t, out, "# HELP tedee_lock_status_changed_total it observes lock status change")

	// One sample line per (family, label tuple).
	var sampleLines int
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if !strings.HasPrefix(line, "#") {
			sampleLines++
		}
	}
	assert.Equal(t, 3, sampleLines)

	var parser expfmt.TextParser
	parsed, err := parser.TextToMetricFamilies(strings.NewReader(out))
	require.NoError(t, err, "output must be valid exposition text")
	assert.Len(t, parsed, 3)
}

func TestRender_Histogram(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemory()
	c := catalog.New(store, "tedee")

	hist, err := c.GetOrRegisterHistogram(ctx, "device_battery_charging_duration_seconds", "it observes lock charging status", []string{"deviceType"})
	require.NoError(t, err)
	require.NoError(t, hist.Observe(ctx, 0.2, "Lock Pro"))
	require.NoError(t, hist.Observe(ctx, 1.7e9, "Lock Pro"))

	var buf bytes.Buffer
	require.NoError(t, Render(ctx, &buf, store))
	out := buf.String()

	assert.Contains(t, out, `tedee_device_battery_charging_duration_seconds_bucket{deviceType="Lock Pro",le="0.1"} 0`)
	assert.Contains(t, out, `tedee_device_battery_charging_duration_seconds_bucket{deviceType="Lock Pro",le="0.25"} 1`)
	assert.Contains(t, out, `tedee_device_battery_charging_duration_seconds_bucket{deviceType="Lock Pro",le="10"} 1`)
	assert.Contains(t, out, `tedee_device_battery_charging_duration_seconds_bucket{deviceType="Lock Pro",le="+Inf"} 2`)
	assert.Contains(t, out, `tedee_device_battery_charging_duration_seconds_count{deviceType="Lock Pro"} 2`)
	assert.Equal(t, 1, strings.Count(out, `le="+Inf"`))

	var parser expfmt.TextParser
	_, err = parser.TextToMetricFamilies(strings.NewReader(out))
	require.NoError(t, err)
}

func TestRender_EmptyFamilySkipped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemory()
	_, err := catalog.New(store, "tedee").GetOrRegisterCounter(ctx, "device_settings_changed_total", "help", []string{"deviceType"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(ctx, &buf, store))
	assert.Empty(t, buf.String())
}

type errCollector struct{}

func (errCollector) Collect(ctx context.Context) ([]model.Family, error) {
	return nil, errors.New("redis down")
}

func TestRender_CollectError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Render(context.Background(), &buf, errCollector{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestToDTO_LabelArity(t *testing.T) {
	t.Parallel()

	_, err := ToDTO(model.Family{
		Definition: model.MetricDefinition{Name: "x_total", Kind: model.KindCounter, LabelNames: []string{"a", "b"}},
		Samples:    []model.Sample{{LabelValues: []string{"only-one"}, Value: 1}},
	})
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	t.Parallel()

	assert.True(t, strings.HasPrefix(ContentType, "text/plain; version=0.0.4"))
}
