package event

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tedeeprom/tedeeprom/internal/catalog"
	"github.com/tedeeprom/tedeeprom/internal/model"
	"github.com/tedeeprom/tedeeprom/internal/storage"
)

var fixedNow = time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)

func newTestRouter(t *testing.T) (*Router, *storage.Memory) {
	t.Helper()

	store := storage.NewMemory()
	r := NewRouter(catalog.New(store, "tedee"), WithClock(func() time.Time { return fixedNow }))
	return r, store
}

// snapshot flattens storage into "name{labels}" -> value.
func snapshot(t *testing.T, store storage.Storage) map[string]float64 {
	t.Helper()

	families, err := store.Collect(context.Background())
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, f := range families {
		for _, s := range f.Samples {
			key := fmt.Sprintf("%s%v", f.Definition.FQName(), s.LabelValues)
			if f.Definition.Kind == model.KindHistogram {
				out[key+"_count"] = float64(s.Count)
				out[key+"_sum"] = s.Sum
				continue
			}
			out[key] = s.Value
		}
	}
	return out
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		event string
		want  model.EventKind
	}{
		{"backend-connection-changed", model.EventBackendConnectionChanged},
		{"device-connection-changed", model.EventDeviceConnectionChanged},
		{"device-settings-changed", model.EventDeviceSettingsChanged},
		{"lock-status-changed", model.EventLockStatusChanged},
		{"device-battery-level-changed", model.EventBatteryLevelChanged},
		{"device-battery-start-charging", model.EventBatteryCharging},
		{"device-battery-stop-charging", model.EventBatteryCharging},
		{"device-battery-fully-charged", model.EventBatteryFullyCharged},
		{"foo", model.EventUnknown},
		{"Lock-Status-Changed", model.EventUnknown},
		{"lock-status-changed ", model.EventUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.event, func(t *testing.T) {
			t.Parallel()

			p := model.PayloadFromMap(map[string]any{"event": tt.event})
			assert.Equal(t, tt.want, Classify(p))
		})
	}
}

func TestRoute_LockStatusChanged(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)
	out, err := r.Route(context.Background(), model.PayloadFromMap(map[string]any{
		"event": "lock-status-changed", "state": 6, "deviceType": 2, "jammed": 0,
	}))
	require.NoError(t, err)

	assert.Equal(t, model.EventLockStatusChanged, out.Kind)
	assert.Equal(t, "tedee_lock_status_changed_total", out.Metric)
	assert.Equal(t, []string{"closed", "Lock Pro", "not jammed"}, out.Labels)
	assert.Equal(t, map[string]float64{
		"tedee_lock_status_changed_total[closed Lock Pro not jammed]": 1,
	}, snapshot(t, store))
}

func TestRoute_LockStatusChanged_StringState(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	out, err := r.Route(context.Background(), model.PayloadFromMap(map[string]any{
		"event": "lock-status-changed", "state": "255", "deviceType": "4", "jammed": "1",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"unpulling", "Lock Go", "jammed"}, out.Labels)
}

func TestRoute_BatteryLevelChanged(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)
	ctx := context.Background()

	_, err := r.Route(ctx, model.PayloadFromMap(map[string]any{
		"event": "device-battery-level-changed", "deviceType": 4, "batteryLevel": 0.73,
	}))
	require.NoError(t, err)
	assert.Equal(t, 0.73, snapshot(t, store)["tedee_device_battery_level_ratio[Lock Go]"])

	_, err = r.Route(ctx, model.PayloadFromMap(map[string]any{
		"event": "device-battery-level-changed", "deviceType": "4", "batteryLevel": "0.5",
	}))
	require.NoError(t, err)
	assert.Equal(t, 0.5, snapshot(t, store)["tedee_device_battery_level_ratio[Lock Go]"], "only the latest set is visible")
}

func TestRoute_BatteryLevelMissing(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)
	_, err := r.Route(context.Background(), model.PayloadFromMap(map[string]any{
		"event": "device-battery-level-changed", "deviceType": 4,
	}))
	assert.ErrorIs(t, err, model.ErrInvalidPayload)
	assert.Empty(t, snapshot(t, store))
}

func TestRoute_UnknownEvent(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)
	out, err := r.Route(context.Background(), model.PayloadFromMap(map[string]any{"event": "foo"}))

	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Equal(t, model.EventUnknown, out.Kind)
	assert.Empty(t, out.Metric)
	assert.Empty(t, snapshot(t, store))
}

func TestRoute_InvalidPayload(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)
	ctx := context.Background()

	_, err := r.Route(ctx, model.NewPayload())
	assert.ErrorIs(t, err, model.ErrInvalidPayload)

	_, err = r.Route(ctx, model.PayloadFromMap(map[string]any{"deviceType": 2}))
	assert.ErrorIs(t, err, model.ErrInvalidPayload)

	assert.Empty(t, snapshot(t, store))
}

func TestRoute_DeviceConnectionChanged_Unmapped(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)
	_, err := r.Route(context.Background(), model.PayloadFromMap(map[string]any{
		"event": "device-connection-changed", "deviceType": 99, "isConnected": 1,
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"tedee_device_connection_changed_total[unknown connected]": 1,
	}, snapshot(t, store))
}

// TestRoute_DeviceConnectionChanged_OnlyOneSampleMoves checks every mapped
// combination increments exactly its own sample by one.
func TestRoute_DeviceConnectionChanged_OnlyOneSampleMoves(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)
	ctx := context.Background()

	deviceNames := map[int]string{2: "Lock Pro", 4: "Lock Go"}
	connNames := map[int]string{0: "disconnected", 1: "connected"}

	for _, dt := range []int{2, 4} {
		for _, conn := range []int{0, 1} {
			before := snapshot(t, store)

			_, err := r.Route(ctx, model.PayloadFromMap(map[string]any{
				"event": "device-connection-changed", "deviceType": dt, "isConnected": conn,
			}))
			require.NoError(t, err)

			after := snapshot(t, store)
			key := fmt.Sprintf("tedee_device_connection_changed_total[%s %s]", deviceNames[dt], connNames[conn])
			assert.Equal(t, before[key]+1, after[key], key)
			for k, v := range before {
				if k != key {
					assert.Equal(t, v, after[k], "sample %s must not change", k)
				}
			}
		}
	}
}

func TestRoute_CounterEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			"backend connection",
			map[string]any{"event": "backend-connection-changed", "isConnected": 0},
			"tedee_backend_connection_changed_total[disconnected]",
		},
		{
			"backend connection unmapped",
			map[string]any{"event": "backend-connection-changed", "isConnected": 7},
			"tedee_backend_connection_changed_total[unknown]",
		},
		{
			"device settings",
			map[string]any{"event": "device-settings-changed", "deviceType": 2},
			"tedee_device_settings_changed_total[Lock Pro]",
		},
		{
			"fully charged",
			map[string]any{"event": "device-battery-fully-charged", "deviceType": 4},
			"tedee_device_battery_fully_charged_total[Lock Go]",
		},
		{
			"fully charged without device type",
			map[string]any{"event": "device-battery-fully-charged"},
			"tedee_device_battery_fully_charged_total[unknown]",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, store := newTestRouter(t)
			ctx := context.Background()
			for i := 0; i < 2; i++ {
				_, err := r.Route(ctx, model.PayloadFromMap(tt.payload))
				require.NoError(t, err)
			}
			assert.Equal(t, map[string]float64{tt.want: 2}, snapshot(t, store))
		})
	}
}

func TestRoute_BatteryCharging_ObservesWallClock(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t)
	ctx := context.Background()

	for _, ev := range []string{"device-battery-start-charging", "device-battery-stop-charging"} {
		out, err := r.Route(ctx, model.PayloadFromMap(map[string]any{"event": ev, "deviceType": 2}))
		require.NoError(t, err)
		assert.Equal(t, model.EventBatteryCharging, out.Kind)
		assert.Equal(t, "tedee_device_battery_charging_duration_seconds", out.Metric)
	}

	snap := snapshot(t, store)
	assert.Equal(t, 2.0, snap["tedee_device_battery_charging_duration_seconds[Lock Pro]_count"])
	assert.Equal(t, float64(2*fixedNow.Unix()), snap["tedee_device_battery_charging_duration_seconds[Lock Pro]_sum"])
}

func TestRoute_SchemaConflict(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	c := catalog.New(store, "tedee")
	ctx := context.Background()

	// Another writer registered the family with a different schema.
	_, err := c.GetOrRegisterCounter(ctx, "device_settings_changed_total", "help", []string{"model"})
	require.NoError(t, err)

	r := NewRouter(c)
	_, err = r.Route(ctx, model.PayloadFromMap(map[string]any{"event": "device-settings-changed", "deviceType": 2}))
	assert.ErrorIs(t, err, catalog.ErrLabelCardinalityMismatch)
	assert.Empty(t, snapshot(t, store))
}

type failingStorage struct {
	storage.Storage
}

func (failingStorage) Register(ctx context.Context, def model.MetricDefinition) (model.MetricDefinition, bool, error) {
	return model.MetricDefinition{}, false, errors.New("connection refused")
}

func TestRoute_StorageFailure(t *testing.T) {
	t.Parallel()

	r := NewRouter(catalog.New(failingStorage{}, "tedee"))
	out, err := r.Route(context.Background(), model.PayloadFromMap(map[string]any{"event": "device-settings-changed"}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, model.EventDeviceSettingsChanged, out.Kind)
	assert.NotErrorIs(t, err, ErrUnknownEvent)
	assert.NotErrorIs(t, err, model.ErrInvalidPayload)
}
