package event

import (
	"context"
	"fmt"

	"github.com/tedeeprom/tedeeprom/internal/label"
	"github.com/tedeeprom/tedeeprom/internal/model"
)

// family describes one metric family written by a handler.
type family struct {
	name   string
	help   string
	labels []string
}

// Families written by the handlers, unprefixed by namespace.
var (
	backendConnectionFamily = family{
		name:   "backend_connection_changed_total",
		help:   "it observes change of backend connection",
		labels: []string{model.FieldIsConnected},
	}
	deviceConnectionFamily = family{
		name:   "device_connection_changed_total",
		help:   "it observes change of device connection to the bridge",
		labels: []string{model.FieldDeviceType, model.FieldIsConnected},
	}
	deviceSettingsFamily = family{
		name:   "device_settings_changed_total",
		help:   "it observes change of device settings",
		labels: []string{model.FieldDeviceType},
	}
	lockStatusFamily = family{
		name:   "lock_status_changed_total",
		help:   "it observes lock status change",
		labels: []string{model.FieldState, model.FieldDeviceType, model.FieldJammed},
	}
	batteryLevelFamily = family{
		name:   "device_battery_level_ratio",
		help:   "it observes lock battery level change",
		labels: []string{model.FieldDeviceType},
	}
	batteryChargingFamily = family{
		name:   "device_battery_charging_duration_seconds",
		help:   "it observes lock charging status",
		labels: []string{model.FieldDeviceType},
	}
	batteryFullyChargedFamily = family{
		name:   "device_battery_fully_charged_total",
		help:   "it observes fully charge state",
		labels: []string{model.FieldDeviceType},
	}
)

func resolve(p *model.Payload, table label.Table, field string) string {
	raw, _ := p.Get(field)
	return label.Resolve(table, raw)
}

func (r *Router) inc(ctx context.Context, f family, labels ...string) (Outcome, error) {
	counter, err := r.catalog.GetOrRegisterCounter(ctx, f.name, f.help, f.labels)
	if err != nil {
		return Outcome{}, err
	}
	if err := counter.Inc(ctx, labels...); err != nil {
		return Outcome{}, err
	}
	return Outcome{Metric: counter.Definition().FQName(), Labels: labels}, nil
}

func (r *Router) backendConnectionChanged(ctx context.Context, p *model.Payload) (Outcome, error) {
	return r.inc(ctx, backendConnectionFamily,
		resolve(p, label.ConnectionStatus, model.FieldIsConnected),
	)
}

func (r *Router) deviceConnectionChanged(ctx context.Context, p *model.Payload) (Outcome, error) {
	return r.inc(ctx, deviceConnectionFamily,
		resolve(p, label.DeviceType, model.FieldDeviceType),
		resolve(p, label.ConnectionStatus, model.FieldIsConnected),
	)
}

func (r *Router) deviceSettingsChanged(ctx context.Context, p *model.Payload) (Outcome, error) {
	return r.inc(ctx, deviceSettingsFamily,
		resolve(p, label.DeviceType, model.FieldDeviceType),
	)
}

func (r *Router) lockStatusChanged(ctx context.Context, p *model.Payload) (Outcome, error) {
	return r.inc(ctx, lockStatusFamily,
		resolve(p, label.LockState, model.FieldState),
		resolve(p, label.DeviceType, model.FieldDeviceType),
		resolve(p, label.JammedStatus, model.FieldJammed),
	)
}

func (r *Router) batteryFullyCharged(ctx context.Context, p *model.Payload) (Outcome, error) {
	return r.inc(ctx, batteryFullyChargedFamily,
		resolve(p, label.DeviceType, model.FieldDeviceType),
	)
}

func (r *Router) batteryLevelChanged(ctx context.Context, p *model.Payload) (Outcome, error) {
	level, ok := p.Float(model.FieldBatteryLevel)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: missing or non-numeric %q", model.ErrInvalidPayload, model.FieldBatteryLevel)
	}

	f := batteryLevelFamily
	gauge, err := r.catalog.GetOrRegisterGauge(ctx, f.name, f.help, f.labels)
	if err != nil {
		return Outcome{}, err
	}

	labels := []string{resolve(p, label.DeviceType, model.FieldDeviceType)}
	if err := gauge.Set(ctx, level, labels...); err != nil {
		return Outcome{}, err
	}
	return Outcome{Metric: gauge.Definition().FQName(), Labels: labels}, nil
}

// batteryCharging observes the current Unix time on both start and stop
// notifications, not the elapsed charging time.
func (r *Router) batteryCharging(ctx context.Context, p *model.Payload) (Outcome, error) {
	f := batteryChargingFamily
	hist, err := r.catalog.GetOrRegisterHistogram(ctx, f.name, f.help, f.labels)
	if err != nil {
		return Outcome{}, err
	}

	labels := []string{resolve(p, label.DeviceType, model.FieldDeviceType)}
	if err := hist.Observe(ctx, float64(r.now().Unix()), labels...); err != nil {
		return Outcome{}, err
	}
	return Outcome{Metric: hist.Definition().FQName(), Labels: labels}, nil
}
