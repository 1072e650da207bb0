package model

// EventKind is the classified type of a bridge notification.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventBackendConnectionChanged
	EventDeviceConnectionChanged
	EventDeviceSettingsChanged
	EventLockStatusChanged
	EventBatteryLevelChanged
	EventBatteryCharging
	EventBatteryFullyCharged
)

// eventNames maps wire event names to kinds. Start and stop charging share a kind.
var eventNames = map[string]EventKind{
	"backend-connection-changed":    EventBackendConnectionChanged,
	"device-connection-changed":     EventDeviceConnectionChanged,
	"device-settings-changed":       EventDeviceSettingsChanged,
	"lock-status-changed":           EventLockStatusChanged,
	"device-battery-level-changed":  EventBatteryLevelChanged,
	"device-battery-start-charging": EventBatteryCharging,
	"device-battery-stop-charging":  EventBatteryCharging,
	"device-battery-fully-charged":  EventBatteryFullyCharged,
}

// ParseEventKind maps an event name to its kind, or EventUnknown.
func ParseEventKind(name string) EventKind {
	if k, ok := eventNames[name]; ok {
		return k
	}
	return EventUnknown
}

// String returns a stable name for logging.
func (k EventKind) String() string {
	switch k {
	case EventBackendConnectionChanged:
		return "backend_connection_changed"
	case EventDeviceConnectionChanged:
		return "device_connection_changed"
	case EventDeviceSettingsChanged:
		return "device_settings_changed"
	case EventLockStatusChanged:
		return "lock_status_changed"
	case EventBatteryLevelChanged:
		return "battery_level_changed"
	case EventBatteryCharging:
		return "battery_charging"
	case EventBatteryFullyCharged:
		return "battery_fully_charged"
	default:
		return "unknown"
	}
}
