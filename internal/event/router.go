// Package event classifies Tedee bridge notifications and turns each one
// into a single metric update.
package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tedeeprom/tedeeprom/internal/catalog"
	"github.com/tedeeprom/tedeeprom/internal/model"
)

// ErrUnknownEvent is returned for a valid payload whose event is not recognized.
var ErrUnknownEvent = errors.New("unknown event")

// Outcome describes the metric update a payload produced.
type Outcome struct {
	Kind   model.EventKind
	Metric string   // fully-qualified family name, empty when nothing was written
	Labels []string // resolved label tuple
}

type handlerFunc func(ctx context.Context, p *model.Payload) (Outcome, error)

// Router validates payloads and dispatches them to per-kind handlers.
type Router struct {
	catalog  *catalog.Catalog
	now      func() time.Time
	handlers map[model.EventKind]handlerFunc
}

// Option configures a Router.
type Option func(*Router)

// WithClock overrides the time source used by the charging handler.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// NewRouter creates a Router that writes through c.
func NewRouter(c *catalog.Catalog, opts ...Option) *Router {
	r := &Router{
		catalog: c,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.handlers = map[model.EventKind]handlerFunc{
		model.EventBackendConnectionChanged: r.backendConnectionChanged,
		model.EventDeviceConnectionChanged:  r.deviceConnectionChanged,
		model.EventDeviceSettingsChanged:    r.deviceSettingsChanged,
		model.EventLockStatusChanged:        r.lockStatusChanged,
		model.EventBatteryLevelChanged:      r.batteryLevelChanged,
		model.EventBatteryCharging:          r.batteryCharging,
		model.EventBatteryFullyCharged:      r.batteryFullyCharged,
	}
	return r
}

// Classify maps a validated payload to its event kind.
func Classify(p *model.Payload) model.EventKind {
	return model.ParseEventKind(p.Event())
}

// Route validates p, classifies it and applies the matching metric update.
//
// Returned errors wrap model.ErrInvalidPayload, ErrUnknownEvent,
// catalog.ErrLabelCardinalityMismatch, catalog.ErrLabelCount or a storage
// failure. In every error case no sample has been written.
func (r *Router) Route(ctx context.Context, p *model.Payload) (Outcome, error) {
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}

	kind := Classify(p)
	h, ok := r.handlers[kind]
	if !ok {
		return Outcome{Kind: kind}, fmt.Errorf("%w: %q", ErrUnknownEvent, p.Event())
	}

	out, err := h(ctx, p)
	out.Kind = kind
	if err != nil {
		return out, fmt.Errorf("%s: %w", kind, err)
	}
	return out, nil
}
