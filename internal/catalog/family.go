package catalog

import (
	"context"
	"fmt"

	"github.com/tedeeprom/tedeeprom/internal/model"
	"github.com/tedeeprom/tedeeprom/internal/storage"
)

type family struct {
	def   model.MetricDefinition
	store storage.Storage
}

// Definition returns the registered definition of the family.
func (f family) Definition() model.MetricDefinition {
	return f.def
}

func (f family) checkLabels(labelValues []string) error {
	if len(labelValues) != len(f.def.LabelNames) {
		return fmt.Errorf("%w: %s expects %d values %v, got %d",
			ErrLabelCount, f.def.FQName(), len(f.def.LabelNames), f.def.LabelNames, len(labelValues))
	}
	return nil
}

// Counter is a monotonically increasing family.
type Counter struct {
	family
}

// Inc adds one to the sample for labelValues, creating it at 1 if absent.
func (c *Counter) Inc(ctx context.Context, labelValues ...string) error {
	if err := c.checkLabels(labelValues); err != nil {
		return err
	}
	return c.store.IncrCounter(ctx, c.def, labelValues, 1)
}

// Gauge is a family whose samples hold the last value set.
type Gauge struct {
	family
}

// Set overwrites the sample for labelValues with value.
func (g *Gauge) Set(ctx context.Context, value float64, labelValues ...string) error {
	if err := g.checkLabels(labelValues); err != nil {
		return err
	}
	return g.store.SetGauge(ctx, g.def, labelValues, value)
}

// Histogram is a family of bucketed distributions.
type Histogram struct {
	family
}

// Observe folds value into the distribution for labelValues.
func (h *Histogram) Observe(ctx context.Context, value float64, labelValues ...string) error {
	if err := h.checkLabels(labelValues); err != nil {
		return err
	}
	return h.store.ObserveHistogram(ctx, h.def, labelValues, value)
}
