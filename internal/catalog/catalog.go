// Package catalog registers metric families in storage and applies the
// counter, gauge and histogram operations to them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	pmodel "github.com/prometheus/common/model"

	"github.com/tedeeprom/tedeeprom/internal/model"
	"github.com/tedeeprom/tedeeprom/internal/storage"
)

// Catalog errors.
var (
	// ErrLabelCardinalityMismatch is returned when a family is already
	// registered under the same name with another kind or label schema.
	ErrLabelCardinalityMismatch = errors.New("label cardinality mismatch")

	// ErrLabelCount is returned when an operation receives a different
	// number of label values than the family declares.
	ErrLabelCount = errors.New("label value count does not match label names")

	// ErrInvalidName is returned for names that are not valid Prometheus
	// metric or label names.
	ErrInvalidName = errors.New("invalid metric or label name")
)

// Catalog is a get-or-register front for metric families held in storage.
// It keeps no state of its own, so any number of processes can share one
// backend.
type Catalog struct {
	store     storage.Storage
	namespace string
}

// New creates a Catalog that registers families under namespace.
func New(store storage.Storage, namespace string) *Catalog {
	if namespace == "" {
		namespace = model.DefaultNamespace
	}
	return &Catalog{store: store, namespace: namespace}
}

// Namespace returns the namespace families are registered under.
func (c *Catalog) Namespace() string {
	return c.namespace
}

// GetOrRegister returns the stored definition for def, creating it when absent.
// An existing family with a different kind or label list fails with
// ErrLabelCardinalityMismatch and nothing is written.
func (c *Catalog) GetOrRegister(ctx context.Context, def model.MetricDefinition) (model.MetricDefinition, error) {
	if def.Namespace == "" {
		def.Namespace = c.namespace
	}
	if err := validate(def); err != nil {
		return model.MetricDefinition{}, err
	}

	stored, _, err := c.store.Register(ctx, def)
	if err != nil {
		return model.MetricDefinition{}, fmt.Errorf("register %s: %w", def.FQName(), err)
	}

	if !stored.SameSchema(def) {
		return model.MetricDefinition{}, fmt.Errorf(
			"%w: %s registered as %s, requested %s",
			ErrLabelCardinalityMismatch, def.FQName(), stored, def,
		)
	}

	return stored, nil
}

// GetOrRegisterCounter returns a counter handle for name.
func (c *Catalog) GetOrRegisterCounter(ctx context.Context, name, help string, labelNames []string) (*Counter, error) {
	def, err := c.GetOrRegister(ctx, c.definition(name, model.KindCounter, help, labelNames))
	if err != nil {
		return nil, err
	}
	return &Counter{family{def: def, store: c.store}}, nil
}

// GetOrRegisterGauge returns a gauge handle for name.
func (c *Catalog) GetOrRegisterGauge(ctx context.Context, name, help string, labelNames []string) (*Gauge, error) {
	def, err := c.GetOrRegister(ctx, c.definition(name, model.KindGauge, help, labelNames))
	if err != nil {
		return nil, err
	}
	return &Gauge{family{def: def, store: c.store}}, nil
}

// GetOrRegisterHistogram returns a histogram handle for name using the
// default buckets.
func (c *Catalog) GetOrRegisterHistogram(ctx context.Context, name, help string, labelNames []string) (*Histogram, error) {
	def, err := c.GetOrRegister(ctx, c.definition(name, model.KindHistogram, help, labelNames))
	if err != nil {
		return nil, err
	}
	return &Histogram{family{def: def, store: c.store}}, nil
}

func (c *Catalog) definition(name string, kind model.MetricKind, help string, labelNames []string) model.MetricDefinition {
	return model.MetricDefinition{
		Namespace:  c.namespace,
		Name:       name,
		Kind:       kind,
		Help:       help,
		LabelNames: slices.Clone(labelNames),
	}
}

func validate(def model.MetricDefinition) error {
	if !def.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q for %s", ErrInvalidName, def.Kind, def.FQName())
	}
	if !pmodel.IsValidMetricName(pmodel.LabelValue(def.FQName())) {
		return fmt.Errorf("%w: metric %q", ErrInvalidName, def.FQName())
	}

	seen := make(map[string]struct{}, len(def.LabelNames))
	for _, name := range def.LabelNames {
		if !pmodel.LabelName(name).IsValid() || strings.HasPrefix(name, pmodel.ReservedLabelPrefix) {
			return fmt.Errorf("%w: label %q on %s", ErrInvalidName, name, def.FQName())
		}
		if def.Kind == model.KindHistogram && name == pmodel.BucketLabel {
			return fmt.Errorf("%w: label %q is reserved on histogram %s", ErrInvalidName, name, def.FQName())
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate label %q on %s", ErrInvalidName, name, def.FQName())
		}
		seen[name] = struct{}{}
	}

	bounds := def.BucketBounds()
	if def.Kind == model.KindHistogram && !slices.IsSorted(bounds) {
		return fmt.Errorf("%w: buckets of %s are not sorted", ErrInvalidName, def.FQName())
	}
	return nil
}
