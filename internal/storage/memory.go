package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/tedeeprom/tedeeprom/internal/model"
)

type memoryHistogram struct {
	buckets []uint64 // per-bucket, last slot is +Inf
	count   uint64
	sum     float64
}

type memoryFamily struct {
	def        model.MetricDefinition
	values     map[string]float64
	histograms map[string]*memoryHistogram
}

// Memory is an in-process Storage for development and tests.
// State does not survive a restart.
type Memory struct {
	mu       sync.Mutex
	families map[string]*memoryFamily
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{families: make(map[string]*memoryFamily)}
}

// Register implements Storage.
func (m *Memory) Register(ctx context.Context, def model.MetricDefinition) (model.MetricDefinition, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.families[def.FQName()]; ok {
		return f.def, false, nil
	}

	stored := def
	stored.LabelNames = slices.Clone(def.LabelNames)
	stored.Buckets = slices.Clone(def.Buckets)
	m.families[def.FQName()] = &memoryFamily{
		def:        stored,
		values:     make(map[string]float64),
		histograms: make(map[string]*memoryHistogram),
	}
	return stored, true, nil
}

func (m *Memory) family(def model.MetricDefinition, kind model.MetricKind) (*memoryFamily, error) {
	f, ok := m.families[def.FQName()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, def.FQName())
	}
	if f.def.Kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s", ErrKindMismatch, def.FQName(), f.def.Kind)
	}
	return f, nil
}

// IncrCounter implements Storage.
func (m *Memory) IncrCounter(ctx context.Context, def model.MetricDefinition, labelValues []string, delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.family(def, model.KindCounter)
	if err != nil {
		return err
	}
	f.values[labelKey(labelValues)] += delta
	return nil
}

// SetGauge implements Storage.
func (m *Memory) SetGauge(ctx context.Context, def model.MetricDefinition, labelValues []string, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.family(def, model.KindGauge)
	if err != nil {
		return err
	}
	f.values[labelKey(labelValues)] = value
	return nil
}

// ObserveHistogram implements Storage.
func (m *Memory) ObserveHistogram(ctx context.Context, def model.MetricDefinition, labelValues []string, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.family(def, model.KindHistogram)
	if err != nil {
		return err
	}

	bounds := f.def.BucketBounds()
	key := labelKey(labelValues)
	h, ok := f.histograms[key]
	if !ok {
		h = &memoryHistogram{buckets: make([]uint64, len(bounds)+1)}
		f.histograms[key] = h
	}
	h.buckets[bucketIndex(bounds, value)]++
	h.count++
	h.sum += value
	return nil
}

// Collect implements Storage.
func (m *Memory) Collect(ctx context.Context) ([]model.Family, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	families := make([]model.Family, 0, len(m.families))
	for _, f := range m.families {
		family := model.Family{Definition: f.def}

		for key, v := range f.values {
			labels, err := parseLabelKey(key)
			if err != nil {
				return nil, fmt.Errorf("decode labels of %s: %w", f.def.FQName(), err)
			}
			family.Samples = append(family.Samples, model.Sample{LabelValues: labels, Value: v})
		}

		bounds := f.def.BucketBounds()
		for key, h := range f.histograms {
			labels, err := parseLabelKey(key)
			if err != nil {
				return nil, fmt.Errorf("decode labels of %s: %w", f.def.FQName(), err)
			}
			family.Samples = append(family.Samples, model.Sample{
				LabelValues:  labels,
				BucketCounts: cumulative(h.buckets, bounds),
				Count:        h.count,
				Sum:          h.sum,
			})
		}

		families = append(families, family)
	}

	sortFamilies(families)
	return families, nil
}

// Ping implements Storage.
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}
