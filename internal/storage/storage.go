// Package storage persists metric definitions and samples across requests.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/tedeeprom/tedeeprom/internal/model"
)

// Common storage errors.
var (
	ErrDefinitionNotFound = errors.New("metric definition not found")
	ErrKindMismatch       = errors.New("operation does not match metric kind")
)

// Storage is the persistence backend shared by all requests.
// Every method must be atomic with respect to concurrent callers in other
// processes; callers hold no locks of their own.
type Storage interface {
	// Register creates def if no definition with the same fully-qualified
	// name exists. It returns the stored definition and whether it was
	// created by this call.
	Register(ctx context.Context, def model.MetricDefinition) (model.MetricDefinition, bool, error)

	// IncrCounter adds delta to the counter sample for labelValues.
	IncrCounter(ctx context.Context, def model.MetricDefinition, labelValues []string, delta float64) error

	// SetGauge overwrites the gauge sample for labelValues.
	SetGauge(ctx context.Context, def model.MetricDefinition, labelValues []string, value float64) error

	// ObserveHistogram folds value into the histogram sample for labelValues.
	ObserveHistogram(ctx context.Context, def model.MetricDefinition, labelValues []string, value float64) error

	// Collect returns every registered family with its samples, sorted by
	// name and label values.
	Collect(ctx context.Context) ([]model.Family, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error
}

// labelKey encodes ordered label values into a single field name.
func labelKey(labelValues []string) string {
	if labelValues == nil {
		labelValues = []string{}
	}
	b, _ := json.Marshal(labelValues)
	return string(b)
}

func parseLabelKey(key string) ([]string, error) {
	var values []string
	if err := json.Unmarshal([]byte(key), &values); err != nil {
		return nil, err
	}
	return values, nil
}

// bucketIndex returns the first bucket whose upper bound holds value.
// len(bounds) stands for the +Inf bucket.
func bucketIndex(bounds []float64, value float64) int {
	return sort.SearchFloat64s(bounds, value)
}

// cumulative turns per-bucket counts (with a trailing +Inf slot) into the
// cumulative counts for each finite bound.
func cumulative(perBucket []uint64, bounds []float64) []uint64 {
	out := make([]uint64, len(bounds))
	var acc uint64
	for i := range bounds {
		if i < len(perBucket) {
			acc += perBucket[i]
		}
		out[i] = acc
	}
	return out
}

func sortFamilies(families []model.Family) {
	sort.Slice(families, func(i, j int) bool {
		return families[i].Definition.FQName() < families[j].Definition.FQName()
	})
	for _, f := range families {
		samples := f.Samples
		sort.Slice(samples, func(i, j int) bool {
			return strings.Join(samples[i].LabelValues, "\xff") < strings.Join(samples[j].LabelValues, "\xff")
		})
	}
}
