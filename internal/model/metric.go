// Package model defines domain entities for the application.
package model

import (
	"fmt"
	"slices"
	"strings"
)

// MetricKind is the type of a metric family.
type MetricKind string

const (
	KindCounter   MetricKind = "counter"
	KindGauge     MetricKind = "gauge"
	KindHistogram MetricKind = "histogram"
)

// IsValid checks if the metric kind is known.
func (k MetricKind) IsValid() bool {
	return k == KindCounter || k == KindGauge || k == KindHistogram
}

// DefaultNamespace is the namespace all Tedee metrics are registered under.
const DefaultNamespace = "tedee"

// DefaultBuckets are the histogram bucket upper bounds used when a
// definition carries none.
var DefaultBuckets = []float64{.005, .01, .025, .05, .075, .1, .25, .5, .75, 1, 2.5, 5, 7.5, 10}

// MetricDefinition is the persisted identity of a metric family.
// It never changes once registered.
type MetricDefinition struct {
	Namespace  string     `json:"namespace"`
	Name       string     `json:"name"`
	Kind       MetricKind `json:"kind"`
	Help       string     `json:"help"`
	LabelNames []string   `json:"label_names"`
	Buckets    []float64  `json:"buckets,omitempty"`
}

// FQName returns the fully-qualified metric name, e.g. tedee_lock_status_changed_total.
func (d MetricDefinition) FQName() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "_" + d.Name
}

// Key returns the storage key of the definition: namespace, name and kind.
func (d MetricDefinition) Key() string {
	return string(d.Kind) + ":" + d.FQName()
}

// SameSchema reports whether other has the same kind and label names.
func (d MetricDefinition) SameSchema(other MetricDefinition) bool {
	return d.Kind == other.Kind && slices.Equal(d.LabelNames, other.LabelNames)
}

// BucketBounds returns the histogram buckets, falling back to DefaultBuckets.
func (d MetricDefinition) BucketBounds() []float64 {
	if len(d.Buckets) > 0 {
		return d.Buckets
	}
	return DefaultBuckets
}

// String implements fmt.Stringer.
func (d MetricDefinition) String() string {
	return fmt.Sprintf("%s %s{%s}", d.Kind, d.FQName(), strings.Join(d.LabelNames, ","))
}

// Sample is the stored state of one label tuple of a family.
type Sample struct {
	LabelValues []string

	// Value holds the counter or gauge value.
	Value float64

	// Histogram state. BucketCounts are cumulative and aligned with the
	// definition's BucketBounds.
	BucketCounts []uint64
	Count        uint64
	Sum          float64
}

// Family is a definition together with all of its current samples.
type Family struct {
	Definition MetricDefinition
	Samples    []Sample
}
