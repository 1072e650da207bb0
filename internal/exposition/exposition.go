// Package exposition serializes stored metric families in the Prometheus
// text exposition format.
package exposition

import (
	"context"
	"fmt"
	"io"
	"math"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/tedeeprom/tedeeprom/internal/model"
)

// ContentType is the media type of the rendered output.
const ContentType = string(expfmt.FmtText)

// Collector reads every family from storage.
type Collector interface {
	Collect(ctx context.Context) ([]model.Family, error)
}

// Render writes all families held by c to w.
func Render(ctx context.Context, w io.Writer, c Collector) error {
	families, err := c.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collect families: %w", err)
	}
	return Write(w, families)
}

// Write encodes families to w. Families without samples produce no lines.
func Write(w io.Writer, families []model.Family) error {
	for _, f := range families {
		mf, err := ToDTO(f)
		if err != nil {
			return err
		}
		if len(mf.Metric) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode %s: %w", f.Definition.FQName(), err)
		}
	}
	return nil
}

// ToDTO converts a stored family into its protobuf representation.
func ToDTO(f model.Family) (*dto.MetricFamily, error) {
	def := f.Definition

	mf := &dto.MetricFamily{
		Name: proto.String(def.FQName()),
		Help: proto.String(def.Help),
	}
	switch def.Kind {
	case model.KindCounter:
		mf.Type = dto.MetricType_COUNTER.Enum()
	case model.KindGauge:
		mf.Type = dto.MetricType_GAUGE.Enum()
	case model.KindHistogram:
		mf.Type = dto.MetricType_HISTOGRAM.Enum()
	default:
		return nil, fmt.Errorf("unsupported metric kind %q for %s", def.Kind, def.FQName())
	}

	for _, s := range f.Samples {
		if len(s.LabelValues) != len(def.LabelNames) {
			return nil, fmt.Errorf("sample of %s has %d label values, want %d",
				def.FQName(), len(s.LabelValues), len(def.LabelNames))
		}

		m := &dto.Metric{Label: labelPairs(def.LabelNames, s.LabelValues)}
		switch def.Kind {
		case model.KindCounter:
			m.Counter = &dto.Counter{Value: proto.Float64(s.Value)}
		case model.KindGauge:
			m.Gauge = &dto.Gauge{Value: proto.Float64(s.Value)}
		case model.KindHistogram:
			m.Histogram = histogram(def.BucketBounds(), s)
		}
		mf.Metric = append(mf.Metric, m)
	}

	return mf, nil
}

func labelPairs(names, values []string) []*dto.LabelPair {
	pairs := make([]*dto.LabelPair, len(names))
	for i := range names {
		pairs[i] = &dto.LabelPair{
			Name:  proto.String(names[i]),
			Value: proto.String(values[i]),
		}
	}
	return pairs
}

func histogram(bounds []float64, s model.Sample) *dto.Histogram {
	h := &dto.Histogram{
		SampleCount: proto.Uint64(s.Count),
		SampleSum:   proto.Float64(s.Sum),
	}
	for i, b := range bounds {
		var cnt uint64
		if i < len(s.BucketCounts) {
			cnt = s.BucketCounts[i]
		}
		h.Bucket = append(h.Bucket, &dto.Bucket{
			UpperBound:      proto.Float64(b),
			CumulativeCount: proto.Uint64(cnt),
		})
	}
	h.Bucket = append(h.Bucket, &dto.Bucket{
		UpperBound:      proto.Float64(math.Inf(1)),
		CumulativeCount: proto.Uint64(s.Count),
	})
	return h
}
