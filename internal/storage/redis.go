package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tedeeprom/tedeeprom/internal/model"
)

// Histogram field suffixes stored next to the bucket bounds.
const (
	histogramSumField   = "sum"
	histogramCountField = "count"
	histogramInfBucket  = "+Inf"
)

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisClient creates a Redis client and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opt.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opt.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opt)

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// Redis stores metric state in Redis hashes.
//
// Layout:
//
//	<prefix>:definitions            hash  fqname -> definition JSON
//	<prefix>:<kind>:<fqname>        hash  label values JSON -> value
//
// Histogram fields are {"l":[labels],"b":"<bound>|+Inf|sum|count"}.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis-backed Storage.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = model.DefaultNamespace
	}
	return &Redis{client: client, prefix: prefix}
}

type histogramField struct {
	Labels []string `json:"l"`
	Bucket string   `json:"b"`
}

func (r *Redis) definitionsKey() string {
	return r.prefix + ":definitions"
}

func (r *Redis) samplesKey(def model.MetricDefinition) string {
	return r.prefix + ":" + def.Key()
}

// Register implements Storage using HSETNX as the create-if-absent primitive.
func (r *Redis) Register(ctx context.Context, def model.MetricDefinition) (model.MetricDefinition, bool, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return model.MetricDefinition{}, false, fmt.Errorf("marshal definition: %w", err)
	}

	created, err := r.client.HSetNX(ctx, r.definitionsKey(), def.FQName(), data).Result()
	if err != nil {
		return model.MetricDefinition{}, false, fmt.Errorf("redis hsetnx failed: %w", err)
	}
	if created {
		return def, true, nil
	}

	stored, err := r.definition(ctx, def.FQName())
	if err != nil {
		return model.MetricDefinition{}, false, err
	}
	return stored, false, nil
}

func (r *Redis) definition(ctx context.Context, fqName string) (model.MetricDefinition, error) {
	raw, err := r.client.HGet(ctx, r.definitionsKey(), fqName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.MetricDefinition{}, fmt.Errorf("%w: %s", ErrDefinitionNotFound, fqName)
		}
		return model.MetricDefinition{}, fmt.Errorf("redis hget failed: %w", err)
	}

	var def model.MetricDefinition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return model.MetricDefinition{}, fmt.Errorf("decode definition %s: %w", fqName, err)
	}
	return def, nil
}

// IncrCounter implements Storage.
func (r *Redis) IncrCounter(ctx context.Context, def model.MetricDefinition, labelValues []string, delta float64) error {
	if def.Kind != model.KindCounter {
		return fmt.Errorf("%w: %s is a %s", ErrKindMismatch, def.FQName(), def.Kind)
	}
	err := r.client.HIncrByFloat(ctx, r.samplesKey(def), labelKey(labelValues), delta).Err()
	if err != nil {
		return fmt.Errorf("failed to increment counter: %w", err)
	}
	return nil
}

// SetGauge implements Storage.
func (r *Redis) SetGauge(ctx context.Context, def model.MetricDefinition, labelValues []string, value float64) error {
	if def.Kind != model.KindGauge {
		return fmt.Errorf("%w: %s is a %s", ErrKindMismatch, def.FQName(), def.Kind)
	}
	err := r.client.HSet(ctx, r.samplesKey(def), labelKey(labelValues), formatFloat(value)).Err()
	if err != nil {
		return fmt.Errorf("failed to set gauge: %w", err)
	}
	return nil
}

// ObserveHistogram implements Storage. Bucket, count and sum are updated in
// one MULTI/EXEC transaction.
func (r *Redis) ObserveHistogram(ctx context.Context, def model.MetricDefinition, labelValues []string, value float64) error {
	if def.Kind != model.KindHistogram {
		return fmt.Errorf("%w: %s is a %s", ErrKindMismatch, def.FQName(), def.Kind)
	}

	bounds := def.BucketBounds()
	bucket := histogramInfBucket
	if i := bucketIndex(bounds, value); i < len(bounds) {
		bucket = formatFloat(bounds[i])
	}

	key := r.samplesKey(def)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrByFloat(ctx, key, histogramKey(labelValues, histogramSumField), value)
		pipe.HIncrBy(ctx, key, histogramKey(labelValues, histogramCountField), 1)
		pipe.HIncrBy(ctx, key, histogramKey(labelValues, bucket), 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to observe histogram: %w", err)
	}
	return nil
}

// Collect implements Storage.
func (r *Redis) Collect(ctx context.Context) ([]model.Family, error) {
	rawDefs, err := r.client.HGetAll(ctx, r.definitionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	defs := make([]model.MetricDefinition, 0, len(rawDefs))
	for name, raw := range rawDefs {
		var def model.MetricDefinition
		if err := json.Unmarshal([]byte(raw), &def); err != nil {
			return nil, fmt.Errorf("decode definition %s: %w", name, err)
		}
		defs = append(defs, def)
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(defs))
	for i, def := range defs {
		cmds[i] = pipe.HGetAll(ctx, r.samplesKey(def))
	}
	if len(defs) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to read samples: %w", err)
		}
	}

	families := make([]model.Family, 0, len(defs))
	for i, def := range defs {
		var samples []model.Sample
		var err error
		if def.Kind == model.KindHistogram {
			samples, err = decodeHistogram(def, cmds[i].Val())
		} else {
			samples, err = decodeValues(cmds[i].Val())
		}
		if err != nil {
			return nil, fmt.Errorf("decode samples of %s: %w", def.FQName(), err)
		}
		families = append(families, model.Family{Definition: def, Samples: samples})
	}

	sortFamilies(families)
	return families, nil
}

// Ping implements Storage.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decodeValues(fields map[string]string) ([]model.Sample, error) {
	samples := make([]model.Sample, 0, len(fields))
	for key, raw := range fields {
		labels, err := parseLabelKey(key)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, err
		}
		samples = append(samples, model.Sample{LabelValues: labels, Value: v})
	}
	return samples, nil
}

func decodeHistogram(def model.MetricDefinition, fields map[string]string) ([]model.Sample, error) {
	type state struct {
		labels  []string
		buckets map[string]uint64
		count   uint64
		sum     float64
	}

	byLabels := make(map[string]*state)
	for key, raw := range fields {
		var f histogramField
		if err := json.Unmarshal([]byte(key), &f); err != nil {
			return nil, err
		}
		lk := labelKey(f.Labels)
		s, ok := byLabels[lk]
		if !ok {
			s = &state{labels: f.Labels, buckets: make(map[string]uint64)}
			byLabels[lk] = s
		}

		switch f.Bucket {
		case histogramSumField:
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, err
			}
			s.sum = v
		case histogramCountField:
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, err
			}
			s.count = v
		default:
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, err
			}
			s.buckets[f.Bucket] = v
		}
	}

	bounds := def.BucketBounds()
	samples := make([]model.Sample, 0, len(byLabels))
	for _, s := range byLabels {
		perBucket := make([]uint64, len(bounds))
		for i, b := range bounds {
			perBucket[i] = s.buckets[formatFloat(b)]
		}
		samples = append(samples, model.Sample{
			LabelValues:  s.labels,
			BucketCounts: cumulative(perBucket, bounds),
			Count:        s.count,
			Sum:          s.sum,
		})
	}
	return samples, nil
}

func histogramKey(labelValues []string, bucket string) string {
	if labelValues == nil {
		labelValues = []string{}
	}
	b, _ := json.Marshal(histogramField{Labels: labelValues, Bucket: bucket})
	return string(b)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
