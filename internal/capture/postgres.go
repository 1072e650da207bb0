package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/tedeeprom/tedeeprom/internal/model"
	"github.com/tedeeprom/tedeeprom/internal/repository"
)

// CaptureStore is the subset of the repository used by PostgresSink.
type CaptureStore interface {
	CreateCapture(ctx context.Context, rec *model.CaptureRecord) error
	DeleteCapturesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
}

var _ CaptureStore = (*repository.Repository)(nil)

// PostgresSink stores records in the webhook_captures table.
type PostgresSink struct {
	store CaptureStore
}

// NewPostgresSink creates a sink backed by store. The store is owned by the
// caller and is not closed by the sink.
func NewPostgresSink(store CaptureStore) *PostgresSink {
	return &PostgresSink{store: store}
}

// Write inserts rec.
func (s *PostgresSink) Write(ctx context.Context, rec *model.CaptureRecord) error {
	return s.store.CreateCapture(ctx, rec)
}

// Ping checks database connectivity.
func (s *PostgresSink) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close is a no-op; the repository is closed by its owner.
func (s *PostgresSink) Close() error {
	return nil
}

// Pruner periodically deletes captures older than a retention window.
type Pruner struct {
	store     CaptureStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewPruner creates a pruner. It does nothing until Start is called.
func NewPruner(store CaptureStore, retention, interval time.Duration, logger *slog.Logger) *Pruner {
	return &Pruner{
		store:     store,
		retention: retention,
		interval:  interval,
		logger:    logger.With("component", "capture.pruner"),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the prune loop in a goroutine.
func (p *Pruner) Start() {
	go p.run()
}

// Stop signals the loop to exit and waits for it or for ctx to expire.
func (p *Pruner) Stop(ctx context.Context) error {
	close(p.stopCh)
	select {
	case <-p.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PruneOnce deletes captures older than the retention window.
func (p *Pruner) PruneOnce(ctx context.Context, now time.Time) (int64, error) {
	return p.store.DeleteCapturesBefore(ctx, now.Add(-p.retention))
}

func (p *Pruner) run() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			deleted, err := p.PruneOnce(ctx, time.Now())
			cancel()
			if err != nil {
				p.logger.Warn("failed to prune captures", "error", err)
				continue
			}
			if deleted > 0 {
				p.logger.Info("pruned captures", "deleted", deleted, "retention", p.retention)
			}
		}
	}
}
