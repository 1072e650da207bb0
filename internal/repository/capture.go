package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/tedeeprom/tedeeprom/internal/model"
)

// ErrCaptureNotFound is returned when a capture does not exist.
var ErrCaptureNotFound = errors.New("capture not found")

// CreateCapture inserts a raw webhook capture. Re-inserting the same ID is a no-op.
func (r *Repository) CreateCapture(ctx context.Context, rec *model.CaptureRecord) error {
	query := `
		INSERT INTO webhook_captures (id, request_id, method, remote_addr, event, fields, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		nullableString(rec.RequestID),
		rec.Method,
		nullableString(rec.RemoteAddr),
		nullableString(rec.Event),
		pq.Array(rec.Fields),
		string(rec.Payload),
		rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create capture: %w", err)
	}

	return nil
}

// GetCapture retrieves a capture by ID.
func (r *Repository) GetCapture(ctx context.Context, id string) (*model.CaptureRecord, error) {
	query := `
		SELECT id, request_id, method, remote_addr, event, fields, payload, received_at
		FROM webhook_captures
		WHERE id = $1
	`

	var (
		rec        model.CaptureRecord
		requestID  *string
		remoteAddr *string
		event      *string
		payload    string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&requestID,
		&rec.Method,
		&remoteAddr,
		&event,
		pq.Array(&rec.Fields),
		&payload,
		&rec.ReceivedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaptureNotFound
		}
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}

	rec.RequestID = derefString(requestID)
	rec.RemoteAddr = derefString(remoteAddr)
	rec.Event = derefString(event)
	rec.Payload = []byte(payload)
	return &rec, nil
}

// DeleteCapturesBefore removes captures received before cutoff and returns
// the number of rows deleted.
func (r *Repository) DeleteCapturesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM webhook_captures WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete captures: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
