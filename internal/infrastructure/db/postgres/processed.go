package postgres

import (
	"context"
	"database/sql"
	"time"
)

// ProcessedEventRepo is the durable dedupe tier. Marking is an insert-only
// fence: ON CONFLICT DO NOTHING keeps the first processing on record and
// makes redelivered marks silent no-ops.
type ProcessedEventRepo struct {
	db *sql.DB
}

func NewProcessedEventRepo(db *sql.DB) *ProcessedEventRepo {
	return &ProcessedEventRepo{db: db}
}

func (r *ProcessedEventRepo) CheckProcessed(ctx context.Context, idempotencyKey string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, checkProcessedSQL, idempotencyKey).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ProcessedEventRepo) MarkProcessed(ctx context.Context, idempotencyKey, eventID string, processedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, markProcessedSQL, idempotencyKey, eventID, processedAt.UTC())
	return err
}
