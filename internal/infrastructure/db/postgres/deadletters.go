package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/mosswell/world-service/internal/application/dispatch"
	"github.com/mosswell/world-service/internal/domain"
)

// DeadLetterRepo stores poison deliveries. Body is bytea, not jsonb: the
// json-parse failure class preserves bodies that never were valid JSON.
type DeadLetterRepo struct {
	db *sql.DB
}

func NewDeadLetterRepo(db *sql.DB) *DeadLetterRepo { return &DeadLetterRepo{db: db} }

func (r *DeadLetterRepo) Store(ctx context.Context, rec dispatch.DeadLetterRecord) error {
	if rec.ID == "" {
		return domain.ErrValidation("dead letter id is required")
	}
	_, err := r.db.ExecContext(ctx, insertDeadLetterSQL,
		rec.ID, rec.Body, rec.EventID, rec.EventType, rec.ErrorCode,
		rec.FailureReason, rec.CorrelationID, rec.RetryCount,
		rec.FirstAttemptUtc, rec.DeadLetteredUtc,
	)
	return err
}

// QueryByTimeRange returns records dead-lettered in [from, to], oldest
// first, id-ordered on equal timestamps. limit <= 0 means no limit.
func (r *DeadLetterRepo) QueryByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]dispatch.DeadLetterRecord, error) {
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, queryDeadLettersLimitSQL, from, to, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, queryDeadLettersSQL, from, to)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dispatch.DeadLetterRecord
	for rows.Next() {
		rec, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DeadLetterRepo) GetByID(ctx context.Context, id string) (dispatch.DeadLetterRecord, error) {
	rec, err := scanDeadLetter(r.db.QueryRowContext(ctx, getDeadLetterSQL, id))
	if err == sql.ErrNoRows {
		return dispatch.DeadLetterRecord{}, domain.ErrNotFound("dead letter not found: " + id)
	}
	if err != nil {
		return dispatch.DeadLetterRecord{}, err
	}
	return rec, nil
}

func scanDeadLetter(row rowScanner) (dispatch.DeadLetterRecord, error) {
	var rec dispatch.DeadLetterRecord
	err := row.Scan(
		&rec.ID, &rec.Body, &rec.EventID, &rec.EventType, &rec.ErrorCode,
		&rec.FailureReason, &rec.CorrelationID, &rec.RetryCount,
		&rec.FirstAttemptUtc, &rec.DeadLetteredUtc,
	)
	return rec, err
}
