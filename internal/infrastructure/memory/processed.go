package memory

import (
	"context"
	"time"

	"github.com/mosswell/world-service/internal/domain"
)

// ProcessedEventRepo implements the durable dedupe tier over the shared
// Store. Writes keep insert-only semantics: the first mark wins and a
// replayed mark is a silent no-op, matching the SQL ON CONFLICT DO NOTHING
// fence.
type ProcessedEventRepo struct {
	s *Store
}

func (r *ProcessedEventRepo) CheckProcessed(ctx context.Context, idempotencyKey string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.processed[idempotencyKey]
	return ok, nil
}

func (r *ProcessedEventRepo) MarkProcessed(ctx context.Context, idempotencyKey, eventID string, processedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.processed[idempotencyKey]; ok {
		return nil
	}
	r.s.processed[idempotencyKey] = ProcessedEvent{
		IdempotencyKey: idempotencyKey,
		EventID:        eventID,
		ProcessedUtc:   processedAt.UTC(),
	}
	return nil
}

// GetByKey returns the registry row for an idempotency key. Diagnostic
// accessor; the pipeline itself only checks and marks.
func (r *ProcessedEventRepo) GetByKey(ctx context.Context, idempotencyKey string) (ProcessedEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.processed[idempotencyKey]
	if !ok {
		return ProcessedEvent{}, domain.ErrNotFound("processed event not found: " + idempotencyKey)
	}
	return rec, nil
}
