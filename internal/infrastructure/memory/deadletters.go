package memory

import (
	"context"
	"sort"
	"time"

	"github.com/mosswell/world-service/internal/application/dispatch"
	"github.com/mosswell/world-service/internal/domain"
)

// DeadLetterRepo implements the dead-letter store over the shared Store.
type DeadLetterRepo struct {
	s *Store
}

func (r *DeadLetterRepo) Store(ctx context.Context, rec dispatch.DeadLetterRecord) error {
	if rec.ID == "" {
		return domain.ErrValidation("dead letter id is required")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deadLetters[rec.ID] = cloneDeadLetter(rec)
	return nil
}

// QueryByTimeRange returns records dead-lettered in [from, to], oldest
// first, id-ordered on equal timestamps. limit <= 0 means no limit.
func (r *DeadLetterRepo) QueryByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]dispatch.DeadLetterRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []dispatch.DeadLetterRecord
	for _, rec := range r.s.deadLetters {
		if rec.DeadLetteredUtc.Before(from) || rec.DeadLetteredUtc.After(to) {
			continue
		}
		out = append(out, cloneDeadLetter(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeadLetteredUtc.Equal(out[j].DeadLetteredUtc) {
			return out[i].DeadLetteredUtc.Before(out[j].DeadLetteredUtc)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *DeadLetterRepo) GetByID(ctx context.Context, id string) (dispatch.DeadLetterRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.deadLetters[id]
	if !ok {
		return dispatch.DeadLetterRecord{}, domain.ErrNotFound("dead letter not found: " + id)
	}
	return cloneDeadLetter(rec), nil
}
