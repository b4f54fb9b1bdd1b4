package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mosswell/world-service/internal/application/dispatch"
	"github.com/mosswell/world-service/internal/domain"
	"github.com/mosswell/world-service/internal/transport/http/dto"
	"github.com/mosswell/world-service/internal/transport/http/response"
)

type Clock interface{ Now() time.Time }

const (
	defaultDeadLetterWindow = 24 * time.Hour
	defaultDeadLetterLimit  = 50
	maxDeadLetterLimit      = 500
)

// DeadLettersHandler serves the ops surface over poison deliveries.
type DeadLettersHandler struct {
	repo  dispatch.DeadLetterRepository
	clock Clock
}

func NewDeadLettersHandler(repo dispatch.DeadLetterRepository, clock Clock) *DeadLettersHandler {
	return &DeadLettersHandler{repo: repo, clock: clock}
}

// List queries by dead-letter time. The window defaults to the last day;
// bodies stay out of the listing.
func (h *DeadLettersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := h.clock.Now().UTC()

	from := now.Add(-defaultDeadLetterWindow)
	to := now

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Err(w, r, domain.ErrValidationMeta("invalid query param", map[string]string{
				"from": "must be RFC3339 timestamp",
			}))
			return
		}
		from = t.UTC()
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Err(w, r, domain.ErrValidationMeta("invalid query param", map[string]string{
				"to": "must be RFC3339 timestamp",
			}))
			return
		}
		to = t.UTC()
	}
	if to.Before(from) {
		response.Err(w, r, domain.ErrValidationMeta("invalid query param", map[string]string{
			"to": "must not precede from",
		}))
		return
	}

	limit := defaultDeadLetterLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.Err(w, r, domain.ErrValidationMeta("invalid query param", map[string]string{
				"limit": "must be an integer",
			}))
			return
		}
		limit = n
	}
	if limit <= 0 {
		limit = defaultDeadLetterLimit
	}
	if limit > maxDeadLetterLimit {
		limit = maxDeadLetterLimit
	}

	recs, err := h.repo.QueryByTimeRange(r.Context(), from, to, limit)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	items := make([]dto.DeadLetterResp, 0, len(recs))
	for _, rec := range recs {
		items = append(items, dto.ToDeadLetterResp(rec, false))
	}
	response.Data(w, http.StatusOK, dto.ListResp[dto.DeadLetterResp]{Items: items, Count: len(items)})
}

// Get returns one record with its raw body.
func (h *DeadLettersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		response.Err(w, r, domain.ErrValidationMeta("invalid path param", map[string]string{
			"id": "must be uuid",
		}))
		return
	}

	rec, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToDeadLetterResp(rec, true))
}
