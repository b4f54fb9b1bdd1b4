package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosswell/world-service/internal/application/dispatch"
	"github.com/mosswell/world-service/internal/infrastructure/memory"
	"github.com/mosswell/world-service/internal/transport/http/dto"
)

const (
	recentDeadLetterID = "11111111-1111-4111-8111-111111111111"
	staleDeadLetterID  = "22222222-2222-4222-8222-222222222222"
)

func newDeadLettersFixture(t *testing.T) *DeadLettersHandler {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.DeadLetters().Store(ctx, dispatch.DeadLetterRecord{
		ID:              recentDeadLetterID,
		Body:            []byte(`{"eventId":"broken"}`),
		EventType:       "World.Exit.Create",
		ErrorCode:       dispatch.ErrCodeSchemaValidation,
		FailureReason:   "invalid event envelope: eventId: must be a valid uuid",
		CorrelationID:   "corr-recent",
		RetryCount:      1,
		FirstAttemptUtc: testNow.Add(-time.Hour),
		DeadLetteredUtc: testNow.Add(-time.Hour),
	}))
	require.NoError(t, store.DeadLetters().Store(ctx, dispatch.DeadLetterRecord{
		ID:              staleDeadLetterID,
		Body:            []byte("{not json"),
		ErrorCode:       dispatch.ErrCodeJSONParse,
		FailureReason:   "invalid character 'n'",
		RetryCount:      5,
		FirstAttemptUtc: testNow.Add(-72 * time.Hour),
		DeadLetteredUtc: testNow.Add(-72 * time.Hour),
	}))

	return NewDeadLettersHandler(store.DeadLetters(), fixedClock{now: testNow})
}

func TestDeadLettersHandler_List(t *testing.T) {
	t.Run("default_window_is_last_day", func(t *testing.T) {
		h := newDeadLettersFixture(t)
		rr := httptest.NewRecorder()
		h.List(rr, httptest.NewRequest(http.MethodGet, "/world/v1/dead-letters", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		page := decodeData[dto.ListResp[dto.DeadLetterResp]](t, rr)
		require.Equal(t, 1, page.Count)
		assert.Equal(t, recentDeadLetterID, page.Items[0].ID)
		assert.Empty(t, page.Items[0].Body, "listing must not carry bodies")
	})

	t.Run("explicit_range_reaches_older_records", func(t *testing.T) {
		h := newDeadLettersFixture(t)
		from := testNow.Add(-96 * time.Hour).Format(time.RFC3339)
		to := testNow.Format(time.RFC3339)
		rr := httptest.NewRecorder()
		h.List(rr, httptest.NewRequest(http.MethodGet, "/world/v1/dead-letters?from="+from+"&to="+to, nil))

		require.Equal(t, http.StatusOK, rr.Code)
		page := decodeData[dto.ListResp[dto.DeadLetterResp]](t, rr)
		require.Equal(t, 2, page.Count)
		// oldest first
		assert.Equal(t, staleDeadLetterID, page.Items[0].ID)
		assert.Equal(t, recentDeadLetterID, page.Items[1].ID)
	})

	t.Run("limit_truncates", func(t *testing.T) {
		h := newDeadLettersFixture(t)
		from := testNow.Add(-96 * time.Hour).Format(time.RFC3339)
		rr := httptest.NewRecorder()
		h.List(rr, httptest.NewRequest(http.MethodGet, "/world/v1/dead-letters?from="+from+"&limit=1", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		page := decodeData[dto.ListResp[dto.DeadLetterResp]](t, rr)
		assert.Equal(t, 1, page.Count)
	})

	t.Run("bad_from_rejected", func(t *testing.T) {
		h := newDeadLettersFixture(t)
		rr := httptest.NewRecorder()
		h.List(rr, httptest.NewRequest(http.MethodGet, "/world/v1/dead-letters?from=yesterday", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "validation_error", decodeErr(t, rr).Code)
	})

	t.Run("inverted_range_rejected", func(t *testing.T) {
		h := newDeadLettersFixture(t)
		from := testNow.Format(time.RFC3339)
		to := testNow.Add(-time.Hour).Format(time.RFC3339)
		rr := httptest.NewRecorder()
		h.List(rr, httptest.NewRequest(http.MethodGet, "/world/v1/dead-letters?from="+from+"&to="+to, nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("non_numeric_limit_rejected", func(t *testing.T) {
		h := newDeadLettersFixture(t)
		rr := httptest.NewRecorder()
		h.List(rr, httptest.NewRequest(http.MethodGet, "/world/v1/dead-letters?limit=many", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestDeadLettersHandler_Get(t *testing.T) {
	t.Run("detail_includes_body", func(t *testing.T) {
		h := newDeadLettersFixture(t)
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/world/v1/dead-letters/"+staleDeadLetterID, nil), "id", staleDeadLetterID)
		rr := httptest.NewRecorder()
		h.Get(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		rec := decodeData[dto.DeadLetterResp](t, rr)
		assert.Equal(t, staleDeadLetterID, rec.ID)
		assert.Equal(t, "json-parse", rec.ErrorCode)
		assert.Equal(t, "{not json", rec.Body)
		assert.Equal(t, 5, rec.RetryCount)
	})

	t.Run("unknown_id_404", func(t *testing.T) {
		h := newDeadLettersFixture(t)
		id := "33333333-3333-4333-8333-333333333333"
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/world/v1/dead-letters/"+id, nil), "id", id)
		rr := httptest.NewRecorder()
		h.Get(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "not_found", decodeErr(t, rr).Code)
	})

	t.Run("non_uuid_id_rejected", func(t *testing.T) {
		h := newDeadLettersFixture(t)
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/world/v1/dead-letters/oops", nil), "id", "oops")
		rr := httptest.NewRecorder()
		h.Get(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "validation_error", decodeErr(t, rr).Code)
	})
}
