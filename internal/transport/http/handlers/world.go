// Package handlers wires the world operations onto HTTP.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mosswell/world-service/internal/application/player"
	"github.com/mosswell/world-service/internal/application/worldgen"
	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
	"github.com/mosswell/world-service/internal/transport/http/dto"
	"github.com/mosswell/world-service/internal/transport/http/middleware"
	"github.com/mosswell/world-service/internal/transport/http/response"
)

// AreaGenerator is the orchestrator surface the edge needs.
type AreaGenerator interface {
	RequestAreaGeneration(ctx context.Context, req worldgen.Request) (worldgen.Receipt, error)
}

type WorldHandler struct {
	players *player.Service
	gen     AreaGenerator
}

func NewWorldHandler(players *player.Service, gen AreaGenerator) *WorldHandler {
	return &WorldHandler{players: players, gen: gen}
}

// Look composes the view of one location.
func (h *WorldHandler) Look(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "location_id"))

	view, err := h.players.Look(r.Context(), id)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToViewResp(view))
}

// Generate requests a generation batch anchored at the path location. The
// batch runs asynchronously; the 202 receipt names the event to watch for.
func (h *WorldHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "location_id"))

	// The body is optional; every field defaults server side.
	var req dto.GenerateAreaReq
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			response.Err(w, r, domain.ErrValidationMeta("invalid json body", map[string]string{
				"body": "malformed JSON or invalid fields",
			}))
			return
		}
	}

	actor := worldevent.ActorRef{Kind: worldevent.ActorSystem, ID: "world-service"}
	if uid := middleware.UserID(r); uid != "" {
		actor = worldevent.ActorRef{Kind: worldevent.ActorPlayer, ID: uid}
	}

	receipt, err := h.gen.RequestAreaGeneration(r.Context(), worldgen.Request{
		AnchorLocationID: id,
		Mode:             worldgen.Mode(req.Mode),
		BudgetLocations:  req.BudgetLocations,
		IdempotencyKey:   req.IdempotencyKey,
		RealmHints:       req.RealmHints,
		CorrelationID:    response.RequestIDFromRequest(r),
		Actor:            actor,
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusAccepted, dto.ToGenerateAreaResp(receipt))
}

// Move performs one traversal. Failures carry the edge error codes the
// client switches on; ExitGenerationRequested in particular means "a batch
// is growing the world there, retry shortly".
func (h *WorldHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req dto.MoveReq
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Err(w, r, domain.ErrValidationMeta("invalid json body", map[string]string{
			"body": "malformed JSON or invalid fields",
		}))
		return
	}

	res, err := h.players.Move(r.Context(), player.MoveInput{
		PlayerID:       req.PlayerID,
		FromLocationID: req.FromLocationID,
		Direction:      req.Direction,
		CorrelationID:  response.RequestIDFromRequest(r),
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToMoveResp(res))
}
