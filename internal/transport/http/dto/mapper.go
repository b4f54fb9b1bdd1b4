package dto

import (
	"github.com/mosswell/world-service/internal/application/dispatch"
	"github.com/mosswell/world-service/internal/application/player"
	"github.com/mosswell/world-service/internal/application/worldgen"
	"github.com/mosswell/world-service/internal/domain"
)

func ToLocationResp(l *domain.Location) *LocationResp {
	if l == nil {
		return nil
	}

	exits := make([]ExitResp, 0, len(l.Exits))
	for _, e := range l.Exits {
		exits = append(exits, ExitResp{
			Direction:        string(e.Direction),
			ToLocationID:     e.ToLocationID,
			TravelDurationMs: e.TravelDurationMs,
		})
	}

	// Map iteration is unordered; walk the enum so output is stable.
	var pending []string
	for _, d := range domain.AllDirections {
		if _, ok := l.Pending[d]; ok {
			pending = append(pending, string(d))
		}
	}

	return &LocationResp{
		ID:                l.ID,
		Name:              l.Name,
		Terrain:           string(l.Terrain),
		Exits:             exits,
		PendingDirections: pending,
		Tags:              l.Tags,
		Version:           l.Version,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

func ToLayerResp(l *domain.DescriptionLayer) *LayerResp {
	if l == nil {
		return nil
	}
	return &LayerResp{
		ID:         l.ID,
		LayerType:  string(l.LayerType),
		Content:    l.Content,
		Priority:   l.Priority,
		AuthoredAt: l.AuthoredAt,
		Attributes: l.Attributes,
	}
}

func ToViewResp(v *player.View) ViewResp {
	out := ViewResp{
		Location: ToLocationResp(v.Location),
		Base:     ToLayerResp(v.Base),
		Ambient:  ToLayerResp(v.Ambient),
	}
	for _, realm := range v.Realms {
		if realm == nil {
			continue
		}
		out.Realms = append(out.Realms, RealmResp{
			Key:  realm.Key,
			Name: realm.Name,
			Type: string(realm.RealmType),
		})
	}
	return out
}

func ToGenerateAreaResp(rec worldgen.Receipt) GenerateAreaResp {
	return GenerateAreaResp{
		EventID:       rec.EventID,
		CorrelationID: rec.CorrelationID,
		AnchorID:      rec.AnchorID,
		BatchSize:     rec.BatchSize,
		Terrain:       string(rec.Terrain),
		Clamped:       rec.Clamped,
	}
}

func ToMoveResp(res *player.MoveResult) MoveResp {
	return MoveResp{
		Destination:      ToLocationResp(res.Destination),
		Direction:        string(res.Direction),
		TravelDurationMs: res.TravelDurationMs,
		EventID:          res.EventID,
	}
}

func ToDeadLetterResp(rec dispatch.DeadLetterRecord, includeBody bool) DeadLetterResp {
	out := DeadLetterResp{
		ID:              rec.ID,
		EventID:         rec.EventID,
		EventType:       rec.EventType,
		ErrorCode:       rec.ErrorCode,
		FailureReason:   rec.FailureReason,
		CorrelationID:   rec.CorrelationID,
		RetryCount:      rec.RetryCount,
		FirstAttemptUtc: rec.FirstAttemptUtc,
		DeadLetteredUtc: rec.DeadLetteredUtc,
	}
	if includeBody {
		out.Body = string(rec.Body)
	}
	return out
}
