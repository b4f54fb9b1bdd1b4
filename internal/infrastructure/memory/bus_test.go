package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosswell/world-service/internal/application/dispatch"
	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
	"github.com/mosswell/world-service/internal/telemetry"
)

func emitTick(t *testing.T, key string) (*worldevent.Envelope, worldevent.MessageProperties) {
	t.Helper()
	res, err := worldevent.Emit(worldevent.EmitInput{
		Type:           worldevent.TypeNPCTick,
		Actor:          worldevent.ActorRef{Kind: worldevent.ActorSystem, ID: "ticker"},
		Payload:        map[string]any{"tick": key},
		CorrelationID:  "corr-" + key,
		IdempotencyKey: key,
	}, time.Now())
	require.NoError(t, err)
	return res.Envelope, res.Props
}

func TestBusKeepsPublishOrder(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()
	for _, key := range []string{"a", "b", "c"} {
		env, props := emitTick(t, key)
		require.NoError(t, bus.Publish(ctx, env, props))
	}
	require.Equal(t, 3, bus.Len())

	msgs := bus.Snapshot()
	require.Len(t, msgs, 3)
	for i, want := range []string{"a", "b", "c"} {
		var env worldevent.Envelope
		require.NoError(t, json.Unmarshal(msgs[i].Body, &env))
		assert.Equal(t, want, env.IdempotencyKey)
		assert.Equal(t, "corr-"+want, msgs[i].Props.CorrelationID)
	}
	assert.Equal(t, 3, bus.Len(), "snapshot must not consume")
}

func newPumpFixture(t *testing.T, handler dispatch.Handler, maxAttempts int) (*Bus, *Pump, *Store, *telemetry.MemorySink) {
	t.Helper()
	store := NewStore()
	bus := NewBus()
	sink := telemetry.NewMemorySink()
	registry := dispatch.NewRegistry()
	if handler != nil {
		registry.MustRegister(worldevent.TypeNPCTick, handler)
	}
	proc := dispatch.NewProcessor(registry, store.ProcessedEvents(), store.DeadLetters(), dispatch.NewKeyCache(16), sink, nil)
	return bus, NewPump(bus, proc, maxAttempts), store, sink
}

func TestPumpDrainsToEmpty(t *testing.T) {
	ctx := context.Background()
	handled := 0
	bus, pump, _, sink := newPumpFixture(t, dispatch.HandlerFunc(func(ctx context.Context, env *worldevent.Envelope) error {
		handled++
		return nil
	}), 3)

	for _, key := range []string{"a", "b"} {
		env, props := emitTick(t, key)
		require.NoError(t, bus.Publish(ctx, env, props))
	}

	n, err := pump.DrainAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, handled)
	assert.Zero(t, bus.Len())
	assert.Equal(t, 2, sink.CountOf(telemetry.EventProcessed))
}

func TestPumpDrainsHandlerEmittedEvents(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	bus := NewBus()
	sink := telemetry.NewMemorySink()

	// The tick handler fans out a follow-up event onto the same bus; one
	// drain must resolve both deliveries.
	registry := dispatch.NewRegistry()
	registry.MustRegister(worldevent.TypeNPCTick, dispatch.HandlerFunc(func(ctx context.Context, env *worldevent.Envelope) error {
		res, err := worldevent.Emit(worldevent.EmitInput{
			Type:           worldevent.TypeAmbienceGenerated,
			Actor:          worldevent.ActorRef{Kind: worldevent.ActorSystem, ID: "ticker"},
			Payload:        worldevent.AmbienceGeneratedPayload{LocationID: "loc-1", Content: "Wind stirs the grass.", Priority: 1},
			CorrelationID:  env.CorrelationID,
			CausationID:    env.EventID,
			IdempotencyKey: env.IdempotencyKey + ":ambience",
		}, time.Now())
		if err != nil {
			return err
		}
		return bus.Publish(ctx, res.Envelope, res.Props)
	}))
	proc := dispatch.NewProcessor(registry, store.ProcessedEvents(), store.DeadLetters(), dispatch.NewKeyCache(16), sink, nil)
	pump := NewPump(bus, proc, 3)

	env, props := emitTick(t, "tick-1")
	require.NoError(t, bus.Publish(ctx, env, props))

	n, err := pump.DrainAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, bus.Len())
	assert.Equal(t, 1, sink.CountOf(telemetry.EventProcessed))
	assert.Equal(t, 1, sink.CountOf(telemetry.EventUnhandled), "no ambience handler registered")
}

func TestPumpRetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	calls := 0
	bus, pump, store, sink := newPumpFixture(t, dispatch.HandlerFunc(func(ctx context.Context, env *worldevent.Envelope) error {
		calls++
		return domain.ErrBusUnavailable("downstream queue is gone")
	}), 3)

	env, props := emitTick(t, "tick-1")
	require.NoError(t, bus.Publish(ctx, env, props))

	n, err := pump.DrainAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, calls, "one call per attempt")
	assert.Zero(t, bus.Len())

	recs, err := store.DeadLetters().QueryByTimeRange(ctx, time.Time{}, time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, dispatch.ErrCodeRetryExhausted, recs[0].ErrorCode)
	assert.Equal(t, 3, recs[0].RetryCount)
	assert.Equal(t, 1, sink.CountOf(telemetry.EventDeadLettered))
}
