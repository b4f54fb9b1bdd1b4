package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()

	sink.Track(ctx, EventProcessed, map[string]any{"type": "Player.Move"})
	sink.Track(ctx, EventDuplicate, map[string]any{"source": "cache"})
	sink.Track(ctx, EventProcessed, map[string]any{"type": "World.Exit.Create"})

	assert.Equal(t, 2, sink.CountOf(EventProcessed))
	assert.Equal(t, 1, sink.CountOf(EventDuplicate))
	assert.Equal(t, 0, sink.CountOf(EventDeadLettered))

	records := sink.Records()
	assert.Len(t, records, 3)
	assert.Equal(t, EventProcessed, records[0].Name)
	assert.Equal(t, EventDuplicate, records[1].Name)

	last, ok := sink.Last(EventProcessed)
	assert.True(t, ok)
	assert.Equal(t, "World.Exit.Create", last.Fields["type"])

	_, ok = sink.Last("nope")
	assert.False(t, ok)

	t.Run("snapshot_is_isolated", func(t *testing.T) {
		snap := sink.Records()
		sink.Track(ctx, PlayerMoved, nil)
		assert.Len(t, snap, 3)
	})

	t.Run("fields_are_copied", func(t *testing.T) {
		fields := map[string]any{"k": "v1"}
		sink.Track(ctx, EventUnhandled, fields)
		fields["k"] = "v2"
		rec, _ := sink.Last(EventUnhandled)
		assert.Equal(t, "v1", rec.Fields["k"])
	})

	sink.Reset()
	assert.Empty(t, sink.Records())
}

func TestMemorySink_ConcurrentTrack(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Track(ctx, EventProcessed, map[string]any{"type": "NPC.Tick"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, sink.CountOf(EventProcessed))
}

func TestMultiSink_FansOut(t *testing.T) {
	a := NewMemorySink()
	b := NewMemorySink()
	multi := MultiSink{a, b, NopSink{}}

	multi.Track(context.Background(), AreaGenerationCompleted, map[string]any{"exits_created": 6})

	assert.Equal(t, 1, a.CountOf(AreaGenerationCompleted))
	assert.Equal(t, 1, b.CountOf(AreaGenerationCompleted))
}

func TestFieldExtraction(t *testing.T) {
	fields := map[string]any{
		"type":    "Player.Move",
		"count_i": 3,
		"count_f": float64(4),
		"ms":      int64(250),
	}
	assert.Equal(t, "Player.Move", str(fields, "type"))
	assert.Equal(t, "", str(fields, "missing"))
	assert.Equal(t, 3, num(fields, "count_i"))
	assert.Equal(t, 4, num(fields, "count_f"))
	assert.Equal(t, 0, num(fields, "missing"))
	assert.Equal(t, int64(250), millis(fields, "ms").Milliseconds())
}
