package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/mosswell/world-service/internal/application/dispatch"
	"github.com/mosswell/world-service/internal/contracts/worldevent"
)

// Message is one queued delivery: the serialized envelope plus its
// transport properties, as it would ride on the broker.
type Message struct {
	Body  []byte
	Props worldevent.MessageProperties

	Attempt         int
	FirstAttemptUtc time.Time
}

// Bus is an ordered in-process queue implementing the Publisher ports. It
// stands in for the broker in dev mode and in tests; envelopes are
// serialized at publish time so consumers see the same wire bytes a real
// queue would carry.
type Bus struct {
	mu    sync.Mutex
	queue []Message
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Publish(ctx context.Context, env *worldevent.Envelope, props worldevent.MessageProperties) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope %s: %w", env.EventID, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, Message{Body: body, Props: props, Attempt: 1})
	return nil
}

// Len reports the queue depth.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Snapshot copies the queued deliveries in order, without consuming them.
func (b *Bus) Snapshot() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.queue))
	for i, m := range b.queue {
		m.Body = append([]byte(nil), m.Body...)
		out[i] = m
	}
	return out
}

func (b *Bus) pop() (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return Message{}, false
	}
	msg := b.queue[0]
	b.queue = b.queue[1:]
	return msg, true
}

func (b *Bus) push(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, msg)
}

// Pump drains the bus into the processor, honoring the broker's retry
// contract: a retryable failure requeues the delivery with attempt+1 until
// maxAttempts, then dead-letters it as exhausted.
type Pump struct {
	bus         *Bus
	proc        *dispatch.Processor
	maxAttempts int
	log         zerolog.Logger
}

func NewPump(bus *Bus, proc *dispatch.Processor, maxAttempts int) *Pump {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Pump{
		bus:         bus,
		proc:        proc,
		maxAttempts: maxAttempts,
		log:         zlog.With().Str("component", "memory.pump").Logger(),
	}
}

// DrainAll processes queued deliveries until the bus is empty, including
// events published by the handlers it runs. Returns how many deliveries
// were resolved; the error is non-nil only when an exhausted delivery
// could not be dead-lettered, in which case it is requeued.
func (p *Pump) DrainAll(ctx context.Context) (int, error) {
	handled := 0
	for {
		msg, ok := p.bus.pop()
		if !ok {
			return handled, nil
		}
		if msg.FirstAttemptUtc.IsZero() {
			msg.FirstAttemptUtc = time.Now().UTC()
		}
		del := dispatch.Delivery{Attempt: msg.Attempt, FirstAttemptUtc: msg.FirstAttemptUtc}

		_, err := p.proc.Process(ctx, msg.Body, del)
		if err == nil {
			handled++
			continue
		}
		if msg.Attempt >= p.maxAttempts {
			if _, dlErr := p.proc.DeadLetterExhausted(ctx, msg.Body, del, err); dlErr != nil {
				p.bus.push(msg)
				return handled, dlErr
			}
			handled++
			continue
		}
		p.log.Warn().Err(err).Int("attempt", msg.Attempt).Msg("delivery requeued")
		msg.Attempt++
		p.bus.push(msg)
	}
}

// Run polls the bus until the context ends. Dev-mode stand-in for the
// broker consumer loop.
func (p *Pump) Run(ctx context.Context, poll time.Duration) {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.DrainAll(ctx); err != nil {
				p.log.Error().Err(err).Msg("drain failed")
			}
		}
	}
}
