package rabbitmq

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/mosswell/world-service/internal/application/dispatch"
	"github.com/mosswell/world-service/internal/telemetry/metrics"
)

// Processor is the pipeline contract the consumer drives; *dispatch.Processor
// satisfies it. An interface so unit tests can script outcomes.
type Processor interface {
	Process(ctx context.Context, body []byte, del dispatch.Delivery) (dispatch.Outcome, error)
	DeadLetterExhausted(ctx context.Context, body []byte, del dispatch.Delivery, cause error) (dispatch.Outcome, error)
}

// RetryPublisher is the republish contract used by Consumer.
// It is an interface so unit tests can inject a fake publisher without real AMQP channels.
type RetryPublisher interface {
	PublishRetry(ctx context.Context, tier string, orig amqp.Delivery, nextAttempt int, cause error) error
}

type Config struct {
	RabbitURL   string
	Exchange    string
	Queue       string
	BindKeys    []string
	Prefetch    int
	Tag         string
	MaxAttempts int
	Workers     int
}

type Consumer struct {
	url         string
	exchange    string
	queue       string
	bindKeys    []string
	prefetch    int
	tag         string
	maxAttempts int

	lg   zerolog.Logger
	proc Processor
	pool *WorkerPool

	mu      sync.Mutex
	running bool
	doneCh  chan struct{}

	// AMQP resources
	conn      *amqp.Connection
	chConsume *amqp.Channel
	chPublish *amqp.Channel

	deliveries <-chan amqp.Delivery
	pub        RetryPublisher
}

func NewConsumer(cfg Config, proc Processor, lg zerolog.Logger) *Consumer {
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	bindKeys := cfg.BindKeys
	if len(bindKeys) == 0 {
		bindKeys = []string{"#"}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = defaultWorkers
	}

	return &Consumer{
		url:         cfg.RabbitURL,
		exchange:    exchange,
		queue:       queue,
		bindKeys:    bindKeys,
		prefetch:    cfg.Prefetch,
		tag:         cfg.Tag,
		maxAttempts: maxAttempts,
		proc:        proc,
		pool:        NewWorkerPool(workers),
		lg:          lg.With().Str("component", "rabbitmq_consumer").Logger(),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if c.proc == nil {
		return fmt.Errorf("nil processor")
	}

	c.doneCh = make(chan struct{})
	c.running = true
	go c.run(ctx)
	return nil
}

func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	doneCh := c.doneCh
	c.running = false
	c.mu.Unlock()

	c.closeConn()

	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Drain in-flight handlers; deliveries left unacked by the closed
	// channel redeliver, and the dedupe registry absorbs the replays.
	c.pool.Wait()
	return nil
}

func (c *Consumer) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		doneCh := c.doneCh
		c.doneCh = nil
		c.running = false
		c.mu.Unlock()

		if doneCh != nil {
			close(doneCh)
		}
	}()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.lg.Info().Msg("consumer supervisor exiting (ctx cancelled)")
			return
		default:
		}

		if !c.isRunning() {
			c.lg.Info().Msg("consumer supervisor exiting (stopped)")
			return
		}

		err := c.connectAndDeclare()
		if err != nil {
			if isPreconditionFailed(err) {
				c.lg.Error().Err(err).Msg("FATAL: topology precondition failed. Delete and recreate MQ resources, then restart.")
				return
			}

			c.lg.Error().Err(err).Dur("backoff", backoff).Msg("connectAndDeclare failed; retrying")
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}

		backoff = 1 * time.Second
		c.consumeLoop(ctx)

		select {
		case <-ctx.Done():
			return
		default:
		}

		c.lg.Warn().Dur("backoff", backoff).Msg("deliveries closed; reconnecting")
		c.closeConn()

		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = minDur(backoff*2, maxBackoff)
	}
}

func (c *Consumer) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Consumer) connectAndDeclare() error {
	c.closeConn()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	chConsume, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("consume channel: %w", err)
	}

	chPublish, err := conn.Channel()
	if err != nil {
		_ = chConsume.Close()
		_ = conn.Close()
		return fmt.Errorf("publish channel: %w", err)
	}

	if err := declareTopology(chConsume, c.exchange, c.queue, c.bindKeys); err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return err
	}

	if c.prefetch > 0 {
		if err := chConsume.Qos(c.prefetch, 0, false); err != nil {
			c.closeAll(conn, chConsume, chPublish)
			return fmt.Errorf("qos: %w", err)
		}
	}

	dlv, err := chConsume.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("consume: %w", err)
	}

	pub, err := newTierPublisher(chPublish, c.lg)
	if err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("retry publisher: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.chConsume = chConsume
	c.chPublish = chPublish
	c.deliveries = dlv
	c.pub = pub
	c.mu.Unlock()

	c.lg.Info().
		Str("exchange", c.exchange).
		Str("queue", c.queue).
		Strs("bind_keys", c.bindKeys).
		Int("prefetch", c.prefetch).
		Int("max_attempts", c.maxAttempts).
		Msg("rabbitmq consumer ready (separate consume/publish channels; confirm+mandatory enabled)")

	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	// Snapshot the per-connection resources so workers outliving a
	// reconnect keep the pair they were consumed on.
	c.mu.Lock()
	deliveries := c.deliveries
	pub := c.pub
	c.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			c.lg.Info().Msg("consume loop context cancelled")
			return

		case d, ok := <-deliveries:
			if !ok {
				c.lg.Warn().Msg("deliveries channel closed")
				return
			}

			delivery := d
			c.pool.Submit(func() {
				c.handleDelivery(ctx, delivery, pub)
			})
			metrics.SetWorkerPoolJobsQueued(c.pool.Queued())
		}
	}
}

// handleDelivery resolves one delivery to exactly one broker verdict: ack
// after the pipeline settles it (processed, duplicate, dead-lettered,
// dropped, or parked in a retry tier), nack without requeue only when even
// the fallback paths fail and the safety queue must take it.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery, pub RetryPublisher) {
	start := time.Now()
	attempt := getAttempt(d.Headers)
	del := dispatch.Delivery{
		Attempt:         attempt,
		FirstAttemptUtc: firstAttemptFrom(d.Headers, d.Timestamp),
	}

	outcome, err := c.proc.Process(ctx, d.Body, del)
	if err == nil {
		_ = d.Ack(false)
		c.lg.Info().
			Str("routing_key", d.RoutingKey).
			Str("outcome", outcome.String()).
			Int("attempt", attempt).
			Dur("took", time.Since(start)).
			Msg("delivery resolved")
		return
	}

	// Retryable fault. Exhausted deliveries become dead letters; the rest
	// park in a TTL tier and come back through the main exchange.
	if attempt >= c.maxAttempts {
		if _, dlErr := c.proc.DeadLetterExhausted(ctx, d.Body, del, err); dlErr != nil {
			c.lg.Error().Err(dlErr).
				Str("routing_key", d.RoutingKey).
				Msg("dead-letter store failed; nack requeue=false (safety DLX)")
			_ = d.Nack(false, false)
			return
		}
		_ = d.Ack(false)
		c.lg.Error().Err(err).
			Str("routing_key", d.RoutingKey).
			Int("attempt", attempt).
			Msg("retry attempts exhausted; delivery dead-lettered")
		return
	}

	nextAttempt := attempt + 1
	tier := retryTier(nextAttempt)
	if pub == nil {
		c.lg.Error().
			Str("routing_key", d.RoutingKey).
			Msg("nil retry publisher; nack requeue=false (safety DLX)")
		_ = d.Nack(false, false)
		return
	}
	if pubErr := pub.PublishRetry(ctx, tier, d, nextAttempt, err); pubErr != nil {
		c.lg.Error().Err(pubErr).
			Str("routing_key", d.RoutingKey).
			Str("tier", tier).
			Msg("retry republish failed; nack requeue=false (safety DLX)")
		_ = d.Nack(false, false)
		return
	}
	metrics.RecordRetryAttempt(tier)
	_ = d.Ack(false)
	c.lg.Warn().Err(err).
		Str("routing_key", d.RoutingKey).
		Str("tier", tier).
		Int("attempt", nextAttempt).
		Msg("retryable failure; republished to retry tier")
}

// retryTier picks the parking tier for the next attempt: first retry after
// 10s, second after 1m, everything later after 10m.
func retryTier(nextAttempt int) string {
	switch {
	case nextAttempt <= 2:
		return "10s"
	case nextAttempt == 3:
		return "1m"
	default:
		return "10m"
	}
}

// getAttempt reads the x-attempt header, tolerating every numeric encoding
// brokers and clients produce. A delivery without the header is attempt 1.
func getAttempt(h amqp.Table) int {
	n := 0
	if h != nil {
		switch t := h["x-attempt"].(type) {
		case int:
			n = t
		case int32:
			n = int(t)
		case int64:
			n = int(t)
		case float64:
			n = int(t)
		case string:
			n, _ = strconv.Atoi(t)
		}
	}
	if n < 1 {
		return 1
	}
	return n
}

// firstAttemptFrom recovers when the delivery chain started: the
// x-first-attempt header survives retry hops, the publish timestamp covers
// first deliveries, and zero lets the pipeline fall back to its own clock.
func firstAttemptFrom(h amqp.Table, ts time.Time) time.Time {
	if h != nil {
		if raw, ok := h["x-first-attempt"].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				return t.UTC()
			}
		}
	}
	if !ts.IsZero() {
		return ts.UTC()
	}
	return time.Time{}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func (c *Consumer) closeAll(conn *amqp.Connection, a *amqp.Channel, b *amqp.Channel) {
	if b != nil {
		_ = b.Close()
	}
	if a != nil {
		_ = a.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Consumer) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chPublish != nil {
		_ = c.chPublish.Close()
		c.chPublish = nil
	}
	if c.chConsume != nil {
		_ = c.chConsume.Close()
		c.chConsume = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	c.deliveries = nil
	c.pub = nil
}

func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "PRECONDITION_FAILED") || strings.Contains(msg, "INEQUIVALENT ARG")
}
