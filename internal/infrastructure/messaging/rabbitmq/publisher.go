package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mosswell/world-service/internal/contracts/worldevent"
	"github.com/mosswell/world-service/internal/domain"
)

// Wait window for Return / Confirm
const publishWait = 150 * time.Millisecond

// Publisher puts envelopes on the topic exchange with publisher confirms
// and mandatory routing. It backs the Publisher ports in dispatch and
// worldgen; dev mode swaps in the in-memory bus instead.
type Publisher struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	p := &Publisher{
		url:      url,
		exchange: exchange,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	// The consumer declares the full topology, but publishing into a missing
	// exchange kills the channel, so the publish target is declared here too.
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	// enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.conn = conn
	p.ch = ch

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))

	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}

// RoutingKey maps an event type onto the topic key it travels under:
// "Player.Move" publishes as "player.move".
func RoutingKey(t worldevent.EventType) string {
	return strings.ToLower(string(t))
}

// Publish sends one envelope with mandatory routing and waits for the broker
// confirm. Failures come back as SERVICEBUS_UNAVAILABLE so callers classify
// them as transient.
func (p *Publisher) Publish(ctx context.Context, env *worldevent.Envelope, props worldevent.MessageProperties) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope %s: %w", env.EventID, err)
	}

	messageID := props.MessageID
	if messageID == "" {
		messageID = env.EventID
	}
	var headers amqp.Table
	if props.ScopeKey != "" {
		headers = amqp.Table{"x-scope-key": props.ScopeKey}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return domain.ErrBusUnavailable("publisher channel not ready")
	}

	err = p.ch.PublishWithContext(
		ctx,
		p.exchange,
		RoutingKey(env.Type),
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			MessageId:     messageID,
			CorrelationId: props.CorrelationID,
			Type:          string(env.Type),
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now().UTC(),
			Headers:       headers,
			Body:          body,
		},
	)
	if err != nil {
		return domain.ErrBusUnavailable(fmt.Sprintf("publish %s: %v", env.Type, err))
	}

	// Wait for either Return (NO_ROUTE) or Confirm.
	select {
	case ret := <-p.returnCh:
		return domain.ErrBusUnavailable("NO_ROUTE: " + ret.RoutingKey)
	case conf := <-p.confirmCh:
		if !conf.Ack {
			return domain.ErrBusUnavailable("publish nacked by broker")
		}
		return nil
	case <-time.After(publishWait):
		// Neither signal inside the window: assume delivered rather than
		// failing a healthy channel on a slow confirm. Consumers dedupe on
		// idempotency key, so the caller retrying costs a duplicate.
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
