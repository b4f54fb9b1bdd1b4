package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// publish reliability window for retry republishes
const retryPublishWait = 250 * time.Millisecond

// tierPublisher republishes failed deliveries into a TTL tier exchange on a
// dedicated channel with confirms, so a retry never vanishes silently.
type tierPublisher struct {
	ch *amqp.Channel
	lg zerolog.Logger

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func newTierPublisher(ch *amqp.Channel, lg zerolog.Logger) (*tierPublisher, error) {
	if ch == nil {
		return nil, fmt.Errorf("nil channel")
	}

	// Enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("confirm mode: %w", err)
	}

	p := &tierPublisher{
		ch: ch,
		lg: lg.With().Str("component", "retry_publisher").Logger(),
	}

	// Must be registered AFTER Confirm
	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 32))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 32))

	return p, nil
}

func tierExchange(tier string) string {
	switch tier {
	case "10s":
		return Retry10sExchange
	case "1m":
		return Retry1mExchange
	default:
		return Retry10mExchange
	}
}

// retryHeaders builds the header table for a republish: the attempt counter
// moves forward, the first-attempt stamp and original routing key survive
// the hop, and the cause rides along for operators reading the queue.
func retryHeaders(orig amqp.Delivery, nextAttempt int, cause error) amqp.Table {
	h := copyHeaders(orig.Headers)
	h["x-attempt"] = nextAttempt
	h["x-orig-routing-key"] = orig.RoutingKey
	if _, ok := h["x-first-attempt"]; !ok {
		first := orig.Timestamp
		if first.IsZero() {
			first = time.Now()
		}
		h["x-first-attempt"] = first.UTC().Format(time.RFC3339Nano)
	}
	if cause != nil {
		h["x-error"] = cause.Error()
	}
	return h
}

// PublishRetry parks orig in the tier's queue under its original routing
// key. mandatory=true so NO_ROUTE is observable instead of dropping the
// retry.
func (p *tierPublisher) PublishRetry(ctx context.Context, tier string, orig amqp.Delivery, nextAttempt int, cause error) error {
	pub := amqp.Publishing{
		ContentType:   orig.ContentType,
		Body:          orig.Body,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now(),
		Headers:       retryHeaders(orig, nextAttempt, cause),
		CorrelationId: orig.CorrelationId,
		MessageId:     orig.MessageId,
		Type:          orig.Type,
	}

	ex := tierExchange(tier)
	if err := p.ch.PublishWithContext(ctx, ex, orig.RoutingKey, true, false, pub); err != nil {
		return fmt.Errorf("publish retry: %w", err)
	}

	return p.waitAckOrReturn(ctx, ex, orig.RoutingKey)
}

func (p *tierPublisher) waitAckOrReturn(ctx context.Context, exchange, rk string) error {
	timer := time.NewTimer(retryPublishWait)
	defer timer.Stop()

	select {
	case r := <-p.returnCh:
		// NO_ROUTE is fatal for the publish; the caller nacks to the safety
		// queue instead of acking a retry that went nowhere.
		return fmt.Errorf("publish returned: reply=%d text=%q exchange=%q rk=%q",
			r.ReplyCode, r.ReplyText, r.Exchange, r.RoutingKey)

	case c := <-p.confirmCh:
		if !c.Ack {
			return fmt.Errorf("publish nacked by broker (exchange=%q rk=%q)", exchange, rk)
		}
		return nil

	case <-timer.C:
		return errors.New("publish wait timeout (no confirm/return)")

	case <-ctx.Done():
		return ctx.Err()
	}
}

func copyHeaders(in amqp.Table) amqp.Table {
	out := amqp.Table{}
	for k, v := range in {
		out[k] = v
	}
	return out
}
