// Package rabbitmq carries world events over AMQP: a confirming publisher
// for the world.events topic exchange and a supervised consumer that drives
// the dispatch pipeline, with TTL retry tiers and a safety dead-letter queue
// for deliveries that cannot even be recorded.
package rabbitmq

import (
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "world.events"
	DefaultQueue    = "world-service.events"

	// Retry tier exchanges (topic). A delivery parked in a tier queue
	// dead-letters back into the main exchange when its TTL lapses.
	Retry10sExchange = "world.events.retry.10s"
	Retry1mExchange  = "world.events.retry.1m"
	Retry10mExchange = "world.events.retry.10m"

	// Safety net for deliveries nacked without requeue. Nothing consumes
	// this queue; it exists so poison is parked instead of dropped.
	SafetyDLXExchange = "world.events.dlx"
	SafetyDLQ         = "world-service.events.dlq"

	rkSafetyDLQ = "world.events.poison"

	retryQueue10s = "world-service.events.retry.10s"
	retryQueue1m  = "world-service.events.retry.1m"
	retryQueue10m = "world-service.events.retry.10m"

	defaultMaxAttempts = 5
	defaultWorkers     = 5
)

// declareTopology declares every exchange and queue the consumer relies on.
// Declarations are idempotent; a live broker holding mismatched args answers
// PRECONDITION_FAILED, which the supervisor treats as fatal.
func declareTopology(ch *amqp.Channel, exchange, queue string, bindKeys []string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("main exchange declare: %w", err)
	}
	for _, ex := range []string{Retry10sExchange, Retry1mExchange, Retry10mExchange, SafetyDLXExchange} {
		if err := ch.ExchangeDeclare(ex, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("tier exchange declare (%s): %w", ex, err)
		}
	}

	mainArgs := amqp.Table{
		"x-dead-letter-exchange":    SafetyDLXExchange,
		"x-dead-letter-routing-key": rkSafetyDLQ,
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, mainArgs); err != nil {
		return fmt.Errorf("main queue declare: %w", err)
	}
	for _, key := range bindKeys {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		if err := ch.QueueBind(queue, k, exchange, false, nil); err != nil {
			return fmt.Errorf("main queue bind (%s): %w", k, err)
		}
	}

	if _, err := ch.QueueDeclare(SafetyDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("safety dlq declare: %w", err)
	}
	if err := ch.QueueBind(SafetyDLQ, rkSafetyDLQ, SafetyDLXExchange, false, nil); err != nil {
		return fmt.Errorf("safety dlq bind: %w", err)
	}

	if err := declareRetryQueue(ch, retryQueue10s, Retry10sExchange, 10*time.Second, exchange); err != nil {
		return err
	}
	if err := declareRetryQueue(ch, retryQueue1m, Retry1mExchange, 1*time.Minute, exchange); err != nil {
		return err
	}
	if err := declareRetryQueue(ch, retryQueue10m, Retry10mExchange, 10*time.Minute, exchange); err != nil {
		return err
	}
	return nil
}

func declareRetryQueue(ch *amqp.Channel, qName, tierExchange string, ttl time.Duration, mainExchange string) error {
	args := amqp.Table{
		"x-message-ttl":          int64(ttl / time.Millisecond),
		"x-dead-letter-exchange": mainExchange,
	}
	if _, err := ch.QueueDeclare(qName, true, false, false, false, args); err != nil {
		return fmt.Errorf("retry queue declare (%s): %w", qName, err)
	}
	if err := ch.QueueBind(qName, "#", tierExchange, false, nil); err != nil {
		return fmt.Errorf("retry queue bind (%s): %w", qName, err)
	}
	return nil
}
