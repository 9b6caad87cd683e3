package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smart-fleet/internal/general/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

const handlerTimeout = 30 * time.Second

// ErrDeliveriesClosed means the broker ended a consumer that was still wanted,
// usually because the connection dropped.
var ErrDeliveriesClosed = errors.New("rabbitmq: delivery stream closed")

// Handler processes one delivery. An error drops the message without requeue.
type Handler func(context.Context, amqp.Delivery) error

// newConsumerChannel returns a fresh channel with prefetch (QoS) applied.
func (client *Client) newConsumerChannel(prefetch int) (*amqp.Channel, error) {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, errors.New("rabbitmq: connection is not ready")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if prefetch < 0 {
		prefetch = 1
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("rabbitmq: set QoS (prefetch=%d): %w", prefetch, err)
		}
	}
	return ch, nil
}

// Consume feeds vehicle update deliveries from queue to handler with manual
// acks. It returns nil once ctx is cancelled and an error if the channel or
// the delivery stream ends first.
func (client *Client) Consume(
	ctx context.Context,
	queue string,
	consumerTag string,
	prefetch int,
	handler func(context.Context, amqp.Delivery) error,
) error {
	ch, err := client.newConsumerChannel(prefetch)
	if err != nil {
		return err
	}
	defer ch.Close()

	deliveries, err := ch.Consume(
		queue,
		consumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal (ignored by RabbitMQ)
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume(%s): %w", queue, err)
	}
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	err = drain(ctx, queue, deliveries, chClosed, handler)
	if ctx.Err() != nil && consumerTag != "" {
		_ = ch.Cancel(consumerTag, false)
	}
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_consumer_stopped", "consumer lost its deliveries", err,
			map[string]any{"queue": queue, "tag": consumerTag})
	}
	return err
}

// drain settles deliveries until ctx ends or the broker side goes away.
func drain(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, chClosed <-chan *amqp.Error, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case cerr := <-chClosed:
			if cerr != nil {
				return fmt.Errorf("rabbitmq: channel closed while consuming %s: %w", queue, cerr)
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %s", ErrDeliveriesClosed, queue)

		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: %s", ErrDeliveriesClosed, queue)
			}
			settle(ctx, queue, d, handler)
		}
	}
}

func settle(ctx context.Context, queue string, d amqp.Delivery, handler Handler) {
	hCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	herr := handler(hCtx, d)
	cancel()

	result, err := "acked", error(nil)
	if herr != nil {
		result, err = "dropped", d.Nack(false, false)
	} else {
		err = d.Ack(false)
	}
	if err != nil {
		result = "settle_failed"
	}
	metrics.QueueDeliveries.WithLabelValues(queue, result).Inc()
}
