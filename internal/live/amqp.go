package live

import (
	"context"
	"encoding/json"
	"fmt"

	"smart-fleet/internal/general/contracts"
	"smart-fleet/internal/general/logger"
	"smart-fleet/internal/general/metrics"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer is the slice of rabbitmq.Client used by AMQPSource.
type Consumer interface {
	Ready() error
	Consume(ctx context.Context, queue, consumerTag string, prefetch int,
		handler func(context.Context, amqp.Delivery) error) error
}

// AMQPSource reads vehicle updates republished by the bridge onto a queue
// bound to the vehicle fanout exchange. The topic argument of Subscribe is
// only used for logging; routing is decided by the queue binding.
type AMQPSource struct {
	consumer Consumer
	queue    string
	prefetch int
	log      *logger.Logger
}

func NewAMQPSource(consumer Consumer, queue string, log *logger.Logger) *AMQPSource {
	if log == nil {
		log = logger.Discard()
	}
	if queue == "" {
		queue = contracts.QueueVehiclesConsole
	}
	return &AMQPSource{consumer: consumer, queue: queue, prefetch: 16, log: log}
}

func (s *AMQPSource) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if err := s.consumer.Ready(); err != nil {
		s.log.Error(ctx, "live_connect_failed", "amqp consumer not ready", err, map[string]any{"queue": s.queue})
		return nil, err
	}

	consumeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	as := &amqpSubscription{stream: newStream(), cancel: cancel}
	tag := "fleet-live-" + uuid.NewString()

	go func() {
		defer close(as.finished)
		defer close(as.updates)

		err := s.consumer.Consume(consumeCtx, s.queue, tag, s.prefetch, func(hctx context.Context, d amqp.Delivery) error {
			var msg contracts.VehicleUpdateMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				metrics.LiveMessages.WithLabelValues("amqp", "undecodable").Inc()
				s.log.Error(hctx, "live_message_undecodable", "dropping message", err, map[string]any{"body": string(d.Body)})
				return err
			}
			metrics.LiveMessages.WithLabelValues("amqp", "decoded").Inc()
			if !as.deliver(msg.Vehicle) {
				return fmt.Errorf("subscription closed")
			}
			return nil
		})
		if err != nil && !as.stopping() {
			as.setErr(err)
			s.log.Error(ctx, "live_connection_lost", "amqp consumer stopped", err, map[string]any{"queue": s.queue})
		}
	}()
	as.watch(ctx, as.Close)

	s.log.Info(ctx, "live_subscribed", "consuming vehicle updates", map[string]any{"queue": s.queue, "topic": topic, "tag": tag})
	return as, nil
}

type amqpSubscription struct {
	*stream
	cancel context.CancelFunc
}

func (as *amqpSubscription) Close() error {
	as.shutdown(as.cancel)
	return nil
}
