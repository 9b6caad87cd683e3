package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names the fanout exchange vehicle updates go through and the
// queues bound to it.
type Topology struct {
	Exchange string
	Queues   []string
}

func declareTopology(ch *amqp.Channel, topo Topology) error {
	// 1. Exchange
	if err := ch.ExchangeDeclare(topo.Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", topo.Exchange, err)
	}

	// 2. Queues + bindings (fanout ignores the routing key)
	for _, q := range topo.Queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, "", topo.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", q, topo.Exchange, err)
		}
	}

	return nil
}
