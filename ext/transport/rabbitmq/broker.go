package rabbitmq

import (
	"context"
	"fmt"

	"github.com/odpf/salt/log"
	"github.com/streadway/amqp"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/rabbitpubsub"

	"github.com/odpf/priest/config"
	"github.com/odpf/priest/core/organization/service"
)

// Broker holds the single connection of the process. Tasks and events are
// fanout exchanges, each bound to a durable queue.
type Broker struct {
	logger log.Logger
	conn   *amqp.Connection
}

func NewBroker(conf config.BrokerConfig, logger log.Logger) (*Broker, error) {
	conn, err := amqp.Dial(conf.URL())
	if err != nil {
		return nil, fmt.Errorf("error connecting to rabbitmq at %s:%d: %w", conf.Hostname, conf.Port, err)
	}
	return &Broker{
		logger: logger,
		conn:   conn,
	}, nil
}

// DeclareTask declares the exchange and the queue of a task, both named name.
func (b *Broker) DeclareTask(name string) error {
	return b.declare(name, name)
}

// DeclareEvent binds queue to the exchange of event.
func (b *Broker) DeclareEvent(event, queue string) error {
	return b.declare(event, queue)
}

func (b *Broker) declare(exchange, queue string) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("error opening channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("error declaring exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("error declaring queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
		return fmt.Errorf("error binding queue %s to %s: %w", queue, exchange, err)
	}
	b.logger.Debug("declared queue", "exchange", exchange, "queue", queue)
	return nil
}

func (b *Broker) Subscribe(queue string) *pubsub.Subscription {
	return rabbitpubsub.OpenSubscription(b.conn, queue, nil)
}

// Client returns a publishing client, it must be closed after use.
func (b *Broker) Client(_ context.Context) (service.TaskPublisher, error) {
	if b.conn.IsClosed() {
		return nil, fmt.Errorf("rabbitmq connection is closed")
	}
	return NewClient(func(name string) *pubsub.Topic {
		return rabbitpubsub.OpenTopic(b.conn, name, nil)
	}, b.logger), nil
}

func (b *Broker) Close() error {
	return b.conn.Close()
}
