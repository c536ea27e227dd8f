package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/odpf/salt/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gocloud.dev/pubsub"

	"github.com/odpf/priest/internal/errors"
	"github.com/odpf/priest/internal/worker"
)

var publishedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "publisher_rabbitmq_tasks_published_total",
	Help: "Number of tasks published to rabbitmq",
}, []string{"task"})

type TopicOpener func(name string) *pubsub.Topic

// Client publishes tasks. Topics are opened on first use and shut down on Close.
type Client struct {
	logger log.Logger

	open   TopicOpener
	topics map[string]*pubsub.Topic
}

func NewClient(open TopicOpener, logger log.Logger) *Client {
	return &Client{
		logger: logger,
		open:   open,
		topics: map[string]*pubsub.Topic{},
	}
}

func (c *Client) PublishTask(ctx context.Context, name string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encoding task %s: %w", name, err)
	}

	topic, ok := c.topics[name]
	if !ok {
		topic = c.open(name)
		c.topics[name] = topic
	}

	metadata := map[string]string{}
	if tid := worker.TIDFromContext(ctx); tid != "" {
		metadata[worker.MetadataTID] = tid
	}
	if err := topic.Send(ctx, &pubsub.Message{Body: body, Metadata: metadata}); err != nil {
		return err
	}

	publishedCounter.WithLabelValues(name).Inc()
	c.logger.Debug("published task", "task", name, "tid", metadata[worker.MetadataTID])
	return nil
}

func (c *Client) Close() error {
	me := errors.NewMultiError("errors while closing rabbitmq client")
	for name, topic := range c.topics {
		if err := topic.Shutdown(context.Background()); err != nil {
			me.Append(fmt.Errorf("topic %s: %w", name, err))
		}
		delete(c.topics, name)
	}
	return me.ToErr()
}
