package rabbitmq_test

import (
	"context"
	"testing"
	"time"

	"github.com/odpf/salt/log"
	"github.com/stretchr/testify/assert"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/mempubsub"

	"github.com/odpf/priest/ext/transport/rabbitmq"
	"github.com/odpf/priest/internal/worker"
)

func TestClient(t *testing.T) {
	newClient := func() (*rabbitmq.Client, map[string]*pubsub.Subscription, *int) {
		subs := map[string]*pubsub.Subscription{}
		opened := 0
		client := rabbitmq.NewClient(func(name string) *pubsub.Topic {
			opened++
			topic := mempubsub.NewTopic()
			subs[name] = mempubsub.NewSubscription(topic, time.Minute)
			return topic
		}, log.NewNoop())
		return client, subs, &opened
	}

	t.Run("publishes json body with tid metadata", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(worker.WithTID(context.Background(), "tid-1"), time.Second)
		defer cancel()
		client, subs, _ := newClient()

		err := client.PublishTask(ctx, "update.organization", map[string]string{"githubId": "12345"})
		assert.Nil(t, err)

		msg, err := subs["update.organization"].Receive(ctx)
		assert.Nil(t, err)
		msg.Ack()
		assert.JSONEq(t, `{"githubId":"12345"}`, string(msg.Body))
		assert.Equal(t, "tid-1", msg.Metadata[worker.MetadataTID])

		assert.Nil(t, client.Close())
	})
	t.Run("opens each topic once per client", func(t *testing.T) {
		ctx := context.Background()
		client, _, opened := newClient()

		assert.Nil(t, client.PublishTask(ctx, "update.organization", map[string]string{"githubId": "1"}))
		assert.Nil(t, client.PublishTask(ctx, "update.organization", map[string]string{"githubId": "2"}))

		assert.Equal(t, 1, *opened)
		assert.Nil(t, client.Close())
	})
	t.Run("returns error when payload cannot be encoded", func(t *testing.T) {
		client, _, opened := newClient()

		err := client.PublishTask(context.Background(), "update.organization", make(chan int))

		assert.ErrorContains(t, err, "error encoding task update.organization")
		assert.Equal(t, 0, *opened)
	})
	t.Run("returns error when publishing on a closed topic", func(t *testing.T) {
		ctx := context.Background()
		client := rabbitmq.NewClient(func(name string) *pubsub.Topic {
			topic := mempubsub.NewTopic()
			topic.Shutdown(ctx)
			return topic
		}, log.NewNoop())

		err := client.PublishTask(ctx, "update.organization", map[string]string{"githubId": "1"})

		assert.NotNil(t, err)
	})
}
