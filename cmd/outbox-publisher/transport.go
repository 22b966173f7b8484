package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/furniture-production-backend/pkg/outbox/registry"
)

// outboundMessage is one outbox row ready for the broker.
type outboundMessage struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// transport delivers outbox rows to a broker. Publish blocks until the broker
// acknowledges the message.
type transport interface {
	Name() string
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg outboundMessage) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type pubSubTransport struct {
	client     pubSubClient
	publishers map[string]*gcppubsub.Publisher
}

func newPubSubTransport(client pubSubClient) *pubSubTransport {
	return &pubSubTransport{client: client, publishers: map[string]*gcppubsub.Publisher{}}
}

func (t *pubSubTransport) Name() string { return "pubsub" }

func (t *pubSubTransport) Ping(ctx context.Context) error {
	return t.client.Ping(ctx)
}

func (t *pubSubTransport) Publish(ctx context.Context, topic string, msg outboundMessage) error {
	pub, ok := t.publishers[topic]
	if !ok {
		pub = t.client.Publisher(topic)
		if pub == nil {
			return registry.NewNonRetryableError(errors.New("publisher not configured for topic " + topic))
		}
		t.publishers[topic] = pub
	}
	result := pub.Publish(ctx, &gcppubsub.Message{Data: msg.Data, Attributes: msg.Attributes})
	if result == nil {
		return errors.New("publish result is nil")
	}
	_, err := result.Get(ctx)
	return err
}

// Stop flushes and releases every cached publisher.
func (t *pubSubTransport) Stop() {
	for _, pub := range t.publishers {
		pub.Stop()
	}
}

type rabbitPublisher interface {
	Ping(context.Context) error
	Publish(ctx context.Context, routingKey, messageID string, body []byte, headers map[string]string) error
}

// rabbitTransport publishes with the topic name as the routing key.
type rabbitTransport struct {
	client rabbitPublisher
}

func (t *rabbitTransport) Name() string { return "rabbitmq" }

func (t *rabbitTransport) Ping(ctx context.Context) error {
	return t.client.Ping(ctx)
}

func (t *rabbitTransport) Publish(ctx context.Context, topic string, msg outboundMessage) error {
	return t.client.Publish(ctx, topic, msg.ID, msg.Data, msg.Attributes)
}
