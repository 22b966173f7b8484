package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/furniture-production-backend/pkg/config"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
)

// Client owns one AMQP connection and a confirm-mode channel used for
// publishing domain events to a durable topic exchange.
type Client struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logg     *logger.Logger
	mu       sync.Mutex
}

// Message is the transport-neutral shape handed to consumers.
type Message struct {
	ID         string
	RoutingKey string
	Body       []byte
	Headers    map[string]string
}

// Handler processes a delivery. Returning an error nacks and requeues it.
type Handler func(context.Context, Message) error

var errExchangeRequired = errors.New("rabbitmq exchange is required")

func New(ctx context.Context, cfg config.RabbitMQConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Exchange) == "" {
		return nil, errExchangeRequired
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "rabbitmq client initialized")
	}

	return &Client{conn: conn, ch: ch, exchange: cfg.Exchange, logg: logg}, nil
}

// Publish sends body to the exchange with the routing key and waits for the
// broker confirm.
func (c *Client) Publish(ctx context.Context, routingKey, messageID string, body []byte, headers map[string]string) error {
	if c == nil || c.ch == nil {
		return errors.New("rabbitmq client not initialized")
	}

	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}

	c.mu.Lock()
	confirm, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, c.exchange, routingKey, true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         body,
	})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	if confirm == nil {
		return nil
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked message %s", messageID)
	}
	return nil
}

// Consume declares a durable queue bound to the routing keys and delivers
// messages to handler until ctx is canceled.
func (c *Client) Consume(ctx context.Context, queue string, routingKeys []string, handler Handler) error {
	if c == nil || c.conn == nil {
		return errors.New("rabbitmq client not initialized")
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	for _, key := range routingKeys {
		if err := ch.QueueBind(queue, key, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", queue, key, err)
		}
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := toMessage(d)
			if err := handler(ctx, msg); err != nil {
				if c.logg != nil {
					c.logg.Error(c.logg.WithField(ctx, "message_id", msg.ID), "rabbitmq handler failed", err)
				}
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func toMessage(d amqp.Delivery) Message {
	headers := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	return Message{ID: d.MessageId, RoutingKey: d.RoutingKey, Body: d.Body, Headers: headers}
}

// Ping reports whether the connection is still open.
func (c *Client) Ping(context.Context) error {
	if c == nil || c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	var err error
	if c.ch != nil {
		if closeErr := c.ch.Close(); closeErr != nil && !errors.Is(closeErr, amqp.ErrClosed) {
			err = multierr.Append(err, closeErr)
		}
	}
	if c.conn != nil {
		if closeErr := c.conn.Close(); closeErr != nil && !errors.Is(closeErr, amqp.ErrClosed) {
			err = multierr.Append(err, closeErr)
		}
	}
	return err
}
