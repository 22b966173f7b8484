package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/furniture-production-backend/pkg/rabbitmq"
	"github.com/google/uuid"
)

const consumerName = "operator-notifications"

type notificationWriter interface {
	Create(ctx context.Context, notification *models.Notification) (bool, error)
}

type payloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error)
}

// Delivery is a transport-neutral domain event message.
type Delivery struct {
	MessageID string
	EventType string
	Data      []byte
}

// Consumer turns low stock alerts and order transitions into notification rows.
type Consumer struct {
	repo        notificationWriter
	decoder     payloadDecoder
	idempotency *idempotency.Manager
	logg        *logger.Logger
}

// NewConsumer builds the notification consumer.
func NewConsumer(repo notificationWriter, decoder payloadDecoder, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if decoder == nil {
		return nil, fmt.Errorf("payload decoder required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:        repo,
		decoder:     decoder,
		idempotency: manager,
		logg:        logg,
	}, nil
}

// RunPubSub receives from a Pub/Sub subscription until the context is canceled.
func (c *Consumer) RunPubSub(ctx context.Context, subscription *pubsub.Subscriber) error {
	if subscription == nil {
		return fmt.Errorf("notification subscription required")
	}
	return subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		err := c.Handle(ctx, Delivery{
			MessageID: msg.ID,
			EventType: msg.Attributes["event_type"],
			Data:      msg.Data,
		})
		if err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// RunRabbitMQ consumes the queue bound to the given routing keys.
func (c *Consumer) RunRabbitMQ(ctx context.Context, client *rabbitmq.Client, queue string, routingKeys []string) error {
	return client.Consume(ctx, queue, routingKeys, func(ctx context.Context, msg rabbitmq.Message) error {
		return c.Handle(ctx, Delivery{
			MessageID: msg.ID,
			EventType: msg.Headers["event_type"],
			Data:      msg.Body,
		})
	})
}

// Handle processes one delivery. A returned error asks the transport to
// redeliver; malformed or irrelevant messages are acknowledged and dropped.
func (c *Consumer) Handle(ctx context.Context, d Delivery) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": d.MessageID,
		"event_type": d.EventType,
	})

	eventType := enums.OutboxEventType(d.EventType)
	if eventType != enums.EventLowStock && eventType != enums.EventOrderStageChanged {
		return nil
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(d.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return nil
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return nil
	}
	decoded, err := c.decoder.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return nil
	}

	notification := buildNotification(eventID, decoded)
	if notification == nil {
		c.logg.Info(logCtx, "event has no audience")
		return nil
	}
	if notification.Type.Broadcast() != (notification.RecipientID == nil) {
		c.logg.Warn(logCtx, "notification recipient does not match its type")
		return nil
	}

	skipped, err := c.idempotency.Run(ctx, consumerName, eventID, func(ctx context.Context) error {
		_, err := c.repo.Create(ctx, notification)
		return err
	})
	if err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		return err
	}
	if skipped {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}
	c.logg.Info(c.logg.WithField(logCtx, "notification_type", string(notification.Type)), "notification stored")
	return nil
}

func buildNotification(eventID uuid.UUID, decoded any) *models.Notification {
	switch payload := decoded.(type) {
	case *payloads.LowStockEvent:
		return lowStockNotification(eventID, payload)
	case *payloads.OrderStageChangedEvent:
		return orderNotification(eventID, payload)
	default:
		return nil
	}
}

func lowStockNotification(eventID uuid.UUID, p *payloads.LowStockEvent) *models.Notification {
	return &models.Notification{
		EventID: eventID,
		Type:    enums.NotificationTypeLowStock,
		Title:   fmt.Sprintf("Low stock: %s", p.SKU),
		Message: fmt.Sprintf("%s is at %s (reorder point %s). Suggested order: %s.",
			p.Name, p.OnHand.String(), p.ReorderPoint.String(), p.SuggestedOrderQty.String()),
		Link: stringPtr(fmt.Sprintf("/materials/%s/forecast", p.MaterialID)),
	}
}

func orderNotification(eventID uuid.UUID, p *payloads.OrderStageChangedEvent) *models.Notification {
	if p.CustomerID == uuid.Nil {
		return nil
	}
	title, message := orderCopy(p)
	recipient := p.CustomerID
	return &models.Notification{
		RecipientID: &recipient,
		EventID:     eventID,
		Type:        enums.NotificationTypeOrderUpdate,
		Title:       title,
		Message:     message,
		Link:        stringPtr(fmt.Sprintf("/orders/%s", p.OrderID)),
	}
}

func orderCopy(p *payloads.OrderStageChangedEvent) (string, string) {
	switch {
	case p.AcceptanceStatus == enums.OrderAcceptanceRejected:
		if p.Reason != "" {
			return "Order rejected", fmt.Sprintf("Your order was rejected. Reason: %s", p.Reason)
		}
		return "Order rejected", "Your order was rejected."
	case p.Status == enums.OrderStatusDelivered:
		return "Order delivered", "Your order has been delivered. Thank you for your order."
	case p.Status == enums.OrderStatusReadyForDelivery:
		return "Order ready for delivery", "Your order has finished production and is ready for delivery."
	case p.Stage != "":
		return "Order in production", fmt.Sprintf("Your order moved to %s.", p.Stage.Label())
	default:
		return "Order accepted", "Your order was accepted."
	}
}

func stringPtr(value string) *string {
	return &value
}
