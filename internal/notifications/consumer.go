package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/enums"
	"github.com/qline-app/qline-backend/pkg/logger"
	"github.com/qline-app/qline-backend/pkg/outbox"
	"github.com/qline-app/qline-backend/pkg/outbox/idempotency"
	"github.com/qline-app/qline-backend/pkg/outbox/payloads"
)

const queueNotificationConsumer = "queue-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// PushSender delivers a notification out of band. Delivery failures are
// logged and dropped: the in-app row is the source of truth.
type PushSender interface {
	Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error
}

// Consumer watches queue and business lifecycle events and turns them
// into per-user notification rows, optionally pushing them to devices.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	push         PushSender
	logg         *logger.Logger
}

// NewConsumer builds a queue notification consumer. The push sender is
// optional.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, push PushSender, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		push:         push,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unknown event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, queueNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	message, err := buildMessage(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, queueNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	if message == nil {
		c.logg.Info(logCtx, "event not handled")
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{"user_id": message.UserID.String()})

	data, err := json.Marshal(message.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to encode notification data", err)
		_ = c.idempotency.Delete(ctx, queueNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	notification := &models.Notification{
		UserID:  message.UserID,
		Type:    message.Type,
		Title:   message.Title,
		Message: message.Body,
		Data:    data,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "failed to store notification", err)
		_ = c.idempotency.Delete(ctx, queueNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	if c.push != nil {
		if err := c.push.Send(ctx, message.UserID, message.Title, message.Body, message.Data); err != nil {
			c.logg.Error(logCtx, "push delivery failed", err)
		}
	}

	c.logg.Info(logCtx, "notification created")
	return processResult{ack: true}
}

// notificationMessage is the rendered, user-facing form of a domain event.
type notificationMessage struct {
	UserID uuid.UUID
	Type   enums.NotificationType
	Title  string
	Body   string
	Data   map[string]string
}

func buildMessage(eventType enums.OutboxEventType, raw json.RawMessage) (*notificationMessage, error) {
	switch eventType {
	case enums.EventQueueEntryJoined:
		var payload payloads.QueueEntryJoinedEvent
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return &notificationMessage{
			UserID: payload.UserID,
			Type:   enums.NotificationTypeQueueJoined,
			Title:  "You're in line",
			Body: fmt.Sprintf("You joined the queue at %s. Estimated wait: %d minutes.",
				payload.BusinessName, payload.EstimatedWaitMinutes),
			Data: map[string]string{
				"type":           string(enums.NotificationTypeQueueJoined),
				"business_id":    payload.BusinessID.String(),
				"queue_entry_id": payload.QueueEntryID.String(),
			},
		}, nil
	case enums.EventQueueEntryCalled:
		var payload payloads.QueueEntryCalledEvent
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return &notificationMessage{
			UserID: payload.UserID,
			Type:   enums.NotificationTypeQueueCurrent,
			Title:  "It's your turn",
			Body:   fmt.Sprintf("%s is ready for you now.", payload.BusinessName),
			Data: map[string]string{
				"type":           string(enums.NotificationTypeQueueCurrent),
				"business_id":    payload.BusinessID.String(),
				"queue_entry_id": payload.QueueEntryID.String(),
			},
		}, nil
	case enums.EventQueueEntryCompleted:
		var payload payloads.QueueEntryCompletedEvent
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return &notificationMessage{
			UserID: payload.UserID,
			Type:   enums.NotificationTypeQueueCompleted,
			Title:  "Thanks for visiting",
			Body:   fmt.Sprintf("Your visit at %s is complete.", payload.BusinessName),
			Data: map[string]string{
				"type":           string(enums.NotificationTypeQueueCompleted),
				"business_id":    payload.BusinessID.String(),
				"queue_entry_id": payload.QueueEntryID.String(),
			},
		}, nil
	case enums.EventQueueEntryCancelled:
		var payload payloads.QueueEntryCancelledEvent
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		body := fmt.Sprintf("You left the queue at %s.", payload.BusinessName)
		if payload.CancelledBy == enums.CancelActorOwner {
			body = fmt.Sprintf("%s removed you from their queue.", payload.BusinessName)
		}
		return &notificationMessage{
			UserID: payload.UserID,
			Type:   enums.NotificationTypeQueueCancelled,
			Title:  "Removed from queue",
			Body:   body,
			Data: map[string]string{
				"type":           string(enums.NotificationTypeQueueCancelled),
				"business_id":    payload.BusinessID.String(),
				"queue_entry_id": payload.QueueEntryID.String(),
			},
		}, nil
	case enums.EventBusinessApproved:
		var payload payloads.BusinessApprovedEvent
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return &notificationMessage{
			UserID: payload.OwnerID,
			Type:   enums.NotificationTypeBusinessApproved,
			Title:  "Business approved",
			Body:   fmt.Sprintf("%s was approved. You can now open your queue.", payload.BusinessName),
			Data: map[string]string{
				"type":        string(enums.NotificationTypeBusinessApproved),
				"business_id": payload.BusinessID.String(),
			},
		}, nil
	case enums.EventBusinessRejected:
		var payload payloads.BusinessRejectedEvent
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		body := fmt.Sprintf("%s was not approved.", payload.BusinessName)
		if payload.Reason != "" {
			body = fmt.Sprintf("%s was not approved. Reason: %s", payload.BusinessName, payload.Reason)
		}
		return &notificationMessage{
			UserID: payload.OwnerID,
			Type:   enums.NotificationTypeBusinessRejected,
			Title:  "Business rejected",
			Body:   body,
			Data: map[string]string{
				"type":        string(enums.NotificationTypeBusinessRejected),
				"business_id": payload.BusinessID.String(),
			},
		}, nil
	default:
		return nil, nil
	}
}
