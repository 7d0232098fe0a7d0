package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateQueueEntry   OutboxAggregateType = "queue_entry"
	AggregateBusiness     OutboxAggregateType = "business"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateQueueEntry,
	AggregateBusiness,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventQueueEntryJoined    OutboxEventType = "queue.entry.joined"
	EventQueueEntryCalled    OutboxEventType = "queue.entry.called"
	EventQueueEntryCompleted OutboxEventType = "queue.entry.completed"
	EventQueueEntryCancelled OutboxEventType = "queue.entry.cancelled"
	EventBusinessApproved    OutboxEventType = "business.approved"
	EventBusinessRejected    OutboxEventType = "business.rejected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventQueueEntryJoined,
	EventQueueEntryCalled,
	EventQueueEntryCompleted,
	EventQueueEntryCancelled,
	EventBusinessApproved,
	EventBusinessRejected,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
