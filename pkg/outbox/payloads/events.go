package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/qline-app/qline-backend/pkg/enums"
)

// QueueEntryJoinedEvent signals a customer took a spot in a queue.
type QueueEntryJoinedEvent struct {
	QueueEntryID         uuid.UUID `json:"queue_entry_id"`
	BusinessID           uuid.UUID `json:"business_id"`
	BusinessName         string    `json:"business_name"`
	UserID               uuid.UUID `json:"user_id"`
	Position             int       `json:"position"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
	JoinedAt             time.Time `json:"joined_at"`
}

// QueueEntryCalledEvent is emitted when staff promotes an entry to current.
type QueueEntryCalledEvent struct {
	QueueEntryID uuid.UUID `json:"queue_entry_id"`
	BusinessID   uuid.UUID `json:"business_id"`
	BusinessName string    `json:"business_name"`
	UserID       uuid.UUID `json:"user_id"`
	Position     int       `json:"position"`
	StartedAt    time.Time `json:"started_at"`
}

// QueueEntryCompletedEvent is emitted when a served entry finishes.
type QueueEntryCompletedEvent struct {
	QueueEntryID uuid.UUID `json:"queue_entry_id"`
	BusinessID   uuid.UUID `json:"business_id"`
	BusinessName string    `json:"business_name"`
	UserID       uuid.UUID `json:"user_id"`
	FinishedAt   time.Time `json:"finished_at"`
}

// QueueEntryCancelledEvent covers both customer leave and staff removal.
type QueueEntryCancelledEvent struct {
	QueueEntryID uuid.UUID         `json:"queue_entry_id"`
	BusinessID   uuid.UUID         `json:"business_id"`
	BusinessName string            `json:"business_name"`
	UserID       uuid.UUID         `json:"user_id"`
	CancelledBy  enums.CancelActor `json:"cancelled_by"`
	CancelledAt  time.Time         `json:"cancelled_at"`
}

// BusinessApprovedEvent tells the owner their listing went live.
type BusinessApprovedEvent struct {
	BusinessID   uuid.UUID `json:"business_id"`
	BusinessName string    `json:"business_name"`
	OwnerID      uuid.UUID `json:"owner_id"`
	ApprovedAt   time.Time `json:"approved_at"`
}

// BusinessRejectedEvent carries the admin's rejection and reason.
type BusinessRejectedEvent struct {
	BusinessID   uuid.UUID `json:"business_id"`
	BusinessName string    `json:"business_name"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Reason       string    `json:"reason,omitempty"`
	RejectedAt   time.Time `json:"rejected_at"`
}
