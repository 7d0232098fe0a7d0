package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/enums"
)

// EntryDTO is the transport shape for a single queue entry.
//
// DisplayRank is the customer-visible place in line, derived from the
// remaining waiting entries at read time. The stored position is an
// arrival-order key and goes stale once earlier entries leave, so it is
// never shown directly. Rank 0 means the entry is being served.
type EntryDTO struct {
	ID                   uuid.UUID              `json:"id"`
	BusinessID           uuid.UUID              `json:"business_id"`
	UserID               uuid.UUID              `json:"user_id"`
	Status               enums.QueueEntryStatus `json:"status"`
	Position             int                    `json:"position"`
	DisplayRank          int                    `json:"display_rank"`
	EstimatedWaitMinutes int                    `json:"estimated_wait_minutes"`
	JoinedAt             time.Time              `json:"joined_at"`
	StartedAt            *time.Time             `json:"started_at,omitempty"`
	FinishedAt           *time.Time             `json:"finished_at,omitempty"`
	CancelledAt          *time.Time             `json:"cancelled_at,omitempty"`
	CancelledBy          *enums.CancelActor     `json:"cancelled_by,omitempty"`
}

// ActiveQueueDTO is one row of the customer's "my queues" view.
type ActiveQueueDTO struct {
	Entry        EntryDTO  `json:"entry"`
	BusinessID   uuid.UUID `json:"business_id"`
	BusinessName string    `json:"business_name"`
}

// StateDTO is the owner's live view of their queue.
type StateDTO struct {
	BusinessID         uuid.UUID  `json:"business_id"`
	Status             string     `json:"status"`
	CurrentQueueLength int        `json:"current_queue_length"`
	MaxQueueSize       int        `json:"max_queue_size"`
	Current            *EntryDTO  `json:"current,omitempty"`
	Waiting            []EntryDTO `json:"waiting"`
}

// EntryFromModel maps a queue entry without rank or wait derivation.
func EntryFromModel(e *models.QueueEntry) *EntryDTO {
	if e == nil {
		return nil
	}
	return &EntryDTO{
		ID:                   e.ID,
		BusinessID:           e.BusinessID,
		UserID:               e.UserID,
		Status:               e.Status,
		Position:             e.Position,
		EstimatedWaitMinutes: e.EstimatedWaitMinutes,
		JoinedAt:             e.JoinedAt,
		StartedAt:            e.StartedAt,
		FinishedAt:           e.FinishedAt,
		CancelledAt:          e.CancelledAt,
		CancelledBy:          e.CancelledBy,
	}
}

// entryWithRank maps an entry and folds in the live rank and the wait
// estimate for that rank.
func entryWithRank(e *models.QueueEntry, rank, minutesPerCustomer int) *EntryDTO {
	dto := EntryFromModel(e)
	if dto == nil {
		return nil
	}
	dto.DisplayRank = rank
	if e.Status == enums.QueueEntryStatusWaiting {
		dto.EstimatedWaitMinutes = rank * minutesPerCustomer
	}
	return dto
}
