package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/qline-app/qline-backend/pkg/enums"
)

// QueueEntry is one customer's membership record in a business's queue.
//
// Position is a 1-based arrival-order key assigned at join time and never
// renumbered when earlier entries leave; customer-visible rank is derived
// from the remaining waiting entries instead. Two partial unique indexes
// back the ledger invariants: one active entry per (business, user) and
// at most one current entry per business.
type QueueEntry struct {
	ID                   uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BusinessID           uuid.UUID              `gorm:"column:business_id;type:uuid;not null"`
	UserID               uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	Status               enums.QueueEntryStatus `gorm:"column:status;type:queue_entry_status_enum;not null;default:'waiting'"`
	Position             int                    `gorm:"column:position;not null"`
	EstimatedWaitMinutes int                    `gorm:"column:estimated_wait_minutes;not null"`
	JoinedAt             time.Time              `gorm:"column:joined_at;autoCreateTime"`
	StartedAt            *time.Time             `gorm:"column:started_at"`
	FinishedAt           *time.Time             `gorm:"column:finished_at"`
	CancelledAt          *time.Time             `gorm:"column:cancelled_at"`
	CancelledBy          *enums.CancelActor     `gorm:"column:cancelled_by;type:cancel_actor_enum"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
