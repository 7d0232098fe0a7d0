package models

import (
	"time"

	"github.com/google/uuid"
)

// ActiveQueueRef is the denormalized per-user pointer to a live queue entry.
//
// It exists so the "my queues" view is a single indexed read instead of a
// scan across every business's entries. The ledger maintains it in the
// same transaction as the entry itself; the reconcile job deletes refs
// whose entry is no longer active.
type ActiveQueueRef struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	BusinessID   uuid.UUID `gorm:"column:business_id;type:uuid;not null"`
	QueueEntryID uuid.UUID `gorm:"column:queue_entry_id;type:uuid;not null;uniqueIndex"`
	Position     int       `gorm:"column:position;not null"`
	JoinedAt     time.Time `gorm:"column:joined_at;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
