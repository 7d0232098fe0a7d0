package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/qline-app/qline-backend/pkg/enums"
	"github.com/qline-app/qline-backend/pkg/types"
)

// Business represents a queue-operating tenant.
//
// CurrentQueueLength is denormalized: it must equal the count of queue
// entries for this business in an active status. Every mutation that
// changes that count updates the column in the same transaction.
type Business struct {
	ID                       uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID                  uuid.UUID              `gorm:"column:owner_id;type:uuid;not null"`
	Name                     string                 `gorm:"column:name;not null"`
	Description              *string                `gorm:"column:description"`
	Category                 enums.BusinessCategory `gorm:"column:category;type:business_category_enum;not null"`
	Address                  types.Address          `gorm:"column:address;type:address_t;not null"`
	EstimatedTimePerCustomer int                    `gorm:"column:estimated_time_per_customer;not null"`
	MaxQueueSize             int                    `gorm:"column:max_queue_size;not null"`
	Status                   enums.BusinessStatus   `gorm:"column:status;type:business_status_enum;not null;default:'closed'"`
	ApprovalStatus           enums.ApprovalStatus   `gorm:"column:approval_status;type:approval_status_enum;not null;default:'pending'"`
	RejectionReason          *string                `gorm:"column:rejection_reason"`
	CurrentQueueLength       int                    `gorm:"column:current_queue_length;not null;default:0"`
	ApprovedAt               *time.Time             `gorm:"column:approved_at"`
	RejectedAt               *time.Time             `gorm:"column:rejected_at"`
	CreatedAt                time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
