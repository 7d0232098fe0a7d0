package businesses

import (
	"time"

	"github.com/google/uuid"

	"github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/enums"
	"github.com/qline-app/qline-backend/pkg/types"
)

// BusinessDTO is the owner/admin-facing transport shape.
type BusinessDTO struct {
	ID                       uuid.UUID              `json:"id"`
	OwnerID                  uuid.UUID              `json:"owner_id"`
	Name                     string                 `json:"name"`
	Description              *string                `json:"description,omitempty"`
	Category                 enums.BusinessCategory `json:"category"`
	Address                  types.Address          `json:"address"`
	EstimatedTimePerCustomer int                    `json:"estimated_time_per_customer"`
	MaxQueueSize             int                    `json:"max_queue_size"`
	Status                   enums.BusinessStatus   `json:"status"`
	ApprovalStatus           enums.ApprovalStatus   `json:"approval_status"`
	RejectionReason          *string                `json:"rejection_reason,omitempty"`
	CurrentQueueLength       int                    `json:"current_queue_length"`
	ApprovedAt               *time.Time             `json:"approved_at,omitempty"`
	CreatedAt                time.Time              `json:"created_at"`
	UpdatedAt                time.Time              `json:"updated_at"`
}

// ListingDTO is the customer-facing browse shape: approval bookkeeping is
// omitted and the wait estimate is precomputed.
type ListingDTO struct {
	ID                   uuid.UUID              `json:"id"`
	Name                 string                 `json:"name"`
	Description          *string                `json:"description,omitempty"`
	Category             enums.BusinessCategory `json:"category"`
	Address              types.Address          `json:"address"`
	Status               enums.BusinessStatus   `json:"status"`
	CurrentQueueLength   int                    `json:"current_queue_length"`
	MaxQueueSize         int                    `json:"max_queue_size"`
	EstimatedWaitMinutes int                    `json:"estimated_wait_minutes"`
}

// CreateBusinessDTO holds the fields the repo needs to persist a new business.
type CreateBusinessDTO struct {
	OwnerID                  uuid.UUID
	Name                     string
	Description              *string
	Category                 enums.BusinessCategory
	Address                  types.Address
	EstimatedTimePerCustomer int
	MaxQueueSize             int
}

func (c CreateBusinessDTO) ToModel() *models.Business {
	return &models.Business{
		OwnerID:                  c.OwnerID,
		Name:                     c.Name,
		Description:              c.Description,
		Category:                 c.Category,
		Address:                  c.Address,
		EstimatedTimePerCustomer: c.EstimatedTimePerCustomer,
		MaxQueueSize:             c.MaxQueueSize,
		Status:                   enums.BusinessStatusClosed,
		ApprovalStatus:           enums.ApprovalStatusPending,
	}
}

func FromModel(b *models.Business) *BusinessDTO {
	if b == nil {
		return nil
	}
	return &BusinessDTO{
		ID:                       b.ID,
		OwnerID:                  b.OwnerID,
		Name:                     b.Name,
		Description:              b.Description,
		Category:                 b.Category,
		Address:                  b.Address,
		EstimatedTimePerCustomer: b.EstimatedTimePerCustomer,
		MaxQueueSize:             b.MaxQueueSize,
		Status:                   b.Status,
		ApprovalStatus:           b.ApprovalStatus,
		RejectionReason:          b.RejectionReason,
		CurrentQueueLength:       b.CurrentQueueLength,
		ApprovedAt:               b.ApprovedAt,
		CreatedAt:                b.CreatedAt,
		UpdatedAt:                b.UpdatedAt,
	}
}

// ListingFromModel derives the customer browse row, including the live
// wait estimate for the back of the queue.
func ListingFromModel(b *models.Business) *ListingDTO {
	if b == nil {
		return nil
	}
	return &ListingDTO{
		ID:                   b.ID,
		Name:                 b.Name,
		Description:          b.Description,
		Category:             b.Category,
		Address:              b.Address,
		Status:               b.Status,
		CurrentQueueLength:   b.CurrentQueueLength,
		MaxQueueSize:         b.MaxQueueSize,
		EstimatedWaitMinutes: b.CurrentQueueLength * b.EstimatedTimePerCustomer,
	}
}
