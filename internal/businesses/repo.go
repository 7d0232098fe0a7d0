package businesses

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/enums"
	"github.com/qline-app/qline-backend/pkg/pagination"
)

// Repository handles business persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to business operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// BrowseParams captures the customer-facing listing filters.
type BrowseParams struct {
	Category *enums.BusinessCategory
	OpenOnly bool
	Search   string
	Limit    int
	Cursor   *pagination.Cursor
}

// Create persists a new business row.
func (r *Repository) Create(ctx context.Context, dto CreateBusinessDTO) (*models.Business, error) {
	business := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(business).Error; err != nil {
		return nil, err
	}
	return business, nil
}

// FindByID loads a business by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	var business models.Business
	if err := r.db.WithContext(ctx).First(&business, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

// FindByOwner returns all businesses owned by the provided user.
func (r *Repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Business, error) {
	var businesses []models.Business
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&businesses).Error; err != nil {
		return nil, err
	}
	return businesses, nil
}

// Update saves the provided business.
func (r *Repository) Update(ctx context.Context, business *models.Business) error {
	if business == nil {
		return fmt.Errorf("business is required")
	}
	return r.db.WithContext(ctx).Save(business).Error
}

// FindByIDWithTx loads a business using the provided transaction.
func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Business, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var business models.Business
	if err := tx.First(&business, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

// FindByIDForUpdate locks the business row for the duration of the
// transaction. Every ledger mutation goes through this lock so the
// denormalized queue length and the position counter stay serialized.
func (r *Repository) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.Business, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var business models.Business
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&business, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

// UpdateWithTx persists the business using the provided transaction.
func (r *Repository) UpdateWithTx(tx *gorm.DB, business *models.Business) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if business == nil {
		return fmt.Errorf("business is required")
	}
	return tx.Save(business).Error
}

// SetQueueLengthTx overwrites the denormalized counter inside the transaction.
func (r *Repository) SetQueueLengthTx(tx *gorm.DB, id uuid.UUID, length int) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if length < 0 {
		length = 0
	}
	return tx.Model(&models.Business{}).
		Where("id = ?", id).
		UpdateColumn("current_queue_length", length).Error
}

// QueueLengths returns the denormalized queue counter for every business,
// keyed by business ID. Used by the resync job to detect drift.
func (r *Repository) QueueLengths(ctx context.Context) (map[uuid.UUID]int, error) {
	type row struct {
		ID                 uuid.UUID
		CurrentQueueLength int
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Business{}).
		Select("id", "current_queue_length").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	lengths := make(map[uuid.UUID]int, len(rows))
	for _, b := range rows {
		lengths[b.ID] = b.CurrentQueueLength
	}
	return lengths, nil
}

// Browse lists approved businesses for customers with cursor pagination.
func (r *Repository) Browse(ctx context.Context, params BrowseParams) ([]models.Business, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Business{}).
		Where("approval_status = ?", enums.ApprovalStatusApproved)
	if params.Category != nil {
		query = query.Where("category = ?", *params.Category)
	}
	if params.OpenOnly {
		query = query.Where("status = ?", enums.BusinessStatusOpen)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var businesses []models.Business
	if err := query.Order("created_at ASC, id ASC").Limit(limit).Find(&businesses).Error; err != nil {
		return nil, nil, err
	}

	if len(businesses) > normalized {
		next := businesses[normalized]
		businesses = businesses[:normalized]
		return businesses, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return businesses, nil, nil
}

// ListByApproval returns businesses in the given approval state, oldest first,
// for the admin review queue.
func (r *Repository) ListByApproval(ctx context.Context, status enums.ApprovalStatus, limit int, cursor *pagination.Cursor) ([]models.Business, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).Model(&models.Business{}).
		Where("approval_status = ?", status)
	if cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var businesses []models.Business
	if err := query.Order("created_at ASC, id ASC").Limit(buffered).Find(&businesses).Error; err != nil {
		return nil, nil, err
	}

	if len(businesses) > normalized {
		next := businesses[normalized]
		businesses = businesses[:normalized]
		return businesses, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return businesses, nil, nil
}
