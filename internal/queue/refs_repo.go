package queue

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qline-app/qline-backend/pkg/db/models"
)

// RefsRepository handles the denormalized per-user active queue pointers.
type RefsRepository struct {
	db *gorm.DB
}

// NewRefsRepository binds a GORM DB to active queue ref operations.
func NewRefsRepository(db *gorm.DB) *RefsRepository {
	return &RefsRepository{db: db}
}

// InsertTx records the pointer in the same transaction as the entry.
func (r *RefsRepository) InsertTx(tx *gorm.DB, ref *models.ActiveQueueRef) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Create(ref).Error
}

// DeleteByEntryTx removes the pointer when its entry goes terminal.
func (r *RefsRepository) DeleteByEntryTx(tx *gorm.DB, entryID uuid.UUID) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Where("queue_entry_id = ?", entryID).Delete(&models.ActiveQueueRef{}).Error
}

// ListByUser returns the user's pointers in join order.
func (r *RefsRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ActiveQueueRef, error) {
	var refs []models.ActiveQueueRef
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("joined_at ASC").
		Find(&refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// Delete removes a single pointer by id.
func (r *RefsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ActiveQueueRef{}).Error
}

// DeleteStale removes every pointer whose entry is missing or no longer
// active. The reconcile job calls this across all users; per-user repair
// narrows the same predicate. Returns the number of rows removed.
func (r *RefsRepository) DeleteStale(ctx context.Context, userID *uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).
		Where(`queue_entry_id NOT IN (
			SELECT id FROM queue_entries WHERE status IN ('waiting', 'current')
		)`)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	result := query.Delete(&models.ActiveQueueRef{})
	return result.RowsAffected, result.Error
}
