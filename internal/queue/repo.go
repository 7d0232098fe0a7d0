package queue

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/enums"
	"github.com/qline-app/qline-backend/pkg/pagination"
)

// Repository handles queue entry persistence.
//
// Mutations run inside the caller's transaction, after the business row
// has been locked, so position assignment and the denormalized queue
// length stay serialized per business.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to queue entry operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx persists a new entry inside the transaction.
func (r *Repository) CreateTx(tx *gorm.DB, entry *models.QueueEntry) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Create(entry).Error
}

// FindByID loads an entry by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByIDTx reloads an entry inside the transaction.
func (r *Repository) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.QueueEntry, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var entry models.QueueEntry
	if err := tx.First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindActiveByUserTx returns the user's live entry for the business, if any.
func (r *Repository) FindActiveByUserTx(tx *gorm.DB, businessID, userID uuid.UUID) (*models.QueueEntry, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var entry models.QueueEntry
	err := tx.
		Where("business_id = ? AND user_id = ? AND status IN ?", businessID, userID, enums.ActiveQueueEntryStatuses).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MaxPositionTx returns the highest position ever assigned for the business,
// or zero when the queue has no entries. Positions grow from this value so
// they stay monotonic even after earlier entries leave.
func (r *Repository) MaxPositionTx(tx *gorm.DB, businessID uuid.UUID) (int, error) {
	if tx == nil {
		return 0, gorm.ErrInvalidTransaction
	}
	var maxPos int
	err := tx.Model(&models.QueueEntry{}).
		Where("business_id = ?", businessID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&maxPos).Error
	if err != nil {
		return 0, err
	}
	return maxPos, nil
}

// FindCurrentTx returns the entry being served, if any.
func (r *Repository) FindCurrentTx(tx *gorm.DB, businessID uuid.UUID) (*models.QueueEntry, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var entry models.QueueEntry
	err := tx.
		Where("business_id = ? AND status = ?", businessID, enums.QueueEntryStatusCurrent).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindCurrent returns the entry being served without transaction scope,
// for read-only views.
func (r *Repository) FindCurrent(ctx context.Context, businessID uuid.UUID) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND status = ?", businessID, enums.QueueEntryStatusCurrent).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindNextWaitingTx returns the waiting entry next in line. Position ties
// are not expected, but joined_at breaks them if they occur.
func (r *Repository) FindNextWaitingTx(tx *gorm.DB, businessID uuid.UUID) (*models.QueueEntry, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var entry models.QueueEntry
	err := tx.
		Where("business_id = ? AND status = ?", businessID, enums.QueueEntryStatusWaiting).
		Order("position ASC, joined_at ASC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateTx persists the entry inside the transaction.
func (r *Repository) UpdateTx(tx *gorm.DB, entry *models.QueueEntry) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Save(entry).Error
}

// CountActiveTx counts waiting and current entries for the business.
func (r *Repository) CountActiveTx(tx *gorm.DB, businessID uuid.UUID) (int, error) {
	if tx == nil {
		return 0, gorm.ErrInvalidTransaction
	}
	var count int64
	err := tx.Model(&models.QueueEntry{}).
		Where("business_id = ? AND status IN ?", businessID, enums.ActiveQueueEntryStatuses).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// WaitingRank derives the customer-visible place in line: one plus the
// number of waiting entries ahead of the given entry in (position,
// joined_at) order. Entries being served rank zero; terminal entries
// have no rank.
func (r *Repository) WaitingRank(ctx context.Context, entry *models.QueueEntry) (int, error) {
	if entry == nil {
		return 0, gorm.ErrRecordNotFound
	}
	if entry.Status != enums.QueueEntryStatusWaiting {
		return 0, nil
	}
	var ahead int64
	err := r.db.WithContext(ctx).Model(&models.QueueEntry{}).
		Where("business_id = ? AND status = ?", entry.BusinessID, enums.QueueEntryStatusWaiting).
		Where("(position < ?) OR (position = ? AND joined_at < ?)", entry.Position, entry.Position, entry.JoinedAt).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

// ListWaiting returns the waiting entries for a business in serve order.
func (r *Repository) ListWaiting(ctx context.Context, businessID uuid.UUID) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND status = ?", businessID, enums.QueueEntryStatusWaiting).
		Order("position ASC, joined_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListHistoryByUser returns the user's finished and cancelled entries,
// newest first, with cursor pagination.
func (r *Repository) ListHistoryByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.QueueEntry, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).Model(&models.QueueEntry{}).
		Where("user_id = ? AND status IN ?", userID, []enums.QueueEntryStatus{
			enums.QueueEntryStatusCompleted,
			enums.QueueEntryStatusCancelled,
		})
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var entries []models.QueueEntry
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	if len(entries) > normalized {
		next := entries[normalized]
		entries = entries[:normalized]
		return entries, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return entries, nil, nil
}

// ActiveCounts aggregates live entry counts per business. The queue length
// resync job compares these against the denormalized counters.
func (r *Repository) ActiveCounts(ctx context.Context) (map[uuid.UUID]int, error) {
	type row struct {
		BusinessID uuid.UUID
		Total      int
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.QueueEntry{}).
		Select("business_id, COUNT(*) AS total").
		Where("status IN ?", enums.ActiveQueueEntryStatuses).
		Group("business_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int, len(rows))
	for _, r := range rows {
		counts[r.BusinessID] = r.Total
	}
	return counts, nil
}
