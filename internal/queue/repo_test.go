package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/enums"
	"github.com/qline-app/qline-backend/pkg/pagination"
)

func setupQueueTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	queueEntries := `
CREATE TABLE IF NOT EXISTS queue_entries (
  id TEXT PRIMARY KEY,
  business_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'waiting',
  position INTEGER NOT NULL,
  estimated_wait_minutes INTEGER NOT NULL DEFAULT 0,
  joined_at DATETIME,
  started_at DATETIME,
  finished_at DATETIME,
  cancelled_at DATETIME,
  cancelled_by TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	activeQueueRefs := `
CREATE TABLE IF NOT EXISTS active_queue_refs (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  business_id TEXT NOT NULL,
  queue_entry_id TEXT NOT NULL UNIQUE,
  position INTEGER NOT NULL,
  joined_at DATETIME NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(queueEntries).Error)
	require.NoError(t, db.Exec(activeQueueRefs).Error)
	require.NoError(t, db.Exec("DELETE FROM queue_entries").Error)
	require.NoError(t, db.Exec("DELETE FROM active_queue_refs").Error)
	return db
}

func createEntry(t *testing.T, db *gorm.DB, businessID, userID uuid.UUID, status enums.QueueEntryStatus, position int, joined time.Time) *models.QueueEntry {
	t.Helper()

	entry := &models.QueueEntry{
		BusinessID: businessID,
		UserID:     userID,
		Status:     status,
		Position:   position,
		JoinedAt:   joined,
		CreatedAt:  joined,
		UpdatedAt:  joined,
	}
	entry.ID = uuid.New()
	require.NoError(t, db.Create(entry).Error)
	return entry
}

func TestRepositoryMaxPositionAndNextWaiting(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	businessID := uuid.New()
	base := time.Now().UTC().Truncate(time.Second)

	maxPos, err := repo.MaxPositionTx(db, businessID)
	require.NoError(t, err)
	assert.Equal(t, 0, maxPos)

	createEntry(t, db, businessID, uuid.New(), enums.QueueEntryStatusCancelled, 1, base)
	second := createEntry(t, db, businessID, uuid.New(), enums.QueueEntryStatusWaiting, 2, base.Add(time.Minute))
	createEntry(t, db, businessID, uuid.New(), enums.QueueEntryStatusWaiting, 3, base.Add(2*time.Minute))

	maxPos, err = repo.MaxPositionTx(db, businessID)
	require.NoError(t, err)
	assert.Equal(t, 3, maxPos)

	// The cancelled position 1 is skipped; the earliest waiting entry wins.
	next, err := repo.FindNextWaitingTx(db, businessID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, next.ID)
}

func TestRepositoryWaitingRankSkipsDepartures(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	businessID := uuid.New()
	base := time.Now().UTC().Truncate(time.Second)

	createEntry(t, db, businessID, uuid.New(), enums.QueueEntryStatusWaiting, 1, base)
	createEntry(t, db, businessID, uuid.New(), enums.QueueEntryStatusCancelled, 2, base.Add(time.Minute))
	third := createEntry(t, db, businessID, uuid.New(), enums.QueueEntryStatusWaiting, 3, base.Add(2*time.Minute))

	rank, err := repo.WaitingRank(context.Background(), third)
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	current := createEntry(t, db, businessID, uuid.New(), enums.QueueEntryStatusCurrent, 4, base.Add(3*time.Minute))
	rank, err = repo.WaitingRank(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, 0, rank)
}

func TestRepositoryCountActive(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	businessID := uuid.New()
	base := time.Now().UTC().Truncate(time.Second)

	createEntry(t, db, businessID, uuid.New(), enums.QueueEntryStatusWaiting, 1, base)
	createEntry(t, db, businessID, uuid.New(), enums.QueueEntryStatusCurrent, 2, base.Add(time.Minute))
	createEntry(t, db, businessID, uuid.New(), enums.QueueEntryStatusCompleted, 3, base.Add(2*time.Minute))
	createEntry(t, db, uuid.New(), uuid.New(), enums.QueueEntryStatusWaiting, 1, base)

	count, err := repo.CountActiveTx(db, businessID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	counts, err := repo.ActiveCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts[businessID])
}

func TestRepositoryHistoryPagination(t *testing.T) {
	db := setupQueueTestDB(t)
	repo := NewRepository(db)
	userID := uuid.New()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		createEntry(t, db, uuid.New(), userID, enums.QueueEntryStatusCompleted, 1, base.Add(time.Duration(i)*time.Minute))
	}
	createEntry(t, db, uuid.New(), userID, enums.QueueEntryStatusWaiting, 1, base.Add(time.Hour))

	page, next, err := repo.ListHistoryByUser(context.Background(), userID, 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	rest, last, err := repo.ListHistoryByUser(context.Background(), userID, 2, &pagination.Cursor{
		CreatedAt: next.CreatedAt,
		ID:        next.ID,
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, last)
	assert.True(t, page[1].CreatedAt.After(rest[0].CreatedAt))
}

func TestRefsRepositoryDeleteStale(t *testing.T) {
	db := setupQueueTestDB(t)
	refs := NewRefsRepository(db)
	userID := uuid.New()
	businessID := uuid.New()
	base := time.Now().UTC().Truncate(time.Second)

	live := createEntry(t, db, businessID, userID, enums.QueueEntryStatusWaiting, 1, base)
	gone := createEntry(t, db, businessID, uuid.New(), enums.QueueEntryStatusCompleted, 2, base)

	for _, entry := range []*models.QueueEntry{live, gone} {
		ref := &models.ActiveQueueRef{
			UserID:       entry.UserID,
			BusinessID:   entry.BusinessID,
			QueueEntryID: entry.ID,
			Position:     entry.Position,
			JoinedAt:     entry.JoinedAt,
		}
		ref.ID = uuid.New()
		require.NoError(t, refs.InsertTx(db, ref))
	}

	removed, err := refs.DeleteStale(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	mine, err := refs.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, live.ID, mine[0].QueueEntryID)
}
