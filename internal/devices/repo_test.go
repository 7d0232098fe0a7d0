package devices

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
)

func setupDeviceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	err = gormDB.Exec(`
		CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			token TEXT NOT NULL,
			platform TEXT,
			last_seen_at DATETIME,
			created_at DATETIME,
			UNIQUE (user_id, token)
		)
	`).Error
	require.NoError(t, err)

	t.Cleanup(func() {
		gormDB.Exec("DELETE FROM devices")
	})

	return gormDB
}

func newDevice(userID uuid.UUID, token string) *models.Device {
	return &models.Device{
		ID:         uuid.New(),
		UserID:     userID,
		Token:      token,
		LastSeenAt: time.Now().UTC(),
	}
}

func TestRepositoryUpsertRefreshesExistingToken(t *testing.T) {
	gormDB := setupDeviceTestDB(t)
	repo := NewRepository(gormDB)
	ctx := context.Background()
	userID := uuid.New()

	first := newDevice(userID, "tok-1")
	require.NoError(t, repo.Upsert(ctx, first))

	second := newDevice(userID, "tok-1")
	platform := "android"
	second.Platform = &platform
	require.NoError(t, repo.Upsert(ctx, second))

	tokens, err := repo.ListTokensByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	var stored models.Device
	require.NoError(t, gormDB.Where("user_id = ? AND token = ?", userID, "tok-1").First(&stored).Error)
	require.NotNil(t, stored.Platform)
	assert.Equal(t, "android", *stored.Platform)
}

func TestRepositoryDeleteByToken(t *testing.T) {
	gormDB := setupDeviceTestDB(t)
	repo := NewRepository(gormDB)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, newDevice(userID, "tok-1")))

	deleted, err := repo.DeleteByToken(ctx, userID, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = repo.DeleteByToken(ctx, userID, "tok-1")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestRepositoryDeleteTokensPrunesAcrossUsers(t *testing.T) {
	gormDB := setupDeviceTestDB(t)
	repo := NewRepository(gormDB)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	require.NoError(t, repo.Upsert(ctx, newDevice(alice, "stale")))
	require.NoError(t, repo.Upsert(ctx, newDevice(bob, "stale")))
	require.NoError(t, repo.Upsert(ctx, newDevice(bob, "fresh")))

	pruned, err := repo.DeleteTokens(ctx, []string{"stale"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	tokens, err := repo.ListTokensByUser(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, tokens)
}
