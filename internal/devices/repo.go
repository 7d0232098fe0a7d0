package devices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qline-app/qline-backend/pkg/db/models"
)

// Repository handles push device persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to device operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert registers a token for the user, refreshing last_seen_at when the
// pair already exists.
func (r *Repository) Upsert(ctx context.Context, device *models.Device) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "token"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"platform":     device.Platform,
				"last_seen_at": time.Now().UTC(),
			}),
		}).
		Create(device).Error
}

// DeleteByToken removes the user's registration for a token.
func (r *Repository) DeleteByToken(ctx context.Context, userID uuid.UUID, token string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.Device{})
	return result.RowsAffected, result.Error
}

// ListTokensByUser returns every registered token for the user.
func (r *Repository) ListTokensByUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&models.Device{}).
		Where("user_id = ?", userID).
		Order("last_seen_at DESC").
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteTokens prunes registrations the push backend reported as invalid.
func (r *Repository) DeleteTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("token IN ?", tokens).
		Delete(&models.Device{})
	return result.RowsAffected, result.Error
}
