package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is a registered push target for a user's mobile client.
// Tokens are FCM registration tokens; invalid tokens are pruned when a
// send reports them unregistered.
type Device struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_devices_user_token,unique"`
	Token      string    `gorm:"column:token;type:text;not null;index:idx_devices_user_token,unique"`
	Platform   *string   `gorm:"column:platform"`
	LastSeenAt time.Time `gorm:"column:last_seen_at;autoUpdateTime"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
