package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/qline-app/qline-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to users.
// Data carries the correlated ids (business, queue entry, position) so
// the client can deep-link without another round trip.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID              `gorm:"type:uuid;not null;index"`
	Type      enums.NotificationType `gorm:"type:notification_type_enum;not null"`
	Title     string                 `gorm:"type:text;not null"`
	Message   string                 `gorm:"type:text;not null"`
	Data      json.RawMessage        `gorm:"column:data;type:jsonb"`
	ReadAt    *time.Time             `gorm:"type:timestamptz"`
	CreatedAt time.Time              `gorm:"type:timestamptz;default:now()"`
}
