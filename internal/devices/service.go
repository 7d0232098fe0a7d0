package devices

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qline-app/qline-backend/pkg/db/models"
	pkgerrors "github.com/qline-app/qline-backend/pkg/errors"
)

// deviceRepository is the persistence surface the service needs.
type deviceRepository interface {
	Upsert(ctx context.Context, device *models.Device) error
	DeleteByToken(ctx context.Context, userID uuid.UUID, token string) (int64, error)
	ListTokensByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// Service manages a user's push token registrations.
type Service struct {
	repo deviceRepository
}

// NewService wires the device service.
func NewService(repo deviceRepository) *Service {
	return &Service{repo: repo}
}

// RegisterInput carries a token registration request.
type RegisterInput struct {
	Token    string `json:"token"`
	Platform string `json:"platform,omitempty"`
}

// Register stores or refreshes a push token for the user. Re-registering an
// existing token bumps its last_seen_at so stale-token cleanup can skip it.
func (s *Service) Register(ctx context.Context, userID uuid.UUID, input RegisterInput) error {
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	device := &models.Device{
		UserID:     userID,
		Token:      token,
		LastSeenAt: time.Now().UTC(),
	}
	if platform := strings.TrimSpace(input.Platform); platform != "" {
		device.Platform = &platform
	}

	if err := s.repo.Upsert(ctx, device); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to register device")
	}
	return nil
}

// Unregister removes the user's registration for a token, typically on
// logout. Unknown tokens are not an error.
func (s *Service) Unregister(ctx context.Context, userID uuid.UUID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	if _, err := s.repo.DeleteByToken(ctx, userID, token); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to remove device")
	}
	return nil
}

// Tokens lists the user's registered push tokens.
func (s *Service) Tokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	tokens, err := s.repo.ListTokensByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list devices")
	}
	return tokens, nil
}
