package devices

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/qline-app/qline-backend/pkg/db/models"
	pkgerrors "github.com/qline-app/qline-backend/pkg/errors"
)

type stubDeviceRepository struct {
	devices map[string]*models.Device
}

func newStubDeviceRepository() *stubDeviceRepository {
	return &stubDeviceRepository{devices: make(map[string]*models.Device)}
}

func (s *stubDeviceRepository) key(userID uuid.UUID, token string) string {
	return userID.String() + "/" + token
}

func (s *stubDeviceRepository) Upsert(_ context.Context, device *models.Device) error {
	s.devices[s.key(device.UserID, device.Token)] = device
	return nil
}

func (s *stubDeviceRepository) DeleteByToken(_ context.Context, userID uuid.UUID, token string) (int64, error) {
	k := s.key(userID, token)
	if _, ok := s.devices[k]; !ok {
		return 0, nil
	}
	delete(s.devices, k)
	return 1, nil
}

func (s *stubDeviceRepository) ListTokensByUser(_ context.Context, userID uuid.UUID) ([]string, error) {
	var tokens []string
	for _, d := range s.devices {
		if d.UserID == userID {
			tokens = append(tokens, d.Token)
		}
	}
	return tokens, nil
}

func TestRegisterStoresToken(t *testing.T) {
	repo := newStubDeviceRepository()
	svc := NewService(repo)
	userID := uuid.New()

	err := svc.Register(context.Background(), userID, RegisterInput{Token: "  tok-1  ", Platform: "ios"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	device, ok := repo.devices[userID.String()+"/tok-1"]
	if !ok {
		t.Fatal("expected device stored under trimmed token")
	}
	if device.Platform == nil || *device.Platform != "ios" {
		t.Errorf("expected platform ios, got %v", device.Platform)
	}
	if device.LastSeenAt.IsZero() {
		t.Error("expected last_seen_at to be set")
	}
}

func TestRegisterRequiresToken(t *testing.T) {
	svc := NewService(newStubDeviceRepository())

	err := svc.Register(context.Background(), uuid.New(), RegisterInput{Token: "   "})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUnregisterUnknownTokenIsNoop(t *testing.T) {
	repo := newStubDeviceRepository()
	svc := NewService(repo)

	if err := svc.Unregister(context.Background(), uuid.New(), "missing"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
}

func TestTokensListsOnlyOwnDevices(t *testing.T) {
	repo := newStubDeviceRepository()
	svc := NewService(repo)
	userID := uuid.New()
	otherID := uuid.New()

	if err := svc.Register(context.Background(), userID, RegisterInput{Token: "tok-1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Register(context.Background(), otherID, RegisterInput{Token: "tok-2"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	tokens, err := svc.Tokens(context.Background(), userID)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "tok-1" {
		t.Errorf("expected [tok-1], got %v", tokens)
	}
}
