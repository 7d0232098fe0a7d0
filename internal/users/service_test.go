package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/enums"
	pkgerrors "github.com/qline-app/qline-backend/pkg/errors"
)

type stubProfileRepository struct {
	users map[uuid.UUID]*models.User
}

func (s *stubProfileRepository) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubProfileRepository) UpdateProfile(_ context.Context, id uuid.UUID, dto UpdateUserDTO) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if dto.FirstName != nil {
		user.FirstName = *dto.FirstName
	}
	if dto.LastName != nil {
		user.LastName = *dto.LastName
	}
	if dto.Phone != nil {
		user.Phone = dto.Phone
	}
	return user, nil
}

func newProfileService(t *testing.T, repo *stubProfileRepository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestProfileReturnsUser(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfileRepository{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Email: "ana@example.com", FirstName: "Ana", Role: enums.UserRoleCustomer},
	}}
	svc := newProfileService(t, repo)

	profile, err := svc.Profile(context.Background(), userID)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile.Email != "ana@example.com" {
		t.Errorf("expected email preserved, got %s", profile.Email)
	}
}

func TestProfileUnknownUser(t *testing.T) {
	svc := newProfileService(t, &stubProfileRepository{users: map[uuid.UUID]*models.User{}})

	_, err := svc.Profile(context.Background(), uuid.New())
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateProfileTrimsNames(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfileRepository{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, FirstName: "Ana", LastName: "Lima"},
	}}
	svc := newProfileService(t, repo)

	first := "  Beatriz "
	profile, err := svc.UpdateProfile(context.Background(), userID, UpdateUserDTO{FirstName: &first})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if profile.FirstName != "Beatriz" {
		t.Errorf("expected trimmed first name, got %q", profile.FirstName)
	}
}

func TestUpdateProfileRejectsBlankName(t *testing.T) {
	userID := uuid.New()
	repo := &stubProfileRepository{users: map[uuid.UUID]*models.User{userID: {ID: userID}}}
	svc := newProfileService(t, repo)

	blank := "   "
	_, err := svc.UpdateProfile(context.Background(), userID, UpdateUserDTO{LastName: &blank})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
