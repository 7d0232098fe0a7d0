package businesses

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qline-app/qline-backend/pkg/config"
	pkgmodels "github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/enums"
	pkgerrors "github.com/qline-app/qline-backend/pkg/errors"
	"github.com/qline-app/qline-backend/pkg/outbox"
	"github.com/qline-app/qline-backend/pkg/pagination"
	"github.com/qline-app/qline-backend/pkg/types"
)

type stubTxRunner struct{}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubBusinessRepository struct {
	data    map[uuid.UUID]*pkgmodels.Business
	created *pkgmodels.Business
}

func newStubBusinessRepository() *stubBusinessRepository {
	return &stubBusinessRepository{data: map[uuid.UUID]*pkgmodels.Business{}}
}

func (s *stubBusinessRepository) Create(ctx context.Context, dto CreateBusinessDTO) (*pkgmodels.Business, error) {
	business := dto.ToModel()
	business.ID = uuid.New()
	s.data[business.ID] = business
	s.created = business
	return business, nil
}

func (s *stubBusinessRepository) FindByID(ctx context.Context, id uuid.UUID) (*pkgmodels.Business, error) {
	if business, ok := s.data[id]; ok {
		return business, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBusinessRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]pkgmodels.Business, error) {
	var out []pkgmodels.Business
	for _, business := range s.data {
		if business.OwnerID == ownerID {
			out = append(out, *business)
		}
	}
	return out, nil
}

func (s *stubBusinessRepository) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*pkgmodels.Business, error) {
	if business, ok := s.data[id]; ok {
		return business, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBusinessRepository) UpdateWithTx(tx *gorm.DB, business *pkgmodels.Business) error {
	s.data[business.ID] = business
	return nil
}

func (s *stubBusinessRepository) Browse(ctx context.Context, params BrowseParams) ([]pkgmodels.Business, *pagination.Cursor, error) {
	var out []pkgmodels.Business
	for _, business := range s.data {
		if business.ApprovalStatus == enums.ApprovalStatusApproved {
			out = append(out, *business)
		}
	}
	return out, nil, nil
}

func (s *stubBusinessRepository) ListByApproval(ctx context.Context, status enums.ApprovalStatus, limit int, cursor *pagination.Cursor) ([]pkgmodels.Business, *pagination.Cursor, error) {
	var out []pkgmodels.Business
	for _, business := range s.data {
		if business.ApprovalStatus == status {
			out = append(out, *business)
		}
	}
	return out, nil, nil
}

type stubOwnerRepository struct {
	users   map[uuid.UUID]*pkgmodels.User
	updated map[uuid.UUID]enums.UserRole
}

func newStubOwnerRepository() *stubOwnerRepository {
	return &stubOwnerRepository{
		users:   map[uuid.UUID]*pkgmodels.User{},
		updated: map[uuid.UUID]enums.UserRole{},
	}
}

func (s *stubOwnerRepository) FindByID(ctx context.Context, id uuid.UUID) (*pkgmodels.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOwnerRepository) UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) error {
	s.updated[id] = role
	if user, ok := s.users[id]; ok {
		user.Role = role
	}
	return nil
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type businessTestSetup struct {
	service   Service
	repo      *stubBusinessRepository
	ownerRepo *stubOwnerRepository
	outbox    *stubOutbox
}

func newBusinessTestSetup(t *testing.T) *businessTestSetup {
	t.Helper()
	repo := newStubBusinessRepository()
	ownerRepo := newStubOwnerRepository()
	emitter := &stubOutbox{}
	svc, err := NewService(ServiceParams{
		TxRunner: stubTxRunner{},
		RepoFactory: func(tx *gorm.DB) businessRepository {
			return repo
		},
		OwnerRepoFactory: func(tx *gorm.DB) ownerRepository {
			return ownerRepo
		},
		Outbox: emitter,
		QueueConfig: config.QueueConfig{
			DefaultMaxQueueSize:       50,
			DefaultMinutesPerCustomer: 5,
		},
	})
	if err != nil {
		t.Fatalf("new business service: %v", err)
	}
	return &businessTestSetup{
		service:   svc,
		repo:      repo,
		ownerRepo: ownerRepo,
		outbox:    emitter,
	}
}

func seedCustomer(setup *businessTestSetup) *pkgmodels.User {
	user := &pkgmodels.User{
		ID:       uuid.New(),
		Email:    "owner@example.com",
		Role:     enums.UserRoleCustomer,
		IsActive: true,
	}
	setup.ownerRepo.users[user.ID] = user
	return user
}

func sampleCreateDTO() CreateBusinessDTO {
	return CreateBusinessDTO{
		Name:     "Corner Barbers",
		Category: enums.BusinessCategorySalon,
		Address: types.Address{
			Line1:      "12 High St",
			City:       "Oklahoma City",
			State:      "OK",
			PostalCode: "73102",
			Country:    "US",
		},
	}
}

func TestRegisterPromotesCustomerToOwner(t *testing.T) {
	setup := newBusinessTestSetup(t)
	user := seedCustomer(setup)

	dto, err := setup.service.Register(context.Background(), user.ID, sampleCreateDTO())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if dto.ApprovalStatus != enums.ApprovalStatusPending {
		t.Fatalf("expected pending approval, got %q", dto.ApprovalStatus)
	}
	if dto.Status != enums.BusinessStatusClosed {
		t.Fatalf("expected new business closed, got %q", dto.Status)
	}
	if dto.EstimatedTimePerCustomer != 5 || dto.MaxQueueSize != 50 {
		t.Fatalf("expected queue defaults applied, got %d/%d", dto.EstimatedTimePerCustomer, dto.MaxQueueSize)
	}
	if role, ok := setup.ownerRepo.updated[user.ID]; !ok || role != enums.UserRoleOwner {
		t.Fatalf("expected customer promoted to owner")
	}
}

func TestRegisterKeepsExistingOwnerRole(t *testing.T) {
	setup := newBusinessTestSetup(t)
	user := seedCustomer(setup)
	user.Role = enums.UserRoleOwner

	if _, err := setup.service.Register(context.Background(), user.ID, sampleCreateDTO()); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, ok := setup.ownerRepo.updated[user.ID]; ok {
		t.Fatalf("expected no role update for existing owner")
	}
}

func TestUpdateBlockedAfterRejection(t *testing.T) {
	setup := newBusinessTestSetup(t)
	user := seedCustomer(setup)
	dto, err := setup.service.Register(context.Background(), user.ID, sampleCreateDTO())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	business := setup.repo.data[dto.ID]
	reason := "address could not be verified"
	business.ApprovalStatus = enums.ApprovalStatusRejected
	business.RejectionReason = &reason

	name := "Corner Barbers & Co"
	_, err = setup.service.Update(context.Background(), user.ID, dto.ID, UpdateInput{Name: &name})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for rejected business, got %v", err)
	}
	if setup.repo.data[dto.ID].Name == name {
		t.Fatalf("expected rejected business to stay unchanged")
	}
}

func TestUpdateRejectsNonOwner(t *testing.T) {
	setup := newBusinessTestSetup(t)
	user := seedCustomer(setup)
	dto, err := setup.service.Register(context.Background(), user.ID, sampleCreateDTO())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	name := "Hijacked"
	_, err = setup.service.Update(context.Background(), uuid.New(), dto.ID, UpdateInput{Name: &name})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestToggleOpenRequiresApproval(t *testing.T) {
	setup := newBusinessTestSetup(t)
	user := seedCustomer(setup)
	dto, err := setup.service.Register(context.Background(), user.ID, sampleCreateDTO())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err = setup.service.ToggleOpen(context.Background(), user.ID, dto.ID, true)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for unapproved business, got %v", err)
	}

	setup.repo.data[dto.ID].ApprovalStatus = enums.ApprovalStatusApproved
	opened, err := setup.service.ToggleOpen(context.Background(), user.ID, dto.ID, true)
	if err != nil {
		t.Fatalf("toggle open failed: %v", err)
	}
	if opened.Status != enums.BusinessStatusOpen {
		t.Fatalf("expected business open, got %q", opened.Status)
	}
}

func TestApproveEmitsEvent(t *testing.T) {
	setup := newBusinessTestSetup(t)
	user := seedCustomer(setup)
	dto, err := setup.service.Register(context.Background(), user.ID, sampleCreateDTO())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	adminID := uuid.New()
	approved, err := setup.service.Approve(context.Background(), adminID, dto.ID)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.ApprovalStatus != enums.ApprovalStatusApproved {
		t.Fatalf("expected approved status, got %q", approved.ApprovalStatus)
	}
	if approved.ApprovedAt == nil {
		t.Fatalf("expected approved_at set")
	}
	if len(setup.outbox.events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(setup.outbox.events))
	}
	event := setup.outbox.events[0]
	if event.EventType != enums.EventBusinessApproved {
		t.Fatalf("unexpected event type %q", event.EventType)
	}
	if event.Actor == nil || event.Actor.UserID != adminID {
		t.Fatalf("expected admin actor on event")
	}

	_, err = setup.service.Approve(context.Background(), adminID, dto.ID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on double approve, got %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	setup := newBusinessTestSetup(t)
	user := seedCustomer(setup)
	dto, err := setup.service.Register(context.Background(), user.ID, sampleCreateDTO())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err = setup.service.Reject(context.Background(), uuid.New(), dto.ID, "  ")
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	rejected, err := setup.service.Reject(context.Background(), uuid.New(), dto.ID, "incomplete application")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.ApprovalStatus != enums.ApprovalStatusRejected {
		t.Fatalf("expected rejected status, got %q", rejected.ApprovalStatus)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "incomplete application" {
		t.Fatalf("expected rejection reason stored")
	}
	if len(setup.outbox.events) != 1 || setup.outbox.events[0].EventType != enums.EventBusinessRejected {
		t.Fatalf("expected rejection event emitted")
	}
}

func TestGetListingHidesUnapproved(t *testing.T) {
	setup := newBusinessTestSetup(t)
	user := seedCustomer(setup)
	dto, err := setup.service.Register(context.Background(), user.ID, sampleCreateDTO())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err = setup.service.GetListing(context.Background(), dto.ID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for pending business, got %v", err)
	}

	business := setup.repo.data[dto.ID]
	business.ApprovalStatus = enums.ApprovalStatusApproved
	business.CurrentQueueLength = 4

	listing, err := setup.service.GetListing(context.Background(), dto.ID)
	if err != nil {
		t.Fatalf("get listing failed: %v", err)
	}
	if listing.EstimatedWaitMinutes != 4*business.EstimatedTimePerCustomer {
		t.Fatalf("unexpected wait estimate %d", listing.EstimatedWaitMinutes)
	}
}
