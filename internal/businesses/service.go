package businesses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qline-app/qline-backend/internal/users"
	"github.com/qline-app/qline-backend/pkg/config"
	"github.com/qline-app/qline-backend/pkg/db"
	"github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/enums"
	pkgerrors "github.com/qline-app/qline-backend/pkg/errors"
	"github.com/qline-app/qline-backend/pkg/outbox"
	"github.com/qline-app/qline-backend/pkg/outbox/payloads"
	"github.com/qline-app/qline-backend/pkg/pagination"
)

// UpdateInput captures the owner-editable fields.
type UpdateInput struct {
	Name                     *string
	Description              *string
	Category                 *enums.BusinessCategory
	EstimatedTimePerCustomer *int
	MaxQueueSize             *int
}

// Service exposes business lifecycle operations.
type Service interface {
	Register(ctx context.Context, ownerID uuid.UUID, input CreateBusinessDTO) (*BusinessDTO, error)
	Update(ctx context.Context, actorID, businessID uuid.UUID, input UpdateInput) (*BusinessDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (*BusinessDTO, error)
	GetListing(ctx context.Context, id uuid.UUID) (*ListingDTO, error)
	Browse(ctx context.Context, params BrowseParams) ([]ListingDTO, *pagination.Cursor, error)
	ListMine(ctx context.Context, ownerID uuid.UUID) ([]BusinessDTO, error)
	ToggleOpen(ctx context.Context, actorID, businessID uuid.UUID, open bool) (*BusinessDTO, error)
	ListPending(ctx context.Context, limit int, cursor *pagination.Cursor) ([]BusinessDTO, *pagination.Cursor, error)
	Approve(ctx context.Context, adminID, businessID uuid.UUID) (*BusinessDTO, error)
	Reject(ctx context.Context, adminID, businessID uuid.UUID, reason string) (*BusinessDTO, error)
}

// TxRunner abstracts transaction execution so tests can run flows without a database.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type businessRepository interface {
	Create(ctx context.Context, dto CreateBusinessDTO) (*models.Business, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Business, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Business, error)
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.Business, error)
	UpdateWithTx(tx *gorm.DB, business *models.Business) error
	Browse(ctx context.Context, params BrowseParams) ([]models.Business, *pagination.Cursor, error)
	ListByApproval(ctx context.Context, status enums.ApprovalStatus, limit int, cursor *pagination.Cursor) ([]models.Business, *pagination.Cursor, error)
}

type ownerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// BusinessRepoFactory yields a repository bound to the supplied transaction
// (or the base connection when tx is nil).
type BusinessRepoFactory func(tx *gorm.DB) businessRepository

// OwnerRepoFactory yields a users repository bound to the supplied transaction.
type OwnerRepoFactory func(tx *gorm.DB) ownerRepository

type service struct {
	tx       TxRunner
	repoFor  BusinessRepoFactory
	ownerFor OwnerRepoFactory
	outbox   outboxEmitter
	queueCfg config.QueueConfig
}

// ServiceParams bundles the dependencies for the business service.
type ServiceParams struct {
	DB               *db.Client
	TxRunner         TxRunner
	RepoFactory      BusinessRepoFactory
	OwnerRepoFactory OwnerRepoFactory
	Outbox           outboxEmitter
	QueueConfig      config.QueueConfig
}

// NewService builds a business service with the provided dependencies.
// DB supplies default wiring; the factories and TxRunner exist as seams
// for tests.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		if params.DB == nil {
			return nil, fmt.Errorf("database client or tx runner required")
		}
		params.TxRunner = params.DB
	}
	if params.RepoFactory == nil {
		if params.DB == nil {
			return nil, fmt.Errorf("database client or repo factory required")
		}
		base := params.DB.DB()
		params.RepoFactory = func(tx *gorm.DB) businessRepository {
			if tx == nil {
				return NewRepository(base)
			}
			return NewRepository(tx)
		}
	}
	if params.OwnerRepoFactory == nil {
		if params.DB == nil {
			return nil, fmt.Errorf("database client or owner repo factory required")
		}
		base := params.DB.DB()
		params.OwnerRepoFactory = func(tx *gorm.DB) ownerRepository {
			if tx == nil {
				return users.NewRepository(base)
			}
			return users.NewRepository(tx)
		}
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		tx:       params.TxRunner,
		repoFor:  params.RepoFactory,
		ownerFor: params.OwnerRepoFactory,
		outbox:   params.Outbox,
		queueCfg: params.QueueConfig,
	}, nil
}

func (s *service) Register(ctx context.Context, ownerID uuid.UUID, input CreateBusinessDTO) (*BusinessDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
	}
	if input.EstimatedTimePerCustomer <= 0 {
		input.EstimatedTimePerCustomer = s.queueCfg.DefaultMinutesPerCustomer
	}
	if input.MaxQueueSize <= 0 {
		input.MaxQueueSize = s.queueCfg.DefaultMaxQueueSize
	}
	input.OwnerID = ownerID
	input.Name = name

	var created *models.Business
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repoFor(tx)
		ownerRepo := s.ownerFor(tx)

		user, err := ownerRepo.FindByID(ctx, ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup owner")
		}

		business, err := repo.Create(ctx, input)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create business")
		}

		// Customers become owners with their first business.
		if user.Role == enums.UserRoleCustomer {
			if err := ownerRepo.UpdateRole(ctx, ownerID, enums.UserRoleOwner); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promote owner")
			}
		}

		created = business
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(created), nil
}

func (s *service) Update(ctx context.Context, actorID, businessID uuid.UUID, input UpdateInput) (*BusinessDTO, error) {
	var updated *models.Business
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repoFor(tx)
		business, err := repo.FindByIDForUpdate(tx, businessID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
		}
		if business.OwnerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not the business owner")
		}
		if business.ApprovalStatus.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "business was rejected and can no longer be edited")
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			business.Name = name
		}
		if input.Description != nil {
			business.Description = input.Description
		}
		if input.Category != nil {
			if !input.Category.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid category")
			}
			business.Category = *input.Category
		}
		if input.EstimatedTimePerCustomer != nil {
			if *input.EstimatedTimePerCustomer <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "estimated_time_per_customer must be positive")
			}
			business.EstimatedTimePerCustomer = *input.EstimatedTimePerCustomer
		}
		if input.MaxQueueSize != nil {
			if *input.MaxQueueSize <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "max_queue_size must be positive")
			}
			business.MaxQueueSize = *input.MaxQueueSize
		}

		if err := repo.UpdateWithTx(tx, business); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update business")
		}
		updated = business
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*BusinessDTO, error) {
	business, err := s.repoFor(nil).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
	}
	return FromModel(business), nil
}

func (s *service) GetListing(ctx context.Context, id uuid.UUID) (*ListingDTO, error) {
	business, err := s.repoFor(nil).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
	}
	if business.ApprovalStatus != enums.ApprovalStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
	}
	return ListingFromModel(business), nil
}

func (s *service) Browse(ctx context.Context, params BrowseParams) ([]ListingDTO, *pagination.Cursor, error) {
	rows, next, err := s.repoFor(nil).Browse(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "browse businesses")
	}
	listings := make([]ListingDTO, 0, len(rows))
	for i := range rows {
		listings = append(listings, *ListingFromModel(&rows[i]))
	}
	return listings, next, nil
}

func (s *service) ListMine(ctx context.Context, ownerID uuid.UUID) ([]BusinessDTO, error) {
	rows, err := s.repoFor(nil).FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list businesses")
	}
	out := make([]BusinessDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) ToggleOpen(ctx context.Context, actorID, businessID uuid.UUID, open bool) (*BusinessDTO, error) {
	var updated *models.Business
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repoFor(tx)
		business, err := repo.FindByIDForUpdate(tx, businessID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
		}
		if business.OwnerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not the business owner")
		}
		if business.ApprovalStatus != enums.ApprovalStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "business is not approved")
		}

		target := enums.BusinessStatusClosed
		if open {
			target = enums.BusinessStatusOpen
		}
		if business.Status == target {
			updated = business
			return nil
		}

		// Closing stops new joins; customers already in line keep their
		// spots and continue to be served.
		business.Status = target
		if err := repo.UpdateWithTx(tx, business); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "toggle business status")
		}
		updated = business
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) ListPending(ctx context.Context, limit int, cursor *pagination.Cursor) ([]BusinessDTO, *pagination.Cursor, error) {
	rows, next, err := s.repoFor(nil).ListByApproval(ctx, enums.ApprovalStatusPending, limit, cursor)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pending businesses")
	}
	out := make([]BusinessDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, next, nil
}

func (s *service) Approve(ctx context.Context, adminID, businessID uuid.UUID) (*BusinessDTO, error) {
	var approved *models.Business
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repoFor(tx)
		business, err := repo.FindByIDForUpdate(tx, businessID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
		}
		if business.ApprovalStatus != enums.ApprovalStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("business is %s, not pending", business.ApprovalStatus))
		}

		now := time.Now().UTC()
		business.ApprovalStatus = enums.ApprovalStatusApproved
		business.ApprovedAt = &now
		if err := repo.UpdateWithTx(tx, business); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "approve business")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventBusinessApproved,
			AggregateType: enums.AggregateBusiness,
			AggregateID:   business.ID,
			Actor:         &outbox.ActorRef{UserID: adminID, Role: string(enums.UserRoleAdmin)},
			Version:       1,
			OccurredAt:    now,
			Data: payloads.BusinessApprovedEvent{
				BusinessID:   business.ID,
				BusinessName: business.Name,
				OwnerID:      business.OwnerID,
				ApprovedAt:   now,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit approval event")
		}

		approved = business
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(approved), nil
}

func (s *service) Reject(ctx context.Context, adminID, businessID uuid.UUID, reason string) (*BusinessDTO, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}

	var rejected *models.Business
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repoFor(tx)
		business, err := repo.FindByIDForUpdate(tx, businessID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
		}
		if business.ApprovalStatus != enums.ApprovalStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("business is %s, not pending", business.ApprovalStatus))
		}

		now := time.Now().UTC()
		business.ApprovalStatus = enums.ApprovalStatusRejected
		business.RejectionReason = &reason
		business.RejectedAt = &now
		if err := repo.UpdateWithTx(tx, business); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reject business")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventBusinessRejected,
			AggregateType: enums.AggregateBusiness,
			AggregateID:   business.ID,
			Actor:         &outbox.ActorRef{UserID: adminID, Role: string(enums.UserRoleAdmin)},
			Version:       1,
			OccurredAt:    now,
			Data: payloads.BusinessRejectedEvent{
				BusinessID:   business.ID,
				BusinessName: business.Name,
				OwnerID:      business.OwnerID,
				Reason:       reason,
				RejectedAt:   now,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit rejection event")
		}

		rejected = business
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(rejected), nil
}
