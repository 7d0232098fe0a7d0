package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qline-app/qline-backend/internal/businesses"
	"github.com/qline-app/qline-backend/pkg/db"
	"github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/enums"
	pkgerrors "github.com/qline-app/qline-backend/pkg/errors"
	"github.com/qline-app/qline-backend/pkg/outbox"
	"github.com/qline-app/qline-backend/pkg/outbox/payloads"
	"github.com/qline-app/qline-backend/pkg/pagination"
)

// Service owns the queue ledger: every status transition, the position
// counter, and the denormalized queue length go through it. Mutations
// lock the business row first, so concurrent joins and serves against
// the same business serialize instead of racing.
type Service interface {
	Join(ctx context.Context, userID, businessID uuid.UUID) (*EntryDTO, error)
	ServeNext(ctx context.Context, actorID, businessID uuid.UUID) (*EntryDTO, error)
	Leave(ctx context.Context, userID, entryID uuid.UUID) (*EntryDTO, error)
	Remove(ctx context.Context, actorID, entryID uuid.UUID) (*EntryDTO, error)
	GetEntry(ctx context.Context, userID, entryID uuid.UUID) (*EntryDTO, error)
	MyQueues(ctx context.Context, userID uuid.UUID) ([]ActiveQueueDTO, error)
	History(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]EntryDTO, *pagination.Cursor, error)
	QueueState(ctx context.Context, actorID, businessID uuid.UUID) (*StateDTO, error)
	ReconcileUserActiveQueue(ctx context.Context, userID uuid.UUID) (int64, error)
}

// TxRunner abstracts transaction execution so flows can be tested
// without a database.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type entryRepository interface {
	CreateTx(tx *gorm.DB, entry *models.QueueEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.QueueEntry, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.QueueEntry, error)
	FindActiveByUserTx(tx *gorm.DB, businessID, userID uuid.UUID) (*models.QueueEntry, error)
	MaxPositionTx(tx *gorm.DB, businessID uuid.UUID) (int, error)
	FindCurrent(ctx context.Context, businessID uuid.UUID) (*models.QueueEntry, error)
	FindCurrentTx(tx *gorm.DB, businessID uuid.UUID) (*models.QueueEntry, error)
	FindNextWaitingTx(tx *gorm.DB, businessID uuid.UUID) (*models.QueueEntry, error)
	UpdateTx(tx *gorm.DB, entry *models.QueueEntry) error
	WaitingRank(ctx context.Context, entry *models.QueueEntry) (int, error)
	ListWaiting(ctx context.Context, businessID uuid.UUID) ([]models.QueueEntry, error)
	ListHistoryByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.QueueEntry, *pagination.Cursor, error)
}

type refRepository interface {
	InsertTx(tx *gorm.DB, ref *models.ActiveQueueRef) error
	DeleteByEntryTx(tx *gorm.DB, entryID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ActiveQueueRef, error)
	DeleteStale(ctx context.Context, userID *uuid.UUID) (int64, error)
}

type ledgerBusinessRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Business, error)
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.Business, error)
	SetQueueLengthTx(tx *gorm.DB, id uuid.UUID, length int) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// EntryRepoFactory yields an entry repository bound to the transaction
// (or the base connection when tx is nil).
type EntryRepoFactory func(tx *gorm.DB) entryRepository

// RefRepoFactory yields a ref repository bound to the transaction.
type RefRepoFactory func(tx *gorm.DB) refRepository

// BusinessRepoFactory yields a business repository bound to the transaction.
type BusinessRepoFactory func(tx *gorm.DB) ledgerBusinessRepository

type service struct {
	tx          TxRunner
	entriesFor  EntryRepoFactory
	refsFor     RefRepoFactory
	businessFor BusinessRepoFactory
	outbox      outboxEmitter
}

// ServiceParams bundles the dependencies for the queue ledger. DB supplies
// default wiring; the factories and TxRunner exist as seams for tests.
type ServiceParams struct {
	DB                  *db.Client
	TxRunner            TxRunner
	EntryRepoFactory    EntryRepoFactory
	RefRepoFactory      RefRepoFactory
	BusinessRepoFactory BusinessRepoFactory
	Outbox              outboxEmitter
}

// NewService builds the queue ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		if params.DB == nil {
			return nil, fmt.Errorf("database client or tx runner required")
		}
		params.TxRunner = params.DB
	}
	if params.EntryRepoFactory == nil {
		if params.DB == nil {
			return nil, fmt.Errorf("database client or entry repo factory required")
		}
		base := params.DB.DB()
		params.EntryRepoFactory = func(tx *gorm.DB) entryRepository {
			if tx == nil {
				return NewRepository(base)
			}
			return NewRepository(tx)
		}
	}
	if params.RefRepoFactory == nil {
		if params.DB == nil {
			return nil, fmt.Errorf("database client or ref repo factory required")
		}
		base := params.DB.DB()
		params.RefRepoFactory = func(tx *gorm.DB) refRepository {
			if tx == nil {
				return NewRefsRepository(base)
			}
			return NewRefsRepository(tx)
		}
	}
	if params.BusinessRepoFactory == nil {
		if params.DB == nil {
			return nil, fmt.Errorf("database client or business repo factory required")
		}
		base := params.DB.DB()
		params.BusinessRepoFactory = func(tx *gorm.DB) ledgerBusinessRepository {
			if tx == nil {
				return businesses.NewRepository(base)
			}
			return businesses.NewRepository(tx)
		}
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		tx:          params.TxRunner,
		entriesFor:  params.EntryRepoFactory,
		refsFor:     params.RefRepoFactory,
		businessFor: params.BusinessRepoFactory,
		outbox:      params.Outbox,
	}, nil
}

func (s *service) Join(ctx context.Context, userID, businessID uuid.UUID) (*EntryDTO, error) {
	var created *models.QueueEntry
	var rankAtJoin int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		entries := s.entriesFor(tx)
		refs := s.refsFor(tx)
		bizRepo := s.businessFor(tx)

		business, err := bizRepo.FindByIDForUpdate(tx, businessID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
		}
		if business.ApprovalStatus != enums.ApprovalStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "business is not accepting customers")
		}
		if business.Status != enums.BusinessStatusOpen {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "queue is closed")
		}
		if business.CurrentQueueLength >= business.MaxQueueSize {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "queue is full")
		}

		if _, err := entries.FindActiveByUserTx(tx, businessID, userID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "already in this queue")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check active entry")
		}

		// Positions grow from the historical maximum, not the live count,
		// so they stay monotonic after earlier entries leave.
		maxPos, err := entries.MaxPositionTx(tx, businessID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read max position")
		}

		rankAtJoin = business.CurrentQueueLength + 1
		now := time.Now().UTC()
		entry := &models.QueueEntry{
			BusinessID:           businessID,
			UserID:               userID,
			Status:               enums.QueueEntryStatusWaiting,
			Position:             maxPos + 1,
			EstimatedWaitMinutes: rankAtJoin * business.EstimatedTimePerCustomer,
			JoinedAt:             now,
		}
		if err := entries.CreateTx(tx, entry); err != nil {
			if db.IsUniqueViolation(err, "ux_queue_entries_active_user") {
				return pkgerrors.New(pkgerrors.CodeConflict, "already in this queue")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create entry")
		}

		if err := refs.InsertTx(tx, &models.ActiveQueueRef{
			UserID:       userID,
			BusinessID:   businessID,
			QueueEntryID: entry.ID,
			Position:     entry.Position,
			JoinedAt:     entry.JoinedAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create active queue ref")
		}

		if err := bizRepo.SetQueueLengthTx(tx, businessID, business.CurrentQueueLength+1); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bump queue length")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventQueueEntryJoined,
			AggregateType: enums.AggregateQueueEntry,
			AggregateID:   entry.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Version:       1,
			OccurredAt:    now,
			Data: payloads.QueueEntryJoinedEvent{
				QueueEntryID:         entry.ID,
				BusinessID:           businessID,
				BusinessName:         business.Name,
				UserID:               userID,
				Position:             entry.Position,
				EstimatedWaitMinutes: entry.EstimatedWaitMinutes,
				JoinedAt:             entry.JoinedAt,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit joined event")
		}

		created = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := EntryFromModel(created)
	dto.DisplayRank = rankAtJoin
	return dto, nil
}

func (s *service) ServeNext(ctx context.Context, actorID, businessID uuid.UUID) (*EntryDTO, error) {
	var promoted *models.QueueEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		entries := s.entriesFor(tx)
		refs := s.refsFor(tx)
		bizRepo := s.businessFor(tx)

		business, err := bizRepo.FindByIDForUpdate(tx, businessID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
		}
		if business.OwnerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not the business owner")
		}

		now := time.Now().UTC()
		length := business.CurrentQueueLength

		current, err := entries.FindCurrentTx(tx, businessID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load current entry")
		}
		if current != nil {
			current.Status = enums.QueueEntryStatusCompleted
			current.FinishedAt = &now
			if err := entries.UpdateTx(tx, current); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete current entry")
			}
			if err := refs.DeleteByEntryTx(tx, current.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove active queue ref")
			}
			length--
			if err := bizRepo.SetQueueLengthTx(tx, businessID, length); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement queue length")
			}

			completedEvent := outbox.DomainEvent{
				EventType:     enums.EventQueueEntryCompleted,
				AggregateType: enums.AggregateQueueEntry,
				AggregateID:   current.ID,
				Actor:         &outbox.ActorRef{UserID: actorID, BusinessID: &businessID, Role: string(enums.UserRoleOwner)},
				Version:       1,
				OccurredAt:    now,
				Data: payloads.QueueEntryCompletedEvent{
					QueueEntryID: current.ID,
					BusinessID:   businessID,
					BusinessName: business.Name,
					UserID:       current.UserID,
					FinishedAt:   now,
				},
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, completedEvent); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit completed event")
			}
		}

		next, err := entries.FindNextWaitingTx(tx, businessID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load next waiting entry")
		}

		next.Status = enums.QueueEntryStatusCurrent
		next.StartedAt = &now
		if err := entries.UpdateTx(tx, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promote next entry")
		}

		calledEvent := outbox.DomainEvent{
			EventType:     enums.EventQueueEntryCalled,
			AggregateType: enums.AggregateQueueEntry,
			AggregateID:   next.ID,
			Actor:         &outbox.ActorRef{UserID: actorID, BusinessID: &businessID, Role: string(enums.UserRoleOwner)},
			Version:       1,
			OccurredAt:    now,
			Data: payloads.QueueEntryCalledEvent{
				QueueEntryID: next.ID,
				BusinessID:   businessID,
				BusinessName: business.Name,
				UserID:       next.UserID,
				Position:     next.Position,
				StartedAt:    now,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, calledEvent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit called event")
		}

		promoted = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	if promoted == nil {
		return nil, nil
	}
	return EntryFromModel(promoted), nil
}

// Leave cancels the customer's own entry. Calling it again after the entry
// went terminal is a no-op.
func (s *service) Leave(ctx context.Context, userID, entryID uuid.UUID) (*EntryDTO, error) {
	return s.cancel(ctx, userID, entryID, enums.CancelActorCustomer)
}

// Remove cancels an entry on behalf of the business owner.
func (s *service) Remove(ctx context.Context, actorID, entryID uuid.UUID) (*EntryDTO, error) {
	return s.cancel(ctx, actorID, entryID, enums.CancelActorOwner)
}

func (s *service) cancel(ctx context.Context, actorID, entryID uuid.UUID, actor enums.CancelActor) (*EntryDTO, error) {
	var cancelled *models.QueueEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		entries := s.entriesFor(tx)
		refs := s.refsFor(tx)
		bizRepo := s.businessFor(tx)

		entry, err := entries.FindByIDTx(tx, entryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "queue entry not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load entry")
		}

		business, err := bizRepo.FindByIDForUpdate(tx, entry.BusinessID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
		}

		switch actor {
		case enums.CancelActorCustomer:
			if entry.UserID != actorID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "not your queue entry")
			}
		case enums.CancelActorOwner:
			if business.OwnerID != actorID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "not the business owner")
			}
		default:
			return pkgerrors.New(pkgerrors.CodeInternal, "unknown cancel actor")
		}

		// Reload under the business lock: a concurrent cancel or serve may
		// have already finished this entry.
		entry, err = entries.FindByIDTx(tx, entryID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload entry")
		}
		if entry.Status.IsTerminal() {
			cancelled = entry
			return nil
		}

		now := time.Now().UTC()
		entry.Status = enums.QueueEntryStatusCancelled
		entry.CancelledAt = &now
		entry.CancelledBy = &actor
		if err := entries.UpdateTx(tx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel entry")
		}
		if err := refs.DeleteByEntryTx(tx, entry.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove active queue ref")
		}
		if err := bizRepo.SetQueueLengthTx(tx, business.ID, business.CurrentQueueLength-1); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement queue length")
		}

		// Cancelling the entry being served leaves the business with no
		// current entry until staff call ServeNext again.
		actorRef := &outbox.ActorRef{UserID: actorID}
		if actor == enums.CancelActorOwner {
			actorRef.BusinessID = &business.ID
			actorRef.Role = string(enums.UserRoleOwner)
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventQueueEntryCancelled,
			AggregateType: enums.AggregateQueueEntry,
			AggregateID:   entry.ID,
			Actor:         actorRef,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.QueueEntryCancelledEvent{
				QueueEntryID: entry.ID,
				BusinessID:   business.ID,
				BusinessName: business.Name,
				UserID:       entry.UserID,
				CancelledBy:  actor,
				CancelledAt:  now,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit cancelled event")
		}

		cancelled = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return EntryFromModel(cancelled), nil
}

func (s *service) GetEntry(ctx context.Context, userID, entryID uuid.UUID) (*EntryDTO, error) {
	entries := s.entriesFor(nil)
	entry, err := entries.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "queue entry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load entry")
	}
	if entry.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not your queue entry")
	}

	business, err := s.businessFor(nil).FindByID(ctx, entry.BusinessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
	}
	rank, err := entries.WaitingRank(ctx, entry)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "derive rank")
	}
	return entryWithRank(entry, rank, business.EstimatedTimePerCustomer), nil
}

// MyQueues repairs the user's denormalized pointers, then resolves each
// surviving pointer to its live entry with a freshly derived rank.
func (s *service) MyQueues(ctx context.Context, userID uuid.UUID) ([]ActiveQueueDTO, error) {
	refs := s.refsFor(nil)
	entries := s.entriesFor(nil)
	bizRepo := s.businessFor(nil)

	if _, err := refs.DeleteStale(ctx, &userID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconcile active queue refs")
	}

	list, err := refs.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active queue refs")
	}

	out := make([]ActiveQueueDTO, 0, len(list))
	for _, ref := range list {
		entry, err := entries.FindByID(ctx, ref.QueueEntryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load entry")
		}
		business, err := bizRepo.FindByID(ctx, ref.BusinessID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
		}
		rank, err := entries.WaitingRank(ctx, entry)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "derive rank")
		}
		out = append(out, ActiveQueueDTO{
			Entry:        *entryWithRank(entry, rank, business.EstimatedTimePerCustomer),
			BusinessID:   business.ID,
			BusinessName: business.Name,
		})
	}
	return out, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]EntryDTO, *pagination.Cursor, error) {
	rows, next, err := s.entriesFor(nil).ListHistoryByUser(ctx, userID, limit, cursor)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list queue history")
	}
	out := make([]EntryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *EntryFromModel(&rows[i]))
	}
	return out, next, nil
}

func (s *service) QueueState(ctx context.Context, actorID, businessID uuid.UUID) (*StateDTO, error) {
	business, err := s.businessFor(nil).FindByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
	}
	if business.OwnerID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not the business owner")
	}

	entries := s.entriesFor(nil)
	state := &StateDTO{
		BusinessID:         business.ID,
		Status:             business.Status.String(),
		CurrentQueueLength: business.CurrentQueueLength,
		MaxQueueSize:       business.MaxQueueSize,
		Waiting:            []EntryDTO{},
	}

	current, err := entries.FindCurrent(ctx, businessID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load current entry")
	}
	if current != nil {
		state.Current = entryWithRank(current, 0, business.EstimatedTimePerCustomer)
	}

	waiting, err := entries.ListWaiting(ctx, businessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list waiting entries")
	}
	for i := range waiting {
		state.Waiting = append(state.Waiting, *entryWithRank(&waiting[i], i+1, business.EstimatedTimePerCustomer))
	}
	return state, nil
}

// ReconcileUserActiveQueue deletes the user's pointers whose entry is no
// longer waiting or current, and reports how many were removed.
func (s *service) ReconcileUserActiveQueue(ctx context.Context, userID uuid.UUID) (int64, error) {
	removed, err := s.refsFor(nil).DeleteStale(ctx, &userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconcile active queue refs")
	}
	return removed, nil
}
