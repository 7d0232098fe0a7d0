package queue

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgmodels "github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/enums"
	pkgerrors "github.com/qline-app/qline-backend/pkg/errors"
	"github.com/qline-app/qline-backend/pkg/outbox"
	"github.com/qline-app/qline-backend/pkg/pagination"
)

type stubTxRunner struct{}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// ledgerState is shared by the stub repositories so a test sees one
// consistent world across entries, refs, and businesses.
type ledgerState struct {
	businesses map[uuid.UUID]*pkgmodels.Business
	entries    map[uuid.UUID]*pkgmodels.QueueEntry
	refs       map[uuid.UUID]*pkgmodels.ActiveQueueRef
	clock      time.Time
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		businesses: map[uuid.UUID]*pkgmodels.Business{},
		entries:    map[uuid.UUID]*pkgmodels.QueueEntry{},
		refs:       map[uuid.UUID]*pkgmodels.ActiveQueueRef{},
		clock:      time.Now().UTC(),
	}
}

type stubEntryRepo struct{ state *ledgerState }

func (s stubEntryRepo) CreateTx(tx *gorm.DB, entry *pkgmodels.QueueEntry) error {
	entry.ID = uuid.New()
	s.state.clock = s.state.clock.Add(time.Millisecond)
	if entry.JoinedAt.IsZero() {
		entry.JoinedAt = s.state.clock
	}
	entry.CreatedAt = s.state.clock
	s.state.entries[entry.ID] = entry
	return nil
}

func (s stubEntryRepo) FindByID(ctx context.Context, id uuid.UUID) (*pkgmodels.QueueEntry, error) {
	if entry, ok := s.state.entries[id]; ok {
		return entry, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s stubEntryRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*pkgmodels.QueueEntry, error) {
	return s.FindByID(context.Background(), id)
}

func (s stubEntryRepo) FindActiveByUserTx(tx *gorm.DB, businessID, userID uuid.UUID) (*pkgmodels.QueueEntry, error) {
	for _, entry := range s.state.entries {
		if entry.BusinessID == businessID && entry.UserID == userID && entry.Status.IsActive() {
			return entry, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s stubEntryRepo) MaxPositionTx(tx *gorm.DB, businessID uuid.UUID) (int, error) {
	maxPos := 0
	for _, entry := range s.state.entries {
		if entry.BusinessID == businessID && entry.Position > maxPos {
			maxPos = entry.Position
		}
	}
	return maxPos, nil
}

func (s stubEntryRepo) FindCurrent(ctx context.Context, businessID uuid.UUID) (*pkgmodels.QueueEntry, error) {
	for _, entry := range s.state.entries {
		if entry.BusinessID == businessID && entry.Status == enums.QueueEntryStatusCurrent {
			return entry, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s stubEntryRepo) FindCurrentTx(tx *gorm.DB, businessID uuid.UUID) (*pkgmodels.QueueEntry, error) {
	return s.FindCurrent(context.Background(), businessID)
}

func (s stubEntryRepo) FindNextWaitingTx(tx *gorm.DB, businessID uuid.UUID) (*pkgmodels.QueueEntry, error) {
	waiting := s.waitingFor(businessID)
	if len(waiting) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return waiting[0], nil
}

func (s stubEntryRepo) UpdateTx(tx *gorm.DB, entry *pkgmodels.QueueEntry) error {
	s.state.entries[entry.ID] = entry
	return nil
}

func (s stubEntryRepo) WaitingRank(ctx context.Context, entry *pkgmodels.QueueEntry) (int, error) {
	if entry.Status != enums.QueueEntryStatusWaiting {
		return 0, nil
	}
	rank := 1
	for _, other := range s.state.entries {
		if other.BusinessID != entry.BusinessID || other.Status != enums.QueueEntryStatusWaiting {
			continue
		}
		if other.Position < entry.Position ||
			(other.Position == entry.Position && other.JoinedAt.Before(entry.JoinedAt)) {
			rank++
		}
	}
	return rank, nil
}

func (s stubEntryRepo) ListWaiting(ctx context.Context, businessID uuid.UUID) ([]pkgmodels.QueueEntry, error) {
	var out []pkgmodels.QueueEntry
	for _, entry := range s.waitingFor(businessID) {
		out = append(out, *entry)
	}
	return out, nil
}

func (s stubEntryRepo) ListHistoryByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]pkgmodels.QueueEntry, *pagination.Cursor, error) {
	var out []pkgmodels.QueueEntry
	for _, entry := range s.state.entries {
		if entry.UserID == userID && entry.Status.IsTerminal() {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil, nil
}

func (s stubEntryRepo) waitingFor(businessID uuid.UUID) []*pkgmodels.QueueEntry {
	var waiting []*pkgmodels.QueueEntry
	for _, entry := range s.state.entries {
		if entry.BusinessID == businessID && entry.Status == enums.QueueEntryStatusWaiting {
			waiting = append(waiting, entry)
		}
	}
	sort.Slice(waiting, func(i, j int) bool {
		if waiting[i].Position != waiting[j].Position {
			return waiting[i].Position < waiting[j].Position
		}
		return waiting[i].JoinedAt.Before(waiting[j].JoinedAt)
	})
	return waiting
}

type stubRefRepo struct{ state *ledgerState }

func (s stubRefRepo) InsertTx(tx *gorm.DB, ref *pkgmodels.ActiveQueueRef) error {
	ref.ID = uuid.New()
	s.state.refs[ref.QueueEntryID] = ref
	return nil
}

func (s stubRefRepo) DeleteByEntryTx(tx *gorm.DB, entryID uuid.UUID) error {
	delete(s.state.refs, entryID)
	return nil
}

func (s stubRefRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]pkgmodels.ActiveQueueRef, error) {
	var out []pkgmodels.ActiveQueueRef
	for _, ref := range s.state.refs {
		if ref.UserID == userID {
			out = append(out, *ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s stubRefRepo) DeleteStale(ctx context.Context, userID *uuid.UUID) (int64, error) {
	var removed int64
	for entryID, ref := range s.state.refs {
		if userID != nil && ref.UserID != *userID {
			continue
		}
		entry, ok := s.state.entries[entryID]
		if !ok || !entry.Status.IsActive() {
			delete(s.state.refs, entryID)
			removed++
		}
	}
	return removed, nil
}

type stubBusinessRepo struct{ state *ledgerState }

func (s stubBusinessRepo) FindByID(ctx context.Context, id uuid.UUID) (*pkgmodels.Business, error) {
	if business, ok := s.state.businesses[id]; ok {
		return business, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s stubBusinessRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*pkgmodels.Business, error) {
	return s.FindByID(context.Background(), id)
}

func (s stubBusinessRepo) SetQueueLengthTx(tx *gorm.DB, id uuid.UUID, length int) error {
	if length < 0 {
		length = 0
	}
	if business, ok := s.state.businesses[id]; ok {
		business.CurrentQueueLength = length
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

type ledgerTestSetup struct {
	service Service
	state   *ledgerState
	outbox  *stubOutbox
	ownerID uuid.UUID
	bizID   uuid.UUID
}

func newLedgerTestSetup(t *testing.T) *ledgerTestSetup {
	t.Helper()
	state := newLedgerState()
	emitter := &stubOutbox{}
	svc, err := NewService(ServiceParams{
		TxRunner: stubTxRunner{},
		EntryRepoFactory: func(tx *gorm.DB) entryRepository {
			return stubEntryRepo{state: state}
		},
		RefRepoFactory: func(tx *gorm.DB) refRepository {
			return stubRefRepo{state: state}
		},
		BusinessRepoFactory: func(tx *gorm.DB) ledgerBusinessRepository {
			return stubBusinessRepo{state: state}
		},
		Outbox: emitter,
	})
	if err != nil {
		t.Fatalf("new queue service: %v", err)
	}

	ownerID := uuid.New()
	business := &pkgmodels.Business{
		ID:                       uuid.New(),
		OwnerID:                  ownerID,
		Name:                     "Corner Barbers",
		Category:                 enums.BusinessCategorySalon,
		EstimatedTimePerCustomer: 10,
		MaxQueueSize:             5,
		Status:                   enums.BusinessStatusOpen,
		ApprovalStatus:           enums.ApprovalStatusApproved,
	}
	state.businesses[business.ID] = business

	return &ledgerTestSetup{
		service: svc,
		state:   state,
		outbox:  emitter,
		ownerID: ownerID,
		bizID:   business.ID,
	}
}

func (s *ledgerTestSetup) business() *pkgmodels.Business {
	return s.state.businesses[s.bizID]
}

func (s *ledgerTestSetup) join(t *testing.T, userID uuid.UUID) *EntryDTO {
	t.Helper()
	entry, err := s.service.Join(context.Background(), userID, s.bizID)
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	return entry
}

func (s *ledgerTestSetup) currentCount() int {
	count := 0
	for _, entry := range s.state.entries {
		if entry.BusinessID == s.bizID && entry.Status == enums.QueueEntryStatusCurrent {
			count++
		}
	}
	return count
}

func TestJoinAssignsArrivalOrderPositions(t *testing.T) {
	setup := newLedgerTestSetup(t)

	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	e1 := setup.join(t, u1)
	e2 := setup.join(t, u2)
	e3 := setup.join(t, u3)

	if e1.Position != 1 || e2.Position != 2 || e3.Position != 3 {
		t.Fatalf("expected positions 1,2,3, got %d,%d,%d", e1.Position, e2.Position, e3.Position)
	}
	if e1.EstimatedWaitMinutes != 10 || e2.EstimatedWaitMinutes != 20 || e3.EstimatedWaitMinutes != 30 {
		t.Fatalf("expected waits 10,20,30, got %d,%d,%d",
			e1.EstimatedWaitMinutes, e2.EstimatedWaitMinutes, e3.EstimatedWaitMinutes)
	}
	if setup.business().CurrentQueueLength != 3 {
		t.Fatalf("expected queue length 3, got %d", setup.business().CurrentQueueLength)
	}
	if len(setup.state.refs) != 3 {
		t.Fatalf("expected 3 active queue refs, got %d", len(setup.state.refs))
	}
	if len(setup.outbox.events) != 3 {
		t.Fatalf("expected 3 joined events, got %d", len(setup.outbox.events))
	}
	for _, event := range setup.outbox.events {
		if event.EventType != enums.EventQueueEntryJoined {
			t.Fatalf("unexpected event type %q", event.EventType)
		}
	}
}

func TestJoinRejectsDuplicateActiveEntry(t *testing.T) {
	setup := newLedgerTestSetup(t)
	userID := uuid.New()
	setup.join(t, userID)

	_, err := setup.service.Join(context.Background(), userID, setup.bizID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected duplicate entry conflict, got %v", err)
	}
	if setup.business().CurrentQueueLength != 1 {
		t.Fatalf("expected queue length unchanged, got %d", setup.business().CurrentQueueLength)
	}
}

func TestJoinRejectsClosedOrUnapprovedBusiness(t *testing.T) {
	setup := newLedgerTestSetup(t)

	setup.business().Status = enums.BusinessStatusClosed
	_, err := setup.service.Join(context.Background(), uuid.New(), setup.bizID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for closed business, got %v", err)
	}

	setup.business().Status = enums.BusinessStatusOpen
	setup.business().ApprovalStatus = enums.ApprovalStatusPending
	_, err = setup.service.Join(context.Background(), uuid.New(), setup.bizID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for unapproved business, got %v", err)
	}

	_, err = setup.service.Join(context.Background(), uuid.New(), uuid.New())
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown business, got %v", err)
	}
}

func TestJoinRejectsFullQueue(t *testing.T) {
	setup := newLedgerTestSetup(t)
	setup.business().MaxQueueSize = 2

	setup.join(t, uuid.New())
	setup.join(t, uuid.New())

	_, err := setup.service.Join(context.Background(), uuid.New(), setup.bizID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected queue full conflict, got %v", err)
	}
}

func TestServeNextPromotesInArrivalOrder(t *testing.T) {
	setup := newLedgerTestSetup(t)
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	setup.join(t, u1)
	setup.join(t, u2)
	setup.join(t, u3)
	setup.outbox.events = nil

	first, err := setup.service.ServeNext(context.Background(), setup.ownerID, setup.bizID)
	if err != nil {
		t.Fatalf("serve next failed: %v", err)
	}
	if first == nil || first.UserID != u1 {
		t.Fatalf("expected first joiner promoted")
	}
	if first.StartedAt == nil {
		t.Fatalf("expected started_at set")
	}
	if setup.currentCount() != 1 {
		t.Fatalf("expected exactly one current entry")
	}
	if setup.business().CurrentQueueLength != 3 {
		t.Fatalf("promotion must not change queue length, got %d", setup.business().CurrentQueueLength)
	}
	if len(setup.outbox.events) != 1 || setup.outbox.events[0].EventType != enums.EventQueueEntryCalled {
		t.Fatalf("expected a single called event")
	}

	second, err := setup.service.ServeNext(context.Background(), setup.ownerID, setup.bizID)
	if err != nil {
		t.Fatalf("serve next failed: %v", err)
	}
	if second == nil || second.UserID != u2 {
		t.Fatalf("expected second joiner promoted")
	}
	if setup.state.entries[first.ID].Status != enums.QueueEntryStatusCompleted {
		t.Fatalf("expected first entry completed")
	}
	if setup.state.entries[first.ID].FinishedAt == nil {
		t.Fatalf("expected finished_at set")
	}
	if _, ok := setup.state.refs[first.ID]; ok {
		t.Fatalf("expected completed entry's ref removed")
	}
	if setup.business().CurrentQueueLength != 2 {
		t.Fatalf("expected queue length 2 after completion, got %d", setup.business().CurrentQueueLength)
	}
	if setup.currentCount() != 1 {
		t.Fatalf("expected exactly one current entry")
	}
}

func TestServeNextEmptyQueue(t *testing.T) {
	setup := newLedgerTestSetup(t)

	entry, err := setup.service.ServeNext(context.Background(), setup.ownerID, setup.bizID)
	if err != nil {
		t.Fatalf("serve next failed: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected no promotion on empty queue")
	}
	if len(setup.outbox.events) != 0 {
		t.Fatalf("expected no events, got %d", len(setup.outbox.events))
	}
}

func TestServeNextDrainsLastCurrent(t *testing.T) {
	setup := newLedgerTestSetup(t)
	userID := uuid.New()
	entry := setup.join(t, userID)

	if _, err := setup.service.ServeNext(context.Background(), setup.ownerID, setup.bizID); err != nil {
		t.Fatalf("serve next failed: %v", err)
	}
	promoted, err := setup.service.ServeNext(context.Background(), setup.ownerID, setup.bizID)
	if err != nil {
		t.Fatalf("serve next failed: %v", err)
	}
	if promoted != nil {
		t.Fatalf("expected no promotion after last customer")
	}
	if setup.state.entries[entry.ID].Status != enums.QueueEntryStatusCompleted {
		t.Fatalf("expected last customer completed")
	}
	if setup.business().CurrentQueueLength != 0 {
		t.Fatalf("expected empty queue, got length %d", setup.business().CurrentQueueLength)
	}
}

func TestServeNextRequiresOwner(t *testing.T) {
	setup := newLedgerTestSetup(t)
	setup.join(t, uuid.New())

	_, err := setup.service.ServeNext(context.Background(), uuid.New(), setup.bizID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	setup := newLedgerTestSetup(t)
	userID := uuid.New()
	entry := setup.join(t, userID)
	setup.join(t, uuid.New())

	cancelled, err := setup.service.Leave(context.Background(), userID, entry.ID)
	if err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if cancelled.Status != enums.QueueEntryStatusCancelled {
		t.Fatalf("expected cancelled status, got %q", cancelled.Status)
	}
	if cancelled.CancelledBy == nil || *cancelled.CancelledBy != enums.CancelActorCustomer {
		t.Fatalf("expected customer recorded as cancel actor")
	}
	if setup.business().CurrentQueueLength != 1 {
		t.Fatalf("expected queue length 1, got %d", setup.business().CurrentQueueLength)
	}

	again, err := setup.service.Leave(context.Background(), userID, entry.ID)
	if err != nil {
		t.Fatalf("second leave failed: %v", err)
	}
	if again.Status != enums.QueueEntryStatusCancelled {
		t.Fatalf("expected cancelled status, got %q", again.Status)
	}
	if setup.business().CurrentQueueLength != 1 {
		t.Fatalf("second leave must not double-decrement, got %d", setup.business().CurrentQueueLength)
	}
}

func TestLeaveDoesNotRenumberRemaining(t *testing.T) {
	setup := newLedgerTestSetup(t)
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	setup.join(t, u1)
	e2 := setup.join(t, u2)
	e3 := setup.join(t, u3)

	if _, err := setup.service.Leave(context.Background(), u2, e2.ID); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	if setup.state.entries[e3.ID].Position != 3 {
		t.Fatalf("stored position must not be renumbered, got %d", setup.state.entries[e3.ID].Position)
	}
	if setup.business().CurrentQueueLength != 2 {
		t.Fatalf("expected queue length 2, got %d", setup.business().CurrentQueueLength)
	}

	// Display rank compacts even though the stored position keeps its gap.
	dto, err := setup.service.GetEntry(context.Background(), u3, e3.ID)
	if err != nil {
		t.Fatalf("get entry failed: %v", err)
	}
	if dto.DisplayRank != 2 {
		t.Fatalf("expected display rank 2, got %d", dto.DisplayRank)
	}
	if dto.EstimatedWaitMinutes != 20 {
		t.Fatalf("expected live wait 20, got %d", dto.EstimatedWaitMinutes)
	}
}

func TestLeaveWhileCurrentLeavesNoCurrent(t *testing.T) {
	setup := newLedgerTestSetup(t)
	u1, u2 := uuid.New(), uuid.New()
	e1 := setup.join(t, u1)
	setup.join(t, u2)

	if _, err := setup.service.ServeNext(context.Background(), setup.ownerID, setup.bizID); err != nil {
		t.Fatalf("serve next failed: %v", err)
	}
	if _, err := setup.service.Leave(context.Background(), u1, e1.ID); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	// Nobody is auto-promoted; staff call ServeNext when ready.
	if setup.currentCount() != 0 {
		t.Fatalf("expected no current entry after cancel")
	}
	if setup.state.entries[e1.ID].Status != enums.QueueEntryStatusCancelled {
		t.Fatalf("expected current entry cancelled")
	}
}

func TestRemoveRequiresOwner(t *testing.T) {
	setup := newLedgerTestSetup(t)
	userID := uuid.New()
	entry := setup.join(t, userID)

	_, err := setup.service.Remove(context.Background(), uuid.New(), entry.ID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	removed, err := setup.service.Remove(context.Background(), setup.ownerID, entry.ID)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if removed.CancelledBy == nil || *removed.CancelledBy != enums.CancelActorOwner {
		t.Fatalf("expected owner recorded as cancel actor")
	}
}

func TestLeaveRejectsOtherUsersEntry(t *testing.T) {
	setup := newLedgerTestSetup(t)
	entry := setup.join(t, uuid.New())

	_, err := setup.service.Leave(context.Background(), uuid.New(), entry.ID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestMyQueuesReconcilesStaleRefs(t *testing.T) {
	setup := newLedgerTestSetup(t)
	userID := uuid.New()
	entry := setup.join(t, userID)

	// Simulate drift: the entry went terminal but the pointer survived.
	setup.state.entries[entry.ID].Status = enums.QueueEntryStatusCancelled

	queues, err := setup.service.MyQueues(context.Background(), userID)
	if err != nil {
		t.Fatalf("my queues failed: %v", err)
	}
	if len(queues) != 0 {
		t.Fatalf("expected stale ref dropped, got %d rows", len(queues))
	}
	if len(setup.state.refs) != 0 {
		t.Fatalf("expected stale ref deleted")
	}
}

func TestMyQueuesReturnsLiveRanks(t *testing.T) {
	setup := newLedgerTestSetup(t)
	u1, u2 := uuid.New(), uuid.New()
	setup.join(t, u1)
	entry := setup.join(t, u2)

	queues, err := setup.service.MyQueues(context.Background(), u2)
	if err != nil {
		t.Fatalf("my queues failed: %v", err)
	}
	if len(queues) != 1 {
		t.Fatalf("expected one active queue, got %d", len(queues))
	}
	row := queues[0]
	if row.Entry.ID != entry.ID || row.BusinessName != "Corner Barbers" {
		t.Fatalf("unexpected row %+v", row)
	}
	if row.Entry.DisplayRank != 2 {
		t.Fatalf("expected rank 2, got %d", row.Entry.DisplayRank)
	}
}

func TestReconcileUserActiveQueue(t *testing.T) {
	setup := newLedgerTestSetup(t)
	userID := uuid.New()
	entry := setup.join(t, userID)
	setup.state.entries[entry.ID].Status = enums.QueueEntryStatusCompleted

	removed, err := setup.service.ReconcileUserActiveQueue(context.Background(), userID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one stale ref removed, got %d", removed)
	}
}

func TestQueueStateOwnerView(t *testing.T) {
	setup := newLedgerTestSetup(t)
	u1, u2 := uuid.New(), uuid.New()
	setup.join(t, u1)
	setup.join(t, u2)
	if _, err := setup.service.ServeNext(context.Background(), setup.ownerID, setup.bizID); err != nil {
		t.Fatalf("serve next failed: %v", err)
	}

	_, err := setup.service.QueueState(context.Background(), uuid.New(), setup.bizID)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for non-owner, got %v", err)
	}

	state, err := setup.service.QueueState(context.Background(), setup.ownerID, setup.bizID)
	if err != nil {
		t.Fatalf("queue state failed: %v", err)
	}
	if state.Current == nil || state.Current.UserID != u1 {
		t.Fatalf("expected first joiner current")
	}
	if len(state.Waiting) != 1 || state.Waiting[0].UserID != u2 {
		t.Fatalf("expected one waiting entry")
	}
	if state.Waiting[0].DisplayRank != 1 {
		t.Fatalf("expected waiting rank 1, got %d", state.Waiting[0].DisplayRank)
	}
}

func TestHistoryListsTerminalEntries(t *testing.T) {
	setup := newLedgerTestSetup(t)
	userID := uuid.New()
	entry := setup.join(t, userID)
	if _, err := setup.service.Leave(context.Background(), userID, entry.ID); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	history, _, err := setup.service.History(context.Background(), userID, 10, nil)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 || history[0].Status != enums.QueueEntryStatusCancelled {
		t.Fatalf("expected one cancelled entry in history")
	}
}
