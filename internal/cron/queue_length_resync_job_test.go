package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/logger"
)

type resyncFakeTxRunner struct{}

func (resyncFakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeQueueCountsRepo struct {
	counts map[uuid.UUID]int
	err    error
}

func (f *fakeQueueCountsRepo) ActiveCounts(ctx context.Context) (map[uuid.UUID]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.counts, nil
}

func (f *fakeQueueCountsRepo) CountActiveTx(tx *gorm.DB, businessID uuid.UUID) (int, error) {
	return f.counts[businessID], nil
}

type fakeBusinessCounterRepo struct {
	lengths map[uuid.UUID]int
	updated map[uuid.UUID]int
	locked  []uuid.UUID
}

func (f *fakeBusinessCounterRepo) QueueLengths(ctx context.Context) (map[uuid.UUID]int, error) {
	return f.lengths, nil
}

func (f *fakeBusinessCounterRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.Business, error) {
	f.locked = append(f.locked, id)
	return &models.Business{ID: id, CurrentQueueLength: f.lengths[id]}, nil
}

func (f *fakeBusinessCounterRepo) SetQueueLengthTx(tx *gorm.DB, id uuid.UUID, length int) error {
	if f.updated == nil {
		f.updated = make(map[uuid.UUID]int)
	}
	f.updated[id] = length
	return nil
}

func newResyncJob(t *testing.T, entries *fakeQueueCountsRepo, businesses *fakeBusinessCounterRepo) Job {
	t.Helper()
	job, err := NewQueueLengthResyncJob(QueueLengthResyncJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         resyncFakeTxRunner{},
		Entries:    entries,
		Businesses: businesses,
	})
	if err != nil {
		t.Fatalf("NewQueueLengthResyncJob: %v", err)
	}
	return job
}

func TestQueueLengthResyncRepairsDriftedCounters(t *testing.T) {
	drifted := uuid.New()
	inSync := uuid.New()
	empty := uuid.New()

	entries := &fakeQueueCountsRepo{counts: map[uuid.UUID]int{drifted: 2, inSync: 1}}
	businesses := &fakeBusinessCounterRepo{lengths: map[uuid.UUID]int{
		drifted: 5,
		inSync:  1,
		empty:   3,
	}}
	job := newResyncJob(t, entries, businesses)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := businesses.updated[drifted]; got != 2 {
		t.Errorf("expected drifted business reset to 2, got %d", got)
	}
	if got := businesses.updated[empty]; got != 0 {
		t.Errorf("expected business with no active entries reset to 0, got %d", got)
	}
	if _, ok := businesses.updated[inSync]; ok {
		t.Error("expected in-sync business to be left alone")
	}
	if len(businesses.locked) != 2 {
		t.Errorf("expected 2 row locks, got %d", len(businesses.locked))
	}
}

func TestQueueLengthResyncFailsWhenCountsUnavailable(t *testing.T) {
	entries := &fakeQueueCountsRepo{err: errors.New("boom")}
	businesses := &fakeBusinessCounterRepo{lengths: map[uuid.UUID]int{}}
	job := newResyncJob(t, entries, businesses)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
