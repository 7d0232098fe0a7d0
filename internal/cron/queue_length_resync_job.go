package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qline-app/qline-backend/pkg/db/models"
	"github.com/qline-app/qline-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type QueueLengthResyncJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Entries    queueCountsRepo
	Businesses businessCounterRepo
}

type queueCountsRepo interface {
	ActiveCounts(ctx context.Context) (map[uuid.UUID]int, error)
	CountActiveTx(tx *gorm.DB, businessID uuid.UUID) (int, error)
}

type businessCounterRepo interface {
	QueueLengths(ctx context.Context) (map[uuid.UUID]int, error)
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.Business, error)
	SetQueueLengthTx(tx *gorm.DB, id uuid.UUID, length int) error
}

// NewQueueLengthResyncJob builds the job that repairs drift between the
// denormalized per-business queue counter and the actual number of active
// entries.
func NewQueueLengthResyncJob(params QueueLengthResyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Entries == nil {
		return nil, fmt.Errorf("queue entries repository required")
	}
	if params.Businesses == nil {
		return nil, fmt.Errorf("businesses repository required")
	}
	return &queueLengthResyncJob{
		logg:       params.Logger,
		db:         params.DB,
		entries:    params.Entries,
		businesses: params.Businesses,
	}, nil
}

type queueLengthResyncJob struct {
	logg       *logger.Logger
	db         txRunner
	entries    queueCountsRepo
	businesses businessCounterRepo
}

func (j *queueLengthResyncJob) Name() string { return "queue-length-resync" }

func (j *queueLengthResyncJob) Run(ctx context.Context) error {
	counts, err := j.entries.ActiveCounts(ctx)
	if err != nil {
		return fmt.Errorf("count active entries: %w", err)
	}
	lengths, err := j.businesses.QueueLengths(ctx)
	if err != nil {
		return fmt.Errorf("load queue lengths: %w", err)
	}

	var repaired int
	for businessID, stored := range lengths {
		if stored == counts[businessID] {
			continue
		}
		// Re-count under the business row lock: the unlocked snapshot
		// above only nominates candidates and may be stale.
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			if _, err := j.businesses.FindByIDForUpdate(tx, businessID); err != nil {
				return err
			}
			actual, err := j.entries.CountActiveTx(tx, businessID)
			if err != nil {
				return err
			}
			return j.businesses.SetQueueLengthTx(tx, businessID, actual)
		})
		if err != nil {
			j.logg.Error(j.logg.WithField(ctx, "business_id", businessID.String()), "queue length resync failed", err)
			continue
		}
		repaired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"businesses_checked":  len(lengths),
		"businesses_repaired": repaired,
	})
	j.logg.Info(logCtx, "queue length resync complete")
	return nil
}
