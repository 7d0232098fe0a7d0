package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/qline-app/qline-backend/pkg/logger"
)

type StaleRefsJobParams struct {
	Logger     *logger.Logger
	Repository staleRefsRepo
}

type staleRefsRepo interface {
	DeleteStale(ctx context.Context, userID *uuid.UUID) (int64, error)
}

// NewStaleRefsJob builds the job that removes active-queue pointers whose
// underlying entry is no longer waiting or being served.
func NewStaleRefsJob(params StaleRefsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("refs repository required")
	}
	return &staleRefsJob{logg: params.Logger, repo: params.Repository}, nil
}

type staleRefsJob struct {
	logg *logger.Logger
	repo staleRefsRepo
}

func (j *staleRefsJob) Name() string { return "stale-refs-cleanup" }

func (j *staleRefsJob) Run(ctx context.Context) error {
	deleted, err := j.repo.DeleteStale(ctx, nil)
	if err != nil {
		return fmt.Errorf("stale refs cleanup: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "rows_deleted", deleted), "stale refs cleanup complete")
	return nil
}
