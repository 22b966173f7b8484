package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/furniture-production-backend/internal/production"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
)

const defaultAutoAdvanceBatch = 100

type ProductionAutoAdvanceJobParams struct {
	Logger    *logger.Logger
	Advancer  autoAdvancer
	BatchSize int
}

type autoAdvancer interface {
	AutoAdvanceBatch(ctx context.Context, batchSize int) (production.BatchResult, error)
}

// NewProductionAutoAdvanceJob materializes elapsed-time progress for every
// in-progress production job. Jobs on hold are left alone.
func NewProductionAutoAdvanceJob(params ProductionAutoAdvanceJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Advancer == nil {
		return nil, fmt.Errorf("production service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultAutoAdvanceBatch
	}
	return &productionAutoAdvanceJob{
		logg:      params.Logger,
		advancer:  params.Advancer,
		batchSize: batch,
	}, nil
}

type productionAutoAdvanceJob struct {
	logg      *logger.Logger
	advancer  autoAdvancer
	batchSize int
}

func (j *productionAutoAdvanceJob) Name() string { return "production-auto-advance" }

func (j *productionAutoAdvanceJob) Run(ctx context.Context) error {
	result, err := j.advancer.AutoAdvanceBatch(ctx, j.batchSize)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":   result.Scanned,
		"advanced":  result.Advanced,
		"completed": result.Completed,
	})
	if err != nil {
		return fmt.Errorf("production auto-advance: %w", err)
	}
	j.logg.Info(logCtx, "production auto-advance complete")
	return nil
}
