package worker

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"snapfixer/internal/metrics"
)

// Sweeper is satisfied by *jobs.Service.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepTaskHandler runs the periodic retention sweep.
type SweepTaskHandler struct {
	sweeper Sweeper
	logger  *slog.Logger
}

func NewSweepTaskHandler(sweeper Sweeper, logger *slog.Logger) *SweepTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepTaskHandler{sweeper: sweeper, logger: logger}
}

// ProcessTask 实现 asynq.Handler，未删净的任务留给下一次定时清理。
func (h *SweepTaskHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	deleted, err := h.sweeper.Sweep(ctx)
	metrics.RecordSwept(deleted)
	if err != nil {
		h.logger.Error("retention sweep incomplete", slog.Int("deleted", deleted), slog.Any("error", err))
		return err
	}
	return nil
}
