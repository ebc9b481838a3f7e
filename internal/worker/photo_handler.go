package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"snapfixer/internal/jobs"
	"snapfixer/internal/metrics"
	"snapfixer/internal/photo"
	"snapfixer/internal/tasks"
)

// JobRunner is satisfied by *jobs.Service.
type JobRunner interface {
	Run(ctx context.Context, id string) (jobs.Outcome, error)
}

// PhotoTaskHandler 负责消费照片处理任务。
type PhotoTaskHandler struct {
	runner    JobRunner
	publisher Publisher
	logger    *slog.Logger
}

// NewPhotoTaskHandler 创建任务处理器；publisher 为 nil 时不推送状态。
func NewPhotoTaskHandler(runner JobRunner, publisher Publisher, logger *slog.Logger) *PhotoTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoTaskHandler{runner: runner, publisher: publisher, logger: logger}
}

// ProcessTask 实现 asynq.Handler；失败会记录到任务上，且不会重试。
func (h *PhotoTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.PhotoProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("job_id", payload.JobID),
	)
	log.Info("photo processing task started")

	outcome, err := h.runner.Run(ctx, payload.JobID)
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		log.Warn("job not found, skipping task")
		return nil
	case errors.Is(err, jobs.ErrJobClaimed):
		log.Warn("job already claimed, skipping task")
		return nil
	case outcome.Status == "":
		log.Error("photo job could not be run", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	metrics.RecordJobOutcome(string(outcome.Status), string(photo.KindOf(err)))
	if h.publisher != nil {
		notify := PhotoStatusMessage{
			Status:        string(outcome.Status),
			JobID:         outcome.JobID,
			CorrelationID: outcome.CorrelationID,
			ErrorCode:     outcome.ErrorCode,
			ErrorMessage:  outcome.ErrorMessage,
		}
		if pubErr := publishStatus(ctx, h.publisher, notify); pubErr != nil {
			log.Error("publish status notification failed", slog.Any("error", pubErr))
		}
	}

	if err != nil {
		log.Warn("photo processing task failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	log.Info("photo processing task completed")
	return nil
}
