// Package jobs owns the lifecycle of a ProcessingJob: submission, one pipeline run,
// at-most-once result retrieval and retention cleanup.
package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"snapfixer/internal/database"
	"snapfixer/internal/errcode"
	"snapfixer/internal/metrics"
	"snapfixer/internal/photo"
	"snapfixer/internal/storage"
	"snapfixer/internal/tasks"
)

// ErrJobClaimed means another run already moved the job out of Pending.
var ErrJobClaimed = errors.New("job already claimed")

const sweepBatchSize = 100

// ObjectStore is the subset of storage.Client used for source and result images.
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	DeleteObject(ctx context.Context, objectKey string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Enqueuer dispatches tasks; *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Processor runs the image pipeline; *photo.Processor satisfies it.
type Processor interface {
	Process(ctx context.Context, data []byte, rule photo.DocumentRule) ([]byte, error)
}

// Config holds lifecycle settings.
type Config struct {
	Retention   time.Duration
	Queue       string
	TaskTimeout time.Duration
}

// Service drives jobs through Pending → Processing → Completed|Failed.
type Service struct {
	store     *Store
	objects   ObjectStore
	queue     Enqueuer
	processor Processor
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithQueue enables Submit.
func WithQueue(queue Enqueuer) Option { return func(s *Service) { s.queue = queue } }

// WithProcessor enables Run.
func WithProcessor(p Processor) Option { return func(s *Service) { s.processor = p } }

// WithClock overrides time.Now, for the sweep cutoff and creation timestamps.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(db *gorm.DB, objects ObjectStore, logger *slog.Logger, cfg Config, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	s := &Service{
		store:   NewStore(db),
		objects: objects,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submission is an upload that already passed boundary validation.
type Submission struct {
	Data          []byte
	Extension     string
	ContentType   string
	Slug          string
	Rule          photo.DocumentRule
	CorrelationID string
}

// Receipt identifies an accepted job.
type Receipt struct {
	JobID  string
	TaskID string
	Status database.JobStatus
}

// Submit stores the source image, records a Pending job and dispatches it. If the
// dispatch fails the job is marked Failed and the source removed.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Receipt, error) {
	if len(sub.Data) == 0 {
		return nil, errors.New("submit: empty image")
	}
	if s.queue == nil {
		return nil, errors.New("submit: no queue configured")
	}

	id := uuid.NewString()
	log := s.logger.With(slog.String("job_id", id), slog.String("correlation_id", sub.CorrelationID))

	sourceKey := jobPrefix(id) + "source" + cleanExtension(sub.Extension)
	if _, err := s.objects.UploadFile(ctx, sourceKey, bytes.NewReader(sub.Data), int64(len(sub.Data)), sub.ContentType); err != nil {
		return nil, fmt.Errorf("store source for job %s: %w", id, err)
	}

	job := &database.ProcessingJob{
		ID:            id,
		Rule:          datatypes.NewJSONType(sub.Rule),
		DocumentSlug:  sub.Slug,
		SourceKey:     sourceKey,
		Status:        database.JobPending,
		TaskID:        id,
		CorrelationID: sub.CorrelationID,
		CreatedAt:     s.now(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		if delErr := s.objects.DeleteObject(ctx, sourceKey); delErr != nil {
			log.Error("delete orphaned source failed", slog.Any("error", delErr))
		}
		return nil, err
	}

	task, err := tasks.NewPhotoProcessTask(id, sub.CorrelationID)
	if err != nil {
		s.fail(ctx, log, job, errcode.SystemError, fmt.Sprintf("build task: %v", err))
		return nil, fmt.Errorf("build task for job %s: %w", id, err)
	}
	info, err := s.queue.EnqueueContext(ctx, task,
		asynq.TaskID(id),
		asynq.MaxRetry(0),
		asynq.Queue(s.queueName()),
		asynq.Timeout(s.cfg.TaskTimeout),
	)
	if err != nil {
		s.fail(ctx, log, job, errcode.SystemError, fmt.Sprintf("dispatch failed: %v", err))
		return nil, fmt.Errorf("enqueue job %s: %w", id, err)
	}

	log.Info("photo job submitted", slog.String("task_id", info.ID), slog.String("rule", sub.Slug))
	return &Receipt{JobID: id, TaskID: info.ID, Status: database.JobPending}, nil
}

// Outcome is the terminal state reached by Run.
type Outcome struct {
	JobID         string
	CorrelationID string
	Status        database.JobStatus
	ErrorCode     int
	ErrorMessage  string
}

// Run executes the pipeline for one Pending job. Unknown jobs yield ErrJobNotFound,
// jobs already claimed or terminal yield ErrJobClaimed. When the pipeline or storage
// fails the returned Outcome is Failed and err carries the cause.
func (s *Service) Run(ctx context.Context, id string) (Outcome, error) {
	if s.processor == nil {
		return Outcome{}, errors.New("run: no processor configured")
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	log := s.logger.With(slog.String("job_id", id), slog.String("correlation_id", job.CorrelationID))
	outcome := Outcome{JobID: id, CorrelationID: job.CorrelationID}

	claimed, err := s.store.Transition(ctx, id, []database.JobStatus{database.JobPending}, map[string]any{
		"status": database.JobProcessing,
	})
	if err != nil {
		return outcome, err
	}
	if !claimed {
		return outcome, ErrJobClaimed
	}
	job.Status = database.JobProcessing

	failWith := func(code int, cause error) (Outcome, error) {
		msg := cause.Error()
		s.fail(ctx, log, job, code, msg)
		outcome.Status, outcome.ErrorCode, outcome.ErrorMessage = database.JobFailed, code, msg
		return outcome, cause
	}

	source, err := s.objects.ReadObject(ctx, job.SourceKey)
	if err != nil {
		code := errcode.SystemError
		if storage.IsNoSuchKey(err) {
			code = errcode.ResourceMissing
		}
		return failWith(code, fmt.Errorf("load source image: %w", err))
	}

	rule := job.Rule.Data()
	result, err := s.processor.Process(ctx, source, rule)
	if err != nil {
		return failWith(codeFor(err), err)
	}

	resultKey := jobPrefix(id) + "result.png"
	if _, err := s.objects.UploadFile(ctx, resultKey, bytes.NewReader(result), int64(len(result)), "image/png"); err != nil {
		return failWith(errcode.SystemError, fmt.Errorf("store result: %w", err))
	}

	s.deleteSource(ctx, log, job.SourceKey)
	done, err := s.store.Transition(ctx, id, []database.JobStatus{database.JobProcessing}, map[string]any{
		"status":     database.JobCompleted,
		"result_key": resultKey,
		"source_key": "",
	})
	if err != nil || !done {
		if delErr := s.objects.DeleteObject(ctx, resultKey); delErr != nil {
			log.Error("delete unreferenced result failed", slog.Any("error", delErr))
		}
		if err != nil {
			return outcome, err
		}
		return outcome, ErrJobNotFound
	}

	log.Info("photo job completed", slog.Int("bytes", len(result)))
	outcome.Status = database.JobCompleted
	return outcome, nil
}

// PollResult is what a caller sees for a job. Result is set only for Completed.
type PollResult struct {
	Status       database.JobStatus
	Rule         photo.DocumentRule
	Result       []byte
	ErrorCode    int
	ErrorMessage string
}

// Status reads a job without consuming it, for status streams that must not take the
// result away from the poller.
func (s *Service) Status(ctx context.Context, id string) (Outcome, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		JobID:         job.ID,
		CorrelationID: job.CorrelationID,
		Status:        job.Status,
		ErrorCode:     job.ErrorCode,
		ErrorMessage:  job.ErrorMessage,
	}, nil
}

// Poll reports job status. Reading a Completed or Failed job consumes it: the row and
// its objects are deleted and later polls return ErrJobNotFound. Concurrent polls of a
// Completed job return the result to at most one caller.
func (s *Service) Poll(ctx context.Context, id string) (*PollResult, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(slog.String("job_id", id))
	res := &PollResult{Status: job.Status, Rule: job.Rule.Data()}

	switch job.Status {
	case database.JobCompleted:
		data, err := s.objects.ReadObject(ctx, job.ResultKey)
		if err != nil {
			if storage.IsNoSuchKey(err) {
				return nil, ErrJobNotFound
			}
			return nil, fmt.Errorf("load result for job %s: %w", id, err)
		}
		won, err := s.store.DeleteIfStatus(ctx, id, database.JobCompleted)
		if err != nil {
			return nil, err
		}
		if !won {
			return nil, ErrJobNotFound
		}
		if err := s.objects.DeletePrefix(ctx, jobPrefix(id)); err != nil {
			log.Error("delete retrieved result failed", slog.Any("error", err))
		}
		res.Result = data
	case database.JobFailed:
		won, err := s.store.DeleteIfStatus(ctx, id, database.JobFailed)
		if err != nil {
			return nil, err
		}
		if !won {
			return nil, ErrJobNotFound
		}
		if err := s.objects.DeletePrefix(ctx, jobPrefix(id)); err != nil {
			log.Error("delete failed job objects failed", slog.Any("error", err))
		}
		res.ErrorCode, res.ErrorMessage = job.ErrorCode, job.ErrorMessage
	}
	return res, nil
}

// Sweep deletes every job created before now minus the retention window, whatever its
// status, together with its stored objects. Jobs whose objects cannot be removed are
// kept for the next sweep.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.Retention)
	deleted := 0
	var errs []error
	skip := map[string]struct{}{}

	for {
		batch, err := s.store.CreatedBefore(ctx, cutoff, sweepBatchSize+len(skip))
		if err != nil {
			return deleted, err
		}
		progressed := false
		for _, job := range batch {
			if _, ok := skip[job.ID]; ok {
				continue
			}
			if err := s.objects.DeletePrefix(ctx, jobPrefix(job.ID)); err != nil {
				skip[job.ID] = struct{}{}
				errs = append(errs, err)
				continue
			}
			if err := s.store.Delete(ctx, job.ID); err != nil {
				skip[job.ID] = struct{}{}
				errs = append(errs, err)
				continue
			}
			deleted++
			progressed = true
		}
		if !progressed || len(batch) < sweepBatchSize+len(skip) {
			break
		}
	}

	if deleted > 0 || len(errs) > 0 {
		s.logger.Info("retention sweep finished",
			slog.Int("deleted", deleted),
			slog.Int("failed", len(errs)),
			slog.Time("cutoff", cutoff),
		)
	}
	return deleted, errors.Join(errs...)
}

// fail removes the source image and then records the Failed status.
func (s *Service) fail(ctx context.Context, log *slog.Logger, job *database.ProcessingJob, code int, msg string) {
	ctx = context.WithoutCancel(ctx)
	s.deleteSource(ctx, log, job.SourceKey)
	ok, err := s.store.Transition(ctx, job.ID, []database.JobStatus{database.JobPending, database.JobProcessing}, map[string]any{
		"status":        database.JobFailed,
		"error_message": msg,
		"error_code":    code,
		"source_key":    "",
	})
	switch {
	case err != nil:
		log.Error("mark job failed", slog.Any("error", err))
	case !ok:
		log.Warn("job vanished before it could be marked failed")
	default:
		log.Warn("photo job failed", slog.Int("error_code", code), slog.String("error", msg))
	}
}

func (s *Service) deleteSource(ctx context.Context, log *slog.Logger, key string) {
	if err := s.objects.DeleteObject(ctx, key); err != nil {
		metrics.RecordSourceDeleteFailure()
		log.Error("delete source image failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) queueName() string {
	if s.cfg.Queue == "" {
		return "default"
	}
	return s.cfg.Queue
}

func codeFor(err error) int {
	switch photo.KindOf(err) {
	case photo.KindDecode:
		return errcode.InvalidImage
	case photo.KindIsolation:
		return errcode.IsolationFailed
	case photo.KindEncoding:
		return errcode.EncodingFailed
	default:
		return errcode.SystemError
	}
}

func jobPrefix(id string) string {
	return storage.JobObjectPrefix + id + "/"
}

func cleanExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || len(ext) > 8 || !strings.HasPrefix(ext, ".") {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
