package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"snapfixer/internal/database"
)

// ErrJobNotFound is returned for unknown jobs, including jobs already retrieved or swept.
var ErrJobNotFound = errors.New("job not found")

// Store persists ProcessingJob rows. Status changes go through conditional updates so
// a terminal job can never move back.
type Store struct {
	db *gorm.DB
}

// NewStore wraps a gorm handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, job *database.ProcessingJob) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*database.ProcessingJob, error) {
	var job database.ProcessingJob
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("query job %s: %w", id, err)
	}
	return &job, nil
}

// Transition applies updates only while the job is in one of the from states and
// reports whether a row changed.
func (s *Store) Transition(ctx context.Context, id string, from []database.JobStatus, updates map[string]any) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&database.ProcessingJob{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update job %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeleteIfStatus removes the row only when it still has the given status. At most one
// concurrent caller observes true.
func (s *Store) DeleteIfStatus(ctx context.Context, id string, status database.JobStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, status).
		Delete(&database.ProcessingJob{})
	if res.Error != nil {
		return false, fmt.Errorf("delete job %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&database.ProcessingJob{}).Error; err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

// CreatedBefore lists up to limit jobs older than cutoff, oldest first.
func (s *Store) CreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]database.ProcessingJob, error) {
	var jobs []database.ProcessingJob
	err := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list jobs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return jobs, nil
}
