package database

import (
	"time"

	"gorm.io/datatypes"

	"snapfixer/internal/photo"
)

// JobStatus 表示处理任务的生命周期状态。
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ProcessingJob tracks one submitted photo from upload to retrieval.
// Rows are deleted on retrieval or by the retention sweep.
type ProcessingJob struct {
	ID            string                                 `gorm:"primaryKey;size:36"`
	Rule          datatypes.JSONType[photo.DocumentRule] `gorm:"type:jsonb"`
	DocumentSlug  string                                 `gorm:"size:128"`
	SourceKey     string                                 `gorm:"size:512"`
	ResultKey     string                                 `gorm:"size:512"`
	Status        JobStatus                              `gorm:"size:32;index"`
	ErrorMessage  string                                 `gorm:"size:1024"`
	ErrorCode     int
	TaskID        string    `gorm:"size:64"`
	CorrelationID string    `gorm:"size:64"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}
