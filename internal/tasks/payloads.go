package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypePhotoProcess = "photo:process"
	TypePhotoSweep   = "photo:sweep"
)

// PhotoProcessPayload carries the job id; everything else lives in the job row.
type PhotoProcessPayload struct {
	JobID         string `json:"job_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewPhotoProcessTask 构造一个照片处理任务。
func NewPhotoProcessTask(jobID, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PhotoProcessPayload{
		JobID:         jobID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePhotoProcess, payload), nil
}

// NewPhotoSweepTask builds the periodic retention sweep task.
func NewPhotoSweepTask() *asynq.Task {
	return asynq.NewTask(TypePhotoSweep, nil)
}
