package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PhotoStatusMessage 是通过 Redis Pub/Sub 转发给 WebSocket 客户端的状态消息。
// 字段名与前端解析保持一致。
type PhotoStatusMessage struct {
	Status        string `json:"status"`
	JobID         string `json:"job_id"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

// Publisher is satisfied by *redis.Client.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// NotifyChannel is the per-job status channel.
func NotifyChannel(jobID string) string {
	return "photo_notify:" + jobID
}

func publishStatus(ctx context.Context, pub Publisher, msg PhotoStatusMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(msg.JobID)
	if err := pub.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
