package api

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

func currentCount(ctx context.Context, client redisRateCounter, key string) (int64, error) {
	count, err := client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

type redisStatusSubscriber struct {
	client redis.UniversalClient
}

// NewRedisStatusSubscriber adapts a go-redis client to StatusSubscriber.
func NewRedisStatusSubscriber(client redis.UniversalClient) StatusSubscriber {
	return redisStatusSubscriber{client: client}
}

// Subscribe waits for the server's subscribe confirmation before returning.
func (s redisStatusSubscriber) Subscribe(ctx context.Context, channel string) (StatusSubscription, error) {
	pubsub := s.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	return pubsub, nil
}
