package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisJobPrefix = "stacfed:job:"
	// RedisPendingList is the list workers BRPOP job ids from.
	RedisPendingList = "stacfed:jobs:pending"
	// redisJobTTL bounds how long job records are kept for polling.
	redisJobTTL = 7 * 24 * time.Hour
)

// RedisQueue stores job records in Redis and pushes new job ids onto
// RedisPendingList for workers.
type RedisQueue struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisQueue creates a queue on an existing client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, now: time.Now}
}

// Submit implements Queue. The record and the pending entry are written
// in one transaction.
func (q *RedisQueue) Submit(ctx context.Context, job *Job) (*Job, error) {
	queued, err := prepare(job, q.now())
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(queued)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisJobPrefix+queued.ID, data, redisJobTTL)
		pipe.LPush(ctx, RedisPendingList, queued.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job %s: %w", queued.ID, err)
	}
	return queued, nil
}

// Get implements Queue.
func (q *RedisQueue) Get(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, redisJobPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}
