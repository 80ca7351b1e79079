package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bookclub-matching/internal/domain"
)

// RedisMatchingQueue реализует очередь задач на базе Redis lists.
type RedisMatchingQueue struct {
	client *redis.Client
	key    string
}

var _ domain.MatchingQueue = (*RedisMatchingQueue)(nil)

// NewRedisMatchingQueue создаёт очередь по указанному ключу.
func NewRedisMatchingQueue(client *redis.Client, key string) *RedisMatchingQueue {
	return &RedisMatchingQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisMatchingQueue) Enqueue(ctx context.Context, job domain.MatchingJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RedisMatchingQueue) Pop(ctx context.Context) (domain.MatchingJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.MatchingJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.MatchingJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.MatchingJob{}, err
		}
		if len(res) != 2 {
			return domain.MatchingJob{}, errors.New("redis queue: unexpected response")
		}
		var job domain.MatchingJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.MatchingJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}
