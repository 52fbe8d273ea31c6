package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	id "resolute/pkg/domain"
)

// Lease is a short-lived exclusive claim on a task, held while a reviewer
// works it. The task store's version check is the source of truth; the lease
// only cuts down on wasted reviewer effort across replicas.
type Lease interface {
	// Acquire claims the task for reviewer. Returns false when another
	// reviewer holds the claim.
	Acquire(ctx context.Context, taskID id.TaskID, reviewer string) (bool, error)

	// Release drops the claim if reviewer still holds it.
	Release(ctx context.Context, taskID id.TaskID, reviewer string) error
}

// releaseScript deletes the lease key only when the caller still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLease implements Lease on a shared Redis instance.
type RedisLease struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLease(client *redis.Client, ttl time.Duration) *RedisLease {
	return &RedisLease{client: client, ttl: ttl}
}

func leaseKey(taskID id.TaskID) string {
	return "review:lease:" + taskID.String()
}

func (l *RedisLease) Acquire(ctx context.Context, taskID id.TaskID, reviewer string) (bool, error) {
	return l.client.SetNX(ctx, leaseKey(taskID), reviewer, l.ttl).Result()
}

func (l *RedisLease) Release(ctx context.Context, taskID id.TaskID, reviewer string) error {
	return releaseScript.Run(ctx, l.client, []string{leaseKey(taskID)}, reviewer).Err()
}
