package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RunLockRepository serialises generation runs per school. It uses Redis
// when a client is configured and an in-process table otherwise.
type RunLockRepository struct {
	client *redis.Client
	prefix string

	mu    sync.Mutex
	local map[string]localLock
	now   func() time.Time
}

type localLock struct {
	token   string
	expires time.Time
}

// NewRunLockRepository constructs a lock repository. client may be nil.
func NewRunLockRepository(client *redis.Client) *RunLockRepository {
	return &RunLockRepository{
		client: client,
		prefix: "timetable:lock:",
		local:  make(map[string]localLock),
		now:    time.Now,
	}
}

// Acquire takes the lock for key. ok is false when another holder owns it.
func (r *RunLockRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.NewString()
	if r.client == nil {
		return token, r.acquireLocal(key, token, ttl), nil
	}

	ok, err = r.client.SetNX(ctx, r.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis acquire lock %s: %w", key, err)
	}
	return token, ok, nil
}

// Release frees the lock if token still owns it.
func (r *RunLockRepository) Release(ctx context.Context, key, token string) error {
	if r.client == nil {
		r.releaseLocal(key, token)
		return nil
	}

	if err := releaseScript.Run(ctx, r.client, []string{r.prefix + key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release lock %s: %w", key, err)
	}
	return nil
}

func (r *RunLockRepository) acquireLocal(key, token string, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if held, exists := r.local[key]; exists && now.Before(held.expires) {
		return false
	}
	r.local[key] = localLock{token: token, expires: now.Add(ttl)}
	return true
}

func (r *RunLockRepository) releaseLocal(key, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if held, exists := r.local[key]; exists && held.token == token {
		delete(r.local, key)
	}
}
