// Package leader provides Redis-backed leader election so that, when
// the scheduler core runs on more than one replica against a shared
// store, only one replica's firing loop is active at a time (spec.md
// §9 Non-goals: clustering is out of scope for the core itself, but an
// embedder wiring multiple replicas against one store needs this to
// avoid duplicate fires). Adapted from the teacher's DistributedLocker:
// same SetNX-plus-Lua primitives, restructured into a campaign loop
// that runs a callback for as long as this replica holds the lock.
package leader

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var refreshScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Elector campaigns for a single named lock key, identifying itself as
// ReplicaID.
type Elector struct {
	client    *redis.Client
	key       string
	replicaID string
	ttl       time.Duration
}

// New returns an Elector for the given lock key. replicaID should be
// stable and unique per process (hostname+pid is typical).
func New(client *redis.Client, key, replicaID string, ttl time.Duration) *Elector {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Elector{client: client, key: lockKey(key), replicaID: replicaID, ttl: ttl}
}

func lockKey(key string) string { return fmt.Sprintf("leader:%s", key) }

func (e *Elector) tryAcquire(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.key, e.replicaID, e.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("leader: acquire: %w", err)
	}
	return ok, nil
}

func (e *Elector) refresh(ctx context.Context) (bool, error) {
	res, err := refreshScript.Run(ctx, e.client, []string{e.key}, e.replicaID, e.ttl.Milliseconds()).Result()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("leader: refresh: %w", err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (e *Elector) release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, e.client, []string{e.key}, e.replicaID).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("leader: release: %w", err)
	}
	return nil
}

// IsLeader reports whether this replica currently holds the lock.
func (e *Elector) IsLeader(ctx context.Context) (bool, error) {
	value, err := e.client.Get(ctx, e.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("leader: check: %w", err)
	}
	return value == e.replicaID, nil
}

// Run campaigns for leadership until ctx is cancelled. Each time this
// replica wins the lock it calls onElected with a context that is
// cancelled the moment leadership is lost (lock not refreshed in time,
// or Run's own ctx is done), and waits for onElected to return before
// campaigning again.
func (e *Elector) Run(ctx context.Context, onElected func(leaderCtx context.Context) error) error {
	retry := time.NewTicker(e.ttl / 3)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry.C:
		}

		acquired, err := e.tryAcquire(ctx)
		if err != nil || !acquired {
			continue
		}

		leaderCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- onElected(leaderCtx) }()

		refreshTicker := time.NewTicker(e.ttl / 3)
	holdLoop:
		for {
			select {
			case err := <-done:
				refreshTicker.Stop()
				cancel()
				e.release(ctx)
				return err
			case <-ctx.Done():
				refreshTicker.Stop()
				cancel()
				e.release(context.Background())
				<-done
				return ctx.Err()
			case <-refreshTicker.C:
				held, rerr := e.refresh(ctx)
				if rerr != nil || !held {
					refreshTicker.Stop()
					cancel()
					<-done
					break holdLoop
				}
			}
		}
	}
}
