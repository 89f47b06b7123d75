// Package runlock serializes scheduler invocations with a best-effort
// redis lock. The dedup gate assumes a single writer per key; when the
// scheduler fires again before the previous run finished, the newer run
// should bail out instead of racing the ledger.
package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a held run lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire tries to take the named lock for ttl. The bool reports whether
// the lock was taken; false with a nil error means another run holds it.
func Acquire(ctx context.Context, addr, password string, db int, key, token string, ttl time.Duration) (*Lock, bool, error) {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		_ = client.Close()
		return nil, false, fmt.Errorf("runlock: acquire %s: %w", key, err)
	}
	if !ok {
		_ = client.Close()
		return nil, false, nil
	}
	return &Lock{client: client, key: key, token: token}, true, nil
}

// Release drops the lock if this run still holds it, then closes the
// connection. Expired-and-reacquired locks are left alone.
func (l *Lock) Release(ctx context.Context) error {
	defer func() { _ = l.client.Close() }()

	const script = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`
	if err := redis.NewScript(script).Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("runlock: release %s: %w", l.key, err)
	}
	return nil
}
