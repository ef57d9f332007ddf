// Package claim prevents two in-flight jobs for the same raw object across
// service instances.
package claim

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"videoproc/internal/pkg/errors"
)

const keyPrefix = "videoproc:claim:"

// Claimer reserves a raw object for one job.
type Claimer interface {
	// Acquire returns a CONFLICT error when another owner holds the object.
	Acquire(ctx context.Context, object, owner string) error
	// Release drops the claim if owner still holds it.
	Release(ctx context.Context, object, owner string) error
}

// Key returns the Redis key guarding object.
func Key(object string) string {
	return keyPrefix + object
}

// releaseScript deletes the key only when it still carries the caller's
// owner token, so an expired-and-retaken claim is never dropped.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisClaimer struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisClaimer(rdb *redis.Client, ttl time.Duration) *RedisClaimer {
	return &RedisClaimer{rdb: rdb, ttl: ttl}
}

func (c *RedisClaimer) Acquire(ctx context.Context, object, owner string) error {
	ok, err := c.rdb.SetNX(ctx, Key(object), owner, c.ttl).Result()
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "claim.acquire", "redis claim failed").
			WithField("object", object)
	}
	if !ok {
		return errors.Conflict(fmt.Sprintf("object %s is already being processed", object)).
			WithField("object", object)
	}
	return nil
}

func (c *RedisClaimer) Release(ctx context.Context, object, owner string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{Key(object)}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "claim.release", "redis release failed").
			WithField("object", object)
	}
	return nil
}

// Noop is used when no Redis is configured; every claim succeeds.
type Noop struct{}

func (Noop) Acquire(context.Context, string, string) error { return nil }
func (Noop) Release(context.Context, string, string) error { return nil }
