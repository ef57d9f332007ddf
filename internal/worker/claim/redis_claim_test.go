package claim

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"videoproc/internal/pkg/errors"
)

func TestKey(t *testing.T) {
	if got := Key("cat.mp4"); got != "videoproc:claim:cat.mp4" {
		t.Fatalf("Key = %q", got)
	}
}

func TestNoopAlwaysClaims(t *testing.T) {
	var c Claimer = Noop{}
	ctx := context.Background()
	if err := c.Acquire(ctx, "cat.mp4", "a"); err != nil {
		t.Fatal(err)
	}
	if err := c.Acquire(ctx, "cat.mp4", "b"); err != nil {
		t.Fatal(err)
	}
	if err := c.Release(ctx, "cat.mp4", "a"); err != nil {
		t.Fatal(err)
	}
}

// TestRedisClaimer runs against a live server when REDIS_ADDR is set.
func TestRedisClaimer(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	c := NewRedisClaimer(rdb, time.Minute)
	object := "test-" + uuid.NewString() + ".mp4"
	t.Cleanup(func() { _ = rdb.Del(ctx, Key(object)).Err() })

	if err := c.Acquire(ctx, object, "owner-a"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := c.Acquire(ctx, object, "owner-b"); !errors.IsCode(err, errors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}

	// A foreign release must not drop the claim.
	if err := c.Release(ctx, object, "owner-b"); err != nil {
		t.Fatalf("foreign release: %v", err)
	}
	if err := c.Acquire(ctx, object, "owner-b"); !errors.IsCode(err, errors.CodeConflict) {
		t.Fatalf("claim dropped by foreign release: %v", err)
	}

	if err := c.Release(ctx, object, "owner-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := c.Acquire(ctx, object, "owner-b"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}
