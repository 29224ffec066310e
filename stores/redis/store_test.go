package redis

import (
	"context"
	"os"
	"testing"

	"slidedeck/stores/storetest"

	"github.com/redis/go-redis/v9"
)

// The test needs a disposable Redis: REDIS_TEST_ADDR=127.0.0.1:6379. The
// selected database is flushed.
func TestStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	if err := rdb.FlushDB(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	storetest.Run(t, NewStoreWithClient(rdb))
}

func TestDocumentKey(t *testing.T) {
	if got, want := documentKey("01ABC"), "slidedeck:document:{01ABC}"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
