package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	qErrors "github.com/vogiaan1904/tablequeue/internal/errors"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

func TestKVRepositoryRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is required for integration tests")
	}

	ctx := context.Background()
	cli := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = cli.Close() })

	repo := NewKVRepository(cli, logger.InitializeTestZapLogger())
	key := "test:" + uuid.NewString()

	if _, err := repo.Get(ctx, key); !errors.Is(err, qErrors.ErrKeyNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.Set(ctx, key, `{"a":1}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := repo.Get(ctx, key)
	if err != nil || got != `{"a":1}` {
		t.Fatalf("unexpected get %q %v", got, err)
	}
	if err := repo.Remove(ctx, key); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := repo.Get(ctx, key); !errors.Is(err, qErrors.ErrKeyNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
}
