package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	qErrors "github.com/vogiaan1904/tablequeue/internal/errors"
	"github.com/vogiaan1904/tablequeue/internal/repository"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

const keyPrefix = "tablequeue:"

type kvRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewKVRepository(cli *redis.Client, l logger.Logger) repository.KVRepository {
	return &kvRepository{
		cli: cli,
		l:   l,
	}
}

func (r *kvRepository) Get(ctx context.Context, key string) (string, error) {
	val, err := r.cli.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", qErrors.ErrKeyNotFound
		}
		r.l.Errorf(ctx, "redis.kvRepository.Get: %v", err)
		return "", err
	}
	return val, nil
}

// Set stores value without a TTL. Expiry is decided by the saved-at stamp
// inside the value, not by redis.
func (r *kvRepository) Set(ctx context.Context, key, value string) error {
	if err := r.cli.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		r.l.Errorf(ctx, "redis.kvRepository.Set: %v", err)
		return err
	}
	return nil
}

func (r *kvRepository) Remove(ctx context.Context, key string) error {
	if err := r.cli.Del(ctx, r.key(key)).Err(); err != nil {
		r.l.Errorf(ctx, "redis.kvRepository.Remove: %v", err)
		return err
	}
	return nil
}

func (r *kvRepository) key(key string) string {
	return keyPrefix + key
}
