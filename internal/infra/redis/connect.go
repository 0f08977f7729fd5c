package redis

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/tablequeue/config"
	pkgRedis "github.com/vogiaan1904/tablequeue/pkg/redis"
)

func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	cli := pkgRedis.NewClient(cfg)

	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Println("Connected to Redis.")

	return cli, nil
}

func Disconnect(cli *redis.Client) {
	if cli == nil {
		return
	}

	_ = cli.Close()

	log.Println("Connection to Redis closed.")
}
