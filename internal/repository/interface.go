package repository

import (
	"context"

	"github.com/vogiaan1904/tablequeue/internal/models"
)

// TokenRepository is the hosted queue_tokens table.
type TokenRepository interface {
	// MaxTokenNumber returns the highest number issued in p, or 0 when p is empty.
	MaxTokenNumber(ctx context.Context, p models.Partition) (int64, error)
	// Insert creates a waiting token. A taken number fails with ErrTokenNumberConflict.
	Insert(ctx context.Context, t models.NewToken) (models.QueueToken, error)
	// ListWaitingNumbers returns the numbers of waiting tokens in p, ascending.
	ListWaitingNumbers(ctx context.Context, p models.Partition) ([]int64, error)
	Get(ctx context.Context, id string) (models.QueueToken, error)
	ListWaiting(ctx context.Context, p models.Partition) ([]models.QueueToken, error)
	ListByStatus(ctx context.Context, p models.Partition, status models.Status) ([]models.QueueToken, error)
	UpdateStatus(ctx context.Context, id string, status models.Status) (models.QueueToken, error)
}

// KVRepository is on-device key/value persistence for the cached token.
type KVRepository interface {
	// Get fails with ErrKeyNotFound when key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
