package memory

import (
	"context"
	"sync"

	qErrors "github.com/vogiaan1904/tablequeue/internal/errors"
	"github.com/vogiaan1904/tablequeue/internal/repository"
)

type kvRepository struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewKVRepository returns a process-local store. Nothing survives a restart.
func NewKVRepository() repository.KVRepository {
	return &kvRepository{data: make(map[string]string)}
}

func (r *kvRepository) Get(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.data[key]
	if !ok {
		return "", qErrors.ErrKeyNotFound
	}
	return v, nil
}

func (r *kvRepository) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[key] = value
	return nil
}

func (r *kvRepository) Remove(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.data, key)
	return nil
}
