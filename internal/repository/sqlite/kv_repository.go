package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	qErrors "github.com/vogiaan1904/tablequeue/internal/errors"
	"github.com/vogiaan1904/tablequeue/internal/repository"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

type kvRepository struct {
	db *sql.DB
	l  logger.Logger
}

// NewKVRepository expects db to already carry the local_storage table.
func NewKVRepository(db *sql.DB, l logger.Logger) repository.KVRepository {
	return &kvRepository{
		db: db,
		l:  l,
	}
}

func (r *kvRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", qErrors.ErrKeyNotFound
		}
		r.l.Errorf(ctx, "sqlite.kvRepository.Get: %v", err)
		return "", err
	}
	return value, nil
}

func (r *kvRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		r.l.Errorf(ctx, "sqlite.kvRepository.Set: %v", err)
		return err
	}
	return nil
}

func (r *kvRepository) Remove(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, key); err != nil {
		r.l.Errorf(ctx, "sqlite.kvRepository.Remove: %v", err)
		return err
	}
	return nil
}
