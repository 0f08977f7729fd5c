package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	qErrors "github.com/vogiaan1904/tablequeue/internal/errors"
	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/internal/repository"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

const DefaultTokenExpiry = time.Hour

type tokenStore struct {
	kv     repository.KVRepository
	expiry time.Duration
	now    func() time.Time
	l      logger.Logger
}

func NewTokenStore(kv repository.KVRepository, expiry time.Duration, l logger.Logger) TokenStore {
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &tokenStore{
		kv:     kv,
		expiry: expiry,
		now:    time.Now,
		l:      l,
	}
}

func (s *tokenStore) Save(ctx context.Context, key models.StorageKey, tok *models.QueueToken) time.Time {
	now := s.now()
	if tok == nil {
		s.Clear(ctx, key)
		return now
	}

	data, err := json.Marshal(models.StoredToken{Token: *tok, SavedAt: now.UnixMilli()})
	if err != nil {
		s.l.Warnf(ctx, "service.tokenStore.Save: %v", err)
		return now
	}
	if err := s.kv.Set(ctx, key.String(), string(data)); err != nil {
		s.l.Warnf(ctx, "service.tokenStore.Save: local storage degraded: %v", err)
	}
	return now
}

func (s *tokenStore) Load(ctx context.Context, key models.StorageKey) *models.StoredToken {
	raw, err := s.kv.Get(ctx, key.String())
	if err != nil {
		if !errors.Is(err, qErrors.ErrKeyNotFound) {
			s.l.Warnf(ctx, "service.tokenStore.Load: local storage degraded: %v", err)
		}
		return nil
	}

	var stored models.StoredToken
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.l.Warnf(ctx, "service.tokenStore.Load: malformed entry for %s: %v", key, err)
		return nil
	}
	if stored.Token.ID == "" {
		s.l.Warnf(ctx, "service.tokenStore.Load: entry for %s has no token", key)
		return nil
	}

	if s.Expired(time.UnixMilli(stored.SavedAt)) {
		s.l.Infof(ctx, "service.tokenStore.Load: token %d for %s expired", stored.Token.TokenNumber, key)
		s.Clear(ctx, key)
		return nil
	}

	return &stored
}

func (s *tokenStore) Clear(ctx context.Context, key models.StorageKey) {
	if err := s.kv.Remove(ctx, key.String()); err != nil {
		s.l.Warnf(ctx, "service.tokenStore.Clear: local storage degraded: %v", err)
	}
}

func (s *tokenStore) Expired(savedAt time.Time) bool {
	return s.now().Sub(savedAt) > s.expiry
}
