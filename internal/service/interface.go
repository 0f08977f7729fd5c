package service

import (
	"context"
	"time"

	"github.com/vogiaan1904/tablequeue/internal/models"
)

// MembershipClient tracks one visitor's membership in one (org, period) queue.
type MembershipClient interface {
	Key() models.StorageKey
	// Start runs the realtime subscription and the poll timer until Stop. It is idempotent.
	Start(ctx context.Context) error
	Stop()
	// Restore loads a cached token from the local store.
	Restore(ctx context.Context)
	Join(ctx context.Context, req models.JoinRequest) (*models.QueueToken, error)
	// RefreshPosition recomputes the position once. Failures keep the last known position.
	RefreshPosition(ctx context.Context) error
	// Reset forgets the token locally and returns to idle.
	Reset(ctx context.Context)
	Snapshot() models.Snapshot
	// Watch streams snapshots, latest first; call the returned func to stop.
	Watch() (<-chan models.Snapshot, func())
}

// TokenStore caches the active token on the device. Write failures are logged, not returned.
type TokenStore interface {
	// Save writes tok under key and returns the saved-at stamp. A nil tok clears the key.
	Save(ctx context.Context, key models.StorageKey, tok *models.QueueToken) time.Time
	// Load returns nil for missing, malformed or expired entries. Expired entries are deleted.
	Load(ctx context.Context, key models.StorageKey) *models.StoredToken
	Clear(ctx context.Context, key models.StorageKey)
	Expired(savedAt time.Time) bool
}

// WidgetService hands out the membership client for the period a request resolves to.
type WidgetService interface {
	Period(override string) models.ServicePeriod
	Client(ctx context.Context, override string) (MembershipClient, error)
	// RealtimeHealthy is false while any running client has lost its change feed.
	RealtimeHealthy() bool
	Close()
}
