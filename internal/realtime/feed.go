// Package realtime delivers queue_tokens row changes to membership clients.
package realtime

import (
	"context"
	"errors"

	"github.com/vogiaan1904/tablequeue/internal/models"
)

var ErrFeedClosed = errors.New("change feed closed")

// Feed opens subscriptions to the queue_tokens change stream.
type Feed interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is one live connection to the change stream. Events is closed
// when the transport fails or Close is called; callers fall back to polling
// and subscribe again.
type Subscription interface {
	Events() <-chan models.ChangeEvent
	Close() error
}
