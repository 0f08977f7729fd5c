package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

const eventBuffer = 32

// postgresFeed listens on a NOTIFY channel fed by a trigger on queue_tokens.
// Each payload is a JSON ChangeEvent.
type postgresFeed struct {
	pool    *pgxpool.Pool
	channel string
	l       logger.Logger
}

func NewPostgresFeed(pool *pgxpool.Pool, channel string, l logger.Logger) Feed {
	return &postgresFeed{
		pool:    pool,
		channel: channel,
		l:       l,
	}
}

func (f *postgresFeed) Subscribe(ctx context.Context) (Subscription, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", f.channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &postgresSubscription{
		events: make(chan models.ChangeEvent, eventBuffer),
		cancel: cancel,
	}
	sub.wg.Go(func() {
		defer close(sub.events)
		// The connection still holds the LISTEN, so it never goes back to the pool.
		defer func() {
			_ = conn.Hijack().Close(context.Background())
		}()
		f.listen(subCtx, conn, sub.events)
	})

	f.l.Infof(ctx, "realtime.postgresFeed.Subscribe: listening on %s", f.channel)
	return sub, nil
}

func (f *postgresFeed) listen(ctx context.Context, conn *pgxpool.Conn, out chan<- models.ChangeEvent) {
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				f.l.Warnf(ctx, "realtime.postgresFeed.listen: %v", err)
			}
			return
		}

		ev, err := DecodeChangeEvent([]byte(n.Payload))
		if err != nil {
			f.l.Warnf(ctx, "realtime.postgresFeed.listen: %v", err)
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

type postgresSubscription struct {
	events chan models.ChangeEvent
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (s *postgresSubscription) Events() <-chan models.ChangeEvent {
	return s.events
}

func (s *postgresSubscription) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

// DecodeChangeEvent parses one change record. Records for other tables are rejected.
func DecodeChangeEvent(payload []byte) (models.ChangeEvent, error) {
	var ev models.ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	if ev.Table != "" && ev.Table != "queue_tokens" {
		return models.ChangeEvent{}, fmt.Errorf("change event for unexpected table %q", ev.Table)
	}
	switch ev.Type {
	case models.ChangeInsert, models.ChangeUpdate, models.ChangeDelete:
	default:
		return models.ChangeEvent{}, fmt.Errorf("unknown change type %q", ev.Type)
	}
	return ev, nil
}
