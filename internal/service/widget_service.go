package service

import (
	"context"
	"sync"
	"time"

	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/internal/notify"
	"github.com/vogiaan1904/tablequeue/internal/period"
	"github.com/vogiaan1904/tablequeue/internal/realtime"
	"github.com/vogiaan1904/tablequeue/internal/repository"
	"github.com/vogiaan1904/tablequeue/internal/validate"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

type widgetService struct {
	repo      repository.TokenRepository
	store     TokenStore
	feed      realtime.Feed
	vibrator  notify.Vibrator
	notifier  notify.Notifier
	validator *validate.Validator
	l         logger.Logger
	cfg       WidgetConfig
	now       func() time.Time

	// baseCtx outlives requests; clients run under it until Close.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	clients  map[models.ServicePeriod]*clientEntry
	realtime map[models.ServicePeriod]bool
	healthy  bool
	closed   bool
}

func NewWidgetService(
	repo repository.TokenRepository,
	store TokenStore,
	feed realtime.Feed,
	vibrator notify.Vibrator,
	notifier notify.Notifier,
	l logger.Logger,
	cfg WidgetConfig,
) WidgetService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	return &widgetService{
		repo:      repo,
		store:     store,
		feed:      feed,
		vibrator:  vibrator,
		notifier:  notifier,
		validator: validate.New(),
		l:         l,
		cfg:       cfg,
		now:       time.Now,
		baseCtx:   baseCtx,
		cancel:    cancel,
		clients:   make(map[models.ServicePeriod]*clientEntry),
		realtime:  make(map[models.ServicePeriod]bool),
		healthy:   true,
	}
}

// Period resolves the request override, then the configured override, then the clock.
func (w *widgetService) Period(override string) models.ServicePeriod {
	if p := models.ServicePeriod(override); p.Valid() {
		return p
	}
	return period.Resolve(w.cfg.ServicePeriod, w.now().In(w.cfg.Location))
}

// clientEntry is a period's client; ready closes once Restore and Start are done.
type clientEntry struct {
	client MembershipClient
	ready  chan struct{}
	err    error
}

// Client returns the period's client, starting it on first use. Restoring one
// period never holds up callers of another.
func (w *widgetService) Client(ctx context.Context, override string) (MembershipClient, error) {
	p := w.Period(override)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClientStopped
	}
	if e, ok := w.clients[p]; ok {
		w.mu.Unlock()
		return e.wait(ctx)
	}

	c := NewMembershipClient(
		w.repo,
		w.store,
		w.feed,
		notify.NewTrigger(w.vibrator, w.notifier, w.l),
		w.validator,
		w.l,
		MembershipConfig{
			Key:                models.StorageKey{OrgID: w.cfg.OrgID, ServicePeriod: p},
			Location:           w.cfg.Location,
			PollInterval:       w.cfg.PollInterval,
			JoinRetries:        w.cfg.JoinRetries,
			RealtimeRetryDelay: w.cfg.RealtimeRetryDelay,
			OnRealtime:         func(connected bool) { w.onRealtime(p, connected) },
		},
	)
	e := &clientEntry{client: c, ready: make(chan struct{})}
	w.clients[p] = e
	if w.feed != nil {
		w.realtime[p] = false
		w.updateHealthLocked()
	}
	w.mu.Unlock()

	e.err = w.startClient(ctx, p, c)
	close(e.ready)
	if e.err != nil {
		return nil, e.err
	}

	w.l.Infof(ctx, "service.widgetService.Client: started client for %s", c.Key())
	return c, nil
}

func (w *widgetService) startClient(ctx context.Context, p models.ServicePeriod, c MembershipClient) error {
	// The restore outlives the first request; other callers are waiting on it.
	c.Restore(context.WithoutCancel(ctx))
	if err := c.Start(w.baseCtx); err != nil {
		w.forget(p)
		return err
	}

	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		c.Stop()
		return ErrClientStopped
	}
	return nil
}

func (w *widgetService) forget(p models.ServicePeriod) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.clients, p)
	delete(w.realtime, p)
	w.updateHealthLocked()
}

func (e *clientEntry) wait(ctx context.Context) (MembershipClient, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.ready:
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.client, nil
}

func (w *widgetService) onRealtime(p models.ServicePeriod, connected bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.realtime[p] = connected
	w.updateHealthLocked()
}

func (w *widgetService) updateHealthLocked() {
	healthy := true
	for _, ok := range w.realtime {
		healthy = healthy && ok
	}
	if healthy == w.healthy {
		return
	}
	w.healthy = healthy
	if w.cfg.OnRealtimeHealth != nil {
		w.cfg.OnRealtimeHealth(healthy)
	}
}

func (w *widgetService) RealtimeHealthy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.healthy
}

func (w *widgetService) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	clients := make([]MembershipClient, 0, len(w.clients))
	for _, e := range w.clients {
		clients = append(clients, e.client)
	}
	w.mu.Unlock()

	w.cancel()
	for _, c := range clients {
		c.Stop()
	}
}
