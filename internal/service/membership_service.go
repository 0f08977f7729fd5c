package service

import (
	"context"
	"errors"
	"sync"
	"time"

	qErrors "github.com/vogiaan1904/tablequeue/internal/errors"
	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/internal/notify"
	"github.com/vogiaan1904/tablequeue/internal/queue"
	"github.com/vogiaan1904/tablequeue/internal/realtime"
	"github.com/vogiaan1904/tablequeue/internal/repository"
	"github.com/vogiaan1904/tablequeue/internal/validate"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
	"github.com/vogiaan1904/tablequeue/pkg/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	defaultPollInterval       = 30 * time.Second
	defaultRealtimeRetryDelay = 5 * time.Second
)

var tracer trace.Tracer = otel.Tracer("github.com/vogiaan1904/tablequeue/internal/service")

type membershipService struct {
	repo      repository.TokenRepository
	positions *queue.Manager
	store     TokenStore
	feed      realtime.Feed
	trigger   *notify.Trigger
	validator *validate.Validator
	l         logger.Logger
	cfg       MembershipConfig
	now       func() time.Time

	// joinSem admits one outstanding join at a time.
	joinSem *semaphore.Weighted

	// storeMu orders local store writes so the entry tracks the latest token.
	storeMu sync.Mutex

	mu       sync.Mutex
	state    models.MembershipState
	token    *models.QueueToken
	savedAt  time.Time
	position int
	errMsg   string
	loading  bool
	realtime bool
	watchers map[int]chan models.Snapshot
	nextW    int

	runMu   sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewMembershipClient wires a client for cfg.Key. feed may be nil, in which
// case the position is kept fresh by polling alone.
func NewMembershipClient(
	repo repository.TokenRepository,
	store TokenStore,
	feed realtime.Feed,
	trigger *notify.Trigger,
	validator *validate.Validator,
	l logger.Logger,
	cfg MembershipConfig,
) MembershipClient {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RealtimeRetryDelay <= 0 {
		cfg.RealtimeRetryDelay = defaultRealtimeRetryDelay
	}
	if cfg.JoinRetries < 0 {
		cfg.JoinRetries = 0
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if trigger == nil {
		trigger = notify.NewTrigger(nil, nil, l)
	}
	if validator == nil {
		validator = validate.New()
	}

	return &membershipService{
		repo:      repo,
		positions: queue.NewManager(repo, l),
		store:     store,
		feed:      feed,
		trigger:   trigger,
		validator: validator,
		l:         l,
		cfg:       cfg,
		now:       time.Now,
		joinSem:   semaphore.NewWeighted(1),
		state:     models.StateIdle,
		watchers:  make(map[int]chan models.Snapshot),
	}
}

func (s *membershipService) Key() models.StorageKey {
	return s.cfg.Key
}

func (s *membershipService) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return s.pollLoop(gctx) })
	if s.feed != nil {
		g.Go(func() error { return s.realtimeLoop(gctx) })
	}

	s.cancel = cancel
	s.group = g
	s.running = true
	s.stopped = false

	s.l.Infof(ctx, "service.membershipService.Start: %s poll=%s realtime=%v",
		s.cfg.Key, s.cfg.PollInterval, s.feed != nil)
	return nil
}

func (s *membershipService) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	if err := s.group.Wait(); err != nil {
		s.l.Warnf(context.Background(), "service.membershipService.Stop: %v", err)
	}

	s.running = false
	s.stopped = true
	s.setRealtime(false)
	s.l.Infof(context.Background(), "service.membershipService.Stop: %s stopped", s.cfg.Key)
}

func (s *membershipService) isStopped() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.stopped
}

func (s *membershipService) Restore(ctx context.Context) {
	stored := s.store.Load(ctx, s.cfg.Key)
	if stored == nil {
		return
	}

	s.mu.Lock()
	if s.token != nil {
		s.mu.Unlock()
		return
	}
	tok := stored.Token
	s.token = &tok
	s.savedAt = time.UnixMilli(stored.SavedAt)
	s.state = models.StateActive
	s.position = 0
	s.errMsg = ""
	s.mu.Unlock()

	s.l.Infof(ctx, "service.membershipService.Restore: restored token %d for %s", tok.TokenNumber, s.cfg.Key)
	s.trigger.Observe(ctx, &tok)
	s.publish()

	s.reconcile(ctx, tok.ID)
	if err := s.RefreshPosition(ctx); err != nil {
		s.l.Warnf(ctx, "service.membershipService.Restore: %v", err)
	}
}

// reconcile merges the stored row over a restored token so changes made while
// the device was away show up before the first event. The cached copy stays
// when the row cannot be read.
func (s *membershipService) reconcile(ctx context.Context, id string) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, qErrors.ErrTokenNotFound) {
			s.l.Warnf(ctx, "service.membershipService.reconcile: %v", err)
		}
		return
	}

	s.mu.Lock()
	if s.token == nil || s.token.ID != id || s.token.Status == row.Status {
		s.mu.Unlock()
		return
	}
	s.token.Merge(row)
	s.trigger.Observe(ctx, s.token)
	s.mu.Unlock()

	s.persist(ctx)
	s.publish()
}

func (s *membershipService) Join(ctx context.Context, req models.JoinRequest) (*models.QueueToken, error) {
	if !s.joinSem.TryAcquire(1) {
		return nil, ErrJoinInProgress
	}
	defer s.joinSem.Release(1)

	s.mu.Lock()
	held := s.token != nil
	s.mu.Unlock()
	if held {
		return nil, ErrAlreadyInQueue
	}

	normalized, err := s.validator.JoinRequest(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.state = models.StateJoining
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
	s.publish()

	// A join that has reached storage is allowed to finish even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "membership.Join", trace.WithAttributes(
		attribute.String("queue.org_id", s.cfg.Key.OrgID),
		attribute.String("queue.period", string(s.cfg.Key.ServicePeriod)),
	))
	defer span.End()

	p := models.Partition{
		OrgID:         s.cfg.Key.OrgID,
		ServiceDate:   util.ServiceDate(s.now(), s.cfg.Location),
		ServicePeriod: s.cfg.Key.ServicePeriod,
	}

	tok, err := s.allocate(ctx, p, normalized)
	if err != nil {
		jerr := &JoinError{Message: msgJoinUnreachable, Err: err}
		if errors.Is(err, qErrors.ErrTokenNumberConflict) {
			jerr.Message = msgJoinFailed
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, jerr.Message)
		s.l.Errorf(ctx, "service.membershipService.Join: %v", err)

		s.mu.Lock()
		s.state = models.StateError
		s.loading = false
		s.errMsg = jerr.Message
		s.token = nil
		s.position = 0
		s.mu.Unlock()
		s.publish()
		return nil, jerr
	}
	span.SetAttributes(attribute.Int64("queue.token_number", tok.TokenNumber))

	s.mu.Lock()
	cur := tok
	s.token = &cur
	s.savedAt = s.now()
	s.state = models.StateActive
	s.loading = false
	s.position = 0
	s.mu.Unlock()

	s.persist(ctx)

	if s.isStopped() {
		s.l.Infof(ctx, "service.membershipService.Join: client stopped, token %d kept locally only", tok.TokenNumber)
		return &tok, nil
	}

	s.trigger.Observe(ctx, &tok)
	s.publish()

	if err := s.RefreshPosition(ctx); err != nil {
		s.l.Warnf(ctx, "service.membershipService.Join: %v", err)
	}

	out := tok
	return &out, nil
}

// allocate reads the partition maximum and inserts the next number, starting
// over when another visitor wins the same number.
func (s *membershipService) allocate(ctx context.Context, p models.Partition, req models.JoinRequest) (models.QueueToken, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.JoinRetries; attempt++ {
		max, err := s.repo.MaxTokenNumber(ctx, p)
		if err != nil {
			return models.QueueToken{}, err
		}

		tok, err := s.repo.Insert(ctx, models.NewToken{
			Partition:   p,
			Name:        req.Name,
			Phone:       req.Phone,
			PartySize:   req.PartySize,
			TokenNumber: queue.NextTokenNumber(max),
		})
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, qErrors.ErrTokenNumberConflict) {
			return models.QueueToken{}, err
		}

		lastErr = err
		s.l.Warnf(ctx, "service.membershipService.allocate: attempt %d lost token %d in %s",
			attempt+1, queue.NextTokenNumber(max), p)
	}
	return models.QueueToken{}, lastErr
}

func (s *membershipService) RefreshPosition(ctx context.Context) error {
	s.mu.Lock()
	if s.token == nil {
		s.mu.Unlock()
		return nil
	}
	tok := *s.token
	savedAt := s.savedAt
	s.mu.Unlock()

	if s.store.Expired(savedAt) {
		s.expire(ctx, tok)
		return nil
	}

	ctx, span := tracer.Start(ctx, "membership.RefreshPosition", trace.WithAttributes(
		attribute.Int64("queue.token_number", tok.TokenNumber),
	))
	defer span.End()

	info, err := s.positions.GetQueueInfo(ctx, &tok)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return err
	}

	s.mu.Lock()
	if s.token == nil || s.token.ID != tok.ID {
		s.mu.Unlock()
		return nil
	}
	changed := s.position != info.Position
	s.position = info.Position
	s.mu.Unlock()

	if changed {
		s.publish()
	}
	return nil
}

func (s *membershipService) expire(ctx context.Context, tok models.QueueToken) {
	s.mu.Lock()
	if s.token == nil || s.token.ID != tok.ID {
		s.mu.Unlock()
		return
	}
	s.token = nil
	s.position = 0
	s.state = models.StateIdle
	s.trigger.Observe(ctx, nil)
	s.mu.Unlock()

	s.persist(ctx)
	s.l.Infof(ctx, "service.membershipService.expire: token %d for %s expired", tok.TokenNumber, s.cfg.Key)
	s.publish()
}

func (s *membershipService) Reset(ctx context.Context) {
	s.mu.Lock()
	s.token = nil
	s.position = 0
	s.state = models.StateIdle
	s.errMsg = ""
	s.trigger.Observe(ctx, nil)
	s.mu.Unlock()

	s.persist(ctx)
	s.publish()
}

// persist writes the held token to the local store, or removes the entry when
// none is held. Each call reads the state it writes under storeMu, so the last
// write always reflects the latest Join, merge, Reset or expiry.
func (s *membershipService) persist(ctx context.Context) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	s.mu.Lock()
	var tok *models.QueueToken
	if s.token != nil {
		cp := *s.token
		tok = &cp
	}
	s.mu.Unlock()

	if tok == nil {
		s.store.Clear(ctx, s.cfg.Key)
		return
	}

	savedAt := s.store.Save(ctx, s.cfg.Key, tok)
	s.mu.Lock()
	if s.token != nil && s.token.ID == tok.ID {
		s.savedAt = savedAt
	}
	s.mu.Unlock()
}

// handleEvent merges changes to the held token before recomputing the position.
func (s *membershipService) handleEvent(ctx context.Context, ev models.ChangeEvent) {
	row, hasRow := ev.NewRow()

	s.mu.Lock()
	if s.token == nil {
		s.mu.Unlock()
		return
	}
	merged := hasRow && row.ID == s.token.ID
	if merged {
		s.token.Merge(row)
		// Observed under mu so a concurrent Reset either precedes the alert or suppresses it.
		s.trigger.Observe(ctx, s.token)
	}
	p := s.token.Partition()
	s.mu.Unlock()

	if merged {
		s.persist(ctx)
		s.publish()
	}

	if !merged && !ev.Affects(p) {
		return
	}
	if err := s.RefreshPosition(ctx); err != nil {
		s.l.Warnf(ctx, "service.membershipService.handleEvent: %v", err)
	}
}

func (s *membershipService) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.RefreshPosition(ctx); err != nil && ctx.Err() == nil {
				s.l.Warnf(ctx, "service.membershipService.pollLoop: %v", err)
			}
		}
	}
}

func (s *membershipService) realtimeLoop(ctx context.Context) error {
	for {
		sub, err := s.feed.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.l.Warnf(ctx, "service.membershipService.realtimeLoop: %v", err)
			s.setRealtime(false)
			if !s.sleep(ctx, s.cfg.RealtimeRetryDelay) {
				return nil
			}
			continue
		}

		s.setRealtime(true)
		// Events may have been missed while disconnected.
		if err := s.RefreshPosition(ctx); err != nil {
			s.l.Warnf(ctx, "service.membershipService.realtimeLoop: %v", err)
		}

		s.consume(ctx, sub)
		_ = sub.Close()
		s.setRealtime(false)

		if ctx.Err() != nil {
			return nil
		}
		s.l.Warnf(ctx, "service.membershipService.realtimeLoop: %v, falling back to polling", realtime.ErrFeedClosed)
		if !s.sleep(ctx, s.cfg.RealtimeRetryDelay) {
			return nil
		}
	}
}

func (s *membershipService) consume(ctx context.Context, sub realtime.Subscription) {
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *membershipService) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *membershipService) setRealtime(connected bool) {
	s.mu.Lock()
	changed := s.realtime != connected
	s.realtime = connected
	s.mu.Unlock()

	if !changed {
		return
	}
	if s.cfg.OnRealtime != nil {
		s.cfg.OnRealtime(connected)
	}
	s.publish()
}

func (s *membershipService) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *membershipService) snapshotLocked() models.Snapshot {
	snap := models.Snapshot{
		State:             s.state,
		Position:          s.position,
		Loading:           s.loading,
		Error:             s.errMsg,
		ServicePeriod:     s.cfg.Key.ServicePeriod,
		RealtimeConnected: s.realtime,
	}
	if s.token != nil {
		tok := *s.token
		snap.Token = &tok
		snap.StatusLabel = tok.Status.Label()
	}
	return snap
}

func (s *membershipService) Watch() (<-chan models.Snapshot, func()) {
	ch := make(chan models.Snapshot, 1)

	s.mu.Lock()
	id := s.nextW
	s.nextW++
	s.watchers[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// publish hands the latest snapshot to every watcher, replacing any snapshot
// a slow watcher has not read yet.
func (s *membershipService) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
