package service

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	qErrors "github.com/vogiaan1904/tablequeue/internal/errors"
	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/internal/realtime"
	"github.com/vogiaan1904/tablequeue/internal/repository"
)

type fakeRepo struct {
	mu     sync.Mutex
	tokens []models.QueueToken

	maxErr    error
	insertErr error
	listErr   error
	// conflicts makes the next n inserts lose the number race.
	conflicts int

	insertStarted chan struct{}
	insertGate    chan struct{}
	onList        func()

	maxCalls, insertCalls, listCalls int
}

func (r *fakeRepo) seed(p models.Partition, status models.Status, numbers ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range numbers {
		r.tokens = append(r.tokens, models.QueueToken{
			ID: uuid.NewString(), OrgID: p.OrgID, ServiceDate: p.ServiceDate, ServicePeriod: p.ServicePeriod,
			TokenNumber: n, Status: status, Name: "Seed Visitor", Phone: "9000000000", PartySize: 1,
		})
	}
}

func (r *fakeRepo) setStatus(number int64, status models.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tokens {
		if r.tokens[i].TokenNumber == number {
			r.tokens[i].Status = status
		}
	}
}

func (r *fakeRepo) MaxTokenNumber(_ context.Context, p models.Partition) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxCalls++
	if r.maxErr != nil {
		return 0, r.maxErr
	}
	var max int64
	for _, t := range r.tokens {
		if t.Partition() == p && t.TokenNumber > max {
			max = t.TokenNumber
		}
	}
	return max, nil
}

func (r *fakeRepo) Insert(_ context.Context, nt models.NewToken) (models.QueueToken, error) {
	if r.insertStarted != nil {
		r.insertStarted <- struct{}{}
	}
	if r.insertGate != nil {
		<-r.insertGate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertCalls++
	if r.insertErr != nil {
		return models.QueueToken{}, r.insertErr
	}
	if r.conflicts > 0 {
		r.conflicts--
		// Someone else took the number in the meantime.
		r.tokens = append(r.tokens, models.QueueToken{
			ID: uuid.NewString(), OrgID: nt.OrgID, ServiceDate: nt.ServiceDate, ServicePeriod: nt.ServicePeriod,
			TokenNumber: nt.TokenNumber, Status: models.StatusWaiting,
		})
		return models.QueueToken{}, qErrors.ErrTokenNumberConflict
	}
	for _, t := range r.tokens {
		if t.Partition() == nt.Partition && t.TokenNumber == nt.TokenNumber {
			return models.QueueToken{}, qErrors.ErrTokenNumberConflict
		}
	}

	tok := models.QueueToken{
		ID: uuid.NewString(), OrgID: nt.OrgID, Name: nt.Name, Phone: nt.Phone, PartySize: nt.PartySize,
		TokenNumber: nt.TokenNumber, Status: models.StatusWaiting, ServiceDate: nt.ServiceDate,
		ServicePeriod: nt.ServicePeriod, CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	r.tokens = append(r.tokens, tok)
	return tok, nil
}

func (r *fakeRepo) ListWaitingNumbers(_ context.Context, p models.Partition) ([]int64, error) {
	if r.onList != nil {
		r.onList()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	var numbers []int64
	for _, t := range r.tokens {
		if t.Partition() == p && t.Status == models.StatusWaiting {
			numbers = append(numbers, t.TokenNumber)
		}
	}
	slices.Sort(numbers)
	return numbers, nil
}

func (r *fakeRepo) Get(_ context.Context, id string) (models.QueueToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.ID == id {
			return t, nil
		}
	}
	return models.QueueToken{}, qErrors.ErrTokenNotFound
}

func (r *fakeRepo) ListWaiting(ctx context.Context, p models.Partition) ([]models.QueueToken, error) {
	return r.ListByStatus(ctx, p, models.StatusWaiting)
}

func (r *fakeRepo) ListByStatus(_ context.Context, p models.Partition, status models.Status) ([]models.QueueToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.QueueToken
	for _, t := range r.tokens {
		if t.Partition() == p && t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, status models.Status) (models.QueueToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tokens {
		if r.tokens[i].ID == id {
			r.tokens[i].Status = status
			return r.tokens[i], nil
		}
	}
	return models.QueueToken{}, qErrors.ErrTokenNotFound
}

type fakeFeed struct {
	mu           sync.Mutex
	subscribeErr error
	subscribed   chan *fakeSub
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subscribed: make(chan *fakeSub, 8)}
}

func (f *fakeFeed) Subscribe(context.Context) (realtime.Subscription, error) {
	f.mu.Lock()
	err := f.subscribeErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sub := &fakeSub{events: make(chan models.ChangeEvent, 8)}
	f.subscribed <- sub
	return sub, nil
}

type fakeSub struct {
	events chan models.ChangeEvent
	mu     sync.Mutex
	closed bool
}

func (s *fakeSub) Events() <-chan models.ChangeEvent {
	return s.events
}

func (s *fakeSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type failingKV struct{}

var errDiskFull = errors.New("quota exceeded")

func (failingKV) Get(context.Context, string) (string, error) { return "", errDiskFull }
func (failingKV) Set(context.Context, string, string) error   { return errDiskFull }
func (failingKV) Remove(context.Context, string) error        { return errDiskFull }

// gatedKV holds every Set until setGate is closed.
type gatedKV struct {
	repository.KVRepository
	setStarted chan struct{}
	setGate    chan struct{}
}

func (g *gatedKV) Set(ctx context.Context, key, value string) error {
	select {
	case g.setStarted <- struct{}{}:
	default:
	}
	<-g.setGate
	return g.KVRepository.Set(ctx, key, value)
}

type countingVibrator struct {
	mu    sync.Mutex
	calls int
}

func (v *countingVibrator) Vibrate(context.Context, []time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	return nil
}

func (v *countingVibrator) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func updateEvent(t *testing.T, tok models.QueueToken) models.ChangeEvent {
	t.Helper()
	raw, err := json.Marshal(tok)
	if err != nil {
		t.Fatalf("marshal row: %v", err)
	}
	return models.ChangeEvent{Type: models.ChangeUpdate, Table: "queue_tokens", New: raw}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
