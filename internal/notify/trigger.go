package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

const effectTimeout = 10 * time.Second

// Trigger fires the called alert exactly once per transition into called.
type Trigger struct {
	vibrator Vibrator
	notifier Notifier
	l        logger.Logger

	mu   sync.Mutex
	prev models.Status
	wg   sync.WaitGroup
}

func NewTrigger(v Vibrator, n Notifier, l logger.Logger) *Trigger {
	if v == nil {
		v = NoopVibrator{}
	}
	if n == nil {
		n = NewLogNotifier(PermissionDenied, l)
	}
	return &Trigger{
		vibrator: v,
		notifier: n,
		l:        l,
	}
}

// Observe records the token's current status. A nil token clears the previous
// status, so a later token that arrives already called still alerts.
func (t *Trigger) Observe(ctx context.Context, tok *models.QueueToken) {
	var cur models.Status
	if tok != nil {
		cur = tok.Status
	}

	t.mu.Lock()
	prev := t.prev
	t.prev = cur
	t.mu.Unlock()

	if prev == models.StatusCalled || cur != models.StatusCalled {
		return
	}

	n := CalledNotification(*tok)
	ctx = context.WithoutCancel(ctx)
	t.wg.Go(func() { t.vibrate(ctx) })
	t.wg.Go(func() { t.show(ctx, n) })
}

// Wait blocks until every alert started so far has finished.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

func (t *Trigger) vibrate(ctx context.Context) {
	defer t.recover(ctx, "vibrate")

	ctx, cancel := context.WithTimeout(ctx, effectTimeout)
	defer cancel()

	if err := t.vibrator.Vibrate(ctx, VibrationPattern); err != nil {
		t.logFailure(ctx, "vibrate", err)
	}
}

func (t *Trigger) show(ctx context.Context, n Notification) {
	defer t.recover(ctx, "show")

	ctx, cancel := context.WithTimeout(ctx, effectTimeout)
	defer cancel()

	if p := t.notifier.Permission(ctx); p != PermissionGranted {
		t.l.Debugf(ctx, "notify.trigger.show: permission %s, skipping %s", p, n.Tag)
		return
	}
	if err := t.notifier.Show(ctx, n); err != nil {
		t.logFailure(ctx, "show", err)
	}
}

// logFailure keeps a missing capability out of the warning log.
func (t *Trigger) logFailure(ctx context.Context, effect string, err error) {
	if errors.Is(err, ErrUnavailable) {
		t.l.Debugf(ctx, "notify.trigger.%s: skipped: %v", effect, err)
		return
	}
	t.l.Warnf(ctx, "notify.trigger.%s: %v", effect, err)
}

func (t *Trigger) recover(ctx context.Context, effect string) {
	if r := recover(); r != nil {
		t.l.Errorf(ctx, "notify.trigger.%s: panic: %v", effect, r)
	}
}

// CalledNotification is the alert shown when tok is called.
func CalledNotification(tok models.QueueToken) Notification {
	return Notification{
		Title: "You're being seated",
		Body:  fmt.Sprintf("Token %d: please head in.", tok.TokenNumber),
		Tag:   fmt.Sprintf("queue-%s-%s-%d", tok.OrgID, tok.ServicePeriod, tok.TokenNumber),
	}
}
