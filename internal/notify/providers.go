package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

type logNotifier struct {
	permission Permission
	l          logger.Logger
}

// NewLogNotifier writes notifications to the log instead of a device.
func NewLogNotifier(p Permission, l logger.Logger) Notifier {
	return &logNotifier{permission: p, l: l}
}

func (n *logNotifier) Permission(context.Context) Permission {
	return n.permission
}

func (n *logNotifier) Show(ctx context.Context, msg Notification) error {
	n.l.Infof(ctx, "notify: [%s] %s: %s", msg.Tag, msg.Title, msg.Body)
	return nil
}

type NoopVibrator struct{}

func (NoopVibrator) Vibrate(context.Context, []time.Duration) error {
	return ErrUnavailable
}

type webhookNotifier struct {
	url        string
	token      string
	permission Permission
	client     *http.Client
}

// NewWebhookNotifier posts notifications as JSON to url. Permission is fixed
// by configuration since a webhook has nobody to ask.
func NewWebhookNotifier(url, token string, p Permission) Notifier {
	return &webhookNotifier{
		url:        url,
		token:      token,
		permission: p,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *webhookNotifier) Permission(context.Context) Permission {
	return n.permission
}

func (n *webhookNotifier) Show(ctx context.Context, msg Notification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: webhook responded %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
