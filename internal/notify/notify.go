// Package notify alerts a visitor when their token is called.
package notify

import (
	"context"
	"errors"
	"time"
)

var ErrUnavailable = errors.New("notification capability unavailable")

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// VibrationPattern alternates on and off durations, starting with on.
var VibrationPattern = []time.Duration{300 * time.Millisecond, 100 * time.Millisecond, 300 * time.Millisecond}

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	// Tag deduplicates notifications: showing the same tag twice replaces the first.
	Tag string `json:"tag"`
}

// Notifier shows system notifications. Permission only reports the current
// grant and must never prompt the visitor.
type Notifier interface {
	Permission(ctx context.Context) Permission
	Show(ctx context.Context, n Notification) error
}

// Vibrator plays a haptic pattern on a best-effort basis.
type Vibrator interface {
	Vibrate(ctx context.Context, pattern []time.Duration) error
}
