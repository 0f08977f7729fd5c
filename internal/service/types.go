package service

import (
	"time"

	"github.com/vogiaan1904/tablequeue/internal/models"
)

type MembershipConfig struct {
	Key                models.StorageKey
	Location           *time.Location
	PollInterval       time.Duration
	JoinRetries        int
	RealtimeRetryDelay time.Duration
	// OnRealtime is told whenever the change feed connects or drops.
	OnRealtime func(connected bool)
}

type WidgetConfig struct {
	OrgID              string
	ServicePeriod      string
	Location           *time.Location
	PollInterval       time.Duration
	JoinRetries        int
	RealtimeRetryDelay time.Duration
	// OnRealtimeHealth is told when the aggregate realtime health changes.
	OnRealtimeHealth func(healthy bool)
}
