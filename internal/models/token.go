package models

import (
	"fmt"
	"time"
)

// QueueToken is one visitor's place in a partition, as stored in queue_tokens.
type QueueToken struct {
	ID            string        `json:"id"`
	OrgID         string        `json:"org_id"`
	Name          string        `json:"name"`
	Phone         string        `json:"phone"`
	PartySize     int           `json:"people_count"`
	TokenNumber   int64         `json:"token_number"`
	Status        Status        `json:"status"`
	ServiceDate   string        `json:"service_date"`
	ServicePeriod ServicePeriod `json:"service_tag"`
	CreatedAt     time.Time     `json:"created_at"`
}

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCalled    Status = "called"
	StatusSeated    Status = "seated"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var statusLabels = map[Status]string{
	StatusWaiting:   "Waiting in Queue",
	StatusCalled:    "You are being called!",
	StatusSeated:    "Please proceed to your table",
	StatusDone:      "Completed. Thank you!",
	StatusCancelled: "Cancelled",
	StatusNoShow:    "Marked no-show",
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label is the visitor-facing text for s. Unknown statuses read as waiting.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return statusLabels[StatusWaiting]
}

type ServicePeriod string

const (
	PeriodLunch  ServicePeriod = "lunch"
	PeriodDinner ServicePeriod = "dinner"
)

func (p ServicePeriod) Valid() bool {
	return p == PeriodLunch || p == PeriodDinner
}

func (t *QueueToken) Partition() Partition {
	return Partition{
		OrgID:         t.OrgID,
		ServiceDate:   t.ServiceDate,
		ServicePeriod: t.ServicePeriod,
	}
}

// Merge copies the attributes an operator may change onto t. Identity and
// partition fields stay as they were.
func (t *QueueToken) Merge(from QueueToken) {
	if from.Status != "" {
		t.Status = from.Status
	}
	if from.Name != "" {
		t.Name = from.Name
	}
	if from.Phone != "" {
		t.Phone = from.Phone
	}
	if from.PartySize > 0 {
		t.PartySize = from.PartySize
	}
}

// Partition scopes token numbering: numbers restart for every org, date and period.
type Partition struct {
	OrgID         string
	ServiceDate   string
	ServicePeriod ServicePeriod
}

func (p Partition) String() string {
	return fmt.Sprintf("%s/%s/%s", p.OrgID, p.ServiceDate, p.ServicePeriod)
}

// StorageKey identifies a cached token on the device. It has no date, so a
// token from an earlier day is only dropped by expiry.
type StorageKey struct {
	OrgID         string
	ServicePeriod ServicePeriod
}

func (k StorageKey) String() string {
	return fmt.Sprintf("queue_token:%s:%s", k.OrgID, k.ServicePeriod)
}

// StoredToken is the envelope persisted under a StorageKey.
type StoredToken struct {
	Token   QueueToken `json:"token"`
	SavedAt int64      `json:"saved_at"`
}

// NewToken holds the columns a join inserts.
type NewToken struct {
	Partition
	Name        string
	Phone       string
	PartySize   int
	TokenNumber int64
}
