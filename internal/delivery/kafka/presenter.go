package kafka

import (
	"encoding/json"
	"time"

	"github.com/vogiaan1904/tablequeue/internal/models"
)

// Events published to the CDC topic by the operator side and consumed BY the widget

type TokenChangeEvent struct {
	Type            models.ChangeType `json:"type"`
	Table           string            `json:"table"`
	New             json.RawMessage   `json:"new,omitempty"`
	Old             json.RawMessage   `json:"old,omitempty"`
	CommitTimestamp time.Time         `json:"commit_timestamp"`
	Timestamp       time.Time         `json:"timestamp"`
}

func NewTokenChangeEvent(ev models.ChangeEvent) TokenChangeEvent {
	return TokenChangeEvent{
		Type:            ev.Type,
		Table:           ev.Table,
		New:             ev.New,
		Old:             ev.Old,
		CommitTimestamp: ev.CommitTimestamp,
	}
}

// Key partitions the topic by token id so one token's changes stay ordered.
func (e TokenChangeEvent) Key() string {
	for _, raw := range []json.RawMessage{e.New, e.Old} {
		var row struct {
			ID string `json:"id"`
		}
		if len(raw) > 0 && json.Unmarshal(raw, &row) == nil && row.ID != "" {
			return row.ID
		}
	}
	return ""
}
