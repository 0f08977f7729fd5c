package models

import (
	"encoding/json"
	"time"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is one row change on queue_tokens as delivered by the change feed.
type ChangeEvent struct {
	Type            ChangeType      `json:"type"`
	Table           string          `json:"table"`
	New             json.RawMessage `json:"new,omitempty"`
	Old             json.RawMessage `json:"old,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// NewRow decodes the post-change row. ok is false for deletes or undecodable rows.
func (e ChangeEvent) NewRow() (QueueToken, bool) {
	return decodeRow(e.New)
}

func (e ChangeEvent) OldRow() (QueueToken, bool) {
	return decodeRow(e.Old)
}

// Affects reports whether the event may move positions in p. Events whose rows
// carry no partition columns are treated as affecting every partition.
func (e ChangeEvent) Affects(p Partition) bool {
	known := false
	for _, raw := range []json.RawMessage{e.New, e.Old} {
		row, ok := decodeRow(raw)
		if !ok || row.OrgID == "" || row.ServiceDate == "" || row.ServicePeriod == "" {
			continue
		}
		known = true
		if row.Partition() == p {
			return true
		}
	}
	return !known
}

func decodeRow(raw json.RawMessage) (QueueToken, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return QueueToken{}, false
	}
	var t QueueToken
	if err := json.Unmarshal(raw, &t); err != nil {
		return QueueToken{}, false
	}
	return t, true
}
