package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// JoinRequest is the raw join form as a visitor submitted it.
type JoinRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	PartySize int    `json:"party_size"`
}

// UnmarshalJSON accepts party_size as a number or a form string. Empty or
// non-integer values decode to 0 so the range check reports them.
func (r *JoinRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name      string          `json:"name"`
		Phone     string          `json:"phone"`
		PartySize json.RawMessage `json:"party_size"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Name = raw.Name
	r.Phone = raw.Phone
	r.PartySize = parsePartySize(raw.PartySize)
	return nil
}

func parsePartySize(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
