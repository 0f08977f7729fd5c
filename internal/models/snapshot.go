package models

type MembershipState string

const (
	StateIdle    MembershipState = "idle"
	StateJoining MembershipState = "joining"
	StateActive  MembershipState = "active"
	StateError   MembershipState = "error"
)

// Snapshot is what the visitor surface renders.
type Snapshot struct {
	State             MembershipState `json:"state"`
	Token             *QueueToken     `json:"token,omitempty"`
	StatusLabel       string          `json:"status_label,omitempty"`
	Position          int             `json:"position"`
	Loading           bool            `json:"loading"`
	Error             string          `json:"error,omitempty"`
	ServicePeriod     ServicePeriod   `json:"service_period"`
	RealtimeConnected bool            `json:"realtime_connected"`
}
