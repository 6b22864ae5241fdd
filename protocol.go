package main

import "time"

// PresenceState is whether a device matching the configured prefix is
// connected, as seen by the last poll.
type PresenceState string

const (
	StatePresent PresenceState = "present"
	StateAbsent  PresenceState = "absent"
)

// Observation is the outcome of one poll cycle.
type Observation struct {
	State     PresenceState `json:"state"`
	Device    string        `json:"device,omitempty"` // name of the matched device
	Connected int           `json:"connected"`        // connected devices seen
	CheckedAt time.Time     `json:"checked_at"`
	Error     string        `json:"error,omitempty"` // enumeration failure, if any
}

// IPCRequest is sent from the CLI client to the running tray.
type IPCRequest struct {
	Command string `json:"command"` // "status" | "refresh"
}

// IPCResponse is sent from the running tray back to the CLI client.
type IPCResponse struct {
	Observation *Observation `json:"observation,omitempty"`
	Message     string       `json:"message,omitempty"`
	Error       string       `json:"error,omitempty"`
}
