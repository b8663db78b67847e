// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

// ServerState enumerates the lifecycle state of a server.
//
// The only legal transitions are Stopped -> Starting -> Running -> Stopping -> Stopped,
// plus Starting -> Stopped when a start attempt fails.
type ServerState int

const (
	StateStopped ServerState = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s ServerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s ServerState) CanTransition(next ServerState) bool {
	switch s {
	case StateStopped:
		return next == StateStarting
	case StateStarting:
		return next == StateRunning || next == StateStopped
	case StateRunning:
		return next == StateStopping
	case StateStopping:
		return next == StateStopped
	}
	return false
}

// ServerStats is a point-in-time snapshot of server counters.
type ServerStats struct {
	State            ServerState
	Port             int
	Backlog          int
	Clients          int
	AcceptConnection bool
	KeepAlive        bool
	Accepted         uint64
	Rejected         uint64
	PacketsIn        uint64
	PacketsOut       uint64
	BytesIn          uint64
	BytesOut         uint64
}
