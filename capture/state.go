package capture

import "sync/atomic"

// EngineState tracks the lifecycle of an engine or session. Transitions
// are one-directional (Idle → Starting → Running → Stopping) except
// Stopping → Idle.
type EngineState int32

const (
	StateIdle EngineState = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// stateVar is an atomically updated EngineState.
type stateVar struct {
	v atomic.Int32
}

func (s *stateVar) Load() EngineState    { return EngineState(s.v.Load()) }
func (s *stateVar) Store(st EngineState) { s.v.Store(int32(st)) }
