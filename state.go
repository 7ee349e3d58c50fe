package verb_traj

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExecutionPhase is where an execution currently is.
type ExecutionPhase int

const (
	PhaseIdle ExecutionPhase = iota
	PhasePlanning
	PhaseAwaitingConfirmation
	PhaseGoingToStart
	PhaseFollowing
	PhaseSucceeded
	PhaseFailed
	PhaseRefused
)

func (p ExecutionPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePlanning:
		return "planning"
	case PhaseAwaitingConfirmation:
		return "awaiting_confirmation"
	case PhaseGoingToStart:
		return "going_to_start"
	case PhaseFollowing:
		return "following"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	case PhaseRefused:
		return "refused"
	default:
		return "unknown"
	}
}

// Done reports whether the phase is terminal.
func (p ExecutionPhase) Done() bool {
	return p == PhaseSucceeded || p == PhaseFailed || p == PhaseRefused
}

// ExecutionStatus is a snapshot of the latest execution.
type ExecutionStatus struct {
	ID        string
	Strategy  string
	Phase     ExecutionPhase
	LastError string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Map renders the status for a DoCommand response.
func (s ExecutionStatus) Map() map[string]interface{} {
	m := map[string]interface{}{
		"execution_id": s.ID,
		"strategy":     s.Strategy,
		"phase":        s.Phase.String(),
		"last_error":   s.LastError,
	}
	if !s.StartedAt.IsZero() {
		m["started_at"] = s.StartedAt.Format(time.RFC3339Nano)
		m["updated_at"] = s.UpdatedAt.Format(time.RFC3339Nano)
		m["elapsed_sec"] = s.UpdatedAt.Sub(s.StartedAt).Seconds()
	}
	return m
}

// StateTracker records the phase of the latest execution.
type StateTracker struct {
	mu      sync.RWMutex
	current ExecutionStatus
	now     func() time.Time
}

func NewStateTracker() *StateTracker {
	return &StateTracker{now: time.Now}
}

// Begin starts tracking a new execution and returns its id.
func (s *StateTracker) Begin(strategy string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.current = ExecutionStatus{
		ID:        uuid.New().String(),
		Strategy:  strategy,
		Phase:     PhasePlanning,
		StartedAt: now,
		UpdatedAt: now,
	}
	return s.current.ID
}

func (s *StateTracker) Set(phase ExecutionPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Phase = phase
	s.current.UpdatedAt = s.now()
}

// Fail marks the execution failed with err.
func (s *StateTracker) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Phase = PhaseFailed
	if err != nil {
		s.current.LastError = err.Error()
	}
	s.current.UpdatedAt = s.now()
}

func (s *StateTracker) Snapshot() ExecutionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
