package orchestrator

import (
	"time"

	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// Status is the terminal-or-suspended verdict a Result carries.
type Status string

// Known Result statuses. StatusRunning is the loop-exit sentinel for a
// final state the mapping doesn't recognize; Run/Resume never intend to
// return it, but it exists so the mapping function is total.
const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusPaused    Status = "paused"
	StatusFailed    Status = "failed"
	StatusRunning   Status = "running"
)

// statusForState maps a terminal/suspended loop-exit state to the Result
// status reported to the caller.
func statusForState(s workflow.State) Status {
	switch s {
	case workflow.StateDone:
		return StatusCompleted
	case workflow.StateCancelled:
		return StatusCancelled
	case workflow.StatePaused:
		return StatusPaused
	case workflow.StateError:
		return StatusFailed
	default:
		return StatusRunning
	}
}

// Result summarizes one Run/Resume invocation: status, the state the loop
// exited on, the workflow data accumulated so far, the attempt count
// reached, the elapsed wall-clock duration, and an optional error payload.
type Result struct {
	RunID      string
	Status     Status
	FinalState workflow.State
	Data       workflow.Data
	Attempt    int
	Duration   time.Duration
	Error      *workflow.ErrorPayload
}

// Snapshot is the synchronous, non-blocking status-query surface: the
// current state, a defensive copy of the workflow data, and the run
// identifier.
type Snapshot struct {
	RunID string
	State workflow.State
	Data  workflow.Data
}
