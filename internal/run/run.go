// Package run defines the per-execution context, the pipeline state
// machine, and the run summary that the orchestrator reports.
package run

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/coverline/hydrant-rating-etl/internal/hydrant"
)

// Context identifies one pipeline execution. It is created once at run
// start and immutable afterward; every record and artifact produced during
// the run carries its ID.
type Context struct {
	ID        string
	StartedAt time.Time
}

// NewContext creates a fresh run context with a globally unique identifier.
// The clock is injected so tests can freeze run timestamps.
func NewContext(clock clockwork.Clock) Context {
	return Context{
		ID:        uuid.New().String(),
		StartedAt: clock.Now().UTC(),
	}
}

// State is the pipeline lifecycle state for one run.
type State string

const (
	StateCreated      State = "created"
	StateIngesting    State = "ingesting"
	StateValidating   State = "validating"
	StateTransforming State = "transforming"
	StateStoring      State = "storing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// transitions holds the allowed forward edges. Failed is reachable from any
// non-terminal state and handled separately in Advance.
var transitions = map[State]State{
	StateCreated:      StateIngesting,
	StateIngesting:    StateValidating,
	StateValidating:   StateTransforming,
	StateTransforming: StateStoring,
	StateStoring:      StateCompleted,
}

// Terminal reports whether the state ends the run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Advance validates a state transition. States are never re-entered and
// control only flows forward.
func Advance(from, to State) (State, error) {
	if from.Terminal() {
		return from, fmt.Errorf("run already terminal in state %q", from)
	}
	if to == StateFailed {
		return StateFailed, nil
	}
	if transitions[from] != to {
		return from, fmt.Errorf("illegal transition %q -> %q", from, to)
	}
	return to, nil
}

// Summary holds the counts the orchestrator is the only component to see
// end to end. For every run, Accepted+Rejected == Ingested.
type Summary struct {
	Ingested int64
	Accepted int64
	Rejected int64
	Written  int64

	// RejectedByReason breaks rejections down per rule for the run report.
	RejectedByReason map[hydrant.Reason]int64
}

// Report is the user-visible outcome of a run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	State      State
	Summary    Summary

	// ArtifactURI locates the committed artifact; empty when the run failed.
	ArtifactURI string

	// FailedStage names the state in which a fatal error occurred.
	FailedStage State
	Err         error
}
