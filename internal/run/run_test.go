package run

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestNewContext_UniqueIDs(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))

	a := NewContext(clock)
	b := NewContext(clock)

	if a.ID == b.ID {
		t.Errorf("two contexts share an ID: %s", a.ID)
	}
	if !a.StartedAt.Equal(clock.Now().UTC()) {
		t.Errorf("StartedAt = %v, want clock time", a.StartedAt)
	}
}

func TestAdvance_ForwardPath(t *testing.T) {
	path := []State{
		StateIngesting,
		StateValidating,
		StateTransforming,
		StateStoring,
		StateCompleted,
	}

	state := StateCreated
	for _, next := range path {
		s, err := Advance(state, next)
		if err != nil {
			t.Fatalf("advance %s -> %s: %v", state, next, err)
		}
		state = s
	}
	if !state.Terminal() {
		t.Errorf("completed should be terminal")
	}
}

func TestAdvance_SkippingStagesRejected(t *testing.T) {
	if _, err := Advance(StateCreated, StateStoring); err == nil {
		t.Error("skipping stages should be rejected")
	}
	if _, err := Advance(StateIngesting, StateCompleted); err == nil {
		t.Error("skipping to completed should be rejected")
	}
}

func TestAdvance_NoReentry(t *testing.T) {
	if _, err := Advance(StateValidating, StateIngesting); err == nil {
		t.Error("going backward should be rejected")
	}
	if _, err := Advance(StateValidating, StateValidating); err == nil {
		t.Error("re-entering a state should be rejected")
	}
}

func TestAdvance_FailedFromAnyNonTerminal(t *testing.T) {
	for _, from := range []State{StateCreated, StateIngesting, StateValidating, StateTransforming, StateStoring} {
		s, err := Advance(from, StateFailed)
		if err != nil {
			t.Errorf("advance %s -> failed: %v", from, err)
		}
		if s != StateFailed {
			t.Errorf("advance %s -> failed returned %s", from, s)
		}
	}
}

func TestAdvance_TerminalStatesAreFinal(t *testing.T) {
	if _, err := Advance(StateCompleted, StateIngesting); err == nil {
		t.Error("completed run must not advance")
	}
	if _, err := Advance(StateFailed, StateFailed); err == nil {
		t.Error("failed run must not advance, even to failed")
	}
}
