package engine

import (
	"reflect"
	"testing"

	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
)

func TestExecuteProducesEventsAndAdvancesState(t *testing.T) {
	p := newCounterPipeline(1)
	state := p.NewMatchState()

	result, err := p.Execute(state, Command{Type: "INCREMENT", PlayerID: "p1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.State.Core.Value != 1 {
		t.Fatalf("expected value 1, got %d", result.State.Core.Value)
	}
	if len(result.Appended) != 1 {
		t.Fatalf("expected 1 appended entry, got %d", len(result.Appended))
	}
	if result.Appended[0].ID != 1 {
		t.Fatalf("expected first entry id 1, got %d", result.Appended[0].ID)
	}
	if result.Appended[0].Event.SourceCommandType != "INCREMENT" {
		t.Fatalf("expected source command recorded, got %q", result.Appended[0].Event.SourceCommandType)
	}
	if result.Appended[0].Event.Timestamp.IsZero() {
		t.Fatal("expected event timestamp to be stamped")
	}
}

func TestExecuteDoesNotMutateInputState(t *testing.T) {
	p := newCounterPipeline(1)
	state := p.NewMatchState()
	before := state

	if _, err := p.Execute(state, Command{Type: "INCREMENT", PlayerID: "p1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !reflect.DeepEqual(before, state) {
		t.Fatal("input state was mutated by Execute")
	}
}

func TestExecuteRejectsWithoutPartialEffects(t *testing.T) {
	p := newCounterPipeline(1)
	state := p.NewMatchState()

	result, err := p.Execute(state, Command{Type: "INCREMENT", PlayerID: "p1"})
	if err != nil {
		t.Fatalf("setup command: %v", err)
	}
	state = result.State

	rejected, err := p.Execute(state, Command{Type: "FAIL_AT_N", PlayerID: "p1", Payload: failAtPayload{N: 1}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !apperrors.IsCode(err, apperrors.CodeCommandRejected) {
		t.Fatalf("expected rejection code, got %v", err)
	}
	if !reflect.DeepEqual(rejected.State, state) {
		t.Fatal("rejected command must leave state unchanged")
	}
	if len(rejected.Appended) != 0 {
		t.Fatalf("rejected command produced %d events", len(rejected.Appended))
	}
}

func TestExecuteRejectsMalformedEnvelope(t *testing.T) {
	p := newCounterPipeline(1)
	state := p.NewMatchState()

	if _, err := p.Execute(state, Command{Type: "", PlayerID: "p1"}); !apperrors.IsCode(err, apperrors.CodeCommandUnknownType) {
		t.Fatalf("expected empty type rejection, got %v", err)
	}
	if _, err := p.Execute(state, Command{Type: "INCREMENT", PlayerID: " "}); !apperrors.IsCode(err, apperrors.CodeCommandEmptyPlayerID) {
		t.Fatalf("expected empty player rejection, got %v", err)
	}
}

// TestReplayDeterminism re-runs the same command sequence against the same
// seed and expects byte-identical state and event logs.
func TestReplayDeterminism(t *testing.T) {
	script := []Command{
		{Type: "INCREMENT", PlayerID: "p1"},
		{Type: "ROLL", PlayerID: "p1"},
		{Type: "ROLL", PlayerID: "p2"},
		{Type: "INCREMENT", PlayerID: "p2"},
		{Type: "ROLL", PlayerID: "p1"},
	}

	run := func() (MatchState[counterCore], []StreamEntry) {
		p := newCounterPipeline(99)
		state := p.NewMatchState()
		var log []StreamEntry
		for _, cmd := range script {
			result, err := p.Execute(state, cmd)
			if err != nil {
				t.Fatalf("execute %s: %v", cmd.Type, err)
			}
			state = result.State
			log = append(log, result.Appended...)
		}
		return state, log
	}

	stateA, logA := run()
	stateB, logB := run()

	if !reflect.DeepEqual(stateA, stateB) {
		t.Fatal("replayed state diverged")
	}
	if !reflect.DeepEqual(logA, logB) {
		t.Fatal("replayed event log diverged")
	}
}

func TestStreamIDsAreContiguousAcrossCommands(t *testing.T) {
	p := newCounterPipeline(3)
	state := p.NewMatchState()

	var wantID int64 = 1
	for i := 0; i < 5; i++ {
		result, err := p.Execute(state, Command{Type: "INCREMENT", PlayerID: "p1"})
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		state = result.State
		for _, entry := range result.Appended {
			if entry.ID != wantID {
				t.Fatalf("expected entry id %d, got %d", wantID, entry.ID)
			}
			wantID++
		}
	}
}

func TestUndoRestoresPreviousSnapshot(t *testing.T) {
	p := newCounterPipeline(5)
	state := p.NewMatchState()

	for i := 0; i < 3; i++ {
		result, err := p.Execute(state, Command{Type: "INCREMENT", PlayerID: "p1"})
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		state = result.State
	}
	if state.Core.Value != 3 {
		t.Fatalf("expected value 3, got %d", state.Core.Value)
	}

	result, err := p.Execute(state, Command{Type: CommandUndo, PlayerID: "p1"})
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	state = result.State
	if state.Core.Value != 2 {
		t.Fatalf("expected value 2 after undo, got %d", state.Core.Value)
	}
	if len(state.Sys.Stream.Entries) != 0 {
		t.Fatalf("expected emptied stream after undo, got %d entries", len(state.Sys.Stream.Entries))
	}
	if state.Sys.Stream.NextID != 3 {
		t.Fatalf("expected rewound next id 3, got %d", state.Sys.Stream.NextID)
	}
}

func TestUndoWithoutSnapshotIsRejected(t *testing.T) {
	p := newCounterPipeline(5)
	state := p.NewMatchState()

	result, err := p.Execute(state, Command{Type: CommandUndo, PlayerID: "p1"})
	if err == nil {
		t.Fatal("expected undo rejection with empty snapshot stack")
	}
	if !reflect.DeepEqual(result.State, state) {
		t.Fatal("failed undo must leave state unchanged")
	}
}

// TestUndoRestoreResetsStreamCursor ties the undo path to the cursor rules:
// a consumer that saw entries before the undo must get a reset afterwards.
func TestUndoRestoreResetsStreamCursor(t *testing.T) {
	p := newCounterPipeline(5)
	state := p.NewMatchState()

	result, err := p.Execute(state, Command{Type: "INCREMENT", PlayerID: "p1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	state = result.State

	delta := ComputeDelta(state.Sys.Stream.Snapshot(), -1)
	if delta.ShouldReset || len(delta.NewEntries) != 1 {
		t.Fatalf("expected one fresh entry, got %+v", delta)
	}
	cursor := delta.NextLastSeenID

	result, err = p.Execute(state, Command{Type: CommandUndo, PlayerID: "p1"})
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	state = result.State

	delta = ComputeDelta(state.Sys.Stream.Snapshot(), cursor)
	if !delta.ShouldReset {
		t.Fatal("expected cursor reset after undo emptied the stream")
	}
	if delta.NextLastSeenID != -1 {
		t.Fatalf("expected cursor rewound to -1, got %d", delta.NextLastSeenID)
	}
}
