package latency

import (
	"bytes"
	"encoding/json"

	"github.com/haldane-games/crucible/internal/engine"
	"github.com/haldane-games/crucible/internal/engine/rng"
)

// PendingCommand is one locally predicted command awaiting server
// confirmation.
type PendingCommand[G any] struct {
	Seq       int
	Command   engine.Command
	Predicted engine.MatchState[G]
	// SnapshotPhase remembers the phase the command was issued in. A replay
	// base whose phase has moved past it means the server already applied
	// this command, so replaying it again would double-apply.
	SnapshotPhase string
}

// ProcessResult tells the caller what to render after submitting a command.
// Predicted is nil when the command was not predicted: the UI shows a
// waiting state until the server responds. The command is sent to the
// server either way.
type ProcessResult[G any] struct {
	Predicted     *engine.MatchState[G]
	AnimationMode AnimationMode
}

// ReconcileResult is the outcome of folding a server confirmation into the
// local view.
type ReconcileResult[G any] struct {
	// State is what the UI should render now: the server state after a
	// rollback, or the newest surviving prediction.
	State       engine.MatchState[G]
	// DidRollback is set when at least one prediction was discarded instead
	// of confirmed. A queue drained purely by confirmation is not a
	// rollback: the rendered UI never changes.
	DidRollback bool
	// Watermark is the highest event id already animated optimistically,
	// reported when the pending queue drains so the caller can suppress
	// replayed animations. Zero means nothing to filter.
	Watermark int64
}

// OptimisticEngine is the client half of the latency transport: it runs the
// same pipeline the server runs, speculatively, against a local mirror of
// the match state. Not safe for concurrent use; the client event loop owns
// it.
type OptimisticEngine[G any] struct {
	profile  Profile
	pipeline *engine.Pipeline[G]
	probe    *rng.Probe

	confirmed *engine.MatchState[G]
	pending   []PendingCommand[G]
	nextSeq   int
	watermark int64
}

// NewOptimisticEngine builds the client engine for one match. The local
// random source only feeds predictions that turn out deterministic; any
// draw it serves marks the prediction as discardable.
func NewOptimisticEngine[G any](domain engine.Domain[G], profile Profile, local rng.Drawer, opts ...engine.PipelineOption[G]) *OptimisticEngine[G] {
	probe := rng.NewProbe(local)
	return &OptimisticEngine[G]{
		profile:  profile,
		pipeline: engine.NewPipeline(domain, probe, opts...),
		probe:    probe,
		nextSeq:  1,
	}
}

// SetConfirmed seeds the local mirror with the first server state.
func (o *OptimisticEngine[G]) SetConfirmed(state engine.MatchState[G]) {
	o.confirmed = &state
}

// CurrentState returns the state the UI should render: the newest
// prediction if any commands are pending, otherwise the last confirmed
// state.
func (o *OptimisticEngine[G]) CurrentState() (engine.MatchState[G], bool) {
	if len(o.pending) > 0 {
		return o.pending[len(o.pending)-1].Predicted, true
	}
	if o.confirmed != nil {
		return *o.confirmed, true
	}
	var zero engine.MatchState[G]
	return zero, false
}

// HasPending reports whether any prediction awaits confirmation.
func (o *OptimisticEngine[G]) HasPending() bool {
	return len(o.pending) > 0
}

// Reset drops all local state. Called on disconnect before rejoining.
func (o *OptimisticEngine[G]) Reset() {
	o.confirmed = nil
	o.pending = nil
	o.nextSeq = 1
	o.watermark = 0
}

// ProcessCommand decides whether to predict a submitted command locally.
// Declared-nondeterministic commands are never predicted. Undeclared
// commands are predicted tentatively: if the pipeline run draws randomness
// the prediction is discarded, because the server's draw will differ.
func (o *OptimisticEngine[G]) ProcessCommand(cmd engine.Command) ProcessResult[G] {
	noPrediction := ProcessResult[G]{AnimationMode: AnimationWaitConfirm}

	if !o.profile.OptimisticEnabled {
		return noPrediction
	}
	current, ok := o.CurrentState()
	if !ok {
		return noPrediction
	}

	decl := o.profile.DeterminismOf(cmd.Type)
	if decl == Nondeterministic {
		return noPrediction
	}

	o.probe.Reset()
	result, err := o.pipeline.Execute(current, cmd)
	if err != nil {
		// Local validation failed. The server is still authoritative, so the
		// command is sent anyway.
		return noPrediction
	}
	if decl == DeterminismUnset && o.probe.Used() {
		return noPrediction
	}

	mode := o.profile.AnimationModeOf(cmd.Type)
	predicted := applyAnimationMode(result.State, current, mode)

	if mode == AnimationOptimistic {
		if max := maxEntryID(result.Appended); max > o.watermark {
			o.watermark = max
		}
	}

	o.pending = append(o.pending, PendingCommand[G]{
		Seq:           o.nextSeq,
		Command:       cmd,
		Predicted:     predicted,
		SnapshotPhase: current.Sys.Phase,
	})
	o.nextSeq++

	return ProcessResult[G]{Predicted: &predicted, AnimationMode: mode}
}

// Reconcile folds a canonical server state into the local view. If the
// server state matches the oldest prediction's core, that prediction is
// confirmed and dropped; either way the surviving pending commands are
// replayed on top of the server state. When no prediction survives, the
// result is a rollback and carries the animation watermark.
func (o *OptimisticEngine[G]) Reconcile(server engine.MatchState[G]) ReconcileResult[G] {
	o.confirmed = &server

	if len(o.pending) == 0 {
		o.watermark = 0
		return ReconcileResult[G]{State: server}
	}

	toReplay := o.pending
	if coreEqual(o.pending[0].Predicted.Core, server.Core) {
		toReplay = o.pending[1:]
	}

	o.pending = o.replayPending(server, toReplay)
	discarded := len(o.pending) < len(toReplay)

	if len(o.pending) == 0 {
		watermark := o.watermark
		o.watermark = 0
		return ReconcileResult[G]{State: server, DidRollback: discarded, Watermark: watermark}
	}
	return ReconcileResult[G]{State: o.pending[len(o.pending)-1].Predicted}
}

// replayPending re-predicts the surviving commands on top of a fresh base
// state. A command whose snapshot phase no longer matches is skipped as
// already applied; a command the pipeline now rejects drops itself and
// everything after it.
func (o *OptimisticEngine[G]) replayPending(base engine.MatchState[G], commands []PendingCommand[G]) []PendingCommand[G] {
	var replayed []PendingCommand[G]
	current := base

	for _, pending := range commands {
		if pending.SnapshotPhase != current.Sys.Phase {
			continue
		}

		result, err := o.pipeline.Execute(current, pending.Command)
		if err != nil {
			break
		}

		mode := o.profile.AnimationModeOf(pending.Command.Type)
		predicted := applyAnimationMode(result.State, current, mode)
		pending.Predicted = predicted
		replayed = append(replayed, pending)
		current = predicted
	}

	return replayed
}

// applyAnimationMode decides whether a prediction keeps its stream events.
// Wait-confirm predictions carry the previous stream untouched, so the
// animation layer sees nothing until the server confirms.
func applyAnimationMode[G any](predicted, previous engine.MatchState[G], mode AnimationMode) engine.MatchState[G] {
	if mode == AnimationOptimistic {
		return predicted
	}
	predicted.Sys.Stream = previous.Sys.Stream
	return predicted
}

// FilterPlayedEvents removes stream entries at or below the watermark from
// a confirmed state, so animations already played optimistically are not
// replayed after a rollback. A zero watermark filters nothing.
func FilterPlayedEvents[G any](state engine.MatchState[G], watermark int64) engine.MatchState[G] {
	if watermark == 0 || len(state.Sys.Stream.Entries) == 0 {
		return state
	}

	filtered := make([]engine.StreamEntry, 0, len(state.Sys.Stream.Entries))
	for _, entry := range state.Sys.Stream.Entries {
		if entry.ID > watermark {
			filtered = append(filtered, entry)
		}
	}
	if len(filtered) == len(state.Sys.Stream.Entries) {
		return state
	}
	state.Sys.Stream.Entries = filtered
	return state
}

func maxEntryID(entries []engine.StreamEntry) int64 {
	var max int64
	for _, entry := range entries {
		if entry.ID > max {
			max = entry.ID
		}
	}
	return max
}

func coreEqual[G any](a, b G) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}
