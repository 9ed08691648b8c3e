package engine

// SchemaVersion identifies the sys-state layout. Bump when the shape of
// SysState changes in a way stored snapshots cannot absorb.
const SchemaVersion = 1

// MatchState is the complete state of one match. Core is fully owned by the
// per-game Domain and opaque to the engine; Sys holds the engine's own
// cross-cutting machinery. Exactly one mutable MatchState exists per match;
// all transitions go through Pipeline.Execute.
type MatchState[G any] struct {
	Core G           `json:"core"`
	Sys  SysState[G] `json:"sys"`
}

// SysState is the engine-owned half of a MatchState.
type SysState[G any] struct {
	SchemaVersion int                 `json:"schemaVersion"`
	Interaction   InteractionState[G] `json:"interaction"`
	Window        ResponseWindowState `json:"responseWindow"`
	Stream        EventStream         `json:"eventStream"`
	Undo          UndoState[G]        `json:"undo"`
	TurnNumber    int                 `json:"turnNumber"`
	Phase         string              `json:"phase"`
}

// NewSysState returns the empty sys state a match starts with.
func NewSysState[G any](streamCapacity, undoCapacity int) SysState[G] {
	return SysState[G]{
		SchemaVersion: SchemaVersion,
		Interaction:   InteractionState[G]{NextID: 1},
		Stream:        EventStream{NextID: 1, MaxEntries: streamCapacity},
		Undo:          UndoState[G]{MaxSnapshots: undoCapacity},
		TurnNumber:    1,
	}
}

// clone returns a deep copy of the sys state so a pipeline run never mutates
// the caller's state. Core is not copied here: domains replace it through
// Reduce instead of mutating it in place.
func (s SysState[G]) clone() SysState[G] {
	out := s
	out.Stream = s.Stream.clone()
	out.Undo = s.Undo.clone()
	if s.Interaction.Current != nil {
		current := *s.Interaction.Current
		current.Options = append([]Option(nil), s.Interaction.Current.Options...)
		out.Interaction.Current = &current
	}
	return out
}

// cloneState prepares the next state for a pipeline run.
func cloneState[G any](state MatchState[G]) MatchState[G] {
	return MatchState[G]{Core: state.Core, Sys: state.Sys.clone()}
}
