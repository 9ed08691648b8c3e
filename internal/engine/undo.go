package engine

// Undo is modeled as compensating snapshots: restoring one replaces the
// state wholesale and truncates the event stream, it never deletes events
// from history (the archive keeps the full log).

// DefaultUndoCapacity bounds the snapshot stack per match.
const DefaultUndoCapacity = 8

// UndoSnapshot captures everything needed to rewind one command.
type UndoSnapshot[G any] struct {
	Core         G      `json:"core"`
	Phase        string `json:"phase"`
	TurnNumber   int    `json:"turnNumber"`
	StreamNextID int64  `json:"streamNextId"`
}

// UndoState is the bounded snapshot stack in sys state.
type UndoState[G any] struct {
	Snapshots    []UndoSnapshot[G] `json:"snapshots"`
	MaxSnapshots int               `json:"maxSnapshots"`
}

func (u UndoState[G]) clone() UndoState[G] {
	out := u
	out.Snapshots = append([]UndoSnapshot[G](nil), u.Snapshots...)
	return out
}

// push records a snapshot of the pre-command state, evicting the oldest
// entry when the stack is full. Disabled when MaxSnapshots is zero.
func (u *UndoState[G]) push(snapshot UndoSnapshot[G]) {
	if u.MaxSnapshots <= 0 {
		return
	}
	u.Snapshots = append(u.Snapshots, snapshot)
	if len(u.Snapshots) > u.MaxSnapshots {
		u.Snapshots = append([]UndoSnapshot[G](nil), u.Snapshots[len(u.Snapshots)-u.MaxSnapshots:]...)
	}
}

// pop removes and returns the most recent snapshot.
func (u *UndoState[G]) pop() (UndoSnapshot[G], bool) {
	if len(u.Snapshots) == 0 {
		var zero UndoSnapshot[G]
		return zero, false
	}
	last := u.Snapshots[len(u.Snapshots)-1]
	u.Snapshots = u.Snapshots[:len(u.Snapshots)-1]
	return last, true
}

// restoreUndo rewinds state to the given snapshot. The event stream is
// emptied and its next id rewound, which consumers detect as a cursor reset
// through ComputeDelta.
func restoreUndo[G any](state MatchState[G], snapshot UndoSnapshot[G]) MatchState[G] {
	next := state
	next.Core = snapshot.Core
	next.Sys.Phase = snapshot.Phase
	next.Sys.TurnNumber = snapshot.TurnNumber
	next.Sys.Stream.Entries = nil
	next.Sys.Stream.NextID = snapshot.StreamNextID
	next.Sys.Interaction.Current = nil
	next.Sys.Window.PendingInteractionID = 0
	next.Sys.Window.Deadline = nil
	return next
}
