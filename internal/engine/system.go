package engine

import (
	"time"

	"github.com/haldane-games/crucible/internal/engine/rng"
)

// Domain is the per-game pure validate/execute/reduce contract. The engine
// never inspects G's internal shape; reducers must not mutate state in
// place, perform I/O, or draw randomness outside the provided source.
type Domain[G any] interface {
	// GameID identifies the game, e.g. "dicedual".
	GameID() string
	// Setup builds the initial core state for a match.
	Setup(src rng.Drawer) G
	// Validate rejects a command before any state change. Returning an
	// error is the only failure channel out of the pipeline.
	Validate(state MatchState[G], cmd Command) error
	// Execute translates a validated command into its base event list.
	Execute(state MatchState[G], cmd Command, src rng.Drawer, now func() time.Time) ([]Event, error)
	// Reduce folds one event into the core state, returning the new core.
	Reduce(core G, evt Event) G
}

// System is a cross-cutting state machine hooked into the pipeline. Systems
// run in registration order.
type System[G any] interface {
	Name() string
	// AfterExecute may append events or veto the command by returning an
	// error; returning an empty list turns the command into a no-op.
	AfterExecute(state MatchState[G], cmd Command, events []Event) ([]Event, error)
	// ApplyEvent folds one event into the next state's sys half.
	ApplyEvent(next *MatchState[G], evt Event)
}
