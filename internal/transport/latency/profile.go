// Package latency hides network round-trips from players: an optimistic
// client engine predicts deterministic commands locally, a batcher merges
// input bursts into one request, and a local interaction manager keeps
// multi-step prompts off the wire until commit. The server side re-runs the
// same pipeline serially, so prediction and confirmation are comparable
// state for state.
package latency

import "time"

// Determinism classifies a command type for optimistic prediction.
type Determinism string

const (
	// DeterminismUnset defers to the random probe: the command is predicted
	// and the prediction is kept only if its pipeline run drew no randomness.
	DeterminismUnset Determinism = ""
	// Deterministic commands are predicted locally without probing.
	Deterministic Determinism = "deterministic"
	// Nondeterministic commands are never predicted. The server owns their
	// randomness or hidden information.
	Nondeterministic Determinism = "nondeterministic"
)

// AnimationMode decides when a predicted command's stream events reach the
// animation layer.
type AnimationMode string

const (
	// AnimationWaitConfirm strips predicted stream events; animations play
	// when the server confirms. The conservative default.
	AnimationWaitConfirm AnimationMode = "wait-confirm"
	// AnimationOptimistic keeps predicted stream events so animations start
	// immediately. Replayed confirmations are filtered by watermark.
	AnimationOptimistic AnimationMode = "optimistic"
)

// BatchingConfig controls the client-side command batcher.
type BatchingConfig struct {
	Enabled bool `json:"enabled"`
	// Window is the collection window. Zero degrades to pass-through: every
	// command is sent on its own.
	Window time.Duration `json:"window"`
	// MaxBatchSize flushes the queue early once reached.
	MaxBatchSize int `json:"maxBatchSize"`
	// ImmediateCommands are sent without waiting for the window, flushing
	// anything already queued ahead of them.
	ImmediateCommands []string `json:"immediateCommands,omitempty"`
}

// Profile is a game's static latency policy, declared once per game and
// immutable at runtime.
type Profile struct {
	// OptimisticEnabled gates local prediction entirely.
	OptimisticEnabled bool `json:"optimisticEnabled"`
	// CommandDeterminism overrides the probe per command type. Types absent
	// from the map are autodetected.
	CommandDeterminism map[string]Determinism `json:"commandDeterminism,omitempty"`
	// AnimationModes selects the animation mode per command type. Types
	// absent from the map wait for confirmation.
	AnimationModes map[string]AnimationMode `json:"animationModes,omitempty"`

	Batching BatchingConfig `json:"batching"`
}

// DeterminismOf returns the declared determinism for a command type.
func (p Profile) DeterminismOf(commandType string) Determinism {
	return p.CommandDeterminism[commandType]
}

// AnimationModeOf returns the animation mode for a command type.
func (p Profile) AnimationModeOf(commandType string) AnimationMode {
	if mode, ok := p.AnimationModes[commandType]; ok {
		return mode
	}
	return AnimationWaitConfirm
}
