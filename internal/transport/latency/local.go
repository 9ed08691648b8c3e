package latency

import (
	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
)

// LocalStep is one intermediate step of a multi-step local interaction.
type LocalStep struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// LocalReducer folds one step into the interaction's local state. An error
// aborts the whole interaction.
type LocalReducer[L any] func(state L, stepType string, payload any) (L, error)

// LocalDeclaration registers a multi-step interaction under its commit
// command type.
type LocalDeclaration[L any] struct {
	Reducer LocalReducer[L]
}

// CommitResult is the single network command a committed local interaction
// collapses into.
type CommitResult struct {
	CommandType string `json:"commandType"`
	Payload     any    `json:"payload,omitempty"`
}

// StepsPayload is the default commit payload: the recorded steps in order.
type StepsPayload struct {
	Steps []LocalStep `json:"steps"`
}

// CommitPayloadFunc builds the commit payload from the accumulated steps.
type CommitPayloadFunc[L any] func(interactionID string, steps []LocalStep, final L) any

type localInteraction[L any] struct {
	id      string
	initial L
	current L
	steps   []LocalStep
	command string
}

// LocalInteractionManager runs a multi-step prompt entirely on the client:
// intermediate steps mutate only local state, and one command goes over the
// wire at commit. Not safe for concurrent use.
type LocalInteractionManager[L any] struct {
	declarations map[string]LocalDeclaration[L]
	buildPayload CommitPayloadFunc[L]
	active       *localInteraction[L]
}

// NewLocalInteractionManager builds a manager from the declarations, keyed
// by commit command type. buildPayload may be nil to use the default steps
// payload.
func NewLocalInteractionManager[L any](declarations map[string]LocalDeclaration[L], buildPayload CommitPayloadFunc[L]) *LocalInteractionManager[L] {
	if buildPayload == nil {
		buildPayload = func(_ string, steps []LocalStep, _ L) any {
			return StepsPayload{Steps: steps}
		}
	}
	return &LocalInteractionManager[L]{
		declarations: declarations,
		buildPayload: buildPayload,
	}
}

// Begin starts a local interaction, snapshotting the initial state for
// cancel. An already active interaction is silently replaced.
func (m *LocalInteractionManager[L]) Begin(commandType string, initial L) {
	m.active = &localInteraction[L]{
		id:      commandType,
		initial: initial,
		current: initial,
		command: commandType,
	}
}

// Update applies one intermediate step through the declared reducer. A
// reducer error cancels the interaction and is returned.
func (m *LocalInteractionManager[L]) Update(stepType string, payload any) (L, error) {
	var zero L
	if m.active == nil {
		return zero, apperrors.New(apperrors.CodeTransportNoInteraction, "no local interaction in progress")
	}

	declaration, ok := m.declarations[m.active.command]
	if !ok {
		return zero, apperrors.WithMetadata(apperrors.CodeTransportUnknownStep, "no declaration for local interaction", map[string]string{
			"command": m.active.command,
		})
	}

	next, err := declaration.Reducer(m.active.current, stepType, payload)
	if err != nil {
		m.active = nil
		return zero, err
	}

	m.active.steps = append(m.active.steps, LocalStep{Type: stepType, Payload: payload})
	m.active.current = next
	return next, nil
}

// Commit collapses the interaction into its single wire command and ends
// it.
func (m *LocalInteractionManager[L]) Commit() (CommitResult, error) {
	if m.active == nil {
		return CommitResult{}, apperrors.New(apperrors.CodeTransportNoInteraction, "no local interaction in progress")
	}

	active := m.active
	m.active = nil

	return CommitResult{
		CommandType: active.command,
		Payload:     m.buildPayload(active.id, active.steps, active.current),
	}, nil
}

// Cancel ends the interaction and returns the initial snapshot for the UI
// to restore.
func (m *LocalInteractionManager[L]) Cancel() (L, bool) {
	if m.active == nil {
		var zero L
		return zero, false
	}
	initial := m.active.initial
	m.active = nil
	return initial, true
}

// Active reports whether a local interaction is in progress.
func (m *LocalInteractionManager[L]) Active() bool {
	return m.active != nil
}

// State returns the interaction's current local state.
func (m *LocalInteractionManager[L]) State() (L, bool) {
	if m.active == nil {
		var zero L
		return zero, false
	}
	return m.active.current, true
}
