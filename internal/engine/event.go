package engine

import "time"

// Reserved event types emitted by the engine's own systems.
const (
	// EventInteractionQueued records that an interaction became pending.
	EventInteractionQueued = "SYS_INTERACTION_QUEUED"
	// EventInteractionResolved records a valid response to the pending
	// interaction.
	EventInteractionResolved = "SYS_INTERACTION_RESOLVED"
	// EventInteractionCancelled records a force-cancelled interaction.
	EventInteractionCancelled = "SYS_INTERACTION_CANCELLED"
	// EventPhaseChanged records a sys-level phase transition.
	EventPhaseChanged = "SYS_PHASE_CHANGED"
	// EventTurnAdvanced records the turn counter moving forward.
	EventTurnAdvanced = "SYS_TURN_ADVANCED"
	// EventSystemError records a rejected system-level operation, e.g. an
	// attempt to queue a second interaction while one is pending.
	EventSystemError = "SYS_ERROR"
)

// Event is an immutable fact describing one state change. Events are never
// reverted in place; undo is modeled as snapshot restoration, not event
// deletion.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// SourceCommandType names the command that produced this event.
	SourceCommandType string `json:"sourceCommandType,omitempty"`
}

// StreamEntry is one event in the match's append-only, totally ordered log.
// Ids are contiguous and never reused within a match.
type StreamEntry struct {
	ID    int64 `json:"id"`
	Event Event `json:"event"`
}

// PhaseChangedPayload is the payload of EventPhaseChanged.
type PhaseChangedPayload struct {
	Phase string `json:"phase"`
}

// TurnAdvancedPayload is the payload of EventTurnAdvanced.
type TurnAdvancedPayload struct {
	Turn int `json:"turn"`
}

// SystemErrorPayload is the payload of EventSystemError.
type SystemErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PhaseChanged builds the reserved phase transition event.
func PhaseChanged(phase string) Event {
	return Event{Type: EventPhaseChanged, Payload: PhaseChangedPayload{Phase: phase}}
}

// TurnAdvanced builds the reserved turn counter event.
func TurnAdvanced(turn int) Event {
	return Event{Type: EventTurnAdvanced, Payload: TurnAdvancedPayload{Turn: turn}}
}
