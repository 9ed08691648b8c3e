package engine

import "time"

// ResponseWindowState tracks which interaction, if any, holds the
// authoritative lock an adjudicator may cancel. The lock id must exactly
// match the pending interaction's id for a force-cancel to be allowed.
type ResponseWindowState struct {
	// PendingInteractionID is the locked interaction id, zero when unlocked.
	PendingInteractionID int64 `json:"pendingInteractionId,omitempty"`
	// Deadline is reserved for a soft timeout policy layered outside the
	// engine. The engine never acts on it.
	Deadline *time.Time `json:"deadline,omitempty"`
}

// windowSystem maintains the response-window lock from interaction
// lifecycle events.
type windowSystem[G any] struct{}

func (windowSystem[G]) Name() string { return "response-window" }

func (windowSystem[G]) AfterExecute(state MatchState[G], cmd Command, events []Event) ([]Event, error) {
	return events, nil
}

func (windowSystem[G]) ApplyEvent(next *MatchState[G], evt Event) {
	switch evt.Type {
	case EventInteractionQueued:
		descriptor, ok := evt.Payload.(Interaction[G])
		if !ok {
			return
		}
		if descriptor.Exclusive {
			next.Sys.Window.PendingInteractionID = descriptor.ID
		}
	case EventInteractionResolved, EventInteractionCancelled:
		next.Sys.Window.PendingInteractionID = 0
		next.Sys.Window.Deadline = nil
	}
}
