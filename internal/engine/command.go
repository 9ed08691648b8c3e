package engine

import "strings"

// Reserved command types handled by the engine itself. Domains must not
// register commands with these types.
const (
	// CommandInteractionRespond resolves the pending interaction.
	CommandInteractionRespond = "SYS_INTERACTION_RESPOND"
	// CommandInteractionCancel force-cancels the pending interaction. Only
	// the adjudication path may issue it.
	CommandInteractionCancel = "SYS_INTERACTION_CANCEL"
	// CommandUndo restores the most recent undo snapshot.
	CommandUndo = "SYS_UNDO"
)

// Command is a single player intent. It is immutable and submitted once.
type Command struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Payload  any    `json:"payload,omitempty"`
	// ClientCommandID correlates a command with its optimistic prediction on
	// the submitting client. Opaque to the engine.
	ClientCommandID string `json:"clientCommandId,omitempty"`
}

// Validate checks the envelope fields common to every command.
func (c Command) Validate() error {
	if strings.TrimSpace(c.Type) == "" {
		return errCommandType
	}
	if strings.TrimSpace(c.PlayerID) == "" {
		return errCommandPlayer
	}
	return nil
}

// IsSystem reports whether the command type is engine-reserved.
func (c Command) IsSystem() bool {
	switch c.Type {
	case CommandInteractionRespond, CommandInteractionCancel, CommandUndo:
		return true
	}
	return false
}
