package match

import (
	"encoding/json"

	"github.com/haldane-games/crucible/internal/engine"
)

// Client message types.
const (
	MessageCreate  = "create"
	MessageJoin    = "join"
	MessageCommand = "command"
	MessageBatch   = "batch"
	MessageSync    = "sync"
)

// Server message types.
const (
	MessageJoined  = "joined"
	MessageEvents  = "events"
	MessageResults = "results"
	MessageError   = "error"
)

// WireCommand is one command as submitted over the socket. The payload is
// decoded by the per-game decoder registered with the service.
type WireCommand struct {
	Type            string          `json:"type"`
	PlayerID        string          `json:"playerId"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	ClientCommandID string          `json:"clientCommandId,omitempty"`
}

// ClientMessage is the envelope for everything a client sends.
type ClientMessage struct {
	Type       string        `json:"type"`
	MatchID    string        `json:"matchId,omitempty"`
	GameID     string        `json:"gameId,omitempty"`
	PlayerID   string        `json:"playerId,omitempty"`
	Seed       int64         `json:"seed,omitempty"`
	LastSeenID int64         `json:"lastSeenId,omitempty"`
	Command    *WireCommand  `json:"command,omitempty"`
	Commands   []WireCommand `json:"commands,omitempty"`
}

// CommandResult reports one command's fate back to the submitting client,
// correlated by its client command id.
type CommandResult struct {
	ClientCommandID string `json:"clientCommandId,omitempty"`
	Status          string `json:"status"`
	Code            string `json:"code,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// ServerMessage is the envelope for everything the server sends.
type ServerMessage struct {
	Type         string               `json:"type"`
	MatchID      string               `json:"matchId,omitempty"`
	State        json.RawMessage      `json:"state,omitempty"`
	StateVersion int64                `json:"stateVersion,omitempty"`
	Events       []engine.StreamEntry `json:"events,omitempty"`
	// Reset tells the client its event cursor is invalid and any derived
	// state must be rebuilt from State.
	Reset   bool            `json:"reset,omitempty"`
	Results []CommandResult `json:"results,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}
