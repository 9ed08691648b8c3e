// Package adjudication decides whether a pending interaction must be
// force-cancelled, typically when the prompted player disconnects. It is a
// pure policy function independent of any game's rules: the caller turns a
// cancel decision into a synthetic cancel command fed back through the
// pipeline.
package adjudication

import (
	"github.com/haldane-games/crucible/internal/engine"
)

// Reason explains why the adjudicator declined to cancel. A cancel decision
// carries no reason.
type Reason string

const (
	ReasonMissingState             Reason = "missing_state"
	ReasonGameOver                 Reason = "game_over"
	ReasonMissingMetadata          Reason = "missing_metadata"
	ReasonPlayerNotFound           Reason = "player_not_found"
	ReasonPlayerConnected          Reason = "player_connected"
	ReasonNoPendingInteraction     Reason = "no_pending_interaction"
	ReasonInteractionOwnerMismatch Reason = "interaction_owner_mismatch"
	ReasonNoPendingInteractionLock Reason = "no_pending_interaction_lock"
	ReasonInteractionLockMismatch  Reason = "interaction_lock_mismatch"
)

// PlayerMeta is the per-player connection record kept by the match runtime.
// IsConnected is tri-state: only an explicit false counts as disconnected,
// an unknown status is treated as connected so an incomplete record never
// triggers a cancel.
type PlayerMeta struct {
	IsConnected *bool `json:"isConnected,omitempty"`
}

// Connected builds the pointer form of a connection flag.
func Connected(v bool) *bool {
	return &v
}

// MatchMetadata is the connection-management view of a match, maintained
// outside the engine state.
type MatchMetadata struct {
	GameOver bool                  `json:"gameover,omitempty"`
	Players  map[string]PlayerMeta `json:"players,omitempty"`
}

// Decision is the adjudicator's verdict. InteractionID is set only when
// ShouldCancel is true.
type Decision struct {
	ShouldCancel  bool   `json:"shouldCancel"`
	Reason        Reason `json:"reason,omitempty"`
	InteractionID int64  `json:"interactionId,omitempty"`
}

// GameOverReporter is implemented by domain cores that expose a terminal
// flag. Cores without it rely on the metadata-level flag alone.
type GameOverReporter interface {
	GameOver() bool
}

// ShouldForceCancel applies the disconnect policy in strict order,
// short-circuiting on the first applicable reason. The bias is deliberate:
// an interaction is cancelled only when a specific, currently-locked prompt
// belongs to a disconnected player in a live match. Any ambiguity resolves
// to leaving it pending.
func ShouldForceCancel[G any](state *engine.MatchState[G], metadata *MatchMetadata, playerID string) Decision {
	if state == nil {
		return Decision{Reason: ReasonMissingState}
	}

	if reporter, ok := any(state.Core).(GameOverReporter); ok && reporter.GameOver() {
		return Decision{Reason: ReasonGameOver}
	}
	if metadata != nil && metadata.GameOver {
		return Decision{Reason: ReasonGameOver}
	}

	if metadata == nil || metadata.Players == nil {
		return Decision{Reason: ReasonMissingMetadata}
	}

	playerMeta, ok := metadata.Players[playerID]
	if !ok {
		return Decision{Reason: ReasonPlayerNotFound}
	}
	if playerMeta.IsConnected == nil || *playerMeta.IsConnected {
		return Decision{Reason: ReasonPlayerConnected}
	}

	pending := state.Sys.Interaction.Current
	if pending == nil {
		return Decision{Reason: ReasonNoPendingInteraction}
	}
	if pending.PlayerID != playerID {
		return Decision{Reason: ReasonInteractionOwnerMismatch}
	}

	lockID := state.Sys.Window.PendingInteractionID
	if lockID == 0 {
		return Decision{Reason: ReasonNoPendingInteractionLock}
	}
	if lockID != pending.ID {
		return Decision{Reason: ReasonInteractionLockMismatch}
	}

	return Decision{ShouldCancel: true, InteractionID: pending.ID}
}

// CancelCommand builds the synthetic system command a positive decision
// translates into.
func CancelCommand(decision Decision, playerID string) engine.Command {
	return engine.Command{
		Type:     engine.CommandInteractionCancel,
		PlayerID: playerID,
		Payload: engine.CancelRequest{
			InteractionID: decision.InteractionID,
			Reason:        "player_disconnected",
		},
	}
}
