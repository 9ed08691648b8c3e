// Package dicedual implements a small two-player dice duel used by the
// match service, the scenario harness, and the end-to-end tests. Players
// alternate turns rolling dice for points, spending banked tokens for a
// guaranteed bonus, and discarding down to the hand limit when a roll
// overflows it. First to the target score wins.
package dicedual

import (
	"fmt"
	"time"

	"github.com/haldane-games/crucible/internal/engine"
	"github.com/haldane-games/crucible/internal/engine/rng"
	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
	"github.com/haldane-games/crucible/internal/transport/latency"
)

// Command types accepted by the duel.
const (
	// CommandRoll rolls two dice for the active player. Nondeterministic.
	CommandRoll = "ROLL"
	// CommandSpend converts banked tokens into points. Deterministic.
	CommandSpend = "SPEND"
	// CommandAdvance ends the active player's turn and banks one token.
	CommandAdvance = "ADVANCE"
)

// Event types emitted by the duel.
const (
	EventDiceRolled   = "DICE_ROLLED"
	EventTokensSpent  = "TOKENS_SPENT"
	EventDieDiscarded = "DIE_DISCARDED"
	EventTurnEnded    = "TURN_ENDED"
	EventMatchWon     = "MATCH_WON"
)

// InteractionForcedDiscard prompts the roller to discard down to the hand
// limit after an overflowing roll.
const InteractionForcedDiscard = "forced_discard"

const (
	// HandLimit is the maximum dice a player may keep between turns.
	HandLimit = 4
	// TargetScore ends the match when reached.
	TargetScore = 30

	startingTokens = 2
	dicePerRoll    = 2
	dieSides       = 6
	spendBonus     = 2
)

// PlayerState is one player's half of the duel.
type PlayerState struct {
	Score  int   `json:"score"`
	Tokens int   `json:"tokens"`
	Hand   []int `json:"hand,omitempty"`
}

// State is the duel's core match state. Reducers treat it as immutable and
// return copies.
type State struct {
	Players map[string]PlayerState `json:"players"`
	Order   []string               `json:"order"`
	Active  string                 `json:"active"`
	Winner  string                 `json:"winner,omitempty"`
	Over    bool                   `json:"over"`
}

// GameOver reports whether the duel has been decided. The adjudicator uses
// it to skip force-cancels on finished matches.
func (s State) GameOver() bool {
	return s.Over
}

func (s State) clone() State {
	out := s
	out.Players = make(map[string]PlayerState, len(s.Players))
	for id, player := range s.Players {
		player.Hand = append([]int(nil), player.Hand...)
		out.Players[id] = player
	}
	out.Order = append([]string(nil), s.Order...)
	return out
}

// RolledPayload is the payload of EventDiceRolled.
type RolledPayload struct {
	PlayerID string `json:"playerId"`
	Dice     []int  `json:"dice"`
	Sum      int    `json:"sum"`
}

// SpendPayload is the payload of CommandSpend.
type SpendPayload struct {
	Tokens int `json:"tokens"`
}

// SpentPayload is the payload of EventTokensSpent.
type SpentPayload struct {
	PlayerID string `json:"playerId"`
	Tokens   int    `json:"tokens"`
	Points   int    `json:"points"`
}

// DiscardedPayload is the payload of EventDieDiscarded.
type DiscardedPayload struct {
	PlayerID string `json:"playerId"`
	Index    int    `json:"index"`
	Value    int    `json:"value"`
}

// TurnEndedPayload is the payload of EventTurnEnded.
type TurnEndedPayload struct {
	PlayerID string `json:"playerId"`
	Next     string `json:"next"`
}

// WonPayload is the payload of EventMatchWon.
type WonPayload struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// Domain implements the duel rules against the engine's pipeline contract.
type Domain struct{}

var _ engine.Domain[State] = Domain{}

// GameID identifies the duel in the game registry.
func (Domain) GameID() string { return "dicedual" }

// Setup seats two players and draws who goes first.
func (Domain) Setup(src rng.Drawer) State {
	order := []string{"p1", "p2"}
	state := State{
		Players: map[string]PlayerState{
			"p1": {Tokens: startingTokens},
			"p2": {Tokens: startingTokens},
		},
		Order: order,
	}
	state.Active = order[src.Die(len(order))-1]
	return state
}

// Validate rejects a command before any state change.
func (Domain) Validate(state engine.MatchState[State], cmd engine.Command) error {
	if cmd.IsSystem() {
		return nil
	}
	if state.Core.Over {
		return apperrors.New(apperrors.CodeMatchOver, "the duel is already decided")
	}
	player, ok := state.Core.Players[cmd.PlayerID]
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeCommandRejected,
			"player is not seated in this duel",
			map[string]string{"player_id": cmd.PlayerID})
	}
	if cmd.PlayerID != state.Core.Active {
		return apperrors.New(apperrors.CodeCommandNotYourTurn, "not your turn")
	}

	switch cmd.Type {
	case CommandRoll, CommandAdvance:
		return nil
	case CommandSpend:
		payload, ok := cmd.Payload.(SpendPayload)
		if !ok || payload.Tokens <= 0 {
			return apperrors.New(apperrors.CodeCommandRejected, "spend requires a positive token amount")
		}
		if payload.Tokens > player.Tokens {
			return apperrors.WithMetadata(apperrors.CodeCommandRejected,
				"not enough tokens",
				map[string]string{"requested": fmt.Sprint(payload.Tokens), "available": fmt.Sprint(player.Tokens)})
		}
		return nil
	default:
		return apperrors.WithMetadata(apperrors.CodeCommandUnknownType,
			"unknown command type",
			map[string]string{"type": cmd.Type})
	}
}

// Execute translates a validated command into events.
func (d Domain) Execute(state engine.MatchState[State], cmd engine.Command, src rng.Drawer, now func() time.Time) ([]engine.Event, error) {
	switch cmd.Type {
	case CommandRoll:
		return d.executeRoll(state, cmd, src), nil
	case CommandSpend:
		return d.executeSpend(state, cmd), nil
	case CommandAdvance:
		return d.executeAdvance(state, cmd), nil
	case engine.CommandInteractionRespond:
		return d.executeDiscard(state, cmd)
	}
	return nil, nil
}

func (d Domain) executeRoll(state engine.MatchState[State], cmd engine.Command, src rng.Drawer) []engine.Event {
	dice := make([]int, dicePerRoll)
	sum := 0
	for i := range dice {
		dice[i] = src.Die(dieSides)
		sum += dice[i]
	}

	player := state.Core.Players[cmd.PlayerID]
	events := []engine.Event{{
		Type:    EventDiceRolled,
		Payload: RolledPayload{PlayerID: cmd.PlayerID, Dice: dice, Sum: sum},
	}}

	if won := winEvent(cmd.PlayerID, player.Score+sum); won != nil {
		return append(events, won...)
	}

	if len(player.Hand)+len(dice) > HandLimit {
		events = append(events, engine.RequestInteraction(engine.Interaction[State]{
			Kind:      InteractionForcedDiscard,
			PlayerID:  cmd.PlayerID,
			Prompt:    "hand over the limit, discard a die",
			Generate:  discardOptions(cmd.PlayerID),
			Exclusive: true,
		}))
	}
	return events
}

func (Domain) executeSpend(state engine.MatchState[State], cmd engine.Command) []engine.Event {
	payload := cmd.Payload.(SpendPayload)
	points := payload.Tokens * spendBonus
	player := state.Core.Players[cmd.PlayerID]

	events := []engine.Event{{
		Type:    EventTokensSpent,
		Payload: SpentPayload{PlayerID: cmd.PlayerID, Tokens: payload.Tokens, Points: points},
	}}
	if won := winEvent(cmd.PlayerID, player.Score+points); won != nil {
		events = append(events, won...)
	}
	return events
}

func (Domain) executeAdvance(state engine.MatchState[State], cmd engine.Command) []engine.Event {
	next := nextPlayer(state.Core, cmd.PlayerID)
	return []engine.Event{
		{
			Type:    EventTurnEnded,
			Payload: TurnEndedPayload{PlayerID: cmd.PlayerID, Next: next},
		},
		engine.TurnAdvanced(state.Sys.TurnNumber + 1),
	}
}

// executeDiscard resolves the forced-discard prompt. The engine has already
// validated the response against the refreshed option set.
func (Domain) executeDiscard(state engine.MatchState[State], cmd engine.Command) ([]engine.Event, error) {
	current := state.Sys.Interaction.Current
	if current == nil || current.Kind != InteractionForcedDiscard {
		return nil, nil
	}
	resp, ok := cmd.Payload.(engine.Response)
	if !ok || len(resp.OptionIDs) != 1 {
		return nil, nil
	}

	var index int
	if _, err := fmt.Sscanf(resp.OptionIDs[0], "die-%d", &index); err != nil {
		return nil, engine.ErrStaleResponse
	}
	hand := state.Core.Players[current.PlayerID].Hand
	if index < 0 || index >= len(hand) {
		return nil, engine.ErrStaleResponse
	}

	events := []engine.Event{{
		Type:    EventDieDiscarded,
		Payload: DiscardedPayload{PlayerID: current.PlayerID, Index: index, Value: hand[index]},
	}}

	// One prompt removes one die. Queue the next prompt until the hand is
	// back at the limit; the generator re-reads the shrunken hand so each
	// round offers only live dice.
	if len(hand)-1 > HandLimit {
		events = append(events, engine.RequestInteraction(engine.Interaction[State]{
			Kind:      InteractionForcedDiscard,
			PlayerID:  current.PlayerID,
			Prompt:    "hand over the limit, discard a die",
			Generate:  discardOptions(current.PlayerID),
			Exclusive: true,
		}))
	}
	return events, nil
}

// Reduce folds one event into the core state.
func (Domain) Reduce(core State, evt engine.Event) State {
	switch evt.Type {
	case EventDiceRolled:
		payload, ok := evt.Payload.(RolledPayload)
		if !ok {
			return core
		}
		next := core.clone()
		player := next.Players[payload.PlayerID]
		player.Score += payload.Sum
		player.Hand = append(player.Hand, payload.Dice...)
		next.Players[payload.PlayerID] = player
		return next

	case EventTokensSpent:
		payload, ok := evt.Payload.(SpentPayload)
		if !ok {
			return core
		}
		next := core.clone()
		player := next.Players[payload.PlayerID]
		player.Tokens -= payload.Tokens
		player.Score += payload.Points
		next.Players[payload.PlayerID] = player
		return next

	case EventDieDiscarded:
		payload, ok := evt.Payload.(DiscardedPayload)
		if !ok {
			return core
		}
		next := core.clone()
		player := next.Players[payload.PlayerID]
		if payload.Index < 0 || payload.Index >= len(player.Hand) {
			return core
		}
		player.Hand = append(player.Hand[:payload.Index], player.Hand[payload.Index+1:]...)
		next.Players[payload.PlayerID] = player
		return next

	case EventTurnEnded:
		payload, ok := evt.Payload.(TurnEndedPayload)
		if !ok {
			return core
		}
		next := core.clone()
		player := next.Players[payload.PlayerID]
		player.Tokens++
		next.Players[payload.PlayerID] = player
		next.Active = payload.Next
		return next

	case EventMatchWon:
		payload, ok := evt.Payload.(WonPayload)
		if !ok {
			return core
		}
		next := core.clone()
		next.Winner = payload.PlayerID
		next.Over = true
		return next
	}
	return core
}

// winEvent builds the match-won events when a prospective score crosses the
// target, nil otherwise.
func winEvent(playerID string, score int) []engine.Event {
	if score < TargetScore {
		return nil
	}
	return []engine.Event{
		{Type: EventMatchWon, Payload: WonPayload{PlayerID: playerID, Score: score}},
		engine.PhaseChanged("gameover"),
	}
}

func nextPlayer(core State, playerID string) string {
	for i, id := range core.Order {
		if id == playerID {
			return core.Order[(i+1)%len(core.Order)]
		}
	}
	return playerID
}

// discardOptions regenerates the discard choices from the player's live
// hand, so a prompt created before other state changes never offers a die
// that is no longer held.
func discardOptions(playerID string) engine.OptionsGenerator[State] {
	return func(state engine.MatchState[State]) []engine.Option {
		hand := state.Core.Players[playerID].Hand
		options := make([]engine.Option, len(hand))
		for i, value := range hand {
			options[i] = engine.Option{
				ID:    fmt.Sprintf("die-%d", i),
				Label: fmt.Sprintf("discard a %d", value),
				Value: value,
			}
		}
		return options
	}
}

// LatencyProfile declares the duel's static latency policy.
func LatencyProfile() latency.Profile {
	return latency.Profile{
		OptimisticEnabled: true,
		CommandDeterminism: map[string]latency.Determinism{
			CommandRoll:    latency.Nondeterministic,
			CommandSpend:   latency.Deterministic,
			CommandAdvance: latency.Deterministic,
		},
		AnimationModes: map[string]latency.AnimationMode{
			CommandRoll:    latency.AnimationWaitConfirm,
			CommandSpend:   latency.AnimationOptimistic,
			CommandAdvance: latency.AnimationOptimistic,
		},
		Batching: latency.BatchingConfig{
			Enabled:           true,
			Window:            16 * time.Millisecond,
			MaxBatchSize:      10,
			ImmediateCommands: []string{engine.CommandInteractionRespond},
		},
	}
}
