package dicedual

import (
	"testing"
	"time"

	"github.com/haldane-games/crucible/internal/engine"
	"github.com/haldane-games/crucible/internal/engine/rng"
	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
)

func testClock() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestPipeline(seed int64) (*engine.Pipeline[State], engine.MatchState[State]) {
	p := engine.NewPipeline[State](Domain{}, rng.NewSource(seed), engine.WithClock[State](testClock))
	return p, p.NewMatchState()
}

func mustExecute(t *testing.T, p *engine.Pipeline[State], state engine.MatchState[State], cmd engine.Command) engine.MatchState[State] {
	t.Helper()
	result, err := p.Execute(state, cmd)
	if err != nil {
		t.Fatalf("execute %s: %v", cmd.Type, err)
	}
	return result.State
}

func TestSetupSeatsTwoPlayers(t *testing.T) {
	_, state := newTestPipeline(1)

	if len(state.Core.Players) != 2 {
		t.Fatalf("players = %d, want %d", len(state.Core.Players), 2)
	}
	if state.Core.Active != "p1" && state.Core.Active != "p2" {
		t.Fatalf("active player = %q", state.Core.Active)
	}
	for id, player := range state.Core.Players {
		if player.Tokens != startingTokens {
			t.Fatalf("player %s tokens = %d, want %d", id, player.Tokens, startingTokens)
		}
	}
}

func TestSetupIsDeterministicPerSeed(t *testing.T) {
	_, a := newTestPipeline(7)
	_, b := newTestPipeline(7)

	if a.Core.Active != b.Core.Active {
		t.Fatalf("same seed picked different first players: %q vs %q", a.Core.Active, b.Core.Active)
	}
}

func TestRollScoresAndFillsHand(t *testing.T) {
	p, state := newTestPipeline(1)
	roller := state.Core.Active

	state = mustExecute(t, p, state, engine.Command{Type: CommandRoll, PlayerID: roller})

	player := state.Core.Players[roller]
	if len(player.Hand) != dicePerRoll {
		t.Fatalf("hand size = %d, want %d", len(player.Hand), dicePerRoll)
	}
	sum := 0
	for _, die := range player.Hand {
		if die < 1 || die > dieSides {
			t.Fatalf("die out of range: %d", die)
		}
		sum += die
	}
	if player.Score != sum {
		t.Fatalf("score = %d, want %d", player.Score, sum)
	}
}

func TestRollOverLimitQueuesForcedDiscard(t *testing.T) {
	p, state := newTestPipeline(1)
	roller := state.Core.Active

	state = mustExecute(t, p, state, engine.Command{Type: CommandRoll, PlayerID: roller})
	if state.Sys.Interaction.Current != nil {
		t.Fatal("no interaction expected while hand is under the limit")
	}

	state = mustExecute(t, p, state, engine.Command{Type: CommandRoll, PlayerID: roller})
	if state.Core.Players[roller].Score >= TargetScore {
		t.Skip("seed won before overflowing the hand")
	}

	state = mustExecute(t, p, state, engine.Command{Type: CommandRoll, PlayerID: roller})
	if state.Core.Players[roller].Score >= TargetScore {
		t.Skip("seed won before overflowing the hand")
	}

	pending := state.Sys.Interaction.Current
	if pending == nil {
		t.Fatal("expected a forced discard interaction")
	}
	if pending.Kind != InteractionForcedDiscard {
		t.Fatalf("interaction kind = %q, want %q", pending.Kind, InteractionForcedDiscard)
	}
	if pending.PlayerID != roller {
		t.Fatalf("interaction player = %q, want %q", pending.PlayerID, roller)
	}
	if !pending.Exclusive {
		t.Fatal("forced discard should take the response window lock")
	}
	if state.Sys.Window.PendingInteractionID != pending.ID {
		t.Fatalf("window lock = %d, want %d", state.Sys.Window.PendingInteractionID, pending.ID)
	}
}

func TestForcedDiscardChainsDownToHandLimit(t *testing.T) {
	p, state := overflowedState(t)
	roller := state.Sys.Interaction.Current.PlayerID
	handBefore := append([]int(nil), state.Core.Players[roller].Hand...)
	if len(handBefore) != HandLimit+2 {
		t.Fatalf("overflowed hand size = %d, want %d", len(handBefore), HandLimit+2)
	}
	firstID := state.Sys.Interaction.Current.ID

	// First discard removes one die but the hand is still over the limit,
	// so a fresh prompt replaces the resolved one.
	state = mustExecute(t, p, state, engine.Command{
		Type:     engine.CommandInteractionRespond,
		PlayerID: roller,
		Payload:  engine.Response{InteractionID: firstID, OptionIDs: []string{"die-0"}},
	})

	second := state.Sys.Interaction.Current
	if second == nil {
		t.Fatal("hand still over the limit, expected a second discard prompt")
	}
	if second.ID == firstID {
		t.Fatalf("second prompt id = %d, want a fresh id", second.ID)
	}
	if state.Sys.Window.PendingInteractionID != second.ID {
		t.Fatalf("window lock = %d, want %d", state.Sys.Window.PendingInteractionID, second.ID)
	}
	if got := len(state.Core.Players[roller].Hand); got != HandLimit+1 {
		t.Fatalf("hand size = %d, want %d", got, HandLimit+1)
	}

	// The regenerated option set covers only the dice that survived the
	// first discard.
	refreshed := engine.RefreshOptions(state)
	if got := len(refreshed.Sys.Interaction.Current.Options); got != HandLimit+1 {
		t.Fatalf("regenerated options = %d, want %d", got, HandLimit+1)
	}

	state = mustExecute(t, p, state, engine.Command{
		Type:     engine.CommandInteractionRespond,
		PlayerID: roller,
		Payload:  engine.Response{InteractionID: second.ID, OptionIDs: []string{"die-0"}},
	})

	if state.Sys.Interaction.Current != nil {
		t.Fatal("interaction should be cleared once the hand is at the limit")
	}
	if state.Sys.Window.PendingInteractionID != 0 {
		t.Fatalf("window lock = %d, want cleared", state.Sys.Window.PendingInteractionID)
	}
	hand := state.Core.Players[roller].Hand
	if len(hand) != HandLimit {
		t.Fatalf("hand size = %d, want %d", len(hand), HandLimit)
	}
	for i, die := range hand {
		if die != handBefore[i+2] {
			t.Fatalf("hand[%d] = %d, want %d", i, die, handBefore[i+2])
		}
	}
}

func TestCommandsVetoedDuringForcedDiscard(t *testing.T) {
	p, state := overflowedState(t)
	roller := state.Sys.Interaction.Current.PlayerID

	_, err := p.Execute(state, engine.Command{Type: CommandAdvance, PlayerID: roller})
	if !apperrors.IsCode(err, apperrors.CodeInteractionPending) {
		t.Fatalf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeInteractionPending)
	}
}

func TestSpendConvertsTokens(t *testing.T) {
	p, state := newTestPipeline(1)
	active := state.Core.Active

	state = mustExecute(t, p, state, engine.Command{
		Type:     CommandSpend,
		PlayerID: active,
		Payload:  SpendPayload{Tokens: 2},
	})

	player := state.Core.Players[active]
	if player.Tokens != 0 {
		t.Fatalf("tokens = %d, want %d", player.Tokens, 0)
	}
	if player.Score != 2*spendBonus {
		t.Fatalf("score = %d, want %d", player.Score, 2*spendBonus)
	}
}

func TestSpendValidation(t *testing.T) {
	p, state := newTestPipeline(1)
	active := state.Core.Active

	cases := []struct {
		name    string
		payload any
	}{
		{name: "zero tokens", payload: SpendPayload{Tokens: 0}},
		{name: "negative tokens", payload: SpendPayload{Tokens: -1}},
		{name: "more than banked", payload: SpendPayload{Tokens: startingTokens + 1}},
		{name: "wrong payload type", payload: "nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Execute(state, engine.Command{Type: CommandSpend, PlayerID: active, Payload: tc.payload})
			if !apperrors.IsCode(err, apperrors.CodeCommandRejected) {
				t.Fatalf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeCommandRejected)
			}
		})
	}
}

func TestAdvancePassesTurnAndBanksToken(t *testing.T) {
	p, state := newTestPipeline(1)
	first := state.Core.Active

	state = mustExecute(t, p, state, engine.Command{Type: CommandAdvance, PlayerID: first})

	if state.Core.Active == first {
		t.Fatal("active player did not change")
	}
	if got := state.Core.Players[first].Tokens; got != startingTokens+1 {
		t.Fatalf("tokens = %d, want %d", got, startingTokens+1)
	}
	if state.Sys.TurnNumber != 2 {
		t.Fatalf("turn number = %d, want %d", state.Sys.TurnNumber, 2)
	}
}

func TestOffTurnCommandRejected(t *testing.T) {
	p, state := newTestPipeline(1)
	waiting := nextPlayer(state.Core, state.Core.Active)

	_, err := p.Execute(state, engine.Command{Type: CommandRoll, PlayerID: waiting})
	if !apperrors.IsCode(err, apperrors.CodeCommandNotYourTurn) {
		t.Fatalf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeCommandNotYourTurn)
	}
}

func TestUnseatedPlayerRejected(t *testing.T) {
	p, state := newTestPipeline(1)

	_, err := p.Execute(state, engine.Command{Type: CommandRoll, PlayerID: "intruder"})
	if !apperrors.IsCode(err, apperrors.CodeCommandRejected) {
		t.Fatalf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeCommandRejected)
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	p, state := newTestPipeline(1)

	_, err := p.Execute(state, engine.Command{Type: "TELEPORT", PlayerID: state.Core.Active})
	if !apperrors.IsCode(err, apperrors.CodeCommandUnknownType) {
		t.Fatalf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeCommandUnknownType)
	}
}

func TestReachingTargetEndsMatch(t *testing.T) {
	p, state := newTestPipeline(1)
	active := state.Core.Active

	// Push the active player within spending distance of the target, then
	// convert tokens for the winning points.
	core := state.Core.clone()
	player := core.Players[active]
	player.Score = TargetScore - spendBonus
	player.Tokens = 1
	core.Players[active] = player
	state.Core = core

	state = mustExecute(t, p, state, engine.Command{
		Type:     CommandSpend,
		PlayerID: active,
		Payload:  SpendPayload{Tokens: 1},
	})

	if !state.Core.Over {
		t.Fatal("match should be over")
	}
	if state.Core.Winner != active {
		t.Fatalf("winner = %q, want %q", state.Core.Winner, active)
	}
	if state.Sys.Phase != "gameover" {
		t.Fatalf("phase = %q, want %q", state.Sys.Phase, "gameover")
	}
	if !state.Core.GameOver() {
		t.Fatal("GameOver() should report true")
	}

	_, err := p.Execute(state, engine.Command{Type: CommandRoll, PlayerID: active})
	if !apperrors.IsCode(err, apperrors.CodeMatchOver) {
		t.Fatalf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeMatchOver)
	}
}

func TestDiscardOptionsRegenerateFromLiveHand(t *testing.T) {
	p, state := overflowedState(t)
	roller := state.Sys.Interaction.Current.PlayerID
	handSize := len(state.Core.Players[roller].Hand)

	refreshed := engine.RefreshOptions(state)
	options := refreshed.Sys.Interaction.Current.Options
	if len(options) != handSize {
		t.Fatalf("options = %d, want %d", len(options), handSize)
	}
	if options[0].ID != "die-0" {
		t.Fatalf("option id = %q, want %q", options[0].ID, "die-0")
	}

	// An out-of-range option id is stale, not an index panic.
	_, err := p.Execute(state, engine.Command{
		Type:     engine.CommandInteractionRespond,
		PlayerID: roller,
		Payload: engine.Response{
			InteractionID: state.Sys.Interaction.Current.ID,
			OptionIDs:     []string{"die-99"},
		},
	})
	if !engine.IsStaleResponse(err) {
		t.Fatalf("error = %v, want stale response", err)
	}
}

func TestLatencyProfileDeclaresRollNondeterministic(t *testing.T) {
	profile := LatencyProfile()

	if !profile.OptimisticEnabled {
		t.Fatal("optimistic prediction should be enabled")
	}
	if got := profile.DeterminismOf(CommandRoll); got != "nondeterministic" {
		t.Fatalf("ROLL determinism = %q, want nondeterministic", got)
	}
	if got := profile.DeterminismOf(CommandSpend); got != "deterministic" {
		t.Fatalf("SPEND determinism = %q, want deterministic", got)
	}
	if !profile.Batching.Enabled {
		t.Fatal("batching should be enabled")
	}
}

// overflowedState drives seeded rolls until the hand limit forces a discard
// prompt, skipping seeds that win first.
func overflowedState(t *testing.T) (*engine.Pipeline[State], engine.MatchState[State]) {
	t.Helper()

	for seed := int64(1); seed <= 10; seed++ {
		p, state := newTestPipeline(seed)
		roller := state.Core.Active
		for i := 0; i < 3; i++ {
			next, err := p.Execute(state, engine.Command{Type: CommandRoll, PlayerID: roller})
			if err != nil {
				t.Fatalf("roll %d (seed %d): %v", i, seed, err)
			}
			state = next.State
			if state.Core.Over {
				break
			}
			if state.Sys.Interaction.Current != nil {
				return p, state
			}
		}
	}
	t.Fatal("no seed produced a forced discard within three rolls")
	return nil, engine.MatchState[State]{}
}
