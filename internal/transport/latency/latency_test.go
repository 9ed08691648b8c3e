package latency

import (
	"time"

	"github.com/haldane-games/crucible/internal/engine"
	"github.com/haldane-games/crucible/internal/engine/rng"
	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
)

// stepCore is the test game shared across the transport tests: a counter
// with a deterministic step, a rolled die, a phase transition, and a
// guarded command for failure paths.
type stepCore struct {
	Value int   `json:"value"`
	Rolls []int `json:"rolls,omitempty"`
}

type stepDelta struct {
	Delta int `json:"delta"`
}

type rolledDie struct {
	Die int `json:"die"`
}

type failAbove struct {
	N int `json:"n"`
}

type stepDomain struct{}

func (stepDomain) GameID() string { return "step" }

func (stepDomain) Setup(src rng.Drawer) stepCore { return stepCore{} }

func (stepDomain) Validate(state engine.MatchState[stepCore], cmd engine.Command) error {
	switch cmd.Type {
	case "STEP", "ROLL", "LUCKY", "ADVANCE_PHASE",
		engine.CommandInteractionRespond, engine.CommandInteractionCancel:
		return nil
	case "FAIL_ABOVE":
		payload, ok := cmd.Payload.(failAbove)
		if !ok || state.Core.Value >= payload.N {
			return apperrors.New(apperrors.CodeCommandRejected, "value above threshold")
		}
		return nil
	}
	return apperrors.New(apperrors.CodeCommandUnknownType, "unknown command "+cmd.Type)
}

func (stepDomain) Execute(state engine.MatchState[stepCore], cmd engine.Command, src rng.Drawer, now func() time.Time) ([]engine.Event, error) {
	switch cmd.Type {
	case "STEP", "FAIL_ABOVE":
		return []engine.Event{{Type: "STEPPED", Payload: stepDelta{Delta: 1}}}, nil
	case "ROLL", "LUCKY":
		return []engine.Event{{Type: "ROLLED", Payload: rolledDie{Die: src.Die(6)}}}, nil
	case "ADVANCE_PHASE":
		phase, _ := cmd.Payload.(string)
		return []engine.Event{engine.PhaseChanged(phase)}, nil
	}
	return nil, nil
}

func (stepDomain) Reduce(core stepCore, evt engine.Event) stepCore {
	switch evt.Type {
	case "STEPPED":
		if payload, ok := evt.Payload.(stepDelta); ok {
			core.Value += payload.Delta
		}
	case "ROLLED":
		if payload, ok := evt.Payload.(rolledDie); ok {
			core.Rolls = append(append([]int(nil), core.Rolls...), payload.Die)
		}
	}
	return core
}

func testClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

// stepProfile predicts STEP, never predicts ROLL, and leaves LUCKY to the
// random probe.
func stepProfile() Profile {
	return Profile{
		OptimisticEnabled: true,
		CommandDeterminism: map[string]Determinism{
			"STEP": Deterministic,
			"ROLL": Nondeterministic,
		},
	}
}

func newServerPipeline(seed int64) *engine.Pipeline[stepCore] {
	return engine.NewPipeline[stepCore](stepDomain{}, rng.NewSource(seed), engine.WithClock[stepCore](testClock))
}

func newClientEngine(profile Profile, seed int64) *OptimisticEngine[stepCore] {
	return NewOptimisticEngine[stepCore](stepDomain{}, profile, rng.NewSource(seed), engine.WithClock[stepCore](testClock))
}
