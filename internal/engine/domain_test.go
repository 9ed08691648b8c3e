package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haldane-games/crucible/internal/engine/rng"
	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
)

// counterDomain is the minimal test game used across the engine tests: a
// counter with a deterministic increment, a threshold-guarded command, a
// random roll, and a discard prompt that exercises the interaction system.

type counterCore struct {
	Value int
	Hand  []string
	Rolls []int
}

type valueChangedPayload struct {
	Delta int
}

type rolledPayload struct {
	Die int
}

type discardedPayload struct {
	Cards []string
}

type failAtPayload struct {
	N int
}

type promptPayload struct {
	Min int
	Max int
}

type counterDomain struct{}

func (counterDomain) GameID() string { return "counter" }

func (counterDomain) Setup(src rng.Drawer) counterCore {
	return counterCore{Hand: []string{"a", "b", "c"}}
}

func (counterDomain) Validate(state MatchState[counterCore], cmd Command) error {
	switch cmd.Type {
	case "INCREMENT", "ROLL", "PROMPT", CommandInteractionRespond, CommandInteractionCancel:
		return nil
	case "FAIL_AT_N":
		payload, ok := cmd.Payload.(failAtPayload)
		if !ok {
			return apperrors.New(apperrors.CodeCommandRejected, "missing threshold")
		}
		if state.Core.Value >= payload.N {
			return apperrors.WithMetadata(apperrors.CodeCommandRejected, "threshold exceeded", map[string]string{
				"threshold": fmt.Sprintf("%d", payload.N),
			})
		}
		return nil
	}
	return apperrors.New(apperrors.CodeCommandUnknownType, "unknown command "+cmd.Type)
}

func (counterDomain) Execute(state MatchState[counterCore], cmd Command, src rng.Drawer, now func() time.Time) ([]Event, error) {
	switch cmd.Type {
	case "INCREMENT", "FAIL_AT_N":
		return []Event{{Type: "VALUE_CHANGED", Payload: valueChangedPayload{Delta: 1}}}, nil
	case "ROLL":
		return []Event{{Type: "ROLLED", Payload: rolledPayload{Die: src.Die(6)}}}, nil
	case "PROMPT":
		payload, _ := cmd.Payload.(promptPayload)
		descriptor := Interaction[counterCore]{
			Kind:      "discard",
			PlayerID:  cmd.PlayerID,
			Prompt:    "choose cards to discard",
			Exclusive: true,
			Generate: func(state MatchState[counterCore]) []Option {
				options := make([]Option, 0, len(state.Core.Hand))
				for _, card := range state.Core.Hand {
					options = append(options, Option{ID: card, Label: card})
				}
				return options
			},
		}
		if payload.Max > 0 {
			descriptor.Multi = &Cardinality{Min: payload.Min, Max: payload.Max}
		}
		return []Event{RequestInteraction(descriptor)}, nil
	case CommandInteractionRespond:
		resp, ok := cmd.Payload.(Response)
		if !ok {
			return nil, nil
		}
		return []Event{{Type: "DISCARDED", Payload: discardedPayload{Cards: resp.OptionIDs}}}, nil
	case CommandInteractionCancel:
		return nil, nil
	}
	return nil, nil
}

func (counterDomain) Reduce(core counterCore, evt Event) counterCore {
	switch evt.Type {
	case "VALUE_CHANGED":
		if payload, ok := evt.Payload.(valueChangedPayload); ok {
			core.Value += payload.Delta
		}
	case "ROLLED":
		if payload, ok := evt.Payload.(rolledPayload); ok {
			core.Rolls = append(append([]int(nil), core.Rolls...), payload.Die)
		}
	case "DISCARDED":
		if payload, ok := evt.Payload.(discardedPayload); ok {
			var hand []string
			discarded := make(map[string]bool, len(payload.Cards))
			for _, card := range payload.Cards {
				discarded[card] = true
			}
			for _, card := range core.Hand {
				if !discarded[card] {
					hand = append(hand, card)
				}
			}
			core.Hand = hand
		}
	}
	return core
}

// sameState compares two match states through their JSON form. Interaction
// generators are closures and excluded from serialization, so this works
// where reflect.DeepEqual cannot.
func sameState(a, b MatchState[counterCore]) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newCounterPipeline(seed int64) *Pipeline[counterCore] {
	return NewPipeline[counterCore](counterDomain{}, rng.NewSource(seed), WithClock[counterCore](fixedClock))
}
