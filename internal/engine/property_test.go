package engine

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// scriptCommand maps a generated opcode to a counter domain command. FAIL_AT_N
// with a low threshold is included so scripts exercise rejected commands.
func scriptCommand(op int) Command {
	switch op % 4 {
	case 0:
		return Command{Type: "INCREMENT", PlayerID: "p1"}
	case 1:
		return Command{Type: "ROLL", PlayerID: "p1"}
	case 2:
		return Command{Type: "INCREMENT", PlayerID: "p2"}
	default:
		return Command{Type: "FAIL_AT_N", PlayerID: "p1", Payload: failAtPayload{N: 2}}
	}
}

func runScript(seed int64, ops []int) (MatchState[counterCore], []StreamEntry) {
	p := newCounterPipeline(seed)
	state := p.NewMatchState()
	var log []StreamEntry
	for _, op := range ops {
		result, err := p.Execute(state, scriptCommand(op))
		if err != nil {
			continue
		}
		state = result.State
		log = append(log, result.Appended...)
	}
	return state, log
}

// TestPipelineReplayProperty: any command script replayed against the same
// seed produces an identical state and event log.
func TestPipelineReplayProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("replay with same seed is identical", prop.ForAll(
		func(seed int64, ops []int) bool {
			stateA, logA := runScript(seed, ops)
			stateB, logB := runScript(seed, ops)

			jsonA, errA := json.Marshal(stateA)
			jsonB, errB := json.Marshal(stateB)
			if errA != nil || errB != nil {
				return false
			}
			if string(jsonA) != string(jsonB) {
				return false
			}

			if len(logA) != len(logB) {
				return false
			}
			for i := range logA {
				if logA[i].ID != logB[i].ID || logA[i].Event.Type != logB[i].Event.Type {
					return false
				}
			}
			return true
		},
		gen.Int64Range(1, 1<<30),
		gen.SliceOf(gen.IntRange(0, 16)),
	))

	properties.TestingRun(t)
}

// TestPipelineNoPartialEffectProperty: a rejected command never changes the
// state, for any state reachable by a command script.
func TestPipelineNoPartialEffectProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("rejection leaves state unchanged", prop.ForAll(
		func(seed int64, ops []int) bool {
			p := newCounterPipeline(seed)
			state := p.NewMatchState()
			for _, op := range ops {
				result, err := p.Execute(state, scriptCommand(op))
				if err == nil {
					state = result.State
				}
			}

			before, err := json.Marshal(state)
			if err != nil {
				return false
			}

			// Threshold zero always rejects.
			result, err := p.Execute(state, Command{Type: "FAIL_AT_N", PlayerID: "p1", Payload: failAtPayload{N: 0}})
			if err == nil {
				return false
			}
			if len(result.Appended) != 0 {
				return false
			}

			after, err := json.Marshal(result.State)
			if err != nil {
				return false
			}
			return string(before) == string(after)
		},
		gen.Int64Range(1, 1<<30),
		gen.SliceOf(gen.IntRange(0, 16)),
	))

	properties.TestingRun(t)
}

// TestStreamIDContiguityProperty: applied commands always extend the stream
// with contiguous ids regardless of the script.
func TestStreamIDContiguityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("stream ids are contiguous", prop.ForAll(
		func(seed int64, ops []int) bool {
			_, log := runScript(seed, ops)
			var want int64 = 1
			for _, entry := range log {
				if entry.ID != want {
					return false
				}
				want++
			}
			return true
		},
		gen.Int64Range(1, 1<<30),
		gen.SliceOf(gen.IntRange(0, 16)),
	))

	properties.TestingRun(t)
}
