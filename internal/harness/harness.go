// Package harness runs scripted match scenarios against a fresh pipeline.
// Every scenario is executed twice from its seed; the runner reports any
// divergence between the two passes alongside the script's own assertions,
// so a nondeterministic reducer fails even a scenario with no explicit
// checks.
package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haldane-games/crucible/internal/adjudication"
	"github.com/haldane-games/crucible/internal/engine"
	"github.com/haldane-games/crucible/internal/engine/rng"
	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
)

// Step kinds understood by the runner.
const (
	// StepCommand submits one command expected to apply.
	StepCommand = "command"
	// StepReject submits one command expected to fail, leaving the state
	// untouched.
	StepReject = "reject"
	// StepRespond resolves the pending interaction.
	StepRespond = "respond"
	// StepUndo restores the previous snapshot.
	StepUndo = "undo"
	// StepAssert checks sys-level facts about the current state.
	StepAssert = "assert"
)

// Step is one scripted action.
type Step struct {
	Kind string
	Args map[string]any
}

// Scenario is a seeded match script.
type Scenario struct {
	Name  string
	Seed  int64
	Steps []Step
}

// Result is the outcome of one scenario run.
type Result struct {
	Name     string
	StepsRun int
	// Failures lists assertion and expectation violations. A scenario with
	// an empty list passed.
	Failures []string
}

// Passed reports whether the scenario ran clean.
func (r Result) Passed() bool {
	return len(r.Failures) == 0
}

// PayloadDecoder builds a typed command payload from scenario arguments.
type PayloadDecoder func(cmdType string, args map[string]any) (any, error)

// Runner executes scenarios against one game domain.
type Runner[G any] struct {
	domain engine.Domain[G]
	decode PayloadDecoder
	clock  func() time.Time
}

// RunnerOption customises a runner.
type RunnerOption[G any] func(*Runner[G])

// WithPayloadDecoder sets the per-game payload decoder. Without one, all
// command payloads are nil.
func WithPayloadDecoder[G any](decode PayloadDecoder) RunnerOption[G] {
	return func(r *Runner[G]) { r.decode = decode }
}

// WithClock injects a deterministic clock.
func WithClock[G any](clock func() time.Time) RunnerOption[G] {
	return func(r *Runner[G]) { r.clock = clock }
}

// NewRunner builds a runner for the given domain.
func NewRunner[G any](domain engine.Domain[G], opts ...RunnerOption[G]) *Runner[G] {
	r := &Runner[G]{
		domain: domain,
		clock:  func() time.Time { return time.Unix(0, 0).UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the scenario twice from its seed and reports failures from
// the first pass plus any replay divergence.
func (r *Runner[G]) Run(scenario Scenario) (Result, error) {
	result, finalState, err := r.runOnce(scenario)
	if err != nil {
		return result, err
	}
	_, replayState, err := r.runOnce(scenario)
	if err != nil {
		return result, err
	}
	if !bytes.Equal(finalState, replayState) {
		result.Failures = append(result.Failures, "replay diverged from first run")
	}
	return result, nil
}

func (r *Runner[G]) runOnce(scenario Scenario) (Result, []byte, error) {
	result := Result{Name: scenario.Name}
	pipeline := engine.NewPipeline(r.domain, rng.NewSource(scenario.Seed), engine.WithClock[G](r.clock))
	state := pipeline.NewMatchState()

	for i, step := range scenario.Steps {
		var err error
		state, err = r.runStep(pipeline, state, step, i, &result)
		if err != nil {
			return result, nil, err
		}
		result.StepsRun++
	}

	finalState, err := json.Marshal(state)
	if err != nil {
		return result, nil, fmt.Errorf("marshal final state: %w", err)
	}
	return result, finalState, nil
}

func (r *Runner[G]) runStep(pipeline *engine.Pipeline[G], state engine.MatchState[G], step Step, index int, result *Result) (engine.MatchState[G], error) {
	switch step.Kind {
	case StepCommand:
		cmd, err := r.buildCommand(step)
		if err != nil {
			return state, fmt.Errorf("step %d: %w", index, err)
		}
		run, err := pipeline.Execute(state, cmd)
		if err != nil {
			result.Failures = append(result.Failures,
				fmt.Sprintf("step %d: %s unexpectedly failed: %v", index, cmd.Type, err))
			return state, nil
		}
		return run.State, nil

	case StepReject:
		cmd, err := r.buildCommand(step)
		if err != nil {
			return state, fmt.Errorf("step %d: %w", index, err)
		}
		before, err := json.Marshal(state)
		if err != nil {
			return state, fmt.Errorf("step %d: marshal state: %w", index, err)
		}
		run, execErr := pipeline.Execute(state, cmd)
		if execErr == nil {
			result.Failures = append(result.Failures,
				fmt.Sprintf("step %d: %s should have been rejected", index, cmd.Type))
			return run.State, nil
		}
		if wantCode, ok := step.Args["code"].(string); ok {
			if got := string(apperrors.GetCode(execErr)); got != wantCode {
				result.Failures = append(result.Failures,
					fmt.Sprintf("step %d: error code %s, want %s", index, got, wantCode))
			}
		}
		after, err := json.Marshal(run.State)
		if err != nil {
			return state, fmt.Errorf("step %d: marshal state: %w", index, err)
		}
		if !bytes.Equal(before, after) {
			result.Failures = append(result.Failures,
				fmt.Sprintf("step %d: rejected %s left a partial effect", index, cmd.Type))
		}
		return state, nil

	case StepRespond:
		pending := state.Sys.Interaction.Current
		if pending == nil {
			result.Failures = append(result.Failures,
				fmt.Sprintf("step %d: respond with no pending interaction", index))
			return state, nil
		}
		cmd := engine.Command{
			Type:     engine.CommandInteractionRespond,
			PlayerID: pending.PlayerID,
			Payload: engine.Response{
				InteractionID: pending.ID,
				OptionIDs:     stringsArg(step.Args, "options"),
			},
		}
		run, err := pipeline.Execute(state, cmd)
		if err != nil {
			result.Failures = append(result.Failures,
				fmt.Sprintf("step %d: respond failed: %v", index, err))
			return state, nil
		}
		return run.State, nil

	case StepUndo:
		player, _ := step.Args["player"].(string)
		run, err := pipeline.Execute(state, engine.Command{Type: engine.CommandUndo, PlayerID: player})
		if err != nil {
			result.Failures = append(result.Failures,
				fmt.Sprintf("step %d: undo failed: %v", index, err))
			return state, nil
		}
		return run.State, nil

	case StepAssert:
		r.assertStep(state, step, index, result)
		return state, nil
	}
	return state, fmt.Errorf("step %d: unknown step kind %q", index, step.Kind)
}

func (r *Runner[G]) buildCommand(step Step) (engine.Command, error) {
	cmdType, _ := step.Args["type"].(string)
	player, _ := step.Args["player"].(string)

	var payload any
	if r.decode != nil {
		args, _ := step.Args["payload"].(map[string]any)
		decoded, err := r.decode(cmdType, args)
		if err != nil {
			return engine.Command{}, fmt.Errorf("decode %s payload: %w", cmdType, err)
		}
		payload = decoded
	}
	return engine.Command{Type: cmdType, PlayerID: player, Payload: payload}, nil
}

func (r *Runner[G]) assertStep(state engine.MatchState[G], step Step, index int, result *Result) {
	fail := func(format string, args ...any) {
		result.Failures = append(result.Failures,
			fmt.Sprintf("step %d: %s", index, fmt.Sprintf(format, args...)))
	}

	if want, ok := step.Args["phase"].(string); ok && state.Sys.Phase != want {
		fail("phase = %q, want %q", state.Sys.Phase, want)
	}
	if want, ok := intArg(step.Args, "turn"); ok && state.Sys.TurnNumber != want {
		fail("turn = %d, want %d", state.Sys.TurnNumber, want)
	}
	if want, ok := step.Args["pending"].(bool); ok {
		got := state.Sys.Interaction.Current != nil
		if got != want {
			fail("pending interaction = %t, want %t", got, want)
		}
	}
	if want, ok := step.Args["game_over"].(bool); ok {
		got := false
		if reporter, isReporter := any(state.Core).(adjudication.GameOverReporter); isReporter {
			got = reporter.GameOver()
		}
		if got != want {
			fail("game over = %t, want %t", got, want)
		}
	}
}

func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func stringsArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
