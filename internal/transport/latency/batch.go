package latency

import (
	"github.com/haldane-games/crucible/internal/engine"
	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
)

// CommandStatus is the per-command outcome inside a batch response.
type CommandStatus string

const (
	// StatusApplied means the command ran and its events are canonical.
	StatusApplied CommandStatus = "applied"
	// StatusFailed means the command was rejected. Only the first failure
	// in a batch carries this status.
	StatusFailed CommandStatus = "failed"
	// StatusSkipped means an earlier command failed, so this one never ran.
	StatusSkipped CommandStatus = "skipped"
)

// BatchCommandResult reports one command's fate within a batch.
type BatchCommandResult struct {
	Status CommandStatus `json:"status"`
	// Code and Reason are set on the failed command only.
	Code    string               `json:"code,omitempty"`
	Reason  string               `json:"reason,omitempty"`
	Entries []engine.StreamEntry `json:"entries,omitempty"`
}

// BatchResult is the outcome of executing a batch serially.
type BatchResult[G any] struct {
	State   engine.MatchState[G]
	Results []BatchCommandResult
}

// ExecuteBatch runs an ordered command batch through the pipeline serially,
// threading each command's resulting state into the next. It is exactly
// equivalent to n single Execute calls: commands before the first failure
// keep their effects, the failing command reports its reason, and commands
// after it are skipped. A single command is still never partially applied.
func ExecuteBatch[G any](p *engine.Pipeline[G], state engine.MatchState[G], commands []engine.Command) BatchResult[G] {
	results := make([]BatchCommandResult, 0, len(commands))
	current := state

	for i, cmd := range commands {
		result, err := p.Execute(current, cmd)
		if err != nil {
			results = append(results, BatchCommandResult{
				Status: StatusFailed,
				Code:   string(apperrors.GetCode(err)),
				Reason: err.Error(),
			})
			for range commands[i+1:] {
				results = append(results, BatchCommandResult{Status: StatusSkipped})
			}
			return BatchResult[G]{State: current, Results: results}
		}

		current = result.State
		results = append(results, BatchCommandResult{
			Status:  StatusApplied,
			Entries: result.Appended,
		})
	}

	return BatchResult[G]{State: current, Results: results}
}
