package engine

import (
	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
)

var (
	errCommandType   = apperrors.New(apperrors.CodeCommandUnknownType, "command type is required")
	errCommandPlayer = apperrors.New(apperrors.CodeCommandEmptyPlayerID, "command player id is required")

	// ErrInteractionPending rejects commands submitted while an interaction
	// is outstanding.
	ErrInteractionPending = apperrors.New(apperrors.CodeInteractionPending, "an interaction is pending")
	// ErrStaleResponse marks an interaction response that no longer matches
	// the live pending interaction. Callers treat it as a race, not a fault:
	// the response is discarded and the state is untouched.
	ErrStaleResponse = apperrors.New(apperrors.CodeInteractionStale, "interaction response is stale")
	// ErrSelectionOutOfRange rejects a multi-select response whose selection
	// count falls outside the interaction's cardinality constraint.
	ErrSelectionOutOfRange = apperrors.New(apperrors.CodeInteractionSelection, "selection count out of range")
	// ErrNoUndoSnapshot rejects an undo when no snapshot is available.
	ErrNoUndoSnapshot = apperrors.New(apperrors.CodeCommandRejected, "no undo snapshot available")
)

// IsStaleResponse reports whether err is the stale-response condition.
func IsStaleResponse(err error) bool {
	return apperrors.IsCode(err, apperrors.CodeInteractionStale)
}
