package errors

import "errors"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Command errors
	CodeCommandUnknownType   Code = "COMMAND_UNKNOWN_TYPE"
	CodeCommandEmptyPlayerID Code = "COMMAND_EMPTY_PLAYER_ID"
	CodeCommandRejected      Code = "COMMAND_REJECTED"
	CodeCommandNotYourTurn   Code = "COMMAND_NOT_YOUR_TURN"
	CodeCommandVetoed        Code = "COMMAND_VETOED"

	// Interaction errors
	CodeInteractionPending      Code = "INTERACTION_ALREADY_PENDING"
	CodeInteractionStale        Code = "INTERACTION_STALE_RESPONSE"
	CodeInteractionSelection    Code = "INTERACTION_SELECTION_OUT_OF_RANGE"
	CodeInteractionUnknownKind  Code = "INTERACTION_UNKNOWN_KIND"
	CodeInteractionWrongPlayer  Code = "INTERACTION_WRONG_PLAYER"
	CodeInteractionNonePending  Code = "INTERACTION_NONE_PENDING"
	CodeInteractionInvalidRange Code = "INTERACTION_INVALID_CARDINALITY"

	// Match errors
	CodeMatchNotFound     Code = "MATCH_NOT_FOUND"
	CodeMatchOver         Code = "MATCH_OVER"
	CodeMatchUnknownGame  Code = "MATCH_UNKNOWN_GAME"
	CodeMatchClosed       Code = "MATCH_CLOSED"
	CodeMatchEmptyBatch   Code = "MATCH_EMPTY_BATCH"
	CodeMatchBatchTooLong Code = "MATCH_BATCH_TOO_LONG"

	// Transport errors
	CodeTransportNoInteraction Code = "TRANSPORT_NO_LOCAL_INTERACTION"
	CodeTransportUnknownStep   Code = "TRANSPORT_UNKNOWN_INTERACTION"
	CodeTransportClosed        Code = "TRANSPORT_BATCHER_CLOSED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Random/seed errors
	CodeSeedOutOfRange Code = "SEED_OUT_OF_RANGE"
)

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetMetadata extracts metadata from an error if present.
// Returns nil if the error is not a domain error or has no metadata.
func GetMetadata(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
