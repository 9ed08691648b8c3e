package dicedual

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
)

// DecodePayload builds a typed command payload from loosely typed scenario
// arguments. Lua numbers arrive as float64.
func DecodePayload(cmdType string, args map[string]any) (any, error) {
	switch cmdType {
	case CommandRoll, CommandAdvance:
		return nil, nil
	case CommandSpend:
		tokens, ok := intArg(args, "tokens")
		if !ok {
			return nil, apperrors.New(apperrors.CodeCommandRejected, "spend requires a tokens argument")
		}
		return SpendPayload{Tokens: tokens}, nil
	default:
		return nil, apperrors.WithMetadata(apperrors.CodeCommandUnknownType,
			"unknown command type",
			map[string]string{"type": cmdType})
	}
}

// DecodeWirePayload builds a typed command payload from its JSON wire form.
func DecodeWirePayload(cmdType string, raw json.RawMessage) (any, error) {
	switch cmdType {
	case CommandRoll, CommandAdvance:
		return nil, nil
	case CommandSpend:
		var payload SpendPayload
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, fmt.Errorf("decode spend payload: %w", err)
			}
		}
		return payload, nil
	default:
		return nil, apperrors.WithMetadata(apperrors.CodeCommandUnknownType,
			"unknown command type",
			map[string]string{"type": cmdType})
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
