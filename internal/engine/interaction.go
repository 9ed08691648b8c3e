package engine

// Interaction machinery: pause game progress for exactly one outstanding
// player decision. At most one interaction may be pending per match.

// Option is one selectable choice presented by an interaction.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Cardinality bounds a multi-select response. A response with a selection
// count outside [Min, Max] is rejected, never silently clamped.
type Cardinality struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// OptionsGenerator regenerates an interaction's option set against the
// current state. Interactions whose options depend on state that can change
// between creation and resolution must carry a generator instead of a baked
// list, so a chain of interactions created from one trigger never offers an
// already-consumed choice.
type OptionsGenerator[G any] func(state MatchState[G]) []Option

// Interaction is a request for one player's input mid-pipeline. ID is
// monotonically assigned by the engine and joins the request with its
// eventual response.
type Interaction[G any] struct {
	ID       int64  `json:"id"`
	Kind     string `json:"kind"`
	PlayerID string `json:"playerId"`
	Prompt   string `json:"prompt,omitempty"`

	Options  []Option            `json:"options,omitempty"`
	Generate OptionsGenerator[G] `json:"-"`

	// Multi, when set, makes the interaction a multi-select with the given
	// cardinality. Nil means exactly one selection.
	Multi *Cardinality `json:"multi,omitempty"`

	// Exclusive interactions take the response-window lock, making them
	// cancellable by the adjudicator.
	Exclusive bool `json:"exclusive"`
}

// Response is the payload of a CommandInteractionRespond command.
type Response struct {
	InteractionID int64    `json:"interactionId"`
	OptionIDs     []string `json:"optionIds"`
}

// CancelRequest is the payload of a CommandInteractionCancel command.
type CancelRequest struct {
	InteractionID int64  `json:"interactionId"`
	Reason        string `json:"reason,omitempty"`
}

// ResolvedPayload is the payload of EventInteractionResolved.
type ResolvedPayload struct {
	InteractionID int64    `json:"interactionId"`
	PlayerID      string   `json:"playerId"`
	OptionIDs     []string `json:"optionIds"`
}

// CancelledPayload is the payload of EventInteractionCancelled.
type CancelledPayload struct {
	InteractionID int64  `json:"interactionId"`
	Reason        string `json:"reason,omitempty"`
}

// InteractionState is the sys-state slot for the pending interaction.
type InteractionState[G any] struct {
	Current *Interaction[G] `json:"current,omitempty"`
	NextID  int64           `json:"nextId"`
}

// RequestInteraction builds the reserved event that queues an interaction.
// The engine assigns the id when the event passes through the pipeline.
func RequestInteraction[G any](descriptor Interaction[G]) Event {
	return Event{Type: EventInteractionQueued, Payload: descriptor}
}

// RefreshOptions re-evaluates the pending interaction's option set against
// the current state. Interactions without a generator are returned as-is.
// When regeneration shrinks the option set below Multi.Min, Min is lowered
// to the available count so the prompt stays answerable; Max is never
// raised.
func RefreshOptions[G any](state MatchState[G]) MatchState[G] {
	current := state.Sys.Interaction.Current
	if current == nil || current.Generate == nil {
		return state
	}

	refreshed := *current
	refreshed.Options = current.Generate(state)
	if refreshed.Multi != nil {
		multi := *refreshed.Multi
		// Lowering Min here relaxes the prompt's constraint, it never
		// touches the response. A response selecting an option that fell
		// out of the regenerated set is still rejected as stale by
		// validateResponse, not clamped to fit.
		if multi.Min > len(refreshed.Options) {
			multi.Min = len(refreshed.Options)
		}
		refreshed.Multi = &multi
	}

	next := state
	next.Sys.Interaction.Current = &refreshed
	return next
}

// validateResponse checks a response against the pending interaction after
// options have been refreshed. The caller guarantees current is non-nil.
func validateResponse[G any](state MatchState[G], playerID string, resp Response) error {
	current := state.Sys.Interaction.Current
	if resp.InteractionID != current.ID || playerID != current.PlayerID {
		return ErrStaleResponse
	}

	min, max := 1, 1
	if current.Multi != nil {
		min, max = current.Multi.Min, current.Multi.Max
	}
	if len(resp.OptionIDs) < min || len(resp.OptionIDs) > max {
		return ErrSelectionOutOfRange
	}

	if len(current.Options) > 0 || current.Generate != nil {
		valid := make(map[string]bool, len(current.Options))
		for _, opt := range current.Options {
			valid[opt.ID] = true
		}
		for _, id := range resp.OptionIDs {
			if !valid[id] {
				return ErrStaleResponse
			}
		}
	}
	return nil
}

// interactionSystem enforces the at-most-one-pending invariant, gates
// commands while a prompt is outstanding, and folds interaction lifecycle
// events into sys state.
type interactionSystem[G any] struct{}

func (interactionSystem[G]) Name() string { return "interaction" }

func (interactionSystem[G]) AfterExecute(state MatchState[G], cmd Command, events []Event) ([]Event, error) {
	pending := state.Sys.Interaction.Current

	switch cmd.Type {
	case CommandInteractionRespond:
		if pending == nil {
			return nil, ErrStaleResponse
		}
		resp, ok := cmd.Payload.(Response)
		if !ok {
			return nil, ErrStaleResponse
		}
		refreshed := RefreshOptions(state)
		if err := validateResponse(refreshed, cmd.PlayerID, resp); err != nil {
			return nil, err
		}
		resolved := Event{
			Type: EventInteractionResolved,
			Payload: ResolvedPayload{
				InteractionID: resp.InteractionID,
				PlayerID:      cmd.PlayerID,
				OptionIDs:     append([]string(nil), resp.OptionIDs...),
			},
		}
		events = append([]Event{resolved}, events...)

	case CommandInteractionCancel:
		if pending == nil {
			return nil, ErrStaleResponse
		}
		req, ok := cmd.Payload.(CancelRequest)
		if !ok || req.InteractionID != pending.ID {
			return nil, ErrStaleResponse
		}
		cancelled := Event{
			Type:    EventInteractionCancelled,
			Payload: CancelledPayload{InteractionID: req.InteractionID, Reason: req.Reason},
		}
		events = append([]Event{cancelled}, events...)

	default:
		if pending != nil {
			// Progress is locked until the prompted player answers or the
			// adjudicator cancels. Events from this command are discarded.
			return nil, ErrInteractionPending
		}
	}

	return assignInteractionIDs(state, events)
}

// assignInteractionIDs walks the event list tracking the pending slot, gives
// each queued interaction its monotonic id, and rejects a queue attempt
// while another interaction is still pending by replacing the whole list
// with a single system error event.
func assignInteractionIDs[G any](state MatchState[G], events []Event) ([]Event, error) {
	pendingSim := state.Sys.Interaction.Current != nil
	nextID := state.Sys.Interaction.NextID

	out := make([]Event, len(events))
	for i, evt := range events {
		switch evt.Type {
		case EventInteractionResolved, EventInteractionCancelled:
			pendingSim = false
		case EventInteractionQueued:
			if pendingSim {
				return []Event{{
					Type: EventSystemError,
					Payload: SystemErrorPayload{
						Code:    string(ErrInteractionPending.Code),
						Message: "cannot queue an interaction while one is pending",
					},
				}}, nil
			}
			descriptor, ok := evt.Payload.(Interaction[G])
			if !ok {
				return nil, ErrStaleResponse
			}
			descriptor.ID = nextID
			nextID++
			evt.Payload = descriptor
			pendingSim = true
		}
		out[i] = evt
	}
	return out, nil
}

func (interactionSystem[G]) ApplyEvent(next *MatchState[G], evt Event) {
	switch evt.Type {
	case EventInteractionQueued:
		descriptor, ok := evt.Payload.(Interaction[G])
		if !ok {
			return
		}
		next.Sys.Interaction.Current = &descriptor
		if descriptor.ID >= next.Sys.Interaction.NextID {
			next.Sys.Interaction.NextID = descriptor.ID + 1
		}
	case EventInteractionResolved, EventInteractionCancelled:
		next.Sys.Interaction.Current = nil
	}
}
