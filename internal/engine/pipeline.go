package engine

import (
	"time"

	"github.com/haldane-games/crucible/internal/engine/rng"
)

// Result is the outcome of one successful pipeline run.
type Result[G any] struct {
	State MatchState[G]
	// Appended holds the canonical stream entries this command produced, in
	// order, with their assigned ids.
	Appended []StreamEntry
}

// Pipeline executes commands against a match state. It owns no state of its
// own besides its injected collaborators: given the same state, command,
// seed position, and clock, Execute is a pure function.
type Pipeline[G any] struct {
	domain  Domain[G]
	systems []System[G]
	src     rng.Drawer
	clock   func() time.Time
}

// PipelineOption customises pipeline construction.
type PipelineOption[G any] func(*Pipeline[G])

// WithClock injects a deterministic clock. Defaults to time.Now.
func WithClock[G any](clock func() time.Time) PipelineOption[G] {
	return func(p *Pipeline[G]) { p.clock = clock }
}

// WithSystems appends extra systems after the engine's built-ins.
func WithSystems[G any](systems ...System[G]) PipelineOption[G] {
	return func(p *Pipeline[G]) { p.systems = append(p.systems, systems...) }
}

// NewPipeline builds a pipeline for the given domain and random source. The
// interaction and response-window systems are always registered, in that
// order, ahead of any extra systems.
func NewPipeline[G any](domain Domain[G], src rng.Drawer, opts ...PipelineOption[G]) *Pipeline[G] {
	p := &Pipeline[G]{
		domain: domain,
		src:    src,
		clock:  time.Now,
		systems: []System[G]{
			interactionSystem[G]{},
			windowSystem[G]{},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewMatchState builds the seeded initial state for a match.
func (p *Pipeline[G]) NewMatchState() MatchState[G] {
	return MatchState[G]{
		Core: p.domain.Setup(p.src),
		Sys:  NewSysState[G](DefaultStreamCapacity, DefaultUndoCapacity),
	}
}

// Execute runs one command through validation, the domain reducer, the
// system hooks, and the event fold. On any failure the input state is
// returned unchanged with zero events: a command is never partially applied.
func (p *Pipeline[G]) Execute(state MatchState[G], cmd Command) (Result[G], error) {
	unchanged := Result[G]{State: state}

	if err := cmd.Validate(); err != nil {
		return unchanged, err
	}

	if cmd.Type == CommandUndo {
		return p.executeUndo(state)
	}

	if err := p.domain.Validate(state, cmd); err != nil {
		return unchanged, err
	}

	// System commands also reach the domain so it can translate e.g. an
	// interaction resolution into game events.
	events, err := p.domain.Execute(state, cmd, p.src, p.clock)
	if err != nil {
		return unchanged, err
	}

	for _, sys := range p.systems {
		rewritten, err := sys.AfterExecute(state, cmd, events)
		if err != nil {
			return unchanged, err
		}
		events = rewritten
	}

	now := p.clock()
	for i := range events {
		if events[i].Timestamp.IsZero() {
			events[i].Timestamp = now
		}
		if events[i].SourceCommandType == "" {
			events[i].SourceCommandType = cmd.Type
		}
	}

	next := cloneState(state)
	if !cmd.IsSystem() && len(events) > 0 {
		next.Sys.Undo.push(UndoSnapshot[G]{
			Core:         state.Core,
			Phase:        state.Sys.Phase,
			TurnNumber:   state.Sys.TurnNumber,
			StreamNextID: state.Sys.Stream.NextID,
		})
	}

	for _, evt := range events {
		next.Core = p.domain.Reduce(next.Core, evt)
		p.applySysEvent(&next, evt)
		for _, sys := range p.systems {
			sys.ApplyEvent(&next, evt)
		}
	}

	appended := next.Sys.Stream.append(events)
	return Result[G]{State: next, Appended: appended}, nil
}

// applySysEvent folds the engine-owned reserved events.
func (p *Pipeline[G]) applySysEvent(next *MatchState[G], evt Event) {
	switch evt.Type {
	case EventPhaseChanged:
		if payload, ok := evt.Payload.(PhaseChangedPayload); ok {
			next.Sys.Phase = payload.Phase
		}
	case EventTurnAdvanced:
		if payload, ok := evt.Payload.(TurnAdvancedPayload); ok {
			next.Sys.TurnNumber = payload.Turn
		}
	}
}

// executeUndo restores the most recent snapshot. The restored state carries
// an emptied event stream with a rewound next id; stream consumers observe
// this as a cursor reset.
func (p *Pipeline[G]) executeUndo(state MatchState[G]) (Result[G], error) {
	next := cloneState(state)
	snapshot, ok := next.Sys.Undo.pop()
	if !ok {
		return Result[G]{State: state}, ErrNoUndoSnapshot
	}
	return Result[G]{State: restoreUndo(next, snapshot)}, nil
}
