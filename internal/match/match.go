// Package match hosts the server-side runtime for live matches. Each match
// owns the single mutable state and funnels every command, batch, and
// connection change through one goroutine, so pipeline runs are strictly
// serialized without the state itself needing locks.
package match

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/haldane-games/crucible/internal/adjudication"
	"github.com/haldane-games/crucible/internal/engine"
	"github.com/haldane-games/crucible/internal/engine/rng"
	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
	"github.com/haldane-games/crucible/internal/storage"
	"github.com/haldane-games/crucible/internal/transport/latency"
)

// DefaultMaxBatchSize bounds a single submitted batch.
const DefaultMaxBatchSize = 20

// Config assembles a match runtime.
type Config[G any] struct {
	ID     string
	Domain engine.Domain[G]
	Seed   int64
	// MaxBatchSize defaults to DefaultMaxBatchSize when zero.
	MaxBatchSize int
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Archive, when set, receives every appended stream entry as a
	// journaled event.
	Archive storage.EventStore
	// Records, when set, keeps the durable match record current.
	Records storage.MatchStore
	// PipelineOptions are passed through to the pipeline.
	PipelineOptions []engine.PipelineOption[G]
}

// Outcome is the type-erased result of a batch submission.
type Outcome struct {
	Results []latency.BatchCommandResult
	// StateVersion is the id of the latest stream entry after the batch.
	StateVersion int64
}

// Match is the runtime for one live match.
type Match[G any] struct {
	id           string
	gameID       string
	seed         int64
	maxBatchSize int
	clock        func() time.Time

	pipeline *engine.Pipeline[G]
	archive  storage.EventStore
	records  storage.MatchStore
	tracer   trace.Tracer

	requests  chan func()
	closed    chan struct{}
	closeOnce sync.Once
	loopDone  chan struct{}

	// Owned by the run loop after New returns.
	state        engine.MatchState[G]
	metadata     adjudication.MatchMetadata
	lastArchived int64
}

// New builds and starts a match runtime. The caller must Close it.
func New[G any](ctx context.Context, cfg Config[G]) (*Match[G], error) {
	if cfg.ID == "" {
		return nil, apperrors.New(apperrors.CodeMatchNotFound, "match id is required")
	}
	if cfg.Domain == nil {
		return nil, apperrors.New(apperrors.CodeMatchUnknownGame, "match domain is required")
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	opts := append([]engine.PipelineOption[G]{engine.WithClock[G](cfg.Clock)}, cfg.PipelineOptions...)
	pipeline := engine.NewPipeline(cfg.Domain, rng.NewSource(cfg.Seed), opts...)

	m := &Match[G]{
		id:           cfg.ID,
		gameID:       cfg.Domain.GameID(),
		seed:         cfg.Seed,
		maxBatchSize: cfg.MaxBatchSize,
		clock:        cfg.Clock,
		pipeline:     pipeline,
		archive:      cfg.Archive,
		records:      cfg.Records,
		tracer:       otel.Tracer("crucible/match"),
		requests:     make(chan func()),
		closed:       make(chan struct{}),
		loopDone:     make(chan struct{}),
		state:        pipeline.NewMatchState(),
		metadata:     adjudication.MatchMetadata{Players: map[string]adjudication.PlayerMeta{}},
	}

	if err := m.persistRecord(ctx, true); err != nil {
		return nil, err
	}

	go m.run()
	return m, nil
}

// ID returns the match id.
func (m *Match[G]) ID() string { return m.id }

// GameID returns the domain's game id.
func (m *Match[G]) GameID() string { return m.gameID }

func (m *Match[G]) run() {
	defer close(m.loopDone)
	for {
		select {
		case fn := <-m.requests:
			fn()
		case <-m.closed:
			return
		}
	}
}

// do runs fn on the match goroutine and waits for it to finish.
func (m *Match[G]) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case m.requests <- wrapped:
	case <-m.closed:
		return apperrors.New(apperrors.CodeMatchClosed, "match runtime is closed")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-m.closed:
		return apperrors.New(apperrors.CodeMatchClosed, "match runtime is closed")
	}
}

// Submit runs one command, equivalent to a batch of one.
func (m *Match[G]) Submit(ctx context.Context, cmd engine.Command) (Outcome, error) {
	return m.SubmitBatch(ctx, []engine.Command{cmd})
}

// SubmitBatch executes commands strictly in order on the match goroutine.
// Execution stops at the first failing command; later commands are reported
// as skipped. The batch is semantically identical to submitting each
// command on its own.
func (m *Match[G]) SubmitBatch(ctx context.Context, commands []engine.Command) (Outcome, error) {
	if len(commands) == 0 {
		return Outcome{}, apperrors.New(apperrors.CodeMatchEmptyBatch, "batch has no commands")
	}
	if len(commands) > m.maxBatchSize {
		return Outcome{}, apperrors.WithMetadata(apperrors.CodeMatchBatchTooLong,
			"batch exceeds the size limit",
			map[string]string{"size": strconv.Itoa(len(commands)), "limit": strconv.Itoa(m.maxBatchSize)})
	}

	ctx, span := m.tracer.Start(ctx, "match.execute_batch",
		trace.WithAttributes(
			attribute.String("match.id", m.id),
			attribute.String("match.game_id", m.gameID),
			attribute.Int("match.batch_size", len(commands)),
		))
	defer span.End()

	var outcome Outcome
	err := m.do(ctx, func() {
		result := latency.ExecuteBatch(m.pipeline, m.state, commands)
		m.state = result.State
		m.syncGameOver()

		for _, cmdResult := range result.Results {
			m.archiveEntries(ctx, cmdResult.Entries)
		}
		if err := m.persistRecord(ctx, false); err != nil {
			log.Printf("match %s: persist record: %v", m.id, err)
		}

		outcome = Outcome{
			Results:      result.Results,
			StateVersion: m.state.Sys.Stream.NextID - 1,
		}
	})
	return outcome, err
}

// Connect marks a player as connected.
func (m *Match[G]) Connect(ctx context.Context, playerID string) error {
	return m.do(ctx, func() {
		m.metadata.Players[playerID] = adjudication.PlayerMeta{IsConnected: adjudication.Connected(true)}
	})
}

// Disconnect marks a player as disconnected and asks the adjudicator
// whether the pending interaction must be force-cancelled. A positive
// decision is applied immediately as a synthetic cancel command.
func (m *Match[G]) Disconnect(ctx context.Context, playerID string) (adjudication.Decision, error) {
	var decision adjudication.Decision
	err := m.do(ctx, func() {
		m.metadata.Players[playerID] = adjudication.PlayerMeta{IsConnected: adjudication.Connected(false)}

		decision = adjudication.ShouldForceCancel(&m.state, &m.metadata, playerID)
		if !decision.ShouldCancel {
			return
		}

		result, err := m.pipeline.Execute(m.state, adjudication.CancelCommand(decision, playerID))
		if err != nil {
			log.Printf("match %s: force cancel interaction %d: %v", m.id, decision.InteractionID, err)
			return
		}
		m.state = result.State
		m.archiveEntries(ctx, result.Appended)
	})
	return decision, err
}

// Delta returns the stream entries a consumer with the given cursor has not
// seen, with the reset flag when the log was rebuilt or rolled back.
func (m *Match[G]) Delta(ctx context.Context, lastSeenID int64) (engine.Delta, error) {
	var delta engine.Delta
	err := m.do(ctx, func() {
		delta = engine.ComputeDelta(m.state.Sys.Stream.Snapshot(), lastSeenID)
	})
	return delta, err
}

// StateJSON returns the current match state serialized for the wire.
func (m *Match[G]) StateJSON(ctx context.Context) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	doErr := m.do(ctx, func() {
		data, err = json.Marshal(m.state)
	})
	if doErr != nil {
		return nil, doErr
	}
	return data, err
}

// State returns a snapshot of the current match state.
func (m *Match[G]) State(ctx context.Context) (engine.MatchState[G], error) {
	var state engine.MatchState[G]
	err := m.do(ctx, func() {
		state = m.state
	})
	return state, err
}

// Close stops the match goroutine. Pending submissions fail with
// CodeMatchClosed.
func (m *Match[G]) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
	})
	<-m.loopDone
	return nil
}

// syncGameOver mirrors a terminal core into the connection metadata so the
// adjudicator stops cancelling on behalf of finished matches.
func (m *Match[G]) syncGameOver() {
	if reporter, ok := any(m.state.Core).(adjudication.GameOverReporter); ok && reporter.GameOver() {
		m.metadata.GameOver = true
	}
}

// archiveEntries mirrors freshly appended stream entries into the journal.
// Entries at or below the archive high-water mark are skipped: after an
// undo rewinds the stream, replayed ids keep the journal's first version.
func (m *Match[G]) archiveEntries(ctx context.Context, entries []engine.StreamEntry) {
	if m.archive == nil {
		return
	}
	for _, entry := range entries {
		if entry.ID <= m.lastArchived {
			continue
		}
		payload, err := json.Marshal(entry.Event.Payload)
		if err != nil {
			log.Printf("match %s: marshal event %d payload: %v", m.id, entry.ID, err)
			return
		}
		_, err = m.archive.AppendEvent(ctx, storage.ArchivedEvent{
			MatchID:           m.id,
			Seq:               entry.ID,
			Type:              entry.Event.Type,
			Payload:           payload,
			Timestamp:         entry.Event.Timestamp,
			SourceCommandType: entry.Event.SourceCommandType,
		})
		if err != nil {
			log.Printf("match %s: archive event %d: %v", m.id, entry.ID, err)
			return
		}
		m.lastArchived = entry.ID
	}
}

func (m *Match[G]) persistRecord(ctx context.Context, created bool) error {
	if m.records == nil {
		return nil
	}
	now := m.clock().UTC()
	record := storage.MatchRecord{
		ID:         m.id,
		GameID:     m.gameID,
		Seed:       m.seed,
		Phase:      m.state.Sys.Phase,
		TurnNumber: m.state.Sys.TurnNumber,
		GameOver:   m.metadata.GameOver,
		UpdatedAt:  now,
	}
	if created {
		record.CreatedAt = now
	}
	return m.records.PutMatch(ctx, record)
}

