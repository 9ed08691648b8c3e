package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// MatchRecord is the durable metadata for one match. The live MatchState
// stays in memory with the match runtime; the record carries what outlives
// a process restart.
type MatchRecord struct {
	ID         string
	GameID     string
	Seed       int64
	Phase      string
	TurnNumber int
	GameOver   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ArchivedEvent is one journaled event. Seq mirrors the in-memory stream
// entry id, so the journal is the unbounded continuation of the ring
// buffer. Hash, PrevHash and ChainHash make the journal tamper-evident.
type ArchivedEvent struct {
	MatchID           string
	Seq               int64
	Type              string
	Payload           []byte
	Timestamp         time.Time
	SourceCommandType string

	Hash      string
	PrevHash  string
	ChainHash string
}

// EventPage is one page of the event journal.
type EventPage struct {
	Events []ArchivedEvent
	// NextPageToken is empty on the last page.
	NextPageToken string
}

// MatchStore persists match records.
type MatchStore interface {
	PutMatch(ctx context.Context, record MatchRecord) error
	GetMatch(ctx context.Context, id string) (MatchRecord, error)
	ListMatches(ctx context.Context) ([]MatchRecord, error)
}

// EventStore persists the append-only event journal.
type EventStore interface {
	// AppendEvent journals one event, computing and persisting its hash
	// chain. Returns the event with Hash, PrevHash and ChainHash set.
	AppendEvent(ctx context.Context, evt ArchivedEvent) (ArchivedEvent, error)
	// ListEvents pages through a match's journal in seq order. An empty
	// pageToken starts from the beginning.
	ListEvents(ctx context.Context, matchID, pageToken string, pageSize int) (EventPage, error)
	// LatestSeq returns the highest journaled seq for a match, zero when
	// the journal is empty.
	LatestSeq(ctx context.Context, matchID string) (int64, error)
}

// Store bundles the persistence interfaces a match service needs.
type Store interface {
	MatchStore
	EventStore
	Close() error
}
