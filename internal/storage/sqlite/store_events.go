package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haldane-games/crucible/internal/storage"
	"github.com/haldane-games/crucible/internal/storage/cursor"
	"github.com/haldane-games/crucible/internal/storage/integrity"
)

const defaultEventPageSize = 100

// AppendEvent atomically journals one event with its hash chain. The seq
// must be the next contiguous value for the match; the primary key rejects
// duplicates so a crashed retry cannot fork the chain.
func (s *Store) AppendEvent(ctx context.Context, evt storage.ArchivedEvent) (storage.ArchivedEvent, error) {
	if s == nil || s.sqlDB == nil {
		return storage.ArchivedEvent{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(evt.MatchID) == "" {
		return storage.ArchivedEvent{}, fmt.Errorf("match id is required")
	}
	if evt.Seq <= 0 {
		return storage.ArchivedEvent{}, fmt.Errorf("event seq must be positive")
	}

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.ArchivedEvent{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	prevChainHash := ""
	if evt.Seq > 1 {
		row := tx.QueryRowContext(ctx,
			"SELECT chain_hash FROM events WHERE match_id = ? AND seq = ?",
			evt.MatchID, evt.Seq-1,
		)
		if err := row.Scan(&prevChainHash); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ArchivedEvent{}, fmt.Errorf("journal gap: seq %d has no predecessor", evt.Seq)
			}
			return storage.ArchivedEvent{}, fmt.Errorf("load previous event: %w", err)
		}
	}

	hash, err := integrity.EventHash(evt)
	if err != nil {
		return storage.ArchivedEvent{}, fmt.Errorf("compute event hash: %w", err)
	}
	evt.Hash = hash
	evt.PrevHash = prevChainHash
	evt.ChainHash = integrity.ChainHash(hash, prevChainHash)

	_, err = tx.ExecContext(ctx, `
INSERT INTO events (match_id, seq, event_type, payload, timestamp, source_command_type, event_hash, prev_chain_hash, chain_hash)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		evt.MatchID,
		evt.Seq,
		evt.Type,
		evt.Payload,
		toMillis(evt.Timestamp),
		evt.SourceCommandType,
		evt.Hash,
		evt.PrevHash,
		evt.ChainHash,
	)
	if err != nil {
		return storage.ArchivedEvent{}, fmt.Errorf("append event %s/%d: %w", evt.MatchID, evt.Seq, err)
	}

	if err := tx.Commit(); err != nil {
		return storage.ArchivedEvent{}, fmt.Errorf("commit: %w", err)
	}
	return evt, nil
}

// ListEvents pages through a match's journal in ascending seq order. Page
// tokens are opaque and invalidated when reused against another match.
func (s *Store) ListEvents(ctx context.Context, matchID, pageToken string, pageSize int) (storage.EventPage, error) {
	if s == nil || s.sqlDB == nil {
		return storage.EventPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		pageSize = defaultEventPageSize
	}

	var afterSeq int64
	if pageToken != "" {
		decoded, err := cursor.Decode(pageToken)
		if err != nil {
			return storage.EventPage{}, fmt.Errorf("invalid page token: %w", err)
		}
		if err := cursor.ValidateFilterHash(decoded, matchID); err != nil {
			return storage.EventPage{}, fmt.Errorf("invalid page token: %w", err)
		}
		afterSeq = int64(decoded.Seq)
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT match_id, seq, event_type, payload, timestamp, source_command_type, event_hash, prev_chain_hash, chain_hash
FROM events WHERE match_id = ? AND seq > ?
ORDER BY seq ASC LIMIT ?
`, matchID, afterSeq, pageSize+1)
	if err != nil {
		return storage.EventPage{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []storage.ArchivedEvent
	for rows.Next() {
		var evt storage.ArchivedEvent
		var timestamp int64
		err := rows.Scan(
			&evt.MatchID,
			&evt.Seq,
			&evt.Type,
			&evt.Payload,
			&timestamp,
			&evt.SourceCommandType,
			&evt.Hash,
			&evt.PrevHash,
			&evt.ChainHash,
		)
		if err != nil {
			return storage.EventPage{}, fmt.Errorf("scan event: %w", err)
		}
		evt.Timestamp = fromMillis(timestamp)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return storage.EventPage{}, fmt.Errorf("list events: %w", err)
	}

	page := storage.EventPage{Events: events}
	if len(events) > pageSize {
		page.Events = events[:pageSize]
		last := page.Events[len(page.Events)-1]
		token, err := cursor.Encode(cursor.NewForwardCursor(uint64(last.Seq), matchID))
		if err != nil {
			return storage.EventPage{}, fmt.Errorf("encode page token: %w", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}

// LatestSeq returns the highest journaled seq for a match, zero for an
// empty journal.
func (s *Store) LatestSeq(ctx context.Context, matchID string) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM events WHERE match_id = ?",
		matchID,
	)
	var seq int64
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return seq, nil
}
