package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/haldane-games/crucible/internal/storage"
)

// PutMatch inserts or updates a match record.
func (s *Store) PutMatch(ctx context.Context, record storage.MatchRecord) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO matches (id, game_id, seed, phase, turn_number, game_over, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    phase = excluded.phase,
    turn_number = excluded.turn_number,
    game_over = excluded.game_over,
    updated_at = excluded.updated_at
`,
		record.ID,
		record.GameID,
		record.Seed,
		record.Phase,
		record.TurnNumber,
		boolToInt(record.GameOver),
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put match %s: %w", record.ID, err)
	}
	return nil
}

// GetMatch loads one match record. Returns storage.ErrNotFound when the
// match does not exist.
func (s *Store) GetMatch(ctx context.Context, id string) (storage.MatchRecord, error) {
	if s == nil || s.sqlDB == nil {
		return storage.MatchRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, game_id, seed, phase, turn_number, game_over, created_at, updated_at
FROM matches WHERE id = ?
`, id)

	record, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MatchRecord{}, storage.ErrNotFound
		}
		return storage.MatchRecord{}, fmt.Errorf("get match %s: %w", id, err)
	}
	return record, nil
}

// ListMatches returns all match records, newest first.
func (s *Store) ListMatches(ctx context.Context) ([]storage.MatchRecord, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, game_id, seed, phase, turn_number, game_over, created_at, updated_at
FROM matches ORDER BY created_at DESC, id
`)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var records []storage.MatchRecord
	for rows.Next() {
		record, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (storage.MatchRecord, error) {
	var record storage.MatchRecord
	var gameOver int
	var createdAt, updatedAt int64

	err := row.Scan(
		&record.ID,
		&record.GameID,
		&record.Seed,
		&record.Phase,
		&record.TurnNumber,
		&gameOver,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.MatchRecord{}, err
	}

	record.GameOver = gameOver != 0
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
