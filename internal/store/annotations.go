package store

import (
	"context"
	"fmt"
	"time"
)

// ToggleRead flips the read marker for one (user, writeup) pair and
// returns the resulting state. The delete-then-insert order keeps the
// toggle a pair of single atomic statements rather than a check-then-act
// sequence; the UNIQUE constraint absorbs concurrent inserts.
func (s *SQLiteStore) ToggleRead(ctx context.Context, userID string, writeupID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM reads WHERE user_id = ? AND writeup_id = ?", userID, writeupID)
	if err != nil {
		return false, fmt.Errorf("toggle read %d: %w", writeupID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("toggle read %d: %w", writeupID, err)
	}
	if affected > 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reads (user_id, writeup_id, read_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, writeup_id) DO NOTHING
	`, userID, writeupID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark read %d: %w", writeupID, err)
	}
	return true, nil
}

// UpsertNote creates or replaces the user's note on a writeup. At most
// one note per (user, writeup) pair, enforced by the UNIQUE constraint.
func (s *SQLiteStore) UpsertNote(ctx context.Context, userID string, writeupID int64, note string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (user_id, writeup_id, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, writeup_id) DO UPDATE SET
			note = excluded.note,
			updated_at = excluded.updated_at
	`, userID, writeupID, note, now, now)
	if err != nil {
		return fmt.Errorf("upsert note %d: %w", writeupID, err)
	}
	return nil
}

// UserStats returns the user's read and note counts.
func (s *SQLiteStore) UserStats(ctx context.Context, userID string) (reads, notes int, err error) {
	if err = s.db.GetContext(ctx, &reads,
		"SELECT COUNT(*) FROM reads WHERE user_id = ?", userID); err != nil {
		return 0, 0, fmt.Errorf("count reads: %w", err)
	}
	if err = s.db.GetContext(ctx, &notes,
		"SELECT COUNT(*) FROM notes WHERE user_id = ?", userID); err != nil {
		return 0, 0, fmt.Errorf("count notes: %w", err)
	}
	return reads, notes, nil
}
