package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/grixate/missioncontrol/internal/suggestions"
)

const dismissalsSchema = `
CREATE TABLE IF NOT EXISTS dismissed_suggestions (
	suggestion_id TEXT PRIMARY KEY,
	dismissed_at TEXT NOT NULL,
	applied INTEGER NOT NULL DEFAULT 0
);
`

type DismissalStore struct {
	db *Lazy
}

func NewDismissalStore(path string) *DismissalStore {
	return &DismissalStore{db: NewLazy(path, dismissalsSchema)}
}

func (s *DismissalStore) Close() error {
	return s.db.Close()
}

// RecordDismissal upserts by suggestion id; the latest dismissal wins.
func (s *DismissalStore) RecordDismissal(ctx context.Context, d suggestions.Dismissal) error {
	db, err := s.db.DB(ctx)
	if err != nil {
		return err
	}
	if d.DismissedAt.IsZero() {
		d.DismissedAt = time.Now().UTC()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO dismissed_suggestions (suggestion_id, dismissed_at, applied) VALUES (?, ?, ?)
		ON CONFLICT(suggestion_id) DO UPDATE SET dismissed_at = excluded.dismissed_at, applied = excluded.applied`,
		d.SuggestionID, d.DismissedAt.UTC().Format(timeLayout), d.Applied,
	)
	if err != nil {
		return fmt.Errorf("record dismissal: %w", err)
	}
	return nil
}

func (s *DismissalStore) DismissedIDs(ctx context.Context) (map[string]struct{}, error) {
	db, err := s.db.DB(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT suggestion_id FROM dismissed_suggestions`)
	if err != nil {
		return nil, fmt.Errorf("list dismissals: %w", err)
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}
