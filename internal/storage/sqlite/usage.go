package sqlite

import (
	"context"
	"fmt"
	"os"

	"github.com/grixate/missioncontrol/internal/usage"
)

// UsageSchema is the collector's table layout. The dashboard only reads it;
// tests and the collector create it.
const UsageSchema = `
CREATE TABLE IF NOT EXISTS usage_snapshots (
	date TEXT NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_usage_snapshots_date ON usage_snapshots(date);
`

// UsageStore reads usage-tracking.db, which an external collector writes.
type UsageStore struct {
	db *Lazy
}

func NewUsageStore(path string) *UsageStore {
	return &UsageStore{db: NewLazyReadOnly(path)}
}

func (s *UsageStore) Close() error {
	return s.db.Close()
}

// Available reports whether the collector's database file exists.
func (s *UsageStore) Available() bool {
	info, err := os.Stat(s.db.Path())
	return err == nil && !info.IsDir()
}

// Snapshots returns rows whose date falls in the inclusive range, ordered by
// date then model.
func (s *UsageStore) Snapshots(ctx context.Context, startDate, endDate string) ([]usage.Snapshot, error) {
	db, err := s.db.DB(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT date, model, input_tokens, output_tokens, cost
		FROM usage_snapshots
		WHERE date >= ? AND date <= ?
		ORDER BY date, model`, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("query usage snapshots: %w", err)
	}
	defer rows.Close()

	out := []usage.Snapshot{}
	for rows.Next() {
		var snap usage.Snapshot
		if err := rows.Scan(&snap.Date, &snap.Model, &snap.InputTokens, &snap.OutputTokens, &snap.Cost); err != nil {
			return nil, fmt.Errorf("scan usage snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
