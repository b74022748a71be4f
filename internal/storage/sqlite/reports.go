package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/grixate/missioncontrol/internal/reports"
)

const reportsSchema = `
CREATE TABLE IF NOT EXISTS shared_reports (
	id TEXT PRIMARY KEY,
	token TEXT NOT NULL UNIQUE,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_shared_reports_expires ON shared_reports(expires_at);
`

type ReportStore struct {
	db *Lazy
}

func NewReportStore(path string) *ReportStore {
	return &ReportStore{db: NewLazy(path, reportsSchema)}
}

func (s *ReportStore) Close() error {
	return s.db.Close()
}

func (s *ReportStore) InsertReport(ctx context.Context, rec reports.Record) error {
	db, err := s.db.DB(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO shared_reports (id, token, payload, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Token, string(rec.Payload),
		rec.CreatedAt.UTC().Format(timeLayout), rec.ExpiresAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return reports.ErrTokenCollision
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *ReportStore) GetReport(ctx context.Context, token string) (reports.Record, error) {
	db, err := s.db.DB(ctx)
	if err != nil {
		return reports.Record{}, err
	}
	var (
		rec                  reports.Record
		payload              string
		createdAt, expiresAt string
	)
	err = db.QueryRowContext(ctx,
		`SELECT id, token, payload, created_at, expires_at FROM shared_reports WHERE token = ?`, token,
	).Scan(&rec.ID, &rec.Token, &payload, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return reports.Record{}, reports.ErrNotFound
	}
	if err != nil {
		return reports.Record{}, fmt.Errorf("get report: %w", err)
	}
	rec.Payload = []byte(payload)
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return reports.Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.ExpiresAt, err = time.Parse(timeLayout, expiresAt); err != nil {
		return reports.Record{}, fmt.Errorf("parse expires_at: %w", err)
	}
	return rec, nil
}
