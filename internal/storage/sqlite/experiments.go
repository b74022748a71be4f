package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/grixate/missioncontrol/internal/playground"
)

const experimentsSchema = `
CREATE TABLE IF NOT EXISTS experiments (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	prompt TEXT NOT NULL,
	system_prompt TEXT NOT NULL DEFAULT '',
	models TEXT NOT NULL DEFAULT '[]',
	results TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_experiments_created ON experiments(created_at);
`

type ExperimentStore struct {
	db *Lazy
}

func NewExperimentStore(path string) *ExperimentStore {
	return &ExperimentStore{db: NewLazy(path, experimentsSchema)}
}

func (s *ExperimentStore) Close() error {
	return s.db.Close()
}

const experimentColumns = `id, name, prompt, system_prompt, models, results, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row scanner) (playground.Experiment, error) {
	var (
		e                        playground.Experiment
		models, results, created string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Prompt, &e.SystemPrompt, &models, &results, &created); err != nil {
		return playground.Experiment{}, err
	}
	if err := json.Unmarshal([]byte(models), &e.Models); err != nil {
		return playground.Experiment{}, fmt.Errorf("decode models of %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(results), &e.Results); err != nil {
		return playground.Experiment{}, fmt.Errorf("decode results of %s: %w", e.ID, err)
	}
	createdAt, err := time.Parse(timeLayout, created)
	if err != nil {
		return playground.Experiment{}, fmt.Errorf("parse created_at of %s: %w", e.ID, err)
	}
	e.CreatedAt = createdAt
	return e, nil
}

// ListExperiments returns newest first. Rows that fail to decode are skipped.
func (s *ExperimentStore) ListExperiments(ctx context.Context) ([]playground.Experiment, error) {
	db, err := s.db.DB(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+experimentColumns+` FROM experiments ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	out := []playground.Experiment{}
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ExperimentStore) GetExperiment(ctx context.Context, id string) (playground.Experiment, error) {
	db, err := s.db.DB(ctx)
	if err != nil {
		return playground.Experiment{}, err
	}
	e, err := scanExperiment(db.QueryRowContext(ctx, `SELECT `+experimentColumns+` FROM experiments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return playground.Experiment{}, playground.ErrNotFound
	}
	if err != nil {
		return playground.Experiment{}, fmt.Errorf("get experiment: %w", err)
	}
	return e, nil
}

func (s *ExperimentStore) SaveExperiment(ctx context.Context, e playground.Experiment) error {
	db, err := s.db.DB(ctx)
	if err != nil {
		return err
	}
	if e.Models == nil {
		e.Models = []string{}
	}
	if e.Results == nil {
		e.Results = []playground.RunResult{}
	}
	models, err := json.Marshal(e.Models)
	if err != nil {
		return err
	}
	results, err := json.Marshal(e.Results)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO experiments (`+experimentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			prompt = excluded.prompt,
			system_prompt = excluded.system_prompt,
			models = excluded.models,
			results = excluded.results`,
		e.ID, e.Name, e.Prompt, e.SystemPrompt, string(models), string(results),
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save experiment: %w", err)
	}
	return nil
}

func (s *ExperimentStore) DeleteExperiment(ctx context.Context, id string) (bool, error) {
	db, err := s.db.DB(ctx)
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete experiment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
