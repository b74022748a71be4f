// Package workflows stores workflow definitions in a JSON file. There is no
// executor.
package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/apperr"
)

type Execution string

const (
	Sequential Execution = "sequential"
	Parallel   Execution = "parallel"
)

var (
	ErrNotFound       = apperr.NotFound("workflow not found")
	ErrNotImplemented = fmt.Errorf("workflow execution is not supported: %w", apperr.ErrNotImplemented)
)

type Step struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	AgentID      string    `json:"agentId"`
	Execution    Execution `json:"execution"`
	Dependencies []string  `json:"dependencies"`
}

type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Steps       []Step    `json:"steps"`
}

type Input struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       []Step `json:"steps"`
}

// Store reads and rewrites the whole file on every mutation. Concurrent
// writers race and the last write wins.
type Store struct {
	path   string
	logger *zap.Logger
	now    func() time.Time
}

func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger, now: time.Now}
}

func (s *Store) List(ctx context.Context) ([]Workflow, error) {
	return s.load()
}

func (s *Store) Get(ctx context.Context, id string) (Workflow, error) {
	items, err := s.load()
	if err != nil {
		return Workflow{}, err
	}
	for _, wf := range items {
		if wf.ID == id {
			return wf, nil
		}
	}
	return Workflow{}, ErrNotFound
}

func (s *Store) Create(ctx context.Context, in Input) (Workflow, error) {
	if err := validate(in); err != nil {
		return Workflow{}, err
	}
	items, err := s.load()
	if err != nil {
		return Workflow{}, err
	}
	now := s.now().UTC()
	wf := Workflow{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Steps:       normalizeSteps(in.Steps),
	}
	items = append(items, wf)
	if err := s.save(items); err != nil {
		return Workflow{}, err
	}
	return wf, nil
}

// Update replaces name, description and steps. Id and createdAt are kept.
func (s *Store) Update(ctx context.Context, id string, in Input) (Workflow, error) {
	if err := validate(in); err != nil {
		return Workflow{}, err
	}
	items, err := s.load()
	if err != nil {
		return Workflow{}, err
	}
	for i, wf := range items {
		if wf.ID != id {
			continue
		}
		wf.Name = strings.TrimSpace(in.Name)
		wf.Description = in.Description
		wf.Steps = normalizeSteps(in.Steps)
		wf.UpdatedAt = s.now().UTC()
		if !wf.UpdatedAt.After(wf.CreatedAt) {
			wf.UpdatedAt = wf.CreatedAt.Add(time.Millisecond)
		}
		items[i] = wf
		if err := s.save(items); err != nil {
			return Workflow{}, err
		}
		return wf, nil
	}
	return Workflow{}, ErrNotFound
}

// Delete filters the collection and rewrites it. A missing id returns false
// and leaves the file untouched.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	items, err := s.load()
	if err != nil {
		return false, err
	}
	kept := make([]Workflow, 0, len(items))
	for _, wf := range items {
		if wf.ID != id {
			kept = append(kept, wf)
		}
	}
	if len(kept) == len(items) {
		return false, nil
	}
	return true, s.save(kept)
}

// Run always fails, even for unknown ids: workflows are definitions only.
func (s *Store) Run(ctx context.Context, id string) error {
	return ErrNotImplemented
}

func validate(in Input) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Invalid("workflow name is required")
	}
	for _, step := range in.Steps {
		if step.Execution != "" && step.Execution != Sequential && step.Execution != Parallel {
			return apperr.Invalid("step execution must be sequential or parallel")
		}
	}
	return nil
}

// normalizeSteps fills ids and defaults. Dependencies are stored as given.
func normalizeSteps(in []Step) []Step {
	out := make([]Step, 0, len(in))
	for _, step := range in {
		if strings.TrimSpace(step.ID) == "" {
			step.ID = uuid.NewString()
		}
		if step.Execution == "" {
			step.Execution = Sequential
		}
		if step.Dependencies == nil {
			step.Dependencies = []string{}
		}
		out = append(out, step)
	}
	return out
}

// load skips records that fail to decode instead of failing the listing.
func (s *Store) load() ([]Workflow, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Workflow{}, nil
		}
		return nil, fmt.Errorf("read workflows: %w", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("workflows file is not a JSON array", zap.String("path", s.path), zap.Error(err))
		return []Workflow{}, nil
	}
	out := make([]Workflow, 0, len(raw))
	for i, item := range raw {
		var wf Workflow
		if err := json.Unmarshal(item, &wf); err != nil || wf.ID == "" {
			s.logger.Warn("skipping corrupt workflow record", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, wf)
	}
	return out, nil
}

func (s *Store) save(items []Workflow) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write workflows: %w", err)
	}
	return nil
}
