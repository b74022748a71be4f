package notifications

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/apperr"
)

const (
	MaxEntries   = 200
	DefaultLimit = 50
)

var ErrNotFound = apperr.NotFound("notification not found")

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
	Link      string    `json:"link,omitempty"`
}

// Store keeps notifications in a JSON file, newest first, capped at
// MaxEntries. Writes rewrite the whole file and the last write wins.
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

// List returns up to limit notifications and the unread count across all.
func (s *Store) List(ctx context.Context, limit int) ([]Notification, int, error) {
	items, err := s.load()
	if err != nil {
		return nil, 0, err
	}
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, unread, nil
}

func (s *Store) Add(ctx context.Context, n Notification) (Notification, error) {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		return Notification{}, apperr.Invalid("notification title is required")
	}
	if n.Type == "" {
		n.Type = "info"
	}
	items, err := s.load()
	if err != nil {
		return Notification{}, err
	}
	now := s.now().UTC()
	n.ID = ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	n.CreatedAt = now
	n.Read = false

	items = append([]Notification{n}, items...)
	if len(items) > MaxEntries {
		items = items[:MaxEntries]
	}
	if err := s.save(items); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Notify adds a notification on behalf of another component and only logs
// failures.
func (s *Store) Notify(ctx context.Context, kind, title, message string) {
	if s == nil {
		return
	}
	if _, err := s.Add(ctx, Notification{Type: kind, Title: title, Message: message}); err != nil {
		s.logger.Warn("notification failed", zap.String("title", title), zap.Error(err))
	}
}

func (s *Store) MarkRead(ctx context.Context, id string) error {
	items, err := s.load()
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == id {
			if items[i].Read {
				return nil
			}
			items[i].Read = true
			return s.save(items)
		}
	}
	return ErrNotFound
}

// MarkAllRead returns how many notifications changed.
func (s *Store) MarkAllRead(ctx context.Context) (int, error) {
	items, err := s.load()
	if err != nil {
		return 0, err
	}
	changed := 0
	for i := range items {
		if !items[i].Read {
			items[i].Read = true
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, s.save(items)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	items, err := s.load()
	if err != nil {
		return err
	}
	kept := make([]Notification, 0, len(items))
	for _, n := range items {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(items) {
		return ErrNotFound
	}
	return s.save(kept)
}

func (s *Store) load() ([]Notification, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Notification{}, nil
		}
		return nil, fmt.Errorf("read notifications: %w", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("notifications file is not a JSON array", zap.String("path", s.path), zap.Error(err))
		return []Notification{}, nil
	}
	out := make([]Notification, 0, len(raw))
	for _, item := range raw {
		var n Notification
		if err := json.Unmarshal(item, &n); err != nil || n.ID == "" {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) save(items []Notification) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write notifications: %w", err)
	}
	return nil
}
