package agentconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/telemetry"
)

type ActivityRecorder interface {
	Record(ctx context.Context, a activity.Activity)
}

type Notifier interface {
	Notify(ctx context.Context, kind, title, message string)
}

type Options struct {
	Path     string
	Activity ActivityRecorder
	Notifier Notifier
	Metrics  *telemetry.Metrics
	Logger   *zap.Logger
	// OnChange runs after the file changes, whether through Patch or on disk.
	OnChange func()
}

type PatchResult struct {
	Updated            []string `json:"updated"`
	RestartRecommended bool     `json:"restartRecommended"`
}

// Service reads and patches the agent runtime's JSON config file. Raw reads
// are cached until the file changes.
type Service struct {
	path     string
	activity ActivityRecorder
	notifier Notifier
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	onChange func()

	mu     sync.Mutex
	cached map[string]any
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = &telemetry.Metrics{}
	}
	return &Service{
		path:     opts.Path,
		activity: opts.Activity,
		notifier: opts.Notifier,
		metrics:  metrics,
		logger:   logger,
		onChange: opts.OnChange,
	}
}

func (s *Service) Path() string {
	return s.path
}

// Read returns the config with secrets masked.
func (s *Service) Read(ctx context.Context) (map[string]any, error) {
	raw, err := s.load()
	if err != nil {
		return nil, err
	}
	return MaskSecrets(raw).(map[string]any), nil
}

// Patch validates every update before touching the file, then applies them
// all and rewrites it. Values are written as given.
func (s *Service) Patch(ctx context.Context, updates map[string]any) (PatchResult, error) {
	if len(updates) == 0 {
		return PatchResult{}, apperr.Invalid("no updates provided")
	}
	paths := make([]string, 0, len(updates))
	for path := range updates {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if !IsPathAllowed(path) {
			return PatchResult{}, apperr.Forbidden("config path %q is not editable", path)
		}
		if res := ValidateValue(path, updates[path]); !res.OK {
			return PatchResult{}, apperr.Invalid("%s", res.Error)
		}
	}

	raw, err := s.load()
	if err != nil {
		return PatchResult{}, err
	}
	doc := deepCopy(raw)
	result := PatchResult{Updated: paths}
	for _, path := range paths {
		SetAtPath(doc, path, updates[path])
		if AffectsGateway(path) {
			result.RestartRecommended = true
		}
	}
	if err := s.write(doc); err != nil {
		return PatchResult{}, err
	}
	s.metrics.ConfigWrites.Add(1)

	if s.activity != nil {
		s.activity.Record(ctx, activity.Activity{
			Type:        activity.TypeConfigChange,
			Description: fmt.Sprintf("Updated %d config value(s)", len(paths)),
			Status:      activity.StatusSuccess,
			Metadata: map[string]any{
				"paths":              paths,
				"restartRecommended": result.RestartRecommended,
			},
		})
	}
	if result.RestartRecommended && s.notifier != nil {
		s.notifier.Notify(ctx, "config", "Gateway restart recommended",
			"Gateway settings changed. Restart the gateway for them to take effect.")
	}
	return result, nil
}

func (s *Service) load() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NotFound("agent config %s not found", s.path)
		}
		return nil, fmt.Errorf("read agent config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse agent config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	s.cached = doc
	return doc, nil
}

func (s *Service) write(doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write agent config: %w", err)
	}
	s.invalidate()
	return nil
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange()
	}
}

// Watch drops the cached config whenever the file changes on disk. It blocks
// until ctx is done.
func (s *Service) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	const debounceInterval = 100 * time.Millisecond
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	base := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, func() {
				s.logger.Debug("agent config changed on disk", zap.String("path", s.path))
				s.invalidate()
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("agent config watcher error", zap.Error(err))
		}
	}
}

func deepCopy(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for key, value := range v {
		out[key] = copyValue(value)
	}
	return out
}

func copyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return deepCopy(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
