package skills

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/apperr"
)

var ErrNotFound = apperr.NotFound("skill not found")

type ActivityRecorder interface {
	Record(ctx context.Context, a activity.Activity)
}

// Service lists discovered skills and keeps the disabled set in a JSON array
// of names.
type Service struct {
	roots        []Root
	disabledPath string
	activity     ActivityRecorder
	logger       *zap.Logger
}

func NewService(roots []Root, disabledPath string, recorder ActivityRecorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{roots: roots, disabledPath: disabledPath, activity: recorder, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]Skill, error) {
	found := Discover(s.roots)
	for _, warning := range found.Warnings {
		s.logger.Warn(warning)
	}
	disabled, err := s.disabled()
	if err != nil {
		return nil, err
	}
	for i := range found.Skills {
		_, off := disabled[found.Skills[i].Name]
		found.Skills[i].Enabled = !off
	}
	return found.Skills, nil
}

func (s *Service) Toggle(ctx context.Context, name string, enabled bool) (Skill, error) {
	skills, err := s.List(ctx)
	if err != nil {
		return Skill{}, err
	}
	var target *Skill
	for i := range skills {
		if skills[i].Name == name {
			target = &skills[i]
			break
		}
	}
	if target == nil {
		return Skill{}, ErrNotFound
	}

	disabled, err := s.disabled()
	if err != nil {
		return Skill{}, err
	}
	if enabled {
		delete(disabled, name)
	} else {
		disabled[name] = struct{}{}
	}
	if err := s.saveDisabled(disabled); err != nil {
		return Skill{}, err
	}
	target.Enabled = enabled

	if s.activity != nil {
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		s.activity.Record(ctx, activity.Activity{
			Type:        activity.TypeSkillToggle,
			Description: fmt.Sprintf("Skill %s %s", name, state),
			Status:      activity.StatusSuccess,
			Metadata:    map[string]any{"skill": name, "enabled": enabled},
		})
	}
	return *target, nil
}

func (s *Service) disabled() (map[string]struct{}, error) {
	out := map[string]struct{}{}
	data, err := os.ReadFile(s.disabledPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("read disabled skills: %w", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		s.logger.Warn("disabled skills file is corrupt", zap.String("path", s.disabledPath), zap.Error(err))
		return out, nil
	}
	for _, name := range names {
		out[name] = struct{}{}
	}
	return out, nil
}

func (s *Service) saveDisabled(set map[string]struct{}) error {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.disabledPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(s.disabledPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write disabled skills: %w", err)
	}
	return nil
}
