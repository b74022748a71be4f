package playground

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/pricing"
	"github.com/grixate/missioncontrol/internal/provider"
	"github.com/grixate/missioncontrol/internal/telemetry"
)

const (
	DefaultTimeout       = 90 * time.Second
	DefaultMaxConcurrent = 4
	MaxModelsPerRun      = 8
)

type ActivityRecorder interface {
	Record(ctx context.Context, a activity.Activity)
}

type Options struct {
	Store         Store
	Chat          provider.Client
	Activity      ActivityRecorder
	Metrics       *telemetry.Metrics
	Logger        *zap.Logger
	Timeout       time.Duration
	MaxConcurrent int
	Now           func() time.Time
}

type Service struct {
	store         Store
	chat          provider.Client
	activity      ActivityRecorder
	metrics       *telemetry.Metrics
	logger        *zap.Logger
	timeout       time.Duration
	maxConcurrent int
	now           func() time.Time
}

func NewService(opts Options) *Service {
	svc := &Service{
		store:         opts.Store,
		chat:          opts.Chat,
		activity:      opts.Activity,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		timeout:       opts.Timeout,
		maxConcurrent: opts.MaxConcurrent,
		now:           opts.Now,
	}
	if svc.metrics == nil {
		svc.metrics = &telemetry.Metrics{}
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.timeout <= 0 {
		svc.timeout = DefaultTimeout
	}
	if svc.maxConcurrent <= 0 {
		svc.maxConcurrent = DefaultMaxConcurrent
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

func (s *Service) List(ctx context.Context) ([]Experiment, error) {
	return s.store.ListExperiments(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Experiment, error) {
	return s.store.GetExperiment(ctx, id)
}

func (s *Service) Create(ctx context.Context, in ExperimentInput) (Experiment, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Experiment{}, apperr.Invalid("experiment name is required")
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return Experiment{}, apperr.Invalid("experiment prompt is required")
	}
	models, err := normalizeModels(in.Models, false)
	if err != nil {
		return Experiment{}, err
	}
	exp := Experiment{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Prompt:       in.Prompt,
		SystemPrompt: in.SystemPrompt,
		Models:       models,
		Results:      []RunResult{},
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.SaveExperiment(ctx, exp); err != nil {
		return Experiment{}, fmt.Errorf("save experiment: %w", err)
	}
	return exp, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.DeleteExperiment(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// Run sends the prompt to every model concurrently. Provider failures are
// reported in the matching result; the batch itself only fails on bad input
// or when the experiment cannot be loaded or saved.
func (s *Service) Run(ctx context.Context, req RunRequest) ([]RunResult, error) {
	var exp Experiment
	if req.ExperimentID != "" {
		var err error
		exp, err = s.store.GetExperiment(ctx, req.ExperimentID)
		if err != nil {
			return nil, err
		}
		if req.Prompt == "" {
			req.Prompt = exp.Prompt
		}
		if req.SystemPrompt == "" {
			req.SystemPrompt = exp.SystemPrompt
		}
		if len(req.Models) == 0 {
			req.Models = exp.Models
		}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, apperr.Invalid("prompt is required")
	}
	models, err := normalizeModels(req.Models, true)
	if err != nil {
		return nil, err
	}
	if s.chat == nil {
		return nil, apperr.Invalid("no model providers are configured")
	}

	results := make([]RunResult, len(models))
	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for i, model := range models {
		g.Go(func() error {
			results[i] = s.call(ctx, model, req)
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.PlaygroundRuns.Add(1)
	var tokens int64
	failures := 0
	for _, res := range results {
		tokens += res.InputTokens + res.OutputTokens
		if res.Error != "" {
			failures++
		}
	}
	if failures > 0 {
		s.metrics.PlaygroundErrors.Add(uint64(failures))
	}

	if exp.ID != "" {
		exp.Results = results
		if err := s.store.SaveExperiment(ctx, exp); err != nil {
			return nil, fmt.Errorf("save experiment results: %w", err)
		}
	}

	if s.activity != nil {
		status := activity.StatusSuccess
		if failures == len(results) {
			status = activity.StatusError
		}
		s.activity.Record(ctx, activity.Activity{
			Type:        activity.TypePlayground,
			Description: fmt.Sprintf("Ran playground prompt against %d model(s)", len(models)),
			Status:      status,
			TokensUsed:  &tokens,
			Metadata:    map[string]any{"models": models, "failures": failures},
		})
	}
	return results, nil
}

func (s *Service) call(ctx context.Context, model string, req RunRequest) RunResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	chatReq := provider.ChatRequest{
		Model:     model,
		System:    req.SystemPrompt,
		Messages:  []provider.Message{{Role: "user", Content: req.Prompt}},
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}

	started := s.now()
	s.metrics.ProviderCalls.Add(1)
	resp, err := s.chat.Chat(ctx, chatReq)
	result := RunResult{Model: model, LatencyMS: s.now().Sub(started).Milliseconds()}
	if err != nil {
		s.metrics.ProviderErrors.Add(1)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", s.timeout)
		}
		s.logger.Warn("playground model call failed", zap.String("model", model), zap.Error(err))
		result.Error = err.Error()
		return result
	}
	result.Output = resp.Content
	result.InputTokens = resp.Usage.InputTokens
	result.OutputTokens = resp.Usage.OutputTokens
	result.Cost = pricing.CalculateCost(model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return result
}

// normalizeModels resolves aliases and drops duplicates while keeping order.
func normalizeModels(in []string, required bool) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id := pricing.NormalizeModelID(raw)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if required && len(out) == 0 {
		return nil, apperr.Invalid("at least one model is required")
	}
	if len(out) > MaxModelsPerRun {
		return nil, apperr.Invalid("at most %d models per run", MaxModelsPerRun)
	}
	return out, nil
}
