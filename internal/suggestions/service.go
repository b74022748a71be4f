package suggestions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/openclaw"
	"github.com/grixate/missioncontrol/internal/telemetry"
	"github.com/grixate/missioncontrol/internal/usage"
)

const lookback = 7 * 24 * time.Hour

type Dismissal struct {
	SuggestionID string    `json:"suggestion_id"`
	DismissedAt  time.Time `json:"dismissed_at"`
	Applied      bool      `json:"applied"`
}

// DismissalStore persists dismissals keyed by suggestion id. Recording the
// same id twice overwrites the earlier record.
type DismissalStore interface {
	RecordDismissal(ctx context.Context, d Dismissal) error
	DismissedIDs(ctx context.Context) (map[string]struct{}, error)
}

type CostSource interface {
	Summary(ctx context.Context, days int) usage.Summary
}

type AgentSource interface {
	CronJobs(ctx context.Context) []openclaw.CronJob
	Agents(ctx context.Context) []openclaw.Agent
	Sessions(ctx context.Context) []openclaw.Session
}

type ActivitySource interface {
	Stats(ctx context.Context, since, until time.Time) (activity.Stats, error)
	HourlyHistogram(ctx context.Context, since time.Time) ([]activity.HourCount, error)
	LastActivityByAgent(ctx context.Context, since time.Time) (map[string]time.Time, error)
}

type Service struct {
	costs      CostSource
	agents     AgentSource
	activity   ActivitySource
	dismissals DismissalStore
	metrics    *telemetry.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

type ServiceOptions struct {
	Costs      CostSource
	Agents     AgentSource
	Activity   ActivitySource
	Dismissals DismissalStore
	Metrics    *telemetry.Metrics
	Logger     *zap.Logger
}

func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = &telemetry.Metrics{}
	}
	return &Service{
		costs:      opts.Costs,
		agents:     opts.Agents,
		activity:   opts.Activity,
		dismissals: opts.Dismissals,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// List recomputes suggestions and removes dismissed ids.
func (s *Service) List(ctx context.Context) []Suggestion {
	list := Run(s.BuildContext(ctx))
	s.metrics.SuggestionsComputed.Add(uint64(len(list)))
	if s.dismissals == nil {
		return list
	}
	dismissed, err := s.dismissals.DismissedIDs(ctx)
	if err != nil {
		s.logger.Warn("dismissals unavailable", zap.Error(err))
		return list
	}
	return FilterDismissed(list, dismissed)
}

func (s *Service) Dismiss(ctx context.Context, suggestionID string, applied bool) error {
	suggestionID = strings.TrimSpace(suggestionID)
	if suggestionID == "" {
		return apperr.Invalid("suggestionId is required")
	}
	if s.dismissals == nil {
		return fmt.Errorf("dismissal store unavailable")
	}
	return s.dismissals.RecordDismissal(ctx, Dismissal{
		SuggestionID: suggestionID,
		DismissedAt:  s.now().UTC(),
		Applied:      applied,
	})
}

// BuildContext gathers rule inputs. Any source that fails contributes nothing.
func (s *Service) BuildContext(ctx context.Context) Context {
	now := s.now()
	out := Context{Now: now}

	if s.costs != nil {
		summary := s.costs.Summary(ctx, usage.DefaultTimeframeDays)
		for _, group := range summary.ByModel {
			out.CostsByModel = append(out.CostsByModel, ModelShare{Model: group.Key, PercentOfTotal: group.PercentOfTotal})
		}
	}

	lastSeen := map[string]time.Time{}
	if s.activity != nil {
		since := now.Add(-lookback)
		if stats, err := s.activity.Stats(ctx, since, now); err == nil {
			out.ActivityStats = stats
		} else {
			s.logger.Warn("activity stats unavailable", zap.Error(err))
		}
		if hist, err := s.activity.HourlyHistogram(ctx, since); err == nil {
			out.HourlyActivity = hist
		} else {
			s.logger.Warn("activity histogram unavailable", zap.Error(err))
		}
		// Staleness looks at the whole log; an agent idle past the window is the
		// one most worth flagging.
		if seen, err := s.activity.LastActivityByAgent(ctx, time.Time{}); err == nil {
			for agent, ts := range seen {
				lastSeen[agent] = ts
			}
		}
	}

	if s.agents != nil {
		for _, session := range s.agents.Sessions(ctx) {
			if session.UpdatedAt.After(lastSeen[session.AgentID]) {
				lastSeen[session.AgentID] = session.UpdatedAt
			}
		}
		for _, job := range s.agents.CronJobs(ctx) {
			out.CronJobs = append(out.CronJobs, CronJob{ID: job.ID, Name: job.Name, Enabled: job.Enabled, NextRun: job.NextRun})
		}
		for _, agent := range s.agents.Agents(ctx) {
			entry := AgentActivity{ID: agent.ID}
			if ts, ok := lastSeen[agent.ID]; ok {
				ts := ts
				entry.LastActivity = &ts
			}
			out.Agents = append(out.Agents, entry)
		}
	}
	return out
}
