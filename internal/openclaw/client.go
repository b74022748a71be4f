package openclaw

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/cron"
	"github.com/grixate/missioncontrol/internal/pricing"
)

// Client wraps the CLI listings. Every method degrades to an empty result
// when the CLI is missing, fails, or prints something that is not JSON.
type Client struct {
	runner *Runner
	prices *pricing.Calculator
	logger *zap.Logger
	now    func() time.Time
}

func NewClient(runner *Runner, prices *pricing.Calculator, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prices == nil {
		prices = pricing.NewCalculator(logger)
	}
	return &Client{runner: runner, prices: prices, logger: logger, now: time.Now}
}

func (c *Client) Runner() *Runner {
	return c.runner
}

// AgentIDFromSessionKey returns the second colon-delimited segment of a
// session key, or "main" when there is none.
func AgentIDFromSessionKey(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) < 2 {
		return "main"
	}
	if id := strings.TrimSpace(parts[1]); id != "" {
		return id
	}
	return "main"
}

func (c *Client) Sessions(ctx context.Context) []Session {
	raw, ok := listItems[rawSession](ctx, c, "sessions", "sessions")
	if !ok {
		return []Session{}
	}
	out := make([]Session, 0, len(raw))
	for _, item := range raw {
		if strings.TrimSpace(item.Key) == "" {
			continue
		}
		total := item.TotalTokens
		if total == 0 {
			total = item.InputTokens + item.OutputTokens
		}
		session := Session{
			Key:          item.Key,
			AgentID:      AgentIDFromSessionKey(item.Key),
			Kind:         item.Kind,
			Model:        pricing.NormalizeModelID(item.Model),
			InputTokens:  item.InputTokens,
			OutputTokens: item.OutputTokens,
			TotalTokens:  total,
			Cost:         c.prices.Cost(item.Model, item.InputTokens, item.OutputTokens),
		}
		if ts := fromMillis(item.UpdatedAt); ts != nil {
			session.UpdatedAt = *ts
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// CronJobs lists jobs, computing nextRun locally when the CLI omits it.
func (c *Client) CronJobs(ctx context.Context) []CronJob {
	raw, ok := listItems[rawCronJob](ctx, c, "jobs", "cron", "list")
	if !ok {
		return []CronJob{}
	}
	now := c.now()
	out := make([]CronJob, 0, len(raw))
	for _, item := range raw {
		job := CronJob{
			ID:      item.ID,
			Name:    item.Name,
			AgentID: item.AgentID,
			Enabled: item.Enabled,
			Schedule: cron.Schedule{
				Kind:    cron.ScheduleKind(item.Schedule.Kind),
				Expr:    item.Schedule.Expr,
				EveryMS: item.Schedule.EveryMS,
				At:      fromMillis(item.Schedule.AtMS),
				TZ:      item.Schedule.TZ,
			},
			NextRun:    fromMillis(item.State.NextRunAtMS),
			LastRun:    fromMillis(item.State.LastRunAtMS),
			LastStatus: item.State.LastStatus,
		}
		if job.NextRun == nil && job.Enabled {
			job.NextRun = cron.NextRun(job.Schedule, now)
		}
		out = append(out, job)
	}
	return out
}

func (c *Client) Agents(ctx context.Context) []Agent {
	raw, ok := listItems[rawAgent](ctx, c, "agents", "agents", "list")
	if !ok {
		return []Agent{}
	}
	out := make([]Agent, 0, len(raw))
	for _, item := range raw {
		if strings.TrimSpace(item.ID) == "" {
			continue
		}
		name := item.Name
		if name == "" {
			name = item.ID
		}
		out = append(out, Agent{
			ID:        item.ID,
			Name:      name,
			Workspace: item.Workspace,
			Model:     item.Model,
			IsDefault: item.IsDefault,
		})
	}
	return out
}

// Status returns the raw `openclaw status` document, or an empty map.
func (c *Client) Status(ctx context.Context) map[string]any {
	out := map[string]any{}
	if err := c.runner.RunJSON(ctx, &out, "status"); err != nil {
		c.logger.Warn("openclaw status unavailable", zap.Error(err))
		return map[string]any{}
	}
	return out
}

// listItems decodes either a bare array or an object holding the array under
// wrapper. Items that fail to decode are skipped.
func listItems[T any](ctx context.Context, c *Client, wrapper string, args ...string) ([]T, bool) {
	var doc json.RawMessage
	if err := c.runner.RunJSON(ctx, &doc, args...); err != nil {
		c.logger.Warn("openclaw listing unavailable", zap.Strings("args", args), zap.Error(err))
		return nil, false
	}
	if strings.HasPrefix(strings.TrimSpace(string(doc)), "{") {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(doc, &wrapped); err != nil {
			return nil, false
		}
		inner, ok := wrapped[wrapper]
		if !ok {
			return []T{}, true
		}
		doc = inner
	}
	var items []json.RawMessage
	if err := json.Unmarshal(doc, &items); err != nil {
		c.logger.Warn("openclaw listing malformed", zap.Strings("args", args), zap.Error(err))
		return nil, false
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var decoded T
		if err := json.Unmarshal(item, &decoded); err != nil {
			c.logger.Debug("skipping malformed openclaw record", zap.Strings("args", args), zap.Error(err))
			continue
		}
		out = append(out, decoded)
	}
	return out, true
}
