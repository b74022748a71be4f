package activity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/apperr"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Log validates and appends an activity, stamping id and timestamp.
func (s *Service) Log(ctx context.Context, a Activity) (Activity, error) {
	a.Type = strings.TrimSpace(a.Type)
	if a.Type == "" {
		return Activity{}, apperr.Invalid("activity type is required")
	}
	if a.Status == "" {
		a.Status = StatusSuccess
	}
	if !a.Status.Valid() {
		return Activity{}, apperr.Invalid("invalid activity status %q", a.Status)
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = s.now().UTC()
	}
	saved, err := s.store.AppendActivity(ctx, a)
	if err != nil {
		return Activity{}, fmt.Errorf("append activity: %w", err)
	}
	return saved, nil
}

// Record logs an activity on behalf of another operation. Failures are logged
// and never returned.
func (s *Service) Record(ctx context.Context, a Activity) {
	if s == nil {
		return
	}
	if _, err := s.Log(ctx, a); err != nil {
		s.logger.Warn("activity log failed", zap.String("type", a.Type), zap.Error(err))
	}
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Activity, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	return s.store.ListActivities(ctx, filter)
}

func (s *Service) Stats(ctx context.Context, since, until time.Time) (Stats, error) {
	items, err := s.store.ListActivities(ctx, Filter{Since: since, Until: until})
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(items), nil
}

func (s *Service) HourlyHistogram(ctx context.Context, since time.Time) ([]HourCount, error) {
	items, err := s.store.ListActivities(ctx, Filter{Since: since})
	if err != nil {
		return nil, err
	}
	return Histogram(items, time.Local), nil
}

// LastActivityByAgent returns the newest timestamp seen for each agent. A zero
// since scans the whole log.
func (s *Service) LastActivityByAgent(ctx context.Context, since time.Time) (map[string]time.Time, error) {
	items, err := s.store.ListActivities(ctx, Filter{Since: since})
	if err != nil {
		return nil, err
	}
	out := map[string]time.Time{}
	for _, item := range items {
		agent := strings.TrimSpace(item.Agent)
		if agent == "" {
			agent = "main"
		}
		if current, ok := out[agent]; !ok || item.Timestamp.After(current) {
			out[agent] = item.Timestamp
		}
	}
	return out, nil
}

func ComputeStats(items []Activity) Stats {
	stats := Stats{
		ByType:   map[string]int{},
		ByStatus: map[string]int{},
	}
	var durationTotal int64
	var durationCount int
	for _, item := range items {
		stats.Total++
		stats.ByType[item.Type]++
		stats.ByStatus[string(item.Status)]++
		if item.DurationMS != nil {
			durationTotal += *item.DurationMS
			durationCount++
		}
		if item.TokensUsed != nil {
			stats.TotalTokens += *item.TokensUsed
		}
	}
	stats.SuccessRate = SuccessRate(stats.ByStatus)
	if durationCount > 0 {
		stats.AvgDurationMS = float64(durationTotal) / float64(durationCount)
	}
	return stats
}

// SuccessRate is success / (success + error) as a percentage, 0 when neither
// status occurred.
func SuccessRate(byStatus map[string]int) float64 {
	success := byStatus[string(StatusSuccess)]
	failed := byStatus[string(StatusError)]
	if success+failed == 0 {
		return 0
	}
	return float64(success) / float64(success+failed) * 100
}

// Histogram buckets activities by calendar day and hour-of-day in loc.
func Histogram(items []Activity, loc *time.Location) []HourCount {
	if loc == nil {
		loc = time.UTC
	}
	type bucket struct {
		day  string
		hour int
	}
	counts := map[bucket]int{}
	for _, item := range items {
		ts := item.Timestamp.In(loc)
		counts[bucket{day: ts.Format("2006-01-02"), hour: ts.Hour()}]++
	}
	out := make([]HourCount, 0, len(counts))
	for key, count := range counts {
		out = append(out, HourCount{Day: key.day, Hour: key.hour, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day == out[j].Day {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Day < out[j].Day
	})
	return out
}
