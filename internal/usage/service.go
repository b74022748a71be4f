package usage

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/openclaw"
)

const (
	SourceDatabase = "database"
	SourceLive     = "live"

	DefaultTimeframeDays = 30
	MaxTimeframeDays     = 365

	dateLayout = "2006-01-02"
)

// SnapshotSource reads the usage collector's database. Available reports
// whether the database exists at all.
type SnapshotSource interface {
	Available() bool
	Snapshots(ctx context.Context, startDate, endDate string) ([]Snapshot, error)
}

type SessionLister interface {
	Sessions(ctx context.Context) []openclaw.Session
}

type Summary struct {
	Timeframe    string       `json:"timeframe"`
	Source       string       `json:"source"`
	StartDate    string       `json:"startDate"`
	EndDate      string       `json:"endDate"`
	TotalCost    float64      `json:"totalCost"`
	TotalTokens  int64        `json:"totalTokens"`
	InputTokens  int64        `json:"inputTokens"`
	OutputTokens int64        `json:"outputTokens"`
	TodayCost    float64      `json:"todayCost"`
	ByModel      []GroupTotal `json:"byModel"`
	ByAgent      []GroupTotal `json:"byAgent"`
	Daily        []GroupTotal `json:"daily"`
	Hourly       []GroupTotal `json:"hourly"`
}

type Service struct {
	db       SnapshotSource
	sessions SessionLister
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(db SnapshotSource, sessions SessionLister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, sessions: sessions, logger: logger, now: time.Now}
}

var timeframePattern = regexp.MustCompile(`^(\d{1,3})d$`)

// ParseTimeframe parses "<N>d". Empty input yields the default window.
func ParseTimeframe(raw string) (int, error) {
	if raw == "" {
		return DefaultTimeframeDays, nil
	}
	m := timeframePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, apperr.Invalid("invalid timeframe %q, expected <N>d", raw)
	}
	days, _ := strconv.Atoi(m[1])
	if days < 1 || days > MaxTimeframeDays {
		return 0, apperr.Invalid("timeframe must be between 1d and %dd", MaxTimeframeDays)
	}
	return days, nil
}

// Summary aggregates the last days of usage. The usage database is preferred;
// without it only today's live CLI sessions are reported.
func (s *Service) Summary(ctx context.Context, days int) Summary {
	if days <= 0 {
		days = DefaultTimeframeDays
	}
	now := s.now()
	today := now.Format(dateLayout)
	start := now.AddDate(0, 0, -(days - 1)).Format(dateLayout)

	var sessions []openclaw.Session
	if s.sessions != nil {
		sessions = s.sessions.Sessions(ctx)
	}

	summary := Summary{
		Timeframe: strconv.Itoa(days) + "d",
		StartDate: start,
		EndDate:   today,
		ByAgent:   ByAgent(sessions),
		Hourly:    Chronological(Hourly(sessions, now.Location())),
	}

	snapshots, ok := s.fromDatabase(ctx, start, today)
	if ok {
		summary.Source = SourceDatabase
	} else {
		summary.Source = SourceLive
		summary.StartDate = today
		snapshots = LiveSnapshots(sessions, today)
	}

	for _, snap := range snapshots {
		summary.TotalCost += snap.Cost
		summary.InputTokens += snap.InputTokens
		summary.OutputTokens += snap.OutputTokens
		if snap.Date == today {
			summary.TodayCost += snap.Cost
		}
	}
	summary.TotalTokens = summary.InputTokens + summary.OutputTokens
	summary.ByModel = ByModel(snapshots)
	summary.Daily = Chronological(Daily(snapshots))
	return summary
}

// Snapshots returns persisted rows for an inclusive date range, or nothing
// when the usage database is unavailable.
func (s *Service) Snapshots(ctx context.Context, startDate, endDate string) []Snapshot {
	snapshots, ok := s.fromDatabase(ctx, startDate, endDate)
	if !ok {
		return []Snapshot{}
	}
	return snapshots
}

func (s *Service) fromDatabase(ctx context.Context, start, end string) ([]Snapshot, bool) {
	if s.db == nil || !s.db.Available() {
		return nil, false
	}
	snapshots, err := s.db.Snapshots(ctx, start, end)
	if err != nil {
		s.logger.Warn("usage database query failed", zap.Error(err))
		return nil, false
	}
	return snapshots, true
}
