package reports

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/telemetry"
	"github.com/grixate/missioncontrol/internal/usage"
)

const (
	dateLayout = "2006-01-02"
	tokenBytes = 32
)

type Store interface {
	InsertReport(ctx context.Context, rec Record) error
	// GetReport returns ErrNotFound for unknown tokens. Expiry is checked by
	// the caller.
	GetReport(ctx context.Context, token string) (Record, error)
}

type ActivitySource interface {
	Stats(ctx context.Context, since, until time.Time) (activity.Stats, error)
	Log(ctx context.Context, a activity.Activity) (activity.Activity, error)
}

type UsageSource interface {
	Snapshots(ctx context.Context, startDate, endDate string) []usage.Snapshot
}

type ServiceOptions struct {
	Store         Store
	Activity      ActivitySource
	Usage         UsageSource
	ExpiresInDays int
	Metrics       *telemetry.Metrics
	Logger        *zap.Logger
	Now           func() time.Time
}

type Service struct {
	store         Store
	activity      ActivitySource
	usage         UsageSource
	expiresInDays int
	metrics       *telemetry.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

func NewService(opts ServiceOptions) *Service {
	svc := &Service{
		store:         opts.Store,
		activity:      opts.Activity,
		usage:         opts.Usage,
		expiresInDays: opts.ExpiresInDays,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		now:           opts.Now,
	}
	if svc.expiresInDays <= 0 {
		svc.expiresInDays = DefaultExpiresInDays
	}
	if svc.metrics == nil {
		svc.metrics = &telemetry.Metrics{}
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// BuildPayload aggregates persisted activity and usage for the inclusive
// date range. Dates are interpreted in the local time zone.
func (s *Service) BuildPayload(ctx context.Context, startDate, endDate string) (Payload, error) {
	start, end, err := parseRange(startDate, endDate)
	if err != nil {
		return Payload{}, err
	}
	payload := Payload{
		StartDate:   startDate,
		EndDate:     endDate,
		GeneratedAt: s.now().UTC(),
		Activity: ActivitySummary{
			ByType:   map[string]int{},
			ByStatus: map[string]int{},
		},
		Cost: CostSummary{
			ByModel: []usage.GroupTotal{},
			Daily:   []DailyCost{},
		},
	}

	if s.activity != nil {
		stats, err := s.activity.Stats(ctx, start, end.AddDate(0, 0, 1).Add(-time.Nanosecond))
		if err != nil {
			return Payload{}, fmt.Errorf("activity stats: %w", err)
		}
		payload.Activity.Total = stats.Total
		payload.Activity.ByType = stats.ByType
		payload.Activity.ByStatus = stats.ByStatus
		payload.Activity.SuccessRate = stats.SuccessRate
	}

	if s.usage != nil {
		snapshots := s.usage.Snapshots(ctx, startDate, endDate)
		for _, snap := range snapshots {
			payload.Cost.Total += snap.Cost
			payload.Cost.TotalTokens += snap.InputTokens + snap.OutputTokens
		}
		payload.Cost.ByModel = usage.ByModel(snapshots)
		for _, day := range usage.Chronological(usage.Daily(snapshots)) {
			payload.Cost.Daily = append(payload.Cost.Daily, DailyCost{Date: day.Key, Cost: day.Cost, Tokens: day.Tokens})
		}
	}
	return payload, nil
}

// Save inserts the payload under token. A token that already exists is an
// error, never an overwrite.
func (s *Service) Save(ctx context.Context, token string, payload Payload, expiresInDays int) (Saved, error) {
	if token == "" {
		return Saved{}, apperr.Invalid("report token is required")
	}
	if expiresInDays <= 0 {
		expiresInDays = s.expiresInDays
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		return Saved{}, fmt.Errorf("encode report: %w", err)
	}
	now := s.now().UTC()
	rec := Record{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Token:     token,
		Payload:   blob,
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, expiresInDays),
	}
	if err := s.store.InsertReport(ctx, rec); err != nil {
		return Saved{}, err
	}
	return Saved{ReportID: rec.ID, Token: rec.Token, ExpiresAt: rec.ExpiresAt}, nil
}

// Get returns the payload while now <= expiresAt.
func (s *Service) Get(ctx context.Context, token string) (Payload, error) {
	if token == "" {
		return Payload{}, ErrNotFound
	}
	rec, err := s.store.GetReport(ctx, token)
	if err != nil {
		return Payload{}, err
	}
	if s.now().After(rec.ExpiresAt) {
		return Payload{}, ErrNotFound
	}
	var payload Payload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return Payload{}, fmt.Errorf("decode report %s: %w", rec.ID, err)
	}
	return payload, nil
}

// Generate builds a payload for the range, stores it under a fresh token and
// logs a report activity.
func (s *Service) Generate(ctx context.Context, startDate, endDate string) (Generated, error) {
	payload, err := s.BuildPayload(ctx, startDate, endDate)
	if err != nil {
		return Generated{}, err
	}

	var saved Saved
	for attempt := 0; attempt < 3; attempt++ {
		token, err := NewToken()
		if err != nil {
			return Generated{}, err
		}
		saved, err = s.Save(ctx, token, payload, s.expiresInDays)
		if errors.Is(err, ErrTokenCollision) {
			continue
		}
		if err != nil {
			return Generated{}, err
		}
		break
	}
	if saved.Token == "" {
		return Generated{}, ErrTokenCollision
	}
	s.metrics.ReportsGenerated.Add(1)

	if s.activity != nil {
		if _, err := s.activity.Log(ctx, activity.Activity{
			Type:        activity.TypeReport,
			Description: fmt.Sprintf("Generated report %s to %s", startDate, endDate),
			Status:      activity.StatusSuccess,
			Metadata:    map[string]any{"reportId": saved.ReportID},
		}); err != nil {
			s.logger.Warn("log report activity", zap.Error(err))
		}
	}
	return Generated{Saved: saved, Summary: payload}, nil
}

// NewToken returns 32 random bytes, URL-safe base64 encoded.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, startDate, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Invalid("startDate must be YYYY-MM-DD")
	}
	end, err := time.ParseInLocation(dateLayout, endDate, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Invalid("endDate must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, apperr.Invalid("startDate must not be after endDate")
	}
	return start, end, nil
}
