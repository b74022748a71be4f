package cron

import (
	"testing"
	"time"
)

func TestNextRunEvery(t *testing.T) {
	now := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	next := NextRun(Schedule{Kind: ScheduleEvery, EveryMS: 30_000}, now)
	if next == nil {
		t.Fatal("next run should not be nil")
	}
	if next.Sub(now) != 30*time.Second {
		t.Fatalf("unexpected interval: %s", next.Sub(now))
	}
}

func TestNextRunCron(t *testing.T) {
	now := time.Date(2026, 2, 7, 12, 1, 0, 0, time.UTC)
	next := NextRun(Schedule{Kind: ScheduleCron, Expr: "*/5 * * * *"}, now)
	if next == nil {
		t.Fatal("next run should not be nil")
	}
	if next.Minute()%5 != 0 {
		t.Fatalf("minute should be divisible by 5: %d", next.Minute())
	}
}

func TestNextRunCronWithTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	now := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	next := NextRun(Schedule{Kind: ScheduleCron, Expr: "0 9 * * *", TZ: "America/New_York"}, now)
	if next == nil {
		t.Fatal("next run should not be nil")
	}
	if next.In(loc).Hour() != 9 {
		t.Fatalf("expected 09:00 local, got %s", next.In(loc))
	}
}

func TestNextRunAtInPast(t *testing.T) {
	now := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	if NextRun(Schedule{Kind: ScheduleAt, At: &past}, now) != nil {
		t.Fatal("past one-shot should not fire")
	}
	if NextRun(Schedule{Kind: ScheduleCron, Expr: "not a cron"}, now) != nil {
		t.Fatal("invalid expression should yield nil")
	}
}

func TestHourCounts(t *testing.T) {
	day := time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC)
	counts := HourCounts([]time.Time{day.Add(9 * time.Hour), day.Add(9*time.Hour + 15*time.Minute), day.Add(22 * time.Hour)}, time.UTC)
	if counts[9] != 2 || counts[22] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestValidate(t *testing.T) {
	if !Validate(Schedule{Kind: ScheduleCron, Expr: "0 * * * *"}) {
		t.Fatal("expected valid cron")
	}
	if Validate(Schedule{Kind: ScheduleEvery}) {
		t.Fatal("expected invalid every")
	}
}
