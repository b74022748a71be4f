package cron

import (
	"strings"
	"time"

	gocron "github.com/robfig/cron/v3"
)

type ScheduleKind string

const (
	ScheduleAt    ScheduleKind = "at"
	ScheduleEvery ScheduleKind = "every"
	ScheduleCron  ScheduleKind = "cron"
)

// Schedule mirrors an OpenClaw cron job schedule.
type Schedule struct {
	Kind    ScheduleKind `json:"kind"`
	Expr    string       `json:"expr,omitempty"`
	EveryMS int64        `json:"everyMs,omitempty"`
	At      *time.Time   `json:"at,omitempty"`
	TZ      string       `json:"tz,omitempty"`
}

var parser = gocron.NewParser(gocron.Minute | gocron.Hour | gocron.Dom | gocron.Month | gocron.Dow | gocron.Descriptor)

// NextRun computes the next fire time after now, or nil when the schedule
// never fires again or cannot be parsed.
func NextRun(schedule Schedule, now time.Time) *time.Time {
	switch schedule.Kind {
	case ScheduleAt:
		if schedule.At == nil {
			return nil
		}
		if schedule.At.After(now) {
			t := schedule.At.UTC()
			return &t
		}
		return nil
	case ScheduleEvery:
		if schedule.EveryMS <= 0 {
			return nil
		}
		next := now.Add(time.Duration(schedule.EveryMS) * time.Millisecond)
		next = next.UTC()
		return &next
	case ScheduleCron:
		expr := strings.TrimSpace(schedule.Expr)
		if expr == "" {
			return nil
		}
		if tz := strings.TrimSpace(schedule.TZ); tz != "" && !strings.HasPrefix(expr, "CRON_TZ=") && !strings.HasPrefix(expr, "TZ=") {
			expr = "CRON_TZ=" + tz + " " + expr
		}
		sched, err := parser.Parse(expr)
		if err != nil {
			return nil
		}
		next := sched.Next(now)
		if next.IsZero() {
			return nil
		}
		next = next.UTC()
		return &next
	default:
		return nil
	}
}

// Validate reports whether the schedule can produce a run time.
func Validate(schedule Schedule) bool {
	switch schedule.Kind {
	case ScheduleAt:
		return schedule.At != nil
	case ScheduleEvery:
		return schedule.EveryMS > 0
	case ScheduleCron:
		expr := strings.TrimSpace(schedule.Expr)
		if tz := strings.TrimSpace(schedule.TZ); tz != "" {
			expr = "CRON_TZ=" + tz + " " + expr
		}
		_, err := parser.Parse(expr)
		return err == nil
	default:
		return false
	}
}

// HourCounts buckets run times by hour-of-day in loc.
func HourCounts(times []time.Time, loc *time.Location) [24]int {
	if loc == nil {
		loc = time.UTC
	}
	var counts [24]int
	for _, t := range times {
		counts[t.In(loc).Hour()]++
	}
	return counts
}
