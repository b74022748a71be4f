package usage

import (
	"fmt"
	"sort"
	"time"

	"github.com/grixate/missioncontrol/internal/openclaw"
	"github.com/grixate/missioncontrol/internal/pricing"
)

// Snapshot is one row of the external usage collector's table.
type Snapshot struct {
	Date         string  `json:"date"`
	Model        string  `json:"model"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

type Row struct {
	Key          string
	Cost         float64
	InputTokens  int64
	OutputTokens int64
}

type GroupTotal struct {
	Key            string  `json:"key"`
	Cost           float64 `json:"cost"`
	Tokens         int64   `json:"tokens"`
	InputTokens    int64   `json:"inputTokens"`
	OutputTokens   int64   `json:"outputTokens"`
	PercentOfTotal float64 `json:"percentOfTotal"`
}

// Group sums rows by key and sorts groups by descending cost. Percentages are
// zero for every group when the total cost is zero.
func Group(rows []Row) []GroupTotal {
	index := map[string]int{}
	out := make([]GroupTotal, 0, 8)
	var total float64
	for _, row := range rows {
		i, ok := index[row.Key]
		if !ok {
			i = len(out)
			index[row.Key] = i
			out = append(out, GroupTotal{Key: row.Key})
		}
		out[i].Cost += row.Cost
		out[i].InputTokens += row.InputTokens
		out[i].OutputTokens += row.OutputTokens
		out[i].Tokens += row.InputTokens + row.OutputTokens
		total += row.Cost
	}
	for i := range out {
		if total > 0 {
			out[i].PercentOfTotal = out[i].Cost / total * 100
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Cost == out[j].Cost {
			return out[i].Key < out[j].Key
		}
		return out[i].Cost > out[j].Cost
	})
	return out
}

func ByModel(snapshots []Snapshot) []GroupTotal {
	rows := make([]Row, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, Row{Key: pricing.NormalizeModelID(s.Model), Cost: s.Cost, InputTokens: s.InputTokens, OutputTokens: s.OutputTokens})
	}
	return Group(rows)
}

func Daily(snapshots []Snapshot) []GroupTotal {
	rows := make([]Row, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, Row{Key: s.Date, Cost: s.Cost, InputTokens: s.InputTokens, OutputTokens: s.OutputTokens})
	}
	return Group(rows)
}

func ByAgent(sessions []openclaw.Session) []GroupTotal {
	rows := make([]Row, 0, len(sessions))
	for _, s := range sessions {
		agent := s.AgentID
		if agent == "" {
			agent = openclaw.AgentIDFromSessionKey(s.Key)
		}
		rows = append(rows, Row{Key: agent, Cost: s.Cost, InputTokens: s.InputTokens, OutputTokens: s.OutputTokens})
	}
	return Group(rows)
}

func SessionsByModel(sessions []openclaw.Session) []GroupTotal {
	rows := make([]Row, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, Row{Key: pricing.NormalizeModelID(s.Model), Cost: s.Cost, InputTokens: s.InputTokens, OutputTokens: s.OutputTokens})
	}
	return Group(rows)
}

// Hourly buckets sessions by the hour-of-day of their last update.
func Hourly(sessions []openclaw.Session, loc *time.Location) []GroupTotal {
	if loc == nil {
		loc = time.UTC
	}
	rows := make([]Row, 0, len(sessions))
	for _, s := range sessions {
		if s.UpdatedAt.IsZero() {
			continue
		}
		rows = append(rows, Row{
			Key:          fmt.Sprintf("%02d", s.UpdatedAt.In(loc).Hour()),
			Cost:         s.Cost,
			InputTokens:  s.InputTokens,
			OutputTokens: s.OutputTokens,
		})
	}
	return Group(rows)
}

// Chronological returns a copy of groups ordered by key, for time series.
func Chronological(groups []GroupTotal) []GroupTotal {
	out := append([]GroupTotal(nil), groups...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// LiveSnapshots converts today's CLI sessions into snapshot rows.
func LiveSnapshots(sessions []openclaw.Session, day string) []Snapshot {
	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, Snapshot{
			Date:         day,
			Model:        s.Model,
			InputTokens:  s.InputTokens,
			OutputTokens: s.OutputTokens,
			Cost:         s.Cost,
		})
	}
	return out
}
