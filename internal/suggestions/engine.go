package suggestions

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/grixate/missioncontrol/internal/activity"
)

const (
	dominantShareThreshold = 60.0
	cronClusterMinJobs     = 2
	heartbeatStaleAfter    = time.Hour
	peakHourMinActivity    = 10
)

type Suggestion struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	ActionType    string         `json:"actionType"`
	ActionPayload map[string]any `json:"actionPayload,omitempty"`
}

type ModelShare struct {
	Model          string  `json:"model"`
	PercentOfTotal float64 `json:"percentOfTotal"`
}

type CronJob struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Enabled bool       `json:"enabled"`
	NextRun *time.Time `json:"nextRun,omitempty"`
}

type AgentActivity struct {
	ID           string     `json:"id"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
}

// Context is everything the rules look at. It is assembled by the caller.
type Context struct {
	Now            time.Time
	ActivityStats  activity.Stats
	CostsByModel   []ModelShare
	CronJobs       []CronJob
	Agents         []AgentActivity
	HourlyActivity []activity.HourCount
}

// Run evaluates every rule against c. It has no side effects; dismissed
// suggestions are still returned.
func Run(c Context) []Suggestion {
	if c.Now.IsZero() {
		c.Now = time.Now()
	}
	out := make([]Suggestion, 0, 4)
	for _, rule := range []func(Context) (Suggestion, bool){
		costConcentration,
		cronClustering,
		heartbeatStaleness,
		peakHour,
	} {
		if s, ok := rule(c); ok {
			out = append(out, s)
		}
	}
	return out
}

// FilterDismissed drops suggestions whose id is in dismissed.
func FilterDismissed(list []Suggestion, dismissed map[string]struct{}) []Suggestion {
	out := make([]Suggestion, 0, len(list))
	for _, s := range list {
		if _, ok := dismissed[s.ID]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

var slugPattern = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(name string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func costConcentration(c Context) (Suggestion, bool) {
	if len(c.CostsByModel) == 0 {
		return Suggestion{}, false
	}
	shares := append([]ModelShare(nil), c.CostsByModel...)
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].PercentOfTotal > shares[j].PercentOfTotal })
	top := shares[0]
	if top.PercentOfTotal < dominantShareThreshold {
		return Suggestion{}, false
	}
	var alternative string
	for _, share := range shares[1:] {
		if !strings.EqualFold(share.Model, top.Model) {
			alternative = share.Model
			break
		}
	}
	if alternative == "" {
		return Suggestion{}, false
	}
	return Suggestion{
		ID:    fmt.Sprintf("model-%s-dominant", slug(top.Model)),
		Title: fmt.Sprintf("%s dominates spend", top.Model),
		Description: fmt.Sprintf("%s accounts for %.0f%% of cost. Routing routine work to %s could lower spend.",
			top.Model, top.PercentOfTotal, alternative),
		Category:   "cost",
		ActionType: "switch_model",
		ActionPayload: map[string]any{
			"from":  top.Model,
			"to":    alternative,
			"share": top.PercentOfTotal,
		},
	}, true
}

func cronClustering(c Context) (Suggestion, bool) {
	var byHour [24][]string
	for _, job := range c.CronJobs {
		if !job.Enabled || job.NextRun == nil {
			continue
		}
		h := job.NextRun.In(c.Now.Location()).Hour()
		byHour[h] = append(byHour[h], job.Name)
	}
	for hour, names := range byHour {
		if len(names) < cronClusterMinJobs {
			continue
		}
		return Suggestion{
			ID:          fmt.Sprintf("cron-peak-hour-%d", hour),
			Title:       fmt.Sprintf("%d cron jobs run at %02d:00", len(names), hour),
			Description: fmt.Sprintf("%s are all scheduled in the %02d:00 hour. Staggering them spreads load on the agent.", strings.Join(names, ", "), hour),
			Category:    "schedule",
			ActionType:  "reschedule_cron",
			ActionPayload: map[string]any{
				"hour":  hour,
				"count": len(names),
				"jobs":  names,
			},
		}, true
	}
	return Suggestion{}, false
}

func heartbeatStaleness(c Context) (Suggestion, bool) {
	if len(c.Agents) == 0 {
		return Suggestion{}, false
	}
	primary := c.Agents[0]
	for _, agent := range c.Agents {
		if agent.ID == "main" {
			primary = agent
			break
		}
	}
	if primary.LastActivity == nil || c.Now.Sub(*primary.LastActivity) <= heartbeatStaleAfter {
		return Suggestion{}, false
	}
	enabled := 0
	for _, job := range c.CronJobs {
		if job.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return Suggestion{}, false
	}
	idle := c.Now.Sub(*primary.LastActivity).Truncate(time.Minute)
	return Suggestion{
		ID:          "heartbeat-gap",
		Title:       fmt.Sprintf("Agent %s has been quiet for %s", primary.ID, idle),
		Description: fmt.Sprintf("%d cron jobs are enabled but %s has not recorded activity in over an hour. Check that the gateway heartbeat is running.", enabled, primary.ID),
		Category:    "health",
		ActionType:  "check_heartbeat",
		ActionPayload: map[string]any{
			"agentId":      primary.ID,
			"lastActivity": primary.LastActivity.UTC().Format(time.RFC3339),
		},
	}, true
}

func peakHour(c Context) (Suggestion, bool) {
	var totals [24]int
	for _, bucket := range c.HourlyActivity {
		if bucket.Hour < 0 || bucket.Hour > 23 {
			continue
		}
		totals[bucket.Hour] += bucket.Count
	}
	busiest := 0
	for hour := 1; hour < 24; hour++ {
		if totals[hour] > totals[busiest] {
			busiest = hour
		}
	}
	if totals[busiest] < peakHourMinActivity {
		return Suggestion{}, false
	}
	return Suggestion{
		ID:          fmt.Sprintf("schedule-peak-%d", busiest),
		Title:       fmt.Sprintf("Activity peaks at %02d:00", busiest),
		Description: fmt.Sprintf("%d activities landed in the %02d:00 hour. Moving cron jobs away from it keeps interactive work responsive.", totals[busiest], busiest),
		Category:    "schedule",
		ActionType:  "reschedule_cron",
		ActionPayload: map[string]any{
			"hour":  busiest,
			"count": totals[busiest],
		},
	}, true
}
