package openclaw

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grixate/missioncontrol/internal/telemetry"
)

type fakeExecutor struct {
	outputs map[string]string
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeExecutor) Output(ctx context.Context, _ string, args ...string) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out, ok := f.outputs[strings.Join(args, " ")]
	if !ok {
		return nil, errors.New("exit status 1")
	}
	return []byte(out), nil
}

func newTestClient(exec Executor, metrics *telemetry.Metrics) *Client {
	runner := NewRunner(RunnerOptions{Executor: exec, Timeout: 200 * time.Millisecond, Metrics: metrics})
	return NewClient(runner, nil, nil)
}

func TestAgentIDFromSessionKey(t *testing.T) {
	cases := map[string]string{
		"agent:main:slack:channel:c1": "main",
		"agent:2b:main":               "2b",
		"agent":                       "main",
		"":                            "main",
		"agent::x":                    "main",
	}
	for key, want := range cases {
		assert.Equal(t, want, AgentIDFromSessionKey(key), key)
	}
}

func TestSessionsDecodesWrappedOutputAndPricesUsage(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		"sessions --json": `{"count":3,"sessions":[
			{"key":"agent:main:main","model":"sonnet","inputTokens":1000000,"outputTokens":0,"updatedAt":1767225600000},
			{"key":"agent:research:cron:daily","model":"anthropic/claude-opus-4-6","inputTokens":0,"outputTokens":1000000,"updatedAt":1767229200000},
			"garbage"
		]}`,
	}}
	client := newTestClient(exec, nil)
	sessions := client.Sessions(context.Background())
	require.Len(t, sessions, 2)
	assert.Equal(t, "research", sessions[0].AgentID)
	assert.InDelta(t, 25.0, sessions[0].Cost, 1e-9)
	assert.Equal(t, "anthropic/claude-sonnet-4-5", sessions[1].Model)
	assert.Equal(t, int64(1000000), sessions[1].TotalTokens)
	assert.InDelta(t, 3.0, sessions[1].Cost, 1e-9)
}

func TestCronJobsComputesMissingNextRun(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		"cron list --json": `{"jobs":[
			{"id":"a","name":"digest","enabled":true,"schedule":{"kind":"cron","expr":"0 9 * * *"},"state":{}},
			{"id":"b","name":"sync","enabled":true,"schedule":{"kind":"every","everyMs":60000},"state":{"nextRunAtMs":1767258000000}},
			{"id":"c","name":"off","enabled":false,"schedule":{"kind":"cron","expr":"0 9 * * *"},"state":{}}
		]}`,
	}}
	client := newTestClient(exec, nil)
	client.now = func() time.Time { return time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC) }

	jobs := client.CronJobs(context.Background())
	require.Len(t, jobs, 3)
	require.NotNil(t, jobs[0].NextRun)
	assert.Equal(t, 9, jobs[0].NextRun.Hour())
	require.NotNil(t, jobs[1].NextRun)
	assert.Equal(t, int64(1767258000000), jobs[1].NextRun.UnixMilli())
	assert.Nil(t, jobs[2].NextRun)
}

func TestAgentsBareArray(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		"agents list --json": `[{"id":"main","isDefault":true},{"id":"ops","name":"Ops"}]`,
	}}
	agents := newTestClient(exec, nil).Agents(context.Background())
	require.Len(t, agents, 2)
	assert.Equal(t, "main", agents[0].Name)
	assert.True(t, agents[0].IsDefault)
}

func TestFailuresDegradeToEmpty(t *testing.T) {
	metrics := &telemetry.Metrics{}
	client := newTestClient(&fakeExecutor{err: errors.New("executable file not found")}, metrics)
	assert.Empty(t, client.Sessions(context.Background()))
	assert.Empty(t, client.CronJobs(context.Background()))
	assert.Empty(t, client.Status(context.Background()))
	assert.Equal(t, uint64(3), metrics.CLIFailures.Load())

	malformed := newTestClient(&fakeExecutor{outputs: map[string]string{"agents list --json": "not json"}}, nil)
	assert.Empty(t, malformed.Agents(context.Background()))
}

func TestRunTimesOut(t *testing.T) {
	client := newTestClient(&fakeExecutor{delay: time.Second, outputs: map[string]string{"sessions --json": "[]"}}, nil)
	_, err := client.Runner().Run(context.Background(), "sessions", "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestRunJSONCachesOutput(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{"agents list --json": `[{"id":"main"}]`}}
	metrics := &telemetry.Metrics{}
	client := newTestClient(exec, metrics)
	client.Agents(context.Background())
	client.Agents(context.Background())
	assert.Equal(t, int32(1), exec.calls.Load())
	assert.Equal(t, uint64(1), metrics.CLICacheHits.Load())

	client.Runner().Invalidate()
	client.Agents(context.Background())
	assert.Equal(t, int32(2), exec.calls.Load())
}

func TestRunJSONSkipsBanner(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{"status --json": "openclaw v2026.1\n{\"gateway\":{\"running\":true}}"}}
	status := newTestClient(exec, nil).Status(context.Background())
	assert.Contains(t, status, "gateway")
}
