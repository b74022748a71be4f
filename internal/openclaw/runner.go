package openclaw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/telemetry"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 5 * time.Second
	maxStderr       = 2000
)

// Executor runs a command and returns its stdout.
type Executor interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execExecutor struct{}

func (execExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[:maxStderr]
		}
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

type RunnerOptions struct {
	Binary   string
	Timeout  time.Duration
	CacheTTL time.Duration
	Executor Executor
	Metrics  *telemetry.Metrics
	Logger   *zap.Logger
}

// Runner shells out to the openclaw CLI. Successful JSON output is cached
// briefly per argument list.
type Runner struct {
	binary  string
	timeout time.Duration
	exec    Executor
	cache   *cache.Cache
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

func NewRunner(opts RunnerOptions) *Runner {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = "openclaw"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	executor := opts.Executor
	if executor == nil {
		executor = execExecutor{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = &telemetry.Metrics{}
	}
	return &Runner{
		binary:  binary,
		timeout: timeout,
		exec:    executor,
		cache:   cache.New(ttl, 2*ttl),
		metrics: metrics,
		logger:  logger,
	}
}

// Run executes the CLI with args and returns stdout.
func (r *Runner) Run(ctx context.Context, args ...string) ([]byte, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.metrics.CLICalls.Add(1)
	out, err := r.exec.Output(execCtx, r.binary, args...)
	if err != nil {
		r.metrics.CLIFailures.Add(1)
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s %s timed out after %s", r.binary, strings.Join(args, " "), r.timeout)
		}
		return nil, fmt.Errorf("%s %s: %w", r.binary, strings.Join(args, " "), err)
	}
	return out, nil
}

// RunJSON runs the CLI with --json appended and decodes stdout into out.
func (r *Runner) RunJSON(ctx context.Context, out any, args ...string) error {
	args = append(append([]string(nil), args...), "--json")
	key := strings.Join(args, "\x00")
	raw, cached := r.cache.Get(key)
	var data []byte
	if cached {
		r.metrics.CLICacheHits.Add(1)
		data = raw.([]byte)
	} else {
		var err error
		data, err = r.Run(ctx, args...)
		if err != nil {
			return err
		}
	}
	if err := json.Unmarshal(bytes.TrimSpace(extractJSON(data)), out); err != nil {
		return fmt.Errorf("decode %s output: %w", strings.Join(args, " "), err)
	}
	if !cached {
		r.cache.SetDefault(key, data)
	}
	return nil
}

// Invalidate drops cached CLI output, e.g. after a config write.
func (r *Runner) Invalidate() {
	r.cache.Flush()
}

// extractJSON skips banner lines some CLI versions print before the payload.
func extractJSON(data []byte) []byte {
	idx := bytes.IndexAny(data, "[{")
	if idx <= 0 {
		return data
	}
	return data[idx:]
}
