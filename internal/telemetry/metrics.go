package telemetry

import (
	"sync/atomic"
)

type Metrics struct {
	HTTPRequests        atomic.Uint64
	HTTPErrors          atomic.Uint64
	CLICalls            atomic.Uint64
	CLIFailures         atomic.Uint64
	CLICacheHits        atomic.Uint64
	ConfigWrites        atomic.Uint64
	SuggestionsComputed atomic.Uint64
	ReportsGenerated    atomic.Uint64
	ReportsExported     atomic.Uint64
	LoginFailures       atomic.Uint64
	LoginLockouts       atomic.Uint64
	PlaygroundRuns      atomic.Uint64
	PlaygroundErrors    atomic.Uint64
	ProviderCalls       atomic.Uint64
	ProviderErrors      atomic.Uint64
	FileWrites          atomic.Uint64
	ActiveRequests      atomic.Int64
}

func (m *Metrics) Snapshot() map[string]uint64 {
	active := m.ActiveRequests.Load()
	if active < 0 {
		active = 0
	}
	return map[string]uint64{
		"http_requests_total":        m.HTTPRequests.Load(),
		"http_errors_total":          m.HTTPErrors.Load(),
		"cli_calls_total":            m.CLICalls.Load(),
		"cli_failures_total":         m.CLIFailures.Load(),
		"cli_cache_hits_total":       m.CLICacheHits.Load(),
		"config_writes_total":        m.ConfigWrites.Load(),
		"suggestions_computed_total": m.SuggestionsComputed.Load(),
		"reports_generated_total":    m.ReportsGenerated.Load(),
		"reports_exported_total":     m.ReportsExported.Load(),
		"login_failures_total":       m.LoginFailures.Load(),
		"login_lockouts_total":       m.LoginLockouts.Load(),
		"playground_runs_total":      m.PlaygroundRuns.Load(),
		"playground_errors_total":    m.PlaygroundErrors.Load(),
		"provider_calls_total":       m.ProviderCalls.Load(),
		"provider_errors_total":      m.ProviderErrors.Load(),
		"file_writes_total":          m.FileWrites.Load(),
		"active_requests":            uint64(active),
	}
}
