package playground

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/provider"
)

type memoryStore struct {
	mu    sync.Mutex
	items map[string]Experiment
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: map[string]Experiment{}}
}

func (m *memoryStore) ListExperiments(context.Context) ([]Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Experiment, 0, len(m.items))
	for _, e := range m.items {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) GetExperiment(_ context.Context, id string) (Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return Experiment{}, ErrNotFound
	}
	return e, nil
}

func (m *memoryStore) SaveExperiment(_ context.Context, e Experiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[e.ID] = e
	return nil
}

func (m *memoryStore) DeleteExperiment(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	delete(m.items, id)
	return ok, nil
}

type fakeChat struct {
	inflight atomic.Int32
	peak     atomic.Int32
	fail     map[string]error
	block    map[string]bool
}

func (f *fakeChat) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.block[req.Model] {
		<-ctx.Done()
		return provider.ChatResponse{}, ctx.Err()
	}
	if err := f.fail[req.Model]; err != nil {
		return provider.ChatResponse{}, err
	}
	time.Sleep(5 * time.Millisecond)
	return provider.ChatResponse{
		Content: "answer from " + req.Model,
		Usage:   provider.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
	}, nil
}

type recorder struct {
	mu    sync.Mutex
	items []activity.Activity
}

func (r *recorder) Record(_ context.Context, a activity.Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, a)
}

func TestRunKeepsModelOrderAndPerResultErrors(t *testing.T) {
	chat := &fakeChat{fail: map[string]error{"openai/gpt-4o": errors.New("quota exceeded")}}
	rec := &recorder{}
	svc := NewService(Options{Store: newMemoryStore(), Chat: chat, Activity: rec})

	results, err := svc.Run(context.Background(), RunRequest{Prompt: "hi", Models: []string{"opus", "gpt-4o", "haiku"}})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "anthropic/claude-opus-4-6", results[0].Model)
	assert.Equal(t, "answer from anthropic/claude-opus-4-6", results[0].Output)
	assert.InDelta(t, 30.0, results[0].Cost, 1e-9)

	assert.Equal(t, "openai/gpt-4o", results[1].Model)
	assert.Equal(t, "quota exceeded", results[1].Error)
	assert.Zero(t, results[1].Cost)

	assert.Equal(t, "anthropic/claude-haiku-4-5", results[2].Model)
	assert.InDelta(t, 6.0, results[2].Cost, 1e-9)

	require.Len(t, rec.items, 1)
	assert.Equal(t, activity.StatusSuccess, rec.items[0].Status)
	assert.Equal(t, int64(4_000_000), *rec.items[0].TokensUsed)
}

func TestRunBoundsConcurrency(t *testing.T) {
	chat := &fakeChat{}
	svc := NewService(Options{Store: newMemoryStore(), Chat: chat, MaxConcurrent: 2})

	_, err := svc.Run(context.Background(), RunRequest{
		Prompt: "hi",
		Models: []string{"opus", "sonnet", "haiku", "gpt-4o", "gpt-4o-mini", "gemini-pro"},
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, chat.peak.Load(), int32(2))
}

func TestRunTimesOutPerModel(t *testing.T) {
	chat := &fakeChat{block: map[string]bool{"anthropic/claude-opus-4-6": true}}
	svc := NewService(Options{Store: newMemoryStore(), Chat: chat, Timeout: 20 * time.Millisecond})

	results, err := svc.Run(context.Background(), RunRequest{Prompt: "hi", Models: []string{"opus", "haiku"}})
	require.NoError(t, err)
	assert.Contains(t, results[0].Error, "timed out after")
	assert.Empty(t, results[1].Error)
}

func TestRunValidatesInput(t *testing.T) {
	svc := NewService(Options{Store: newMemoryStore(), Chat: &fakeChat{}})

	_, err := svc.Run(context.Background(), RunRequest{Models: []string{"opus"}})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	_, err = svc.Run(context.Background(), RunRequest{Prompt: "hi", Models: []string{" "}})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	_, err = svc.Run(context.Background(), RunRequest{Prompt: "hi", Models: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
}

func TestRunStoresResultsOnExperiment(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(Options{Store: store, Chat: &fakeChat{}})

	exp, err := svc.Create(context.Background(), ExperimentInput{Name: "greeting", Prompt: "hello", Models: []string{"sonnet", "sonnet"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic/claude-sonnet-4-5"}, exp.Models)

	results, err := svc.Run(context.Background(), RunRequest{ExperimentID: exp.ID})
	require.NoError(t, err)
	require.Len(t, results, 1)

	stored, err := svc.Get(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Equal(t, results, stored.Results)
}

func TestCreateAndDelete(t *testing.T) {
	svc := NewService(Options{Store: newMemoryStore()})

	_, err := svc.Create(context.Background(), ExperimentInput{Prompt: "x"})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	exp, err := svc.Create(context.Background(), ExperimentInput{Name: "n", Prompt: "p"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), exp.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), exp.ID), ErrNotFound)

	_, err = svc.Run(context.Background(), RunRequest{ExperimentID: exp.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}
