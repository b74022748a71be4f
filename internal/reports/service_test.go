package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/usage"
)

type memoryStore struct {
	records map[string]Record
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]Record{}}
}

func (m *memoryStore) InsertReport(_ context.Context, rec Record) error {
	if _, ok := m.records[rec.Token]; ok {
		return ErrTokenCollision
	}
	m.records[rec.Token] = rec
	return nil
}

func (m *memoryStore) GetReport(_ context.Context, token string) (Record, error) {
	rec, ok := m.records[token]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

type fakeActivity struct {
	since, until time.Time
	logged       []activity.Activity
}

func (f *fakeActivity) Stats(_ context.Context, since, until time.Time) (activity.Stats, error) {
	f.since, f.until = since, until
	return activity.ComputeStats([]activity.Activity{
		{Type: "file_write", Status: activity.StatusSuccess},
		{Type: "file_write", Status: activity.StatusSuccess},
		{Type: "config_change", Status: activity.StatusError},
	}), nil
}

func (f *fakeActivity) Log(_ context.Context, a activity.Activity) (activity.Activity, error) {
	f.logged = append(f.logged, a)
	return a, nil
}

type fakeUsage struct {
	rows []usage.Snapshot
}

func (f fakeUsage) Snapshots(context.Context, string, string) []usage.Snapshot {
	return f.rows
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(store Store, c *clock) (*Service, *fakeActivity) {
	acts := &fakeActivity{}
	svc := NewService(ServiceOptions{
		Store:    store,
		Activity: acts,
		Usage: fakeUsage{rows: []usage.Snapshot{
			{Date: "2026-03-02", Model: "anthropic/claude-opus-4-6", InputTokens: 100, OutputTokens: 50, Cost: 3},
			{Date: "2026-03-01", Model: "sonnet", InputTokens: 10, OutputTokens: 5, Cost: 1},
		}},
		Now: c.Now,
	})
	return svc, acts
}

func TestBuildPayloadAggregates(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)}
	svc, acts := newTestService(newMemoryStore(), c)

	payload, err := svc.BuildPayload(context.Background(), "2026-03-01", "2026-03-02")
	require.NoError(t, err)

	assert.Equal(t, 3, payload.Activity.Total)
	assert.Equal(t, 2, payload.Activity.ByType["file_write"])
	assert.InDelta(t, 66.666, payload.Activity.SuccessRate, 0.01)
	assert.Equal(t, 4.0, payload.Cost.Total)
	assert.Equal(t, int64(165), payload.Cost.TotalTokens)
	require.Len(t, payload.Cost.ByModel, 2)
	assert.Equal(t, "anthropic/claude-opus-4-6", payload.Cost.ByModel[0].Key)
	assert.InDelta(t, 75.0, payload.Cost.ByModel[0].PercentOfTotal, 1e-9)
	require.Len(t, payload.Cost.Daily, 2)
	assert.Equal(t, "2026-03-01", payload.Cost.Daily[0].Date)
	assert.Equal(t, "2026-03-02", payload.Cost.Daily[1].Date)

	assert.Equal(t, 1, acts.since.Day())
	assert.Equal(t, 2, acts.until.Day())
	assert.Equal(t, 23, acts.until.Hour())
}

func TestBuildPayloadValidatesDates(t *testing.T) {
	svc, _ := newTestService(newMemoryStore(), &clock{now: time.Now()})
	for _, tc := range [][2]string{{"2026-3-1", "2026-03-02"}, {"2026-03-01", ""}, {"2026-03-05", "2026-03-01"}} {
		_, err := svc.BuildPayload(context.Background(), tc[0], tc[1])
		assert.True(t, errors.Is(err, apperr.ErrInvalid), "range %v", tc)
	}
}

func TestGetHonoursExpiry(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(newMemoryStore(), c)
	payload := Payload{StartDate: "2026-03-01", EndDate: "2026-03-02", GeneratedAt: c.now}

	saved, err := svc.Save(context.Background(), "tok", payload, 30)
	require.NoError(t, err)
	assert.Equal(t, c.now.AddDate(0, 0, 30), saved.ExpiresAt)
	assert.NotEmpty(t, saved.ReportID)

	c.now = saved.ExpiresAt.Add(-time.Second)
	got, err := svc.Get(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, payload.StartDate, got.StartDate)
	assert.True(t, payload.GeneratedAt.Equal(got.GeneratedAt))

	c.now = saved.ExpiresAt
	_, err = svc.Get(context.Background(), "tok")
	require.NoError(t, err)

	c.now = saved.ExpiresAt.Add(time.Second)
	_, err = svc.Get(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejectsDuplicateToken(t *testing.T) {
	svc, _ := newTestService(newMemoryStore(), &clock{now: time.Now()})
	_, err := svc.Save(context.Background(), "dup", Payload{}, 0)
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), "dup", Payload{}, 0)
	assert.ErrorIs(t, err, ErrTokenCollision)
}

func TestGenerateStoresAndLogs(t *testing.T) {
	store := newMemoryStore()
	c := &clock{now: time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)}
	svc, acts := newTestService(store, c)

	gen, err := svc.Generate(context.Background(), "2026-03-01", "2026-03-02")
	require.NoError(t, err)
	assert.Len(t, gen.Token, 43)
	assert.Equal(t, 4.0, gen.Summary.Cost.Total)
	assert.Contains(t, store.records, gen.Token)
	require.Len(t, acts.logged, 1)
	assert.Equal(t, activity.TypeReport, acts.logged[0].Type)
}

func TestNewTokenIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := NewToken()
		require.NoError(t, err)
		assert.False(t, seen[tok])
		assert.NotContains(t, tok, "+")
		assert.NotContains(t, tok, "/")
		seen[tok] = true
	}
}

func samplePayload() Payload {
	return Payload{
		StartDate:   "2026-03-01",
		EndDate:     "2026-03-02",
		GeneratedAt: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		Activity:    ActivitySummary{Total: 2, ByType: map[string]int{"file_write": 2}, ByStatus: map[string]int{"success": 2}, SuccessRate: 100},
		Cost: CostSummary{
			Total:       4,
			TotalTokens: 165,
			ByModel:     []usage.GroupTotal{{Key: "opus", Cost: 4, Tokens: 165, PercentOfTotal: 100}},
			Daily:       []DailyCost{{Date: "2026-03-01", Cost: 4, Tokens: 165}},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, samplePayload()))

	r := csv.NewReader(strings.NewReader(buf.String()))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"report", "2026-03-01", "2026-03-02", "2026-03-05T00:00:00Z"}, rows[0])
	assert.Contains(t, rows, []string{"opus", "4.000000", "165", "100.00"})
	assert.Contains(t, rows, []string{"2026-03-01", "4.000000", "165"})
}

func TestXLSXSheets(t *testing.T) {
	data, err := XLSX(samplePayload())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "Models", "Daily"}, f.GetSheetList())

	v, err := f.GetCellValue("Models", "A2")
	require.NoError(t, err)
	assert.Equal(t, "opus", v)
}

func TestHTMLRendersTables(t *testing.T) {
	html, err := HTML(samplePayload())
	require.NoError(t, err)
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>opus</td>")
	assert.Contains(t, html, "<h1>Mission Control report</h1>")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	_, err = ParseFormat("docx")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestExporterWithoutPDF(t *testing.T) {
	_, err := Exporter{}.Export(context.Background(), samplePayload(), FormatPDF)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	out, err := Exporter{}.Export(context.Background(), samplePayload(), FormatCSV)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("report,")))
}
