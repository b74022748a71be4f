package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/grixate/missioncontrol/internal/apperr"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat defaults to PDF.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", apperr.Invalid("unsupported export format %q", raw)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/pdf"
	}
}

func (f Format) Filename(p Payload) string {
	return fmt.Sprintf("mission-control-report-%s-to-%s.%s", p.StartDate, p.EndDate, f)
}

func money(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Markdown renders the payload as the document printed to PDF.
func Markdown(p Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Mission Control report\n\n")
	fmt.Fprintf(&b, "%s to %s, generated %s\n\n", p.StartDate, p.EndDate, p.GeneratedAt.UTC().Format(time.RFC1123))

	b.WriteString("## Activity\n\n")
	fmt.Fprintf(&b, "- Total: %d\n- Success rate: %.1f%%\n\n", p.Activity.Total, p.Activity.SuccessRate)
	if len(p.Activity.ByType) > 0 {
		b.WriteString("| Type | Count |\n|---|---:|\n")
		for _, key := range sortedKeys(p.Activity.ByType) {
			fmt.Fprintf(&b, "| %s | %d |\n", key, p.Activity.ByType[key])
		}
		b.WriteString("\n")
	}

	b.WriteString("## Cost\n\n")
	fmt.Fprintf(&b, "- Total: %s\n- Tokens: %d\n\n", money(p.Cost.Total), p.Cost.TotalTokens)
	if len(p.Cost.ByModel) > 0 {
		b.WriteString("| Model | Cost | Tokens | Share |\n|---|---:|---:|---:|\n")
		for _, m := range p.Cost.ByModel {
			fmt.Fprintf(&b, "| %s | %s | %d | %.1f%% |\n", m.Key, money(m.Cost), m.Tokens, m.PercentOfTotal)
		}
		b.WriteString("\n")
	}
	if len(p.Cost.Daily) > 0 {
		b.WriteString("| Date | Cost | Tokens |\n|---|---:|---:|\n")
		for _, d := range p.Cost.Daily {
			fmt.Fprintf(&b, "| %s | %s | %d |\n", d.Date, money(d.Cost), d.Tokens)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// WriteCSV writes one section per table, separated by blank rows.
func WriteCSV(w io.Writer, p Payload) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"report", p.StartDate, p.EndDate, p.GeneratedAt.UTC().Format(time.RFC3339)},
		{},
		{"activity_type", "count"},
	}
	for _, key := range sortedKeys(p.Activity.ByType) {
		rows = append(rows, []string{key, strconv.Itoa(p.Activity.ByType[key])})
	}
	rows = append(rows, []string{}, []string{"activity_status", "count"})
	for _, key := range sortedKeys(p.Activity.ByStatus) {
		rows = append(rows, []string{key, strconv.Itoa(p.Activity.ByStatus[key])})
	}
	rows = append(rows, []string{}, []string{"model", "cost", "tokens", "percent_of_total"})
	for _, m := range p.Cost.ByModel {
		rows = append(rows, []string{
			m.Key,
			strconv.FormatFloat(m.Cost, 'f', 6, 64),
			strconv.FormatInt(m.Tokens, 10),
			strconv.FormatFloat(m.PercentOfTotal, 'f', 2, 64),
		})
	}
	rows = append(rows, []string{}, []string{"date", "cost", "tokens"})
	for _, d := range p.Cost.Daily {
		rows = append(rows, []string{d.Date, strconv.FormatFloat(d.Cost, 'f', 6, 64), strconv.FormatInt(d.Tokens, 10)})
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// XLSX builds a workbook with Summary, Models and Daily sheets.
func XLSX(p Payload) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return nil, err
	}
	summary := [][]any{
		{"Start date", p.StartDate},
		{"End date", p.EndDate},
		{"Generated at", p.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Activities", p.Activity.Total},
		{"Success rate (%)", p.Activity.SuccessRate},
		{"Total cost (USD)", p.Cost.Total},
		{"Total tokens", p.Cost.TotalTokens},
	}
	if err := writeRows(f, "Summary", summary); err != nil {
		return nil, err
	}

	models := [][]any{{"Model", "Cost (USD)", "Tokens", "Input tokens", "Output tokens", "Share (%)"}}
	for _, m := range p.Cost.ByModel {
		models = append(models, []any{m.Key, m.Cost, m.Tokens, m.InputTokens, m.OutputTokens, m.PercentOfTotal})
	}
	if _, err := f.NewSheet("Models"); err != nil {
		return nil, err
	}
	if err := writeRows(f, "Models", models); err != nil {
		return nil, err
	}

	daily := [][]any{{"Date", "Cost (USD)", "Tokens"}}
	for _, d := range p.Cost.Daily {
		daily = append(daily, []any{d.Date, d.Cost, d.Tokens})
	}
	if _, err := f.NewSheet("Daily"); err != nil {
		return nil, err
	}
	if err := writeRows(f, "Daily", daily); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// HTML converts the report Markdown to a standalone styled page.
func HTML(p Payload) (string, error) {
	var body bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(Markdown(p)), &body); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Mission Control report %s to %s</title>
<style>
body { font-family: -apple-system, 'Segoe UI', Arial, sans-serif; line-height: 1.5; max-width: 780px; margin: 0 auto; padding: 32px 20px; color: #1f2933; }
h1, h2 { color: #102a43; }
table { border-collapse: collapse; width: 100%%; margin: 12px 0 24px; }
th, td { border: 1px solid #d9e2ec; padding: 6px 10px; text-align: left; }
th { background: #f0f4f8; }
</style>
</head>
<body>
%s
</body>
</html>`, p.StartDate, p.EndDate, body.String()), nil
}

// PDFRenderer prints report HTML through headless Chrome.
type PDFRenderer struct {
	// ChromePath is optional; chromedp searches the usual locations when empty.
	ChromePath string
	Timeout    time.Duration
}

func (r PDFRenderer) Render(ctx context.Context, p Payload) ([]byte, error) {
	html, err := HTML(p)
	if err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if r.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.ChromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}

// Exporter renders a stored report in the requested format.
type Exporter struct {
	PDF interface {
		Render(ctx context.Context, p Payload) ([]byte, error)
	}
}

func (e Exporter) Export(ctx context.Context, p Payload, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		var buf bytes.Buffer
		if err := WriteCSV(&buf, p); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatXLSX:
		return XLSX(p)
	default:
		if e.PDF == nil {
			return nil, apperr.Invalid("pdf export is not configured")
		}
		return e.PDF.Render(ctx, p)
	}
}
