// Package report renders scores as the HTML table posted on pull requests.
package report

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/okian/endpointeval/internal/domain/model"
	"github.com/okian/endpointeval/internal/domain/scoring"
)

// Status glyphs by label.
const (
	GlyphPass    = ":white_check_mark:"
	GlyphWarning = ":warning:"
	GlyphFail    = ":x:"
)

// Row is one rendered table line.
type Row struct {
	URL     string
	Score   int
	Label   string
	Reasons []string

	// HasPrevious is set when the URL was scored by an earlier run.
	HasPrevious bool
	Delta       int
}

// Glyph returns the status glyph for the row label.
func (r Row) Glyph() string {
	switch r.Label {
	case scoring.LabelFail:
		return GlyphFail
	case scoring.LabelWarning:
		return GlyphWarning
	default:
		return GlyphPass
	}
}

// ScoreText is the score cell, with the change since the previous run.
func (r Row) ScoreText() string {
	if !r.HasPrevious || r.Delta == 0 {
		return fmt.Sprintf("%d%%", r.Score)
	}
	return fmt.Sprintf("%d%% (%+d)", r.Score, r.Delta)
}

// Rows labels scores and attaches the delta against previous. previous may
// be nil. Order follows scores.
func Rows(scores []model.ScoreReport, previous map[string]int, warn, fail int) []Row {
	rows := make([]Row, 0, len(scores))
	for _, s := range scores {
		row := Row{
			URL:     s.URL,
			Score:   s.Score,
			Label:   scoring.Label(s.Score, warn, fail),
			Reasons: s.Reasons,
		}
		if prev, ok := previous[s.URL]; ok {
			row.HasPrevious = true
			row.Delta = s.Score - prev
		}
		rows = append(rows, row)
	}
	return rows
}

// The table is kept on one line so it survives single-line step outputs.
var tableTemplate = template.Must(template.New("table").Parse(strings.Join([]string{ //nolint:gochecknoglobals // parsed once
	`<table><tr><th>Status</th><th>URL</th><th>Score</th><th>Score Reduction Reasons</th></tr>`,
	`{{range .}}<tr><td>{{.Glyph}}</td><td>{{.URL}}</td><td>{{.ScoreText}}</td>`,
	`<td>{{range $i, $r := .Reasons}}{{if $i}}<br>{{end}}{{$r}}{{end}}</td></tr>{{end}}`,
	`</table>`,
}, "")))

// RenderHTML renders rows as an HTML table. Cell text is escaped.
func RenderHTML(rows []Row) (string, error) {
	var b strings.Builder
	if err := tableTemplate.Execute(&b, rows); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	return b.String(), nil
}
