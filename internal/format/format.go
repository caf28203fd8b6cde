// Package format renders query results as human-readable tables.
package format

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/leapstack-labs/askql/internal/executor"
)

// Style selects the table rendering.
type Style string

// Supported styles.
const (
	StyleTable    Style = "table"
	StyleMarkdown Style = "markdown"
	StyleCSV      Style = "csv"
)

// DefaultMaxRows is the preview size when none is configured.
const DefaultMaxRows = 5

// NoResults is rendered for an empty result set.
const NoResults = "No results found."

// Config holds formatter configuration.
type Config struct {
	// MaxRows limits the preview; zero uses DefaultMaxRows, negative shows all rows.
	MaxRows int
	Style   Style
}

// Formatter renders result sets.
type Formatter struct {
	maxRows int
	style   Style
}

// New creates a formatter.
func New(cfg Config) *Formatter {
	maxRows := cfg.MaxRows
	if maxRows == 0 {
		maxRows = DefaultMaxRows
	}
	style := cfg.Style
	if style == "" {
		style = StyleTable
	}
	return &Formatter{maxRows: maxRows, style: style}
}

// Format renders the first rows of rs followed by a row-count footer.
func (f *Formatter) Format(rs *executor.ResultSet) string {
	if rs == nil || len(rs.Rows) == 0 {
		return NoResults
	}

	total := len(rs.Rows)
	shown := total
	if f.maxRows > 0 && shown > f.maxRows {
		shown = f.maxRows
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(rs.Columns))
	for i, col := range rs.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, values := range rs.Rows[:shown] {
		row := make(table.Row, len(values))
		for i, v := range values {
			row[i] = FormatValue(v)
		}
		t.AppendRow(row)
	}

	var out string
	switch f.style {
	case StyleMarkdown:
		out = t.RenderMarkdown()
	case StyleCSV:
		out = t.RenderCSV()
	default:
		out = t.Render()
	}

	if shown < total {
		return out + fmt.Sprintf("\n\n(Showing first %d of %d rows)", shown, total)
	}
	return out + fmt.Sprintf("\n\n(%d rows returned)", total)
}

// FormatValue renders a single scanned value.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
