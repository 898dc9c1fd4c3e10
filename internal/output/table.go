package output

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// maxColumnWidth wraps long cells so tables fit a terminal.
const maxColumnWidth = 60

// textWidth is the wrap width for paragraphs.
const textWidth = 100

// TableFormatter renders artifacts as ASCII tables and indented text.
type TableFormatter struct{}

// Format renders v for the terminal.
func (f *TableFormatter) Format(v any) (string, error) {
	r, err := buildReport(v)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(r.Title)
	sb.WriteString("\n")
	for _, b := range r.Blocks {
		sb.WriteString("\n")
		sb.WriteString(b.Title)
		sb.WriteString(":\n")
		switch {
		case len(b.Header) > 0:
			sb.WriteString(gridWriter(b).Render())
			sb.WriteString("\n")
		case len(b.Lines) > 0:
			for _, line := range b.Lines {
				sb.WriteString("  - ")
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		default:
			for _, line := range strings.Split(text.WrapSoft(strings.TrimSpace(b.Text), textWidth), "\n") {
				sb.WriteString("  ")
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func gridWriter(b block) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(b.Header)
	configs := make([]table.ColumnConfig, 0, len(b.Header))
	for i := range b.Header {
		configs = append(configs, table.ColumnConfig{Number: i + 1, WidthMax: maxColumnWidth})
	}
	t.SetColumnConfigs(configs)
	t.AppendRows(b.Rows)
	return t
}
