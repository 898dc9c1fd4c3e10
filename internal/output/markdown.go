package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// MarkdownFormatter renders artifacts as a Markdown document.
type MarkdownFormatter struct{}

// Format renders v as Markdown.
func (f *MarkdownFormatter) Format(v any) (string, error) {
	r, err := buildReport(v)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n", r.Title))
	for _, b := range r.Blocks {
		sb.WriteString(fmt.Sprintf("\n### %s\n\n", b.Title))
		switch {
		case len(b.Header) > 0:
			t := table.NewWriter()
			t.AppendHeader(b.Header)
			t.AppendRows(b.Rows)
			sb.WriteString(t.RenderMarkdown())
			sb.WriteString("\n")
		case len(b.Lines) > 0:
			for _, line := range b.Lines {
				sb.WriteString(fmt.Sprintf("- %s\n", line))
			}
		default:
			sb.WriteString(strings.TrimSpace(b.Text))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
