// Package output renders research artifacts for the terminal and for files.
package output

import (
	"fmt"
	"strings"

	"github.com/courtcopilot/courtcopilot/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders one artifact. Supported values are SearchReport,
// []core.Bookmark, []core.SearchRequest, core.DocumentAnalysisResult,
// core.CrossReferenceResult, core.NarrativeMapResult and core.JudgeDetail.
type Formatter interface {
	Format(v any) (string, error)
}

// SearchReport pairs a search with its result so renderers can title it.
type SearchReport struct {
	Request core.SearchRequest `json:"params"`
	Result  core.SearchResult  `json:"result"`
	Cached  bool               `json:"cached,omitempty"`
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Render formats v with a formatter for format.
func Render(format Format, v any) (string, error) {
	return NewFormatter(format).Format(v)
}

// Extension returns the file extension conventionally used for format.
func Extension(format Format) string {
	switch format {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}
