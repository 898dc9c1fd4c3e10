package driver

import (
	"context"
	"iter"
	"strings"

	"github.com/courtcopilot/courtcopilot/internal/ailink/content"
)

// Driver defines the interface for hosted model providers.
type Driver interface {
	// Complete sends a request and returns the whole response.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Stream sends a request and yields incremental responses. Each yielded
	// Response carries only the newly generated text; concatenating them
	// rebuilds the full answer. Citations may repeat across chunks.
	Stream(ctx context.Context, req *Request) iter.Seq2[*Response, error]
	// Name returns the driver identifier (e.g., "gemini").
	Name() string
	// Capabilities returns what this driver supports.
	Capabilities() Capabilities
}

// Capabilities describes driver features.
type Capabilities struct {
	SupportsTools      bool
	SupportsDocuments  bool
	SupportsStreaming  bool
	SupportsThinking   bool
	SupportsJSONSchema bool
	SupportedMIMETypes []string
}

// Tool types understood by drivers.
const (
	ToolGoogleSearch = "google_search"
)

// Tool represents a server-side tool.
type Tool struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// ResponseFormat specifies the expected response format.
type ResponseFormat struct {
	Type string `json:"type"` // "text", "json_object"

	// Schema is an inline JSON Schema document constraining the output.
	Schema map[string]any `json:"schema,omitempty"`
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	ThinkingTokens   int `json:"thinking_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens"`
}

// Citation is a grounding source the provider attached to its answer.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model             string
	SystemInstruction string
	Messages          []content.Message
	Tools             []Tool
	ResponseFormat    *ResponseFormat
	Temperature       *float64
	MaxTokens         *int
	ThinkingBudget    *int32
	PromptSlug        string
	Metadata          map[string]string
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content      []content.ContentBlock
	Citations    []Citation
	FinishReason string
	Usage        *Usage
}

// Text joins the textual content blocks.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var out strings.Builder
	for _, block := range r.Content {
		if block.IsText() {
			out.WriteString(block.Text)
		}
	}
	return out.String()
}
