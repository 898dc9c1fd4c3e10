package ailink

import (
	"github.com/courtcopilot/courtcopilot/internal/ailink/content"
	"github.com/courtcopilot/courtcopilot/internal/ailink/driver"
)

// GenerateRequest asks for one rendered prompt to be run.
type GenerateRequest struct {
	PromptSlug  string
	Variables   map[string]string
	Attachments []content.ContentBlock
	Model       string
	TimeoutSec  int
}

// GenerateResponse is the complete text of a non-streaming call.
type GenerateResponse struct {
	Text         string
	Citations    []driver.Citation
	FinishReason string
	Model        string
	Usage        *driver.Usage

	// SchemaError is set when the prompt declares a response schema and the
	// JSON found in Text does not satisfy it. Text is returned regardless.
	SchemaError error
}

// Chunk is one increment of a streamed call. Concatenating every Text
// reconstructs the full answer; Citations may repeat across chunks.
type Chunk struct {
	Text      string
	Citations []driver.Citation
}

// Error captures a gateway failure in a form safe to show to users.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}
