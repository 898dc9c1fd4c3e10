package content

import "strings"

// ContentType represents supported content types using IANA media types.
type ContentType string

const (
	ContentTypeText ContentType = "text/plain"
	ContentTypeJSON ContentType = "application/json"
	ContentTypePDF  ContentType = "application/pdf"
)

// ContentBlock represents a single piece of content. Text blocks carry Text;
// every other type carries inline Data.
type ContentBlock struct {
	Type    ContentType `json:"type"`
	Text    string      `json:"text,omitempty"`
	Data    []byte      `json:"data,omitempty"`
	DataURL string      `json:"data_url,omitempty"`
}

// IsText reports whether the block is textual.
func (b ContentBlock) IsText() bool {
	return b.Type == ContentTypeText || b.Type == ContentTypeJSON || b.Type == ""
}

// Message represents a chat message.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Text returns a plain text block.
func Text(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// Binary returns an inline binary block. An empty mime type is treated as PDF.
func Binary(mimeType string, data []byte) ContentBlock {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = string(ContentTypePDF)
	}
	return ContentBlock{Type: ContentType(mimeType), Data: data}
}
