package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// BookmarkKind tags the payload a bookmark carries.
type BookmarkKind string

const (
	BookmarkSearch         BookmarkKind = "search"
	BookmarkDocument       BookmarkKind = "document_analysis"
	BookmarkCrossReference BookmarkKind = "cross_reference"
)

// SearchPayload is the request and final result of a saved search.
type SearchPayload struct {
	Request SearchRequest `json:"params"`
	Result  SearchResult  `json:"result"`
}

// Bookmark is a user-saved artifact. Exactly one payload pointer is set and
// it matches Kind.
type Bookmark struct {
	Key     string
	Kind    BookmarkKind
	SavedAt time.Time

	Search         *SearchPayload
	Document       *DocumentAnalysisResult
	CrossReference *CrossReferenceResult
}

type bookmarkWire struct {
	Key     string          `json:"key"`
	Type    BookmarkKind    `json:"type,omitempty"`
	SavedAt int64           `json:"savedAt"`
	Params  *SearchRequest  `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// Title returns a short human label for listings.
func (b Bookmark) Title() string {
	switch b.Kind {
	case BookmarkSearch:
		if b.Search != nil {
			return b.Search.Request.Query
		}
	case BookmarkDocument:
		if b.Document != nil {
			return b.Document.FileName
		}
	case BookmarkCrossReference:
		if b.CrossReference != nil {
			return b.CrossReference.FileAName + " vs " + b.CrossReference.FileBName
		}
	}
	return b.Key
}

// MarshalJSON writes the persisted {key, type, savedAt, params, result} shape.
func (b Bookmark) MarshalJSON() ([]byte, error) {
	wire := bookmarkWire{
		Key:     b.Key,
		Type:    b.Kind,
		SavedAt: b.SavedAt.UnixMilli(),
	}

	var result any
	switch b.Kind {
	case BookmarkSearch:
		if b.Search == nil {
			return nil, fmt.Errorf("bookmark %q: missing search payload", b.Key)
		}
		req := b.Search.Request
		wire.Params = &req
		result = b.Search.Result
	case BookmarkDocument:
		if b.Document == nil {
			return nil, fmt.Errorf("bookmark %q: missing document payload", b.Key)
		}
		result = b.Document
	case BookmarkCrossReference:
		if b.CrossReference == nil {
			return nil, fmt.Errorf("bookmark %q: missing cross-reference payload", b.Key)
		}
		result = b.CrossReference
	default:
		return nil, fmt.Errorf("bookmark %q: unknown kind %q", b.Key, b.Kind)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	wire.Result = raw
	return json.Marshal(wire)
}

// UnmarshalJSON reads the persisted shape. Entries written before the type
// tag existed are search bookmarks.
func (b *Bookmark) UnmarshalJSON(data []byte) error {
	var wire bookmarkWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	out := Bookmark{
		Key:     wire.Key,
		Kind:    wire.Type,
		SavedAt: time.UnixMilli(wire.SavedAt),
	}
	if out.Kind == "" {
		out.Kind = BookmarkSearch
	}

	switch out.Kind {
	case BookmarkSearch:
		payload := &SearchPayload{}
		if wire.Params != nil {
			payload.Request = *wire.Params
		}
		if len(wire.Result) > 0 {
			if err := json.Unmarshal(wire.Result, &payload.Result); err != nil {
				return fmt.Errorf("bookmark %q: %w", wire.Key, err)
			}
		}
		out.Search = payload
	case BookmarkDocument:
		var doc DocumentAnalysisResult
		if len(wire.Result) > 0 {
			if err := json.Unmarshal(wire.Result, &doc); err != nil {
				return fmt.Errorf("bookmark %q: %w", wire.Key, err)
			}
		}
		out.Document = &doc
	case BookmarkCrossReference:
		var xref CrossReferenceResult
		if len(wire.Result) > 0 {
			if err := json.Unmarshal(wire.Result, &xref); err != nil {
				return fmt.Errorf("bookmark %q: %w", wire.Key, err)
			}
		}
		out.CrossReference = &xref
	default:
		return fmt.Errorf("bookmark %q: unknown kind %q", wire.Key, wire.Type)
	}

	*b = out
	return nil
}
