package core

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Normalize trims free-text fields and fills the default search type.
// It does not reject anything; call Validate afterwards.
func (r SearchRequest) Normalize() SearchRequest {
	r.Query = strings.TrimSpace(r.Query)
	r.SiteRestrict = strings.TrimSpace(r.SiteRestrict)
	r.FileType = strings.TrimSpace(r.FileType)
	r.PartyName = strings.TrimSpace(r.PartyName)
	r.CaseNumber = strings.TrimSpace(r.CaseNumber)
	if r.SearchType == "" {
		r.SearchType = SearchTypeSearch
	}
	return r
}

// Validate checks a normalized request against the pipeline's input bounds.
// maxLen <= 0 uses MaxQueryLength.
func (r SearchRequest) Validate(maxLen int) error {
	if maxLen <= 0 {
		maxLen = MaxQueryLength
	}
	if r.Query == "" {
		return &ValidationError{Field: "query", Message: "query is required"}
	}
	if n := utf8.RuneCountInString(r.Query); n > maxLen {
		return &ValidationError{
			Field:   "query",
			Message: fmt.Sprintf("query is %d characters, maximum is %d", n, maxLen),
		}
	}
	if r.ListCount != 0 && (r.ListCount < MinListCount || r.ListCount > MaxListCount) {
		return &ValidationError{
			Field:   "listCount",
			Message: fmt.Sprintf("listCount must be between %d and %d", MinListCount, MaxListCount),
		}
	}
	switch r.SearchType {
	case SearchTypeSearch, SearchTypeNews, SearchTypeAcademic:
	default:
		return &ValidationError{Field: "searchType", Message: fmt.Sprintf("unknown search type %q", r.SearchType)}
	}
	return nil
}
