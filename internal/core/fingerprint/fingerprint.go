// Package fingerprint derives the deterministic identity keys used by the
// result cache and the bookmark store.
package fingerprint

import (
	"encoding/json"
	"strings"

	"github.com/courtcopilot/courtcopilot/internal/core"
)

const (
	// CachePrefix namespaces search fingerprints in the key-value store.
	CachePrefix    = "courtcopilot-cache:"
	documentPrefix = "doc_"
	xrefPrefix     = "xref_"
)

// Search returns the cache and bookmark key for a request. Unset and empty
// fields are omitted and the rest are serialized with sorted field names, so
// field order and "unset vs empty" never change the key.
func Search(req core.SearchRequest) string {
	return CachePrefix + canonical(req)
}

// Document returns the bookmark key for a single-document analysis. Two
// files with the same name share a key.
func Document(fileName string) string {
	return documentPrefix + fileName
}

// CrossReference returns the bookmark key for a comparison of A against B.
// The order matters: swapping the files yields a different key.
func CrossReference(fileAName, fileBName string) string {
	return xrefPrefix + fileAName + "_" + fileBName
}

// IsSearch reports whether key is a search fingerprint.
func IsSearch(key string) bool {
	return strings.HasPrefix(key, CachePrefix)
}

func canonical(req core.SearchRequest) string {
	raw, err := json.Marshal(req)
	if err != nil {
		return "{}"
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "{}"
	}
	for name, value := range fields {
		if isEmpty(value) {
			delete(fields, name)
		}
	}
	// encoding/json writes map keys in sorted order.
	out, err := json.Marshal(fields)
	if err != nil {
		return "{}"
	}
	return string(out)
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case float64:
		return val == 0
	}
	return false
}
