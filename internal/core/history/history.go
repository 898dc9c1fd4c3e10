// Package history keeps a short, deduplicated, most-recent-first log of
// issued queries.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/core/store"
)

const (
	// StorageKey is the single key holding the history list.
	StorageKey = "courtcopilot-history"

	// DefaultMaxItems bounds the log when no limit is configured.
	DefaultMaxItems = 10
)

// Log is the query history. Every failure is logged and swallowed.
type Log struct {
	kv       store.KV
	maxItems int
	logger   *logging.Logger

	mu sync.Mutex
}

// New returns a history log over kv. maxItems <= 0 uses DefaultMaxItems.
func New(kv store.KV, maxItems int, logger *logging.Logger) *Log {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Log{kv: kv, maxItems: maxItems, logger: logger}
}

// List returns the logged requests, most recent first.
func (l *Log) List(ctx context.Context) []core.SearchRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// Add puts req at the head of the log. An equivalent earlier entry is moved
// rather than duplicated; blank queries are ignored.
func (l *Log) Add(ctx context.Context, req core.SearchRequest) {
	if strings.TrimSpace(req.Query) == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := dedupKey(req)
	entries := []core.SearchRequest{req}
	for _, existing := range l.load(ctx) {
		if dedupKey(existing) != key {
			entries = append(entries, existing)
		}
	}
	if len(entries) > l.maxItems {
		entries = entries[:l.maxItems]
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		l.warn("history encode failed", err)
		return
	}
	if err := l.kv.Set(ctx, StorageKey, string(raw)); err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			l.warn("storage is full, consider clearing the cache", err)
			return
		}
		l.warn("history write failed", err)
	}
}

// Clear empties the log.
func (l *Log) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.kv.Remove(ctx, StorageKey); err != nil {
		l.warn("history clear failed", err)
		return
	}
	if l.logger != nil {
		l.logger.Info("history cleared")
	}
}

func (l *Log) load(ctx context.Context) []core.SearchRequest {
	raw, ok, err := l.kv.Get(ctx, StorageKey)
	if err != nil {
		l.warn("history read failed", err)
		return []core.SearchRequest{}
	}
	if !ok || raw == "" {
		return []core.SearchRequest{}
	}

	var entries []core.SearchRequest
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		l.warn("history unreadable", err)
		return []core.SearchRequest{}
	}
	return entries
}

// dedupKey identifies a query ignoring case and surrounding whitespace;
// every other field must match exactly.
func dedupKey(req core.SearchRequest) string {
	req.Query = strings.ToLower(strings.TrimSpace(req.Query))
	raw, err := json.Marshal(req)
	if err != nil {
		return req.Query
	}
	return string(raw)
}

func (l *Log) warn(msg string, err error) {
	if l.logger != nil {
		l.logger.Warn(msg, zap.Error(err))
	}
}
