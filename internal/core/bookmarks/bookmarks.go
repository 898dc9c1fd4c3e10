// Package bookmarks is the durable, user-curated tier. Entries never expire
// and the first save for a key wins.
package bookmarks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/core/fingerprint"
	"github.com/courtcopilot/courtcopilot/internal/core/store"
)

// StorageKey is the single key holding the bookmark list.
const StorageKey = "courtcopilot-bookmarks"

// Store persists bookmarks as one JSON array under StorageKey.
type Store struct {
	kv     store.KV
	logger *logging.Logger
	now    func() time.Time

	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// New returns a bookmark store over kv. logger may be nil.
func New(kv store.KV, logger *logging.Logger) *Store {
	return &Store{kv: kv, logger: logger, now: time.Now}
}

// List returns every readable bookmark, most recently saved first.
// Unreadable entries are skipped and read failures yield an empty list.
func (s *Store) List(ctx context.Context) []core.Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return []core.Bookmark{}
	}
	list := make([]core.Bookmark, 0, len(entries))
	for _, e := range entries {
		if e.bookmark != nil {
			list = append(list, *e.bookmark)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].SavedAt.After(list[j].SavedAt)
	})
	return list
}

// Save stores bm unless a bookmark with the same key exists. A zero SavedAt
// is stamped with the current time. Read and capacity errors are returned
// and leave the stored list unchanged.
func (s *Store) Save(ctx context.Context, bm core.Bookmark) error {
	if bm.Key == "" {
		return errors.New("bookmark key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.key == bm.Key {
			return nil
		}
	}
	if bm.SavedAt.IsZero() {
		bm.SavedAt = s.now()
	}
	raw, err := json.Marshal(bm)
	if err != nil {
		s.warn("bookmarks encode failed", err)
		return err
	}
	return s.persist(ctx, append(entries, entry{key: bm.Key, raw: raw}))
}

// SaveSearch bookmarks a finished search under its fingerprint.
func (s *Store) SaveSearch(ctx context.Context, req core.SearchRequest, result core.SearchResult) error {
	return s.Save(ctx, core.Bookmark{
		Key:    fingerprint.Search(req),
		Kind:   core.BookmarkSearch,
		Search: &core.SearchPayload{Request: req, Result: result.Settled()},
	})
}

// SaveDocument bookmarks a document analysis under its file name.
func (s *Store) SaveDocument(ctx context.Context, doc core.DocumentAnalysisResult) error {
	return s.Save(ctx, core.Bookmark{
		Key:      fingerprint.Document(doc.FileName),
		Kind:     core.BookmarkDocument,
		Document: &doc,
	})
}

// SaveCrossReference bookmarks a comparison under its ordered file pair.
func (s *Store) SaveCrossReference(ctx context.Context, xref core.CrossReferenceResult) error {
	return s.Save(ctx, core.Bookmark{
		Key:            fingerprint.CrossReference(xref.FileAName, xref.FileBName),
		Kind:           core.BookmarkCrossReference,
		CrossReference: &xref,
	})
}

// Remove deletes the bookmark with key. Missing keys are ignored.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := make([]entry, 0, len(entries))
	for _, e := range entries {
		if e.key != key {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return s.persist(ctx, kept)
}

// Clear removes every bookmark.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(ctx, StorageKey); err != nil {
		s.warn("bookmarks clear failed", err)
		return err
	}
	if s.logger != nil {
		s.logger.Info("bookmarks cleared")
	}
	return nil
}

// ExistsByKey reports whether a bookmark with key is stored.
func (s *Store) ExistsByKey(ctx context.Context, key string) bool {
	for _, bm := range s.List(ctx) {
		if bm.Key == key {
			return true
		}
	}
	return false
}

// IsBookmarked derives the key for kind from identity and checks it.
// Search identities are a single SearchRequest; documents take one file
// name; cross-references take file A then file B.
func (s *Store) IsBookmarked(ctx context.Context, kind core.BookmarkKind, identity ...any) (bool, error) {
	key, err := Key(kind, identity...)
	if err != nil {
		return false, err
	}
	return s.ExistsByKey(ctx, key), nil
}

// Key derives the bookmark key for kind from identity.
func Key(kind core.BookmarkKind, identity ...any) (string, error) {
	switch kind {
	case core.BookmarkSearch:
		if len(identity) == 1 {
			if req, ok := identity[0].(core.SearchRequest); ok {
				return fingerprint.Search(req), nil
			}
		}
	case core.BookmarkDocument:
		if len(identity) == 1 {
			if name, ok := identity[0].(string); ok {
				return fingerprint.Document(name), nil
			}
		}
	case core.BookmarkCrossReference:
		if len(identity) == 2 {
			a, okA := identity[0].(string)
			b, okB := identity[1].(string)
			if okA && okB {
				return fingerprint.CrossReference(a, b), nil
			}
		}
	default:
		return "", fmt.Errorf("unknown bookmark kind %q", kind)
	}
	return "", fmt.Errorf("invalid identity for %s bookmark", kind)
}

// entry is one stored element. raw is written back verbatim so entries this
// build cannot decode survive rewrites of the list.
type entry struct {
	key      string
	raw      json.RawMessage
	bookmark *core.Bookmark
}

func (s *Store) load(ctx context.Context) ([]entry, error) {
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		s.warn("bookmarks read failed", err)
		return nil, fmt.Errorf("read bookmarks: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.warn("bookmarks unreadable", err)
		return nil, fmt.Errorf("decode bookmarks: %w", err)
	}

	entries := make([]entry, 0, len(items))
	for _, item := range items {
		e := entry{raw: item}
		var bm core.Bookmark
		if err := json.Unmarshal(item, &bm); err == nil {
			e.key = bm.Key
			e.bookmark = &bm
		} else {
			var head struct {
				Key string `json:"key"`
			}
			_ = json.Unmarshal(item, &head)
			e.key = head.Key
			s.warn("bookmark entry skipped", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) persist(ctx context.Context, entries []entry) error {
	items := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		items = append(items, e.raw)
	}
	raw, err := json.Marshal(items)
	if err != nil {
		s.warn("bookmarks encode failed", err)
		return err
	}
	if err := s.kv.Set(ctx, StorageKey, string(raw)); err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			s.warn("storage is full, consider clearing the cache", err)
		} else {
			s.warn("bookmarks write failed", err)
		}
		return err
	}
	return nil
}

func (s *Store) warn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, zap.Error(err))
	}
}
