package engine

import (
	"context"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/core/bookmarks"
	"github.com/courtcopilot/courtcopilot/internal/core/cache"
	"github.com/courtcopilot/courtcopilot/internal/core/extract"
	"github.com/courtcopilot/courtcopilot/internal/core/history"
	"github.com/courtcopilot/courtcopilot/internal/core/store"
)

// Options assembles a Service. Gateway and KV are required.
type Options struct {
	Gateway extract.Gateway
	KV      store.KV

	CacheTTL         time.Duration
	HistoryMaxItems  int
	MaxQueryLength   int
	CoalesceInflight bool

	Logger *logging.Logger
	// Metrics, when set, observes searches and extractions.
	Metrics interface {
		Recorder
		extract.Recorder
	}
	Clock func() time.Time
}

// Service is the public surface of the core: searches, saved work, and
// the document features. One Service serves one store.
type Service struct {
	pipeline  *Pipeline
	extractor *extract.Extractor
	cache     *cache.Cache
	bookmarks *bookmarks.Store
	history   *history.Log
}

// NewService wires the stores, extractor and pipeline from opts.
func NewService(opts Options) *Service {
	exOpts := []extract.Option{extract.WithLogger(opts.Logger)}
	if opts.Metrics != nil {
		exOpts = append(exOpts, extract.WithRecorder(opts.Metrics))
	}
	ex := extract.New(opts.Gateway, exOpts...)

	cacheOpts := []cache.Option{cache.WithTTL(opts.CacheTTL), cache.WithLogger(opts.Logger)}
	if opts.Clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(opts.Clock))
	}
	resultCache := cache.New(opts.KV, cacheOpts...)
	log := history.New(opts.KV, opts.HistoryMaxItems, opts.Logger)

	pipeOpts := []PipelineOption{
		WithCache(resultCache),
		WithHistory(log),
		WithLogger(opts.Logger),
		WithCoalescing(opts.CoalesceInflight),
	}
	if opts.MaxQueryLength > 0 {
		pipeOpts = append(pipeOpts, WithMaxQueryLength(opts.MaxQueryLength))
	}
	if opts.Metrics != nil {
		pipeOpts = append(pipeOpts, WithRecorder(opts.Metrics))
	}

	return &Service{
		pipeline:  NewPipeline(ex, pipeOpts...),
		extractor: ex,
		cache:     resultCache,
		bookmarks: bookmarks.New(opts.KV, opts.Logger),
		history:   log,
	}
}

// ExecuteSearch runs the search pipeline. See Pipeline.Execute.
func (s *Service) ExecuteSearch(ctx context.Context, req core.SearchRequest, onUpdate func(Update)) (core.SearchResult, error) {
	return s.pipeline.Execute(ctx, req, onUpdate)
}

// CachedResult returns a fresh cached result for req, if any.
func (s *Service) CachedResult(ctx context.Context, req core.SearchRequest) (*core.SearchResult, bool) {
	return s.pipeline.Cached(ctx, req)
}

// ClearCache drops every cached result and reports how many were removed.
func (s *Service) ClearCache(ctx context.Context) int {
	return s.cache.Clear(ctx)
}

// SaveBookmark stores bm unless its key is already saved.
func (s *Service) SaveBookmark(ctx context.Context, bm core.Bookmark) error {
	return s.bookmarks.Save(ctx, bm)
}

// SaveSearchBookmark bookmarks a search and its result.
func (s *Service) SaveSearchBookmark(ctx context.Context, req core.SearchRequest, result core.SearchResult) error {
	return s.bookmarks.SaveSearch(ctx, req.Normalize(), result)
}

// SaveDocumentBookmark bookmarks a document analysis.
func (s *Service) SaveDocumentBookmark(ctx context.Context, doc core.DocumentAnalysisResult) error {
	return s.bookmarks.SaveDocument(ctx, doc)
}

// SaveCrossReferenceBookmark bookmarks a cross-reference.
func (s *Service) SaveCrossReferenceBookmark(ctx context.Context, xref core.CrossReferenceResult) error {
	return s.bookmarks.SaveCrossReference(ctx, xref)
}

// RemoveBookmark deletes the bookmark with key.
func (s *Service) RemoveBookmark(ctx context.Context, key string) error {
	return s.bookmarks.Remove(ctx, key)
}

// ListBookmarks returns bookmarks, most recently saved first.
func (s *Service) ListBookmarks(ctx context.Context) []core.Bookmark {
	return s.bookmarks.List(ctx)
}

// ClearBookmarks deletes every bookmark.
func (s *Service) ClearBookmarks(ctx context.Context) error {
	return s.bookmarks.Clear(ctx)
}

// IsBookmarked reports whether the artifact identified by kind and
// identity is saved. Identity is a SearchRequest for searches, a file name
// for documents and two file names for cross-references.
func (s *Service) IsBookmarked(ctx context.Context, kind core.BookmarkKind, identity ...any) (bool, error) {
	if kind == core.BookmarkSearch && len(identity) == 1 {
		if req, ok := identity[0].(core.SearchRequest); ok {
			identity = []any{req.Normalize()}
		}
	}
	return s.bookmarks.IsBookmarked(ctx, kind, identity...)
}

// History returns recent searches, newest first.
func (s *Service) History(ctx context.Context) []core.SearchRequest {
	return s.history.List(ctx)
}

// ClearHistory forgets every recent search.
func (s *Service) ClearHistory(ctx context.Context) {
	s.history.Clear(ctx)
}

// AnalyzeDocument audits doc. Model failures yield the default analysis.
func (s *Service) AnalyzeDocument(ctx context.Context, doc core.Document) (core.DocumentAnalysisResult, error) {
	if err := validateDocument("document", doc); err != nil {
		return core.DocumentAnalysisResult{}, err
	}
	return s.extractor.AnalyzeDocument(ctx, doc), nil
}

// CrossReference compares a against b. The order is part of the result's
// identity.
func (s *Service) CrossReference(ctx context.Context, a, b core.Document) (core.CrossReferenceResult, error) {
	if err := validateDocument("documentA", a); err != nil {
		return core.CrossReferenceResult{}, err
	}
	if err := validateDocument("documentB", b); err != nil {
		return core.CrossReferenceResult{}, err
	}
	return s.extractor.CrossReference(ctx, a, b), nil
}

// GenerateNarrativeMap maps the entities and tracks of doc.
func (s *Service) GenerateNarrativeMap(ctx context.Context, doc core.Document) (core.NarrativeMapResult, error) {
	if err := validateDocument("document", doc); err != nil {
		return core.NarrativeMapResult{}, err
	}
	return s.extractor.NarrativeMap(ctx, doc), nil
}

// JudgeDetails returns a dossier for the named judge.
func (s *Service) JudgeDetails(ctx context.Context, name string) (core.JudgeDetail, error) {
	if strings.TrimSpace(name) == "" {
		return core.JudgeDetail{}, &core.ValidationError{Field: "name", Message: "judge name is required"}
	}
	return s.extractor.JudgeDetails(ctx, name)
}

// AskFollowUp answers question in the context of a prior analysis.
func (s *Service) AskFollowUp(ctx context.Context, analysis any, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", &core.ValidationError{Field: "question", Message: "question is required"}
	}
	return s.extractor.AskFollowUp(ctx, analysis, question)
}

func validateDocument(field string, doc core.Document) error {
	if strings.TrimSpace(doc.Name) == "" {
		return &core.ValidationError{Field: field, Message: "file name is required"}
	}
	if len(doc.Data) == 0 {
		return &core.ValidationError{Field: field, Message: "file is empty"}
	}
	return nil
}
