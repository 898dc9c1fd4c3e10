// Package engine runs the search pipeline and exposes the public surface
// used by the CLI and HTTP server.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/core/cache"
	"github.com/courtcopilot/courtcopilot/internal/core/extract"
	"github.com/courtcopilot/courtcopilot/internal/core/fingerprint"
	"github.com/courtcopilot/courtcopilot/internal/core/history"
)

// State is a pipeline phase. StateIdle is the state before Execute and is
// never emitted.
type State string

const (
	StateIdle        State = "idle"
	StateCacheCheck  State = "cache_check"
	StateStreaming   State = "streaming"
	StateAggregating State = "aggregating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Search outcomes reported to a Recorder.
const (
	OutcomeDone     = "done"
	OutcomeCacheHit = "cache_hit"
	OutcomeFailed   = "failed"
	OutcomeInvalid  = "invalid"
	OutcomeShared   = "shared"
	OutcomeCanceled = "canceled"
)

// Update is a complete snapshot of an in-progress search. Result never
// aliases pipeline state; receivers may keep it.
type Update struct {
	State State
	// Stage names the extraction that just settled while aggregating.
	Stage  string
	Result core.SearchResult
	// Cached is set on the single Done update of a cache hit.
	Cached bool
	Err    error
}

// Recorder observes search outcomes.
type Recorder interface {
	RecordSearch(outcome string, elapsed time.Duration)
}

// Pipeline executes searches: cache check, grounded streaming answer, then
// a parallel fan-out of enrichments.
type Pipeline struct {
	extractor      *extract.Extractor
	cache          *cache.Cache
	history        *history.Log
	logger         *logging.Logger
	recorder       Recorder
	maxQueryLength int
	coalesce       bool

	inflight singleflight.Group
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithCache enables the result cache.
func WithCache(c *cache.Cache) PipelineOption {
	return func(p *Pipeline) { p.cache = c }
}

// WithHistory records every completed search.
func WithHistory(h *history.Log) PipelineOption {
	return func(p *Pipeline) { p.history = h }
}

// WithLogger attaches a logger.
func WithLogger(logger *logging.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithRecorder attaches an outcome recorder.
func WithRecorder(r Recorder) PipelineOption {
	return func(p *Pipeline) { p.recorder = r }
}

// WithMaxQueryLength overrides core.MaxQueryLength.
func WithMaxQueryLength(n int) PipelineOption {
	return func(p *Pipeline) { p.maxQueryLength = n }
}

// WithCoalescing shares one execution between concurrent searches with the
// same fingerprint. Joining callers get only the final Done update, and the
// first caller's context governs the shared run.
func WithCoalescing(enabled bool) PipelineOption {
	return func(p *Pipeline) { p.coalesce = enabled }
}

// NewPipeline returns a pipeline over ex.
func NewPipeline(ex *extract.Extractor, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{extractor: ex, maxQueryLength: core.MaxQueryLength}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs one search. onUpdate, when non-nil, receives a cache_check
// update first, then a snapshot after every streamed chunk, once when
// aggregation starts, after each enrichment settles, and once at the end.
// Calls to onUpdate never overlap.
//
// Only validation, primary stream failures and cancellation are returned;
// enrichment failures leave their typed defaults in the result. A search
// canceled while enriching is neither cached nor recorded in history.
func (p *Pipeline) Execute(ctx context.Context, req core.SearchRequest, onUpdate func(Update)) (core.SearchResult, error) {
	start := time.Now()
	req = req.Normalize()
	if err := req.Validate(p.maxQueryLength); err != nil {
		p.record(OutcomeInvalid, start)
		return core.SearchResult{}, err
	}

	if !p.coalesce {
		return p.run(ctx, req, onUpdate, start)
	}

	executed := false
	v, err, _ := p.inflight.Do(fingerprint.Search(req), func() (any, error) {
		executed = true
		return p.run(ctx, req, onUpdate, start)
	})
	if executed {
		result, _ := v.(core.SearchResult)
		return result, err
	}

	p.record(OutcomeShared, start)
	if err != nil {
		if onUpdate != nil {
			onUpdate(Update{State: StateFailed, Err: err})
		}
		return core.SearchResult{}, err
	}
	result := v.(core.SearchResult).Clone()
	if onUpdate != nil {
		onUpdate(Update{State: StateDone, Result: result.Clone()})
	}
	return result, nil
}

// Cached returns the cached result for req without running anything.
func (p *Pipeline) Cached(ctx context.Context, req core.SearchRequest) (*core.SearchResult, bool) {
	if p.cache == nil {
		return nil, false
	}
	req = req.Normalize()
	if req.Validate(p.maxQueryLength) != nil {
		return nil, false
	}
	return p.cache.Get(ctx, req)
}

func (p *Pipeline) run(ctx context.Context, req core.SearchRequest, onUpdate func(Update), start time.Time) (core.SearchResult, error) {
	if onUpdate != nil {
		onUpdate(Update{State: StateCacheCheck})
	}
	if p.cache != nil {
		if cached, ok := p.cache.Get(ctx, req); ok {
			p.debug("search served from cache", zap.String("query", req.Query))
			if onUpdate != nil {
				onUpdate(Update{State: StateDone, Result: cached.Clone(), Cached: true})
			}
			p.record(OutcomeCacheHit, start)
			return *cached, nil
		}
	}

	r := &runState{emit: onUpdate}
	r.result = core.SearchResult{Sources: []core.Source{}, IsSummaryStreaming: true}

	if err := p.stream(ctx, req, r); err != nil {
		gerr := &core.GatewayError{Stage: extract.StageSearch, Err: err}
		p.warn("search stream failed", zap.String("query", req.Query), zap.Error(err))
		if onUpdate != nil {
			onUpdate(Update{State: StateFailed, Err: gerr})
		}
		p.record(OutcomeFailed, start)
		return core.SearchResult{}, gerr
	}

	p.aggregate(ctx, req, r)

	// Enrichments abandoned by cancellation hold defaults; keep them out of
	// the cache and history.
	if err := ctx.Err(); err != nil {
		p.debug("search canceled during aggregation", zap.String("query", req.Query), zap.Error(err))
		if onUpdate != nil {
			onUpdate(Update{State: StateFailed, Err: err})
		}
		p.record(OutcomeCanceled, start)
		return core.SearchResult{}, err
	}

	final := r.snapshot().Settled()
	if p.cache != nil {
		p.cache.Put(ctx, req, final)
	}
	if p.history != nil {
		p.history.Add(ctx, req)
	}
	if onUpdate != nil {
		onUpdate(Update{State: StateDone, Result: final.Clone()})
	}
	p.record(OutcomeDone, start)
	return final, nil
}

// stream accumulates the primary answer, emitting one update per chunk.
func (p *Pipeline) stream(ctx context.Context, req core.SearchRequest, r *runState) error {
	var summary strings.Builder
	seen := make(map[string]struct{})

	for chunk, err := range p.extractor.StreamSearch(ctx, req) {
		if err != nil {
			return err
		}
		summary.WriteString(chunk.Text)

		var fresh []core.Source
		for _, src := range extract.SourcesFrom(chunk) {
			if _, dup := seen[src.URI]; dup {
				continue
			}
			seen[src.URI] = struct{}{}
			fresh = append(fresh, src)
		}

		text := summary.String()
		r.update(StateStreaming, extract.StageSearch, func(res *core.SearchResult) {
			res.Summary = text
			res.Sources = append(res.Sources, fresh...)
		})
	}
	return ctx.Err()
}

// aggregate runs every enrichment in parallel over the finished summary.
func (p *Pipeline) aggregate(ctx context.Context, req core.SearchRequest, r *runState) {
	r.update(StateAggregating, "", func(res *core.SearchResult) {
		res.Summary = strings.TrimSpace(res.Summary)
		res.IsSummaryStreaming = false
		res.IsFollowUpQuestionsLoading = true
		res.IsRelatedQueriesLoading = true
		res.IsTimelineLoading = true
		res.IsIdentifiedJudgesLoading = true
		res.IsAdversarialLoading = true
		res.IsTelemetryLoading = true
	})
	summary := r.snapshot().Summary
	ex := p.extractor

	var g errgroup.Group
	g.Go(func() error {
		questions := ex.FollowUpQuestions(ctx, req.Query, summary)
		r.update(StateAggregating, extract.StageFollowUps, func(res *core.SearchResult) {
			res.FollowUpQuestions = questions
			res.IsFollowUpQuestionsLoading = false
		})
		return nil
	})
	g.Go(func() error {
		queries := ex.RelatedQueries(ctx, req.Query)
		r.update(StateAggregating, extract.StageRelatedQueries, func(res *core.SearchResult) {
			res.RelatedQueries = queries
			res.IsRelatedQueriesLoading = false
		})
		return nil
	})
	g.Go(func() error {
		events := ex.Timeline(ctx, summary)
		r.update(StateAggregating, extract.StageTimeline, func(res *core.SearchResult) {
			res.TimelineEvents = events
			res.IsTimelineLoading = false
		})
		return nil
	})
	g.Go(func() error {
		telemetry := ex.Telemetry(ctx, req.Query, summary)
		r.update(StateAggregating, extract.StageTelemetry, func(res *core.SearchResult) {
			res.Telemetry = &telemetry
			res.IsTelemetryLoading = false
		})
		return nil
	})
	g.Go(func() error {
		strategy := ex.Adversarial(ctx, req.Query, summary)
		r.update(StateAggregating, extract.StageAdversarial, func(res *core.SearchResult) {
			res.AdversarialStrategy = &strategy
			res.IsAdversarialLoading = false
		})
		return nil
	})
	g.Go(func() error {
		judges := ex.IdentifiedJudges(ctx, summary)
		r.update(StateAggregating, extract.StageIdentifiedJudges, func(res *core.SearchResult) {
			res.IdentifiedJudges = judges
			res.IsIdentifiedJudgesLoading = false
		})
		return nil
	})
	_ = g.Wait()
}

func (p *Pipeline) record(outcome string, start time.Time) {
	if p.recorder != nil {
		p.recorder.RecordSearch(outcome, time.Since(start))
	}
}

func (p *Pipeline) debug(msg string, fields ...zap.Field) {
	if p.logger != nil {
		p.logger.Debug(msg, fields...)
	}
}

func (p *Pipeline) warn(msg string, fields ...zap.Field) {
	if p.logger != nil {
		p.logger.Warn(msg, fields...)
	}
}

// runState holds one execution's result. Mutations and their snapshots are
// serialized so every emitted update is consistent.
type runState struct {
	mu     sync.Mutex
	result core.SearchResult
	emit   func(Update)
}

func (r *runState) update(state State, stage string, mutate func(*core.SearchResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mutate(&r.result)
	if r.emit != nil {
		r.emit(Update{State: state, Stage: stage, Result: r.result.Clone()})
	}
}

func (r *runState) snapshot() core.SearchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result.Clone()
}
