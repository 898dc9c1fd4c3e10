package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/courtcopilot/courtcopilot/internal/ailink"
	"github.com/courtcopilot/courtcopilot/internal/ailink/driver"
	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/core/cache"
	"github.com/courtcopilot/courtcopilot/internal/core/extract"
	"github.com/courtcopilot/courtcopilot/internal/core/extract/extracttest"
	"github.com/courtcopilot/courtcopilot/internal/core/fingerprint"
	"github.com/courtcopilot/courtcopilot/internal/core/history"
	"github.com/courtcopilot/courtcopilot/internal/core/store"
)

func TestMain(m *testing.M) {
	// genai's transitive opencensus dependency starts its worker in init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

const (
	fixtureTimeline    = `{"events":[{"date":"2024-03-01","description":"Demand for compliance served","type":"filing","citation":"C.R.S. 13-40-104"}]}`
	fixtureTelemetry   = `{"readinessScore":62,"threatMatrix":[{"label":"Default judgment","impact":9,"probability":4}],"complexityIndex":5,"strategicFactors":{"evidence":6,"procedural":7,"jurisdictional":8,"resource":3,"opponentVulnerability":5}}`
	fixtureAdversarial = `{"prosecutorMoves":["Move for possession"],"defenseCounters":["Answer within 7 days"],"hiddenRisks":["Missed hearing"]}`
	fixtureFollowUps   = `{"questions":["Was notice posted?"]}`
	fixtureRelated     = `{"queries":["Colorado FED answer deadline"]}`
	fixtureJudges      = `{"judges":[{"name":"Ana Ruiz"}]}`
)

func textChunks(parts ...string) []ailink.Chunk {
	chunks := make([]ailink.Chunk, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, ailink.Chunk{Text: p})
	}
	return chunks
}

func scriptedGateway() *extracttest.Gateway {
	gw := extracttest.New().
		Reply(extract.SlugTimeline, fixtureTimeline).
		Reply(extract.SlugTelemetry, fixtureTelemetry).
		Reply(extract.SlugAdversarial, fixtureAdversarial).
		Reply(extract.SlugFollowUps, fixtureFollowUps).
		Reply(extract.SlugRelatedQueries, fixtureRelated).
		Reply(extract.SlugIdentifiedJudges, fixtureJudges)
	gw.Chunks = textChunks("Hel", "lo, ", "world")
	return gw
}

type harness struct {
	gw       *extracttest.Gateway
	kv       *store.Memory
	cache    *cache.Cache
	history  *history.Log
	pipeline *Pipeline
}

func newHarness(gw *extracttest.Gateway, opts ...PipelineOption) *harness {
	kv := store.NewMemory(0)
	h := &harness{gw: gw, kv: kv, cache: cache.New(kv), history: history.New(kv, 0, nil)}
	opts = append([]PipelineOption{WithCache(h.cache), WithHistory(h.history)}, opts...)
	h.pipeline = NewPipeline(extract.New(gw), opts...)
	return h
}

type updateLog struct {
	mu      sync.Mutex
	updates []Update
}

func (l *updateLog) add(u Update) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, u)
}

func (l *updateLog) inState(state State) []Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Update
	for _, u := range l.updates {
		if u.State == state {
			out = append(out, u)
		}
	}
	return out
}

func (l *updateLog) all() []Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Update(nil), l.updates...)
}

func TestPipelineStreamingAccumulation(t *testing.T) {
	h := newHarness(scriptedGateway())
	log := &updateLog{}

	result, err := h.pipeline.Execute(context.Background(), core.SearchRequest{Query: "Denver eviction defense"}, log.add)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", result.Summary)

	streamed := log.inState(StateStreaming)
	require.Len(t, streamed, 3)
	assert.Equal(t, "Hel", streamed[0].Result.Summary)
	assert.Equal(t, "Hello, ", streamed[1].Result.Summary)
	assert.Equal(t, "Hello, world", streamed[2].Result.Summary)
	for _, u := range streamed {
		assert.True(t, u.Result.IsSummaryStreaming)
		assert.Empty(t, u.Result.Sources)
	}
}

func TestPipelineAggregationUpdates(t *testing.T) {
	h := newHarness(scriptedGateway())
	log := &updateLog{}

	result, err := h.pipeline.Execute(context.Background(), core.SearchRequest{Query: "q"}, log.add)
	require.NoError(t, err)

	aggregating := log.inState(StateAggregating)
	require.Len(t, aggregating, 7)

	first := aggregating[0]
	assert.Empty(t, first.Stage)
	assert.False(t, first.Result.IsSummaryStreaming)
	assert.True(t, first.Result.IsTimelineLoading)
	assert.True(t, first.Result.IsTelemetryLoading)
	assert.True(t, first.Result.IsAdversarialLoading)

	stages := make([]string, 0, 6)
	for _, u := range aggregating[1:] {
		stages = append(stages, u.Stage)
		if u.Stage == extract.StageTelemetry {
			assert.False(t, u.Result.IsTelemetryLoading)
			require.NotNil(t, u.Result.Telemetry)
		}
	}
	assert.ElementsMatch(t, []string{
		extract.StageFollowUps,
		extract.StageRelatedQueries,
		extract.StageTimeline,
		extract.StageTelemetry,
		extract.StageAdversarial,
		extract.StageIdentifiedJudges,
	}, stages)

	last := aggregating[len(aggregating)-1].Result
	assert.Equal(t, last.Settled(), last, "last enrichment clears every loading flag")

	done := log.inState(StateDone)
	require.Len(t, done, 1)
	assert.False(t, done[0].Cached)
	assert.Equal(t, result, done[0].Result)

	all := log.all()
	assert.Equal(t, StateCacheCheck, all[0].State)
	assert.Equal(t, StateDone, all[len(all)-1].State)
}

func TestPipelineCanceledDuringAggregation(t *testing.T) {
	gw := scriptedGateway().Hang(extract.SlugTimeline)
	h := newHarness(gw)
	req := core.SearchRequest{Query: "Denver eviction defense"}

	ctx, cancel := context.WithCancel(context.Background())
	log := &updateLog{}
	go func() {
		for len(log.inState(StateAggregating)) == 0 {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := h.pipeline.Execute(ctx, req, log.add)
	require.ErrorIs(t, err, context.Canceled)

	all := log.all()
	last := all[len(all)-1]
	assert.Equal(t, StateFailed, last.State)
	assert.ErrorIs(t, last.Err, context.Canceled)
	assert.Empty(t, log.inState(StateDone))

	background := context.Background()
	_, cached := h.cache.Get(background, req.Normalize())
	assert.False(t, cached)
	assert.Empty(t, h.history.List(background))

	gw2 := scriptedGateway()
	h.pipeline = NewPipeline(extract.New(gw2), WithCache(h.cache), WithHistory(h.history))
	result, err := h.pipeline.Execute(background, req, nil)
	require.NoError(t, err)
	assert.Len(t, result.TimelineEvents, 1)
	assert.Equal(t, 1, gw2.Calls(extract.SlugTimeline))
}

func TestPipelineExtractionFallback(t *testing.T) {
	gw := scriptedGateway().Fail(extract.SlugTelemetry, errors.New("quota exhausted"))
	h := newHarness(gw)

	result, err := h.pipeline.Execute(context.Background(), core.SearchRequest{Query: "q"}, nil)
	require.NoError(t, err)

	require.NotNil(t, result.Telemetry)
	assert.Equal(t, core.DefaultTelemetry(), *result.Telemetry)
	assert.False(t, result.IsTelemetryLoading)

	assert.Equal(t, []string{"Was notice posted?"}, result.FollowUpQuestions)
	assert.Equal(t, []string{"Colorado FED answer deadline"}, result.RelatedQueries)
	require.Len(t, result.TimelineEvents, 1)
	require.NotNil(t, result.AdversarialStrategy)
	assert.Equal(t, []string{"Move for possession"}, result.AdversarialStrategy.ProsecutorMoves)
	assert.Equal(t, []core.JudgeSummary{{Name: "Ana Ruiz"}}, result.IdentifiedJudges)

	_, cached := h.cache.Get(context.Background(), core.SearchRequest{Query: "q"}.Normalize())
	assert.True(t, cached)
}

func TestPipelineCacheShortCircuit(t *testing.T) {
	gw := scriptedGateway()
	h := newHarness(gw)
	ctx := context.Background()

	req := core.SearchRequest{Query: "Denver eviction defense"}.Normalize()
	stored := core.SearchResult{
		Summary:           "cached answer",
		Sources:           []core.Source{{URI: "https://a", Title: "A"}},
		IsTimelineLoading: true,
	}
	h.cache.Put(ctx, req, stored)

	log := &updateLog{}
	result, err := h.pipeline.Execute(ctx, core.SearchRequest{Query: "  Denver eviction defense  "}, log.add)
	require.NoError(t, err)

	assert.Equal(t, 0, gw.TotalCalls())
	assert.Equal(t, "cached answer", result.Summary)
	assert.False(t, result.IsTimelineLoading)

	updates := log.all()
	require.Len(t, updates, 2)
	assert.Equal(t, StateCacheCheck, updates[0].State)
	assert.Equal(t, StateDone, updates[1].State)
	assert.True(t, updates[1].Cached)
	assert.Empty(t, h.history.List(ctx))
}

func TestPipelineDenverEndToEnd(t *testing.T) {
	gw := scriptedGateway()
	gw.Chunks = []ailink.Chunk{
		{Text: "# Tactical Intelligence Summary\n", Citations: []driver.Citation{{URI: "https://www.courts.state.co.us/Courts/County/Index.cfm?County_ID=7", Title: "Denver County Court"}}},
		{Text: "**File your answer.**", Citations: []driver.Citation{
			{URI: "https://www.courts.state.co.us/Courts/County/Index.cfm?County_ID=7", Title: "Duplicate title"},
			{URI: "https://leg.colorado.gov/statutes", Title: ""},
		}},
		{Text: "  \n", Citations: []driver.Citation{{URI: ""}}},
	}
	h := newHarness(gw)
	ctx := context.Background()

	result, err := h.pipeline.Execute(ctx, core.SearchRequest{Query: "Denver eviction defense", CaseType: core.CaseTypeCivil}, nil)
	require.NoError(t, err)

	assert.Equal(t, "# Tactical Intelligence Summary\n**File your answer.**", result.Summary)
	assert.Equal(t, []core.Source{
		{URI: "https://www.courts.state.co.us/Courts/County/Index.cfm?County_ID=7", Title: "Denver County Court"},
		{URI: "https://leg.colorado.gov/statutes", Title: extract.UnknownSourceTitle},
	}, result.Sources)

	assert.Equal(t, []core.TimelineEvent{{
		Date:        "2024-03-01",
		Description: "Demand for compliance served",
		Type:        core.EventFiling,
		Citation:    "C.R.S. 13-40-104",
	}}, result.TimelineEvents)
	require.NotNil(t, result.Telemetry)
	assert.Equal(t, float64(62), result.Telemetry.ReadinessScore)
	assert.Equal(t, []core.ThreatNode{{Label: "Default judgment", Impact: 9, Probability: 4}}, result.Telemetry.ThreatMatrix)
	assert.Equal(t, &core.AdversarialStrategy{
		ProsecutorMoves: []string{"Move for possession"},
		DefenseCounters: []string{"Answer within 7 days"},
		HiddenRisks:     []string{"Missed hearing"},
	}, result.AdversarialStrategy)

	key := fingerprint.Search(core.SearchRequest{Query: "Denver eviction defense", CaseType: core.CaseTypeCivil, SearchType: core.SearchTypeSearch})
	_, ok, err := h.kv.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	search := gw.Requests(extract.SlugSearch)
	require.Len(t, search, 1)
	assert.Equal(t, "civil", search[0].Variables["case_type"])

	assert.Equal(t, []core.SearchRequest{{Query: "Denver eviction defense", CaseType: core.CaseTypeCivil, SearchType: core.SearchTypeSearch}}, h.history.List(ctx))
}

func TestPipelineValidation(t *testing.T) {
	gw := scriptedGateway()
	h := newHarness(gw, WithMaxQueryLength(20))
	ctx := context.Background()

	for name, req := range map[string]core.SearchRequest{
		"Empty":     {Query: "   "},
		"TooLong":   {Query: strings.Repeat("a", 21)},
		"ListCount": {Query: "q", ListCount: core.MaxListCount + 1},
	} {
		t.Run(name, func(t *testing.T) {
			called := false
			_, err := h.pipeline.Execute(ctx, req, func(Update) { called = true })
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.False(t, called)
		})
	}
	assert.Equal(t, 0, gw.TotalCalls())
	keys, err := h.kv.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPipelineStreamFailure(t *testing.T) {
	gw := scriptedGateway()
	gw.StreamErr = errors.New("connection reset")
	h := newHarness(gw)
	ctx := context.Background()
	log := &updateLog{}

	_, err := h.pipeline.Execute(ctx, core.SearchRequest{Query: "q"}, log.add)
	var gerr *core.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, extract.StageSearch, gerr.Stage)

	failed := log.inState(StateFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, core.SearchResult{}, failed[0].Result)
	assert.Len(t, log.inState(StateStreaming), 3)
	assert.Empty(t, log.inState(StateAggregating))

	keys, err := h.kv.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, 0, gw.Calls(extract.SlugTimeline))
}

func TestPipelineHangingGateway(t *testing.T) {
	t.Run("PrimaryStream", func(t *testing.T) {
		gw := scriptedGateway().Hang(extract.SlugSearch)
		h := newHarness(gw)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := h.pipeline.Execute(ctx, core.SearchRequest{Query: "q"}, nil)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Enrichment", func(t *testing.T) {
		gw := scriptedGateway().Hang(extract.SlugTimeline)
		h := newHarness(gw)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		result, err := h.pipeline.Execute(ctx, core.SearchRequest{Query: "q"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []core.TimelineEvent{}, result.TimelineEvents)
		assert.Equal(t, []string{"Was notice posted?"}, result.FollowUpQuestions)
	})
}

// runConcurrently starts n identical searches while the gateway holds the
// primary stream, waits for streams calls to begin, then releases them.
func runConcurrently(t *testing.T, h *harness, n, streams int, req core.SearchRequest) ([]core.SearchResult, []*updateLog) {
	t.Helper()
	results := make([]core.SearchResult, n)
	logs := make([]*updateLog, n)
	var wg sync.WaitGroup
	start := func(i int) {
		logs[i] = &updateLog{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.pipeline.Execute(context.Background(), req, logs[i].add)
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	start(0)
	<-h.gw.Started
	for i := 1; i < n; i++ {
		start(i)
	}
	for range streams - 1 {
		<-h.gw.Started
	}
	// Give joining callers time to reach the in-flight check.
	time.Sleep(50 * time.Millisecond)
	close(h.gw.Release)
	wg.Wait()
	return results, logs
}

func TestPipelineConcurrentIdenticalRequests(t *testing.T) {
	req := core.SearchRequest{Query: "Denver eviction defense"}

	t.Run("NotCoalescedByDefault", func(t *testing.T) {
		gw := scriptedGateway()
		gw.Release = make(chan struct{})
		gw.Started = make(chan struct{}, 2)
		h := newHarness(gw)

		results, _ := runConcurrently(t, h, 2, 2, req)
		assert.Equal(t, 2, gw.Calls(extract.SlugSearch))
		assert.Equal(t, 2, gw.Calls(extract.SlugTimeline))
		assert.Equal(t, results[0].Summary, results[1].Summary)
	})

	t.Run("Coalesced", func(t *testing.T) {
		gw := scriptedGateway()
		gw.Release = make(chan struct{})
		gw.Started = make(chan struct{}, 2)
		h := newHarness(gw, WithCoalescing(true))

		results, logs := runConcurrently(t, h, 2, 1, req)
		assert.Equal(t, 1, gw.Calls(extract.SlugSearch))
		assert.Equal(t, 1, gw.Calls(extract.SlugTimeline))
		assert.Equal(t, results[0], results[1])

		joined := logs[1].all()
		require.Len(t, joined, 1)
		assert.Equal(t, StateDone, joined[0].State)
		assert.Len(t, logs[0].inState(StateStreaming), 3)
	})
}

type searchRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *searchRecorder) RecordSearch(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestPipelineRecordsOutcomes(t *testing.T) {
	rec := &searchRecorder{}
	h := newHarness(scriptedGateway(), WithRecorder(rec))
	ctx := context.Background()

	_, err := h.pipeline.Execute(ctx, core.SearchRequest{Query: "q"}, nil)
	require.NoError(t, err)
	_, err = h.pipeline.Execute(ctx, core.SearchRequest{Query: "q"}, nil)
	require.NoError(t, err)
	_, err = h.pipeline.Execute(ctx, core.SearchRequest{}, nil)
	require.Error(t, err)

	assert.Equal(t, []string{OutcomeDone, OutcomeCacheHit, OutcomeInvalid}, rec.outcomes)
}
