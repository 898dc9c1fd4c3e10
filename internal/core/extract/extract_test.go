package extract_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtcopilot/courtcopilot/internal/ailink"
	"github.com/courtcopilot/courtcopilot/internal/ailink/driver"
	"github.com/courtcopilot/courtcopilot/internal/core"
	"github.com/courtcopilot/courtcopilot/internal/core/extract"
	"github.com/courtcopilot/courtcopilot/internal/core/extract/extracttest"
)

var errBoom = errors.New("boom")

type outcome struct {
	stage string
	ok    bool
}

type recorder struct {
	mu       sync.Mutex
	outcomes []outcome
}

func (r *recorder) RecordExtraction(stage string, ok bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome{stage, ok})
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	type payload struct {
		A int `json:"a"`
	}

	t.Run("DecodesFencedJSON", func(t *testing.T) {
		gw := extracttest.New().Reply("x", "Here you go:\n```json\n{\"a\":1}\n```\nEnjoy.")
		got, err := extract.Run(ctx, gw, ailink.GenerateRequest{PromptSlug: "x"}, payload{A: -1})
		require.NoError(t, err)
		assert.Equal(t, 1, got.A)
		assert.Equal(t, 1, gw.TotalCalls())
	})

	t.Run("UndecodableFallsBack", func(t *testing.T) {
		gw := extracttest.New().Reply("x", "not json at all")
		got, err := extract.Run(ctx, gw, ailink.GenerateRequest{PromptSlug: "x"}, payload{A: -1})
		require.ErrorIs(t, err, extract.ErrUndecodable)
		assert.Equal(t, -1, got.A)
	})

	t.Run("GatewayErrorFallsBack", func(t *testing.T) {
		gw := extracttest.New().Fail("x", errBoom)
		got, err := extract.Run(ctx, gw, ailink.GenerateRequest{PromptSlug: "x"}, payload{A: -1})
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, -1, got.A)
		assert.Equal(t, 1, gw.TotalCalls())
	})
}

func TestSearchVariables(t *testing.T) {
	vars := extract.SearchVariables(core.SearchRequest{
		Query:        "Denver eviction defense",
		SearchType:   core.SearchTypeSearch,
		Jurisdiction: core.JurisdictionAll,
		CaseType:     core.CaseTypeCivil,
		DateRange:    core.DateRangeAny,
		PartyName:    "Doe",
		ListCount:    7,
	})
	assert.Equal(t, map[string]string{
		"query":      "Denver eviction defense",
		"case_type":  "civil",
		"party_name": "Doe",
		"list_count": "7",
	}, vars)

	vars = extract.SearchVariables(core.SearchRequest{Query: "q", SearchType: core.SearchTypeNews, Jurisdiction: core.JurisdictionDenverCounty})
	assert.Equal(t, "news", vars["search_type"])
	assert.Equal(t, "denver_county", vars["jurisdiction"])
}

func TestSourcesFrom(t *testing.T) {
	sources := extract.SourcesFrom(ailink.Chunk{Citations: []driver.Citation{
		{URI: "https://a", Title: "A"},
		{URI: "  "},
		{URI: "https://b"},
	}})
	assert.Equal(t, []core.Source{{URI: "https://a", Title: "A"}, {URI: "https://b", Title: extract.UnknownSourceTitle}}, sources)
}

func TestEnrichments(t *testing.T) {
	ctx := context.Background()
	long := strings.Repeat("ß", 6000)

	t.Run("ContextBounds", func(t *testing.T) {
		gw := extracttest.New()
		ex := extract.New(gw)

		ex.FollowUpQuestions(ctx, "q", long)
		ex.Adversarial(ctx, "q", long)
		ex.Telemetry(ctx, "q", long)
		ex.IdentifiedJudges(ctx, long)
		ex.Timeline(ctx, long)
		ex.RelatedQueries(ctx, "q")

		bounds := map[string]int{
			extract.SlugFollowUps:        1000,
			extract.SlugAdversarial:      4000,
			extract.SlugTelemetry:        4000,
			extract.SlugIdentifiedJudges: 4000,
			extract.SlugTimeline:         5000,
		}
		for slug, limit := range bounds {
			reqs := gw.Requests(slug)
			require.Len(t, reqs, 1, slug)
			assert.Equal(t, limit, len([]rune(reqs[0].Variables["context"])), slug)
		}
		related := gw.Requests(extract.SlugRelatedQueries)
		require.Len(t, related, 1)
		assert.Equal(t, map[string]string{"query": "q"}, related[0].Variables)
	})

	t.Run("Decoded", func(t *testing.T) {
		gw := extracttest.New().
			Reply(extract.SlugFollowUps, `{"questions":["a","b","c"]}`).
			Reply(extract.SlugRelatedQueries, "```json\n{\"queries\":[\"x\"]}\n```").
			Reply(extract.SlugTimeline, `{"events":[{"date":"2024-01-02","description":"Complaint filed","type":"filing"},{"date":"?","description":"x","type":"hearing"}]}`).
			Reply(extract.SlugAdversarial, `{"prosecutorMoves":["m"],"defenseCounters":["c"]}`).
			Reply(extract.SlugIdentifiedJudges, `{"judges":[{"name":"Ana Ruiz"},{"name":" ana ruiz "},{"name":""},{"name":"B. Cole"}]}`)
		ex := extract.New(gw)

		assert.Equal(t, []string{"a", "b", "c"}, ex.FollowUpQuestions(ctx, "q", "s"))
		assert.Equal(t, []string{"x"}, ex.RelatedQueries(ctx, "q"))

		events := ex.Timeline(ctx, "s")
		require.Len(t, events, 2)
		assert.Equal(t, core.EventFiling, events[0].Type)
		assert.Equal(t, core.EventOther, events[1].Type)

		adv := ex.Adversarial(ctx, "q", "s")
		assert.Equal(t, []string{"m"}, adv.ProsecutorMoves)
		assert.Equal(t, []string{}, adv.HiddenRisks)

		assert.Equal(t, []core.JudgeSummary{{Name: "Ana Ruiz"}, {Name: "B. Cole"}}, ex.IdentifiedJudges(ctx, "s"))
	})

	t.Run("TelemetryClamped", func(t *testing.T) {
		gw := extracttest.New().Reply(extract.SlugTelemetry,
			`{"readinessScore":140,"threatMatrix":[{"label":"Eviction","impact":12,"probability":-3}],"complexityIndex":7,"strategicFactors":{"evidence":4,"procedural":11}}`)
		tel := extract.New(gw).Telemetry(ctx, "q", "s")
		assert.Equal(t, float64(100), tel.ReadinessScore)
		assert.Equal(t, float64(7), tel.ComplexityIndex)
		assert.Equal(t, []core.ThreatNode{{Label: "Eviction", Impact: 10, Probability: 0}}, tel.ThreatMatrix)
		assert.Equal(t, float64(4), tel.StrategicFactors.Evidence)
		assert.Equal(t, float64(10), tel.StrategicFactors.Procedural)
	})

	t.Run("Fallbacks", func(t *testing.T) {
		rec := &recorder{}
		gw := extracttest.New().
			Fail(extract.SlugFollowUps, errBoom).
			Fail(extract.SlugTelemetry, errBoom).
			Reply(extract.SlugAdversarial, "I cannot help with that.").
			Reply(extract.SlugTimeline, "[")
		ex := extract.New(gw, extract.WithRecorder(rec))

		assert.Equal(t, []string{}, ex.FollowUpQuestions(ctx, "q", "s"))
		assert.Equal(t, core.DefaultTelemetry(), ex.Telemetry(ctx, "q", "s"))
		assert.Equal(t, core.DefaultAdversarialStrategy(), ex.Adversarial(ctx, "q", "s"))
		assert.Equal(t, []core.TimelineEvent{}, ex.Timeline(ctx, "s"))
		assert.Equal(t, []core.JudgeSummary{}, ex.IdentifiedJudges(ctx, "s"))

		assert.Equal(t, []outcome{
			{extract.StageFollowUps, false},
			{extract.StageTelemetry, false},
			{extract.StageAdversarial, false},
			{extract.StageTimeline, false},
			{extract.StageIdentifiedJudges, true},
		}, rec.outcomes)
	})
}

func TestJudgeDetails(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		gw := extracttest.New().Reply(extract.SlugJudgeDetails,
			`{"tendencies":"Strict on procedure","notableCases":[{"caseName":"People v. X","outcome":"Dismissed","date":"2023"}],"rulingPatternsByCaseType":[{"caseType":"DUI","pattern":"Harsh","riskLevel":"high"}],"strategicInsights":"File early."}`)
		got, err := extract.New(gw).JudgeDetails(ctx, " Ana Ruiz ")
		require.NoError(t, err)
		assert.Equal(t, "Ana Ruiz", got.Name)
		assert.Equal(t, core.RiskHigh, got.RulingPatternsByCaseType[0].RiskLevel)
		assert.Equal(t, []core.JudgeStatistics{}, got.Statistics)
		assert.Equal(t, "Ana Ruiz", gw.Requests(extract.SlugJudgeDetails)[0].Variables["judge_name"])
	})

	t.Run("FailureSurfaces", func(t *testing.T) {
		for _, gw := range []*extracttest.Gateway{
			extracttest.New().Fail(extract.SlugJudgeDetails, errBoom),
			extracttest.New().Reply(extract.SlugJudgeDetails, "no dossier"),
		} {
			_, err := extract.New(gw).JudgeDetails(ctx, "Ana Ruiz")
			var gerr *core.GatewayError
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, "Dossier retrieve failed for Judge Ana Ruiz.", err.Error())
		}
	})
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	brief := core.Document{Name: "brief.pdf", Data: []byte("%PDF-brief")}
	police := core.Document{Name: "police.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-police")}

	t.Run("AnalyzeDocument", func(t *testing.T) {
		gw := extracttest.New().Reply(extract.SlugDocumentAnalysis,
			`{"fileName":"renamed.pdf","strategicSummary":"Weak service of process.","keyArguments":["a"],"identifiedEntities":[{"type":"judge","value":"Ana Ruiz"}]}`)
		got := extract.New(gw).AnalyzeDocument(ctx, brief)
		assert.Equal(t, "brief.pdf", got.FileName)
		assert.Equal(t, "Weak service of process.", got.StrategicSummary)
		assert.Equal(t, []string{}, got.ActionableInsights)

		req := gw.Requests(extract.SlugDocumentAnalysis)[0]
		require.Len(t, req.Attachments, 1)
		assert.Equal(t, "application/pdf", string(req.Attachments[0].Type))
		assert.Equal(t, []byte("%PDF-brief"), req.Attachments[0].Data)
	})

	t.Run("AnalyzeDocumentFallback", func(t *testing.T) {
		gw := extracttest.New().Fail(extract.SlugDocumentAnalysis, errBoom)
		assert.Equal(t, core.DefaultDocumentAnalysis("brief.pdf"), extract.New(gw).AnalyzeDocument(ctx, brief))
	})

	t.Run("CrossReferenceKeepsOrder", func(t *testing.T) {
		gw := extracttest.New().Reply(extract.SlugCrossReference,
			`{"overallCredibilityScore":35,"summaryOfDiscrepancies":"Times conflict.","contradictions":[{"topic":"Arrival","severity":"high","sourceAClaim":"9pm","sourceBClaim":"11pm","analysis":"Two hours apart."}]}`)
		got := extract.New(gw).CrossReference(ctx, police, brief)
		assert.Equal(t, "police.pdf", got.FileAName)
		assert.Equal(t, "brief.pdf", got.FileBName)
		assert.Equal(t, float64(35), got.OverallCredibilityScore)
		require.Len(t, got.Contradictions, 1)

		req := gw.Requests(extract.SlugCrossReference)[0]
		require.Len(t, req.Attachments, 2)
		assert.Equal(t, []byte("%PDF-police"), req.Attachments[0].Data)
		assert.Equal(t, []byte("%PDF-brief"), req.Attachments[1].Data)
	})

	t.Run("CrossReferenceFallback", func(t *testing.T) {
		gw := extracttest.New().Reply(extract.SlugCrossReference, "sorry")
		got := extract.New(gw).CrossReference(ctx, police, brief)
		assert.Equal(t, core.DefaultCrossReference("police.pdf", "brief.pdf"), got)
		assert.Equal(t, core.CrossReferenceFailureSummary, got.SummaryOfDiscrepancies)
	})

	t.Run("NarrativeMapKeepsDanglingLinks", func(t *testing.T) {
		gw := extracttest.New().Reply(extract.SlugNarrativeMap,
			`{"nodes":[{"id":"n1","label":"Officer","type":"person","bradyFlag":"withheld bodycam"}],"links":[{"source":"n1","target":"n9","label":"reported","type":"explicit"}],"timeline":[{"date":"2024","description":"Stop","type":"other","narrativeTrack":"prosecution"}],"strategicAssessment":"Gap in custody."}`)
		got := extract.New(gw).NarrativeMap(ctx, brief)
		require.Len(t, got.Links, 1)
		assert.Len(t, got.DanglingLinks(), 1)
		assert.Equal(t, "withheld bodycam", got.Nodes[0].BradyFlag)
		assert.Equal(t, core.TrackProsecution, got.Timeline[0].NarrativeTrack)
	})

	t.Run("NarrativeMapFallback", func(t *testing.T) {
		gw := extracttest.New().Fail(extract.SlugNarrativeMap, errBoom)
		got := extract.New(gw).NarrativeMap(ctx, brief)
		assert.Equal(t, core.DefaultNarrativeMap(), got)
	})
}

func TestAskFollowUp(t *testing.T) {
	ctx := context.Background()
	analysis := core.DocumentAnalysisResult{FileName: "brief.pdf", StrategicSummary: "s"}

	t.Run("Answer", func(t *testing.T) {
		gw := extracttest.New().Reply(extract.SlugDocumentQuestion, "  File a motion to dismiss.  ")
		answer, err := extract.New(gw).AskFollowUp(ctx, analysis, " What next? ")
		require.NoError(t, err)
		assert.Equal(t, "File a motion to dismiss.", answer)

		req := gw.Requests(extract.SlugDocumentQuestion)[0]
		assert.Equal(t, "What next?", req.Variables["question"])
		assert.Contains(t, req.Variables["context"], `"fileName":"brief.pdf"`)
	})

	t.Run("EmptyAnswer", func(t *testing.T) {
		gw := extracttest.New().Reply(extract.SlugDocumentQuestion, " ")
		answer, err := extract.New(gw).AskFollowUp(ctx, analysis, "q")
		require.NoError(t, err)
		assert.Equal(t, core.AnswerUnavailable, answer)
	})

	t.Run("GatewayFailure", func(t *testing.T) {
		gw := extracttest.New().Fail(extract.SlugDocumentQuestion, errBoom)
		_, err := extract.New(gw).AskFollowUp(ctx, analysis, "q")
		var gerr *core.GatewayError
		require.ErrorAs(t, err, &gerr)
		require.ErrorIs(t, err, errBoom)
	})
}
