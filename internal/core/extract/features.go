package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/ailink"
	"github.com/courtcopilot/courtcopilot/internal/ailink/content"
	"github.com/courtcopilot/courtcopilot/internal/core"
)

// Stage names used for logging and metrics.
const (
	StageSearch           = "search"
	StageFollowUps        = "follow_ups"
	StageRelatedQueries   = "related_queries"
	StageTimeline         = "timeline"
	StageTelemetry        = "telemetry"
	StageAdversarial      = "adversarial"
	StageIdentifiedJudges = "identified_judges"
	StageJudgeDetails     = "judge_details"
	StageDocumentAnalysis = "document_analysis"
	StageCrossReference   = "cross_reference"
	StageNarrativeMap     = "narrative_map"
	StageAskFollowUp      = "ask_follow_up"
)

// UnknownSourceTitle labels citations that arrive without a title.
const UnknownSourceTitle = "Unknown Source"

// SearchVariables renders a request into the primary prompt's variables.
// "all"/"any" filters and the default search type are left out.
func SearchVariables(req core.SearchRequest) map[string]string {
	vars := map[string]string{"query": req.Query}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			vars[key] = value
		}
	}
	set("party_name", req.PartyName)
	set("case_number", req.CaseNumber)
	set("site_restrict", req.SiteRestrict)
	set("file_type", req.FileType)
	if req.Jurisdiction != core.JurisdictionAll {
		set("jurisdiction", string(req.Jurisdiction))
	}
	if req.CaseType != core.CaseTypeAll {
		set("case_type", string(req.CaseType))
	}
	if req.CaseStatus != core.CaseStatusAll {
		set("case_status", string(req.CaseStatus))
	}
	if req.DateRange != core.DateRangeAny {
		set("date_range", string(req.DateRange))
	}
	if req.SearchType != core.SearchTypeSearch {
		set("search_type", string(req.SearchType))
	}
	if req.ListCount > 0 {
		vars["list_count"] = strconv.Itoa(req.ListCount)
	}
	return vars
}

// StreamSearch starts the grounded primary answer for req.
func (e *Extractor) StreamSearch(ctx context.Context, req core.SearchRequest) iter.Seq2[ailink.Chunk, error] {
	return e.gw.Stream(ctx, ailink.GenerateRequest{
		PromptSlug: SlugSearch,
		Variables:  SearchVariables(req),
	})
}

// SourcesFrom converts chunk citations to sources, dropping entries with no
// URI and labelling untitled ones.
func SourcesFrom(chunk ailink.Chunk) []core.Source {
	var out []core.Source
	for _, c := range chunk.Citations {
		uri := strings.TrimSpace(c.URI)
		if uri == "" {
			continue
		}
		title := strings.TrimSpace(c.Title)
		if title == "" {
			title = UnknownSourceTitle
		}
		out = append(out, core.Source{URI: uri, Title: title})
	}
	return out
}

// FollowUpQuestions suggests next questions. Falls back to an empty list.
func (e *Extractor) FollowUpQuestions(ctx context.Context, query, summary string) []string {
	type payload struct {
		Questions []string `json:"questions"`
	}
	got, _ := run(ctx, e, StageFollowUps, ailink.GenerateRequest{
		PromptSlug: SlugFollowUps,
		Variables:  map[string]string{"query": query, "context": head(summary, FollowUpContextLimit)},
	}, payload{})
	return nonNil(got.Questions)
}

// RelatedQueries suggests alternative searches from the query alone.
func (e *Extractor) RelatedQueries(ctx context.Context, query string) []string {
	type payload struct {
		Queries []string `json:"queries"`
	}
	got, _ := run(ctx, e, StageRelatedQueries, ailink.GenerateRequest{
		PromptSlug: SlugRelatedQueries,
		Variables:  map[string]string{"query": query},
	}, payload{})
	return nonNil(got.Queries)
}

// Timeline pulls dated events out of the summary.
func (e *Extractor) Timeline(ctx context.Context, summary string) []core.TimelineEvent {
	type payload struct {
		Events []core.TimelineEvent `json:"events"`
	}
	got, _ := run(ctx, e, StageTimeline, ailink.GenerateRequest{
		PromptSlug: SlugTimeline,
		Variables:  map[string]string{"context": head(summary, TimelineContextLimit)},
	}, payload{})
	return normalizeEvents(got.Events)
}

// Telemetry scores case readiness. Scores are clamped to their scales.
func (e *Extractor) Telemetry(ctx context.Context, query, summary string) core.StrategicTelemetry {
	got, err := run(ctx, e, StageTelemetry, ailink.GenerateRequest{
		PromptSlug: SlugTelemetry,
		Variables:  map[string]string{"query": query, "context": head(summary, TelemetryContextLimit)},
	}, core.DefaultTelemetry())
	if err != nil {
		return got
	}
	got.ReadinessScore = clamp(got.ReadinessScore, 0, 100)
	got.ComplexityIndex = clamp(got.ComplexityIndex, 0, 10)
	got.ThreatMatrix = nonNil(got.ThreatMatrix)
	for i := range got.ThreatMatrix {
		got.ThreatMatrix[i].Impact = clamp(got.ThreatMatrix[i].Impact, 0, 10)
		got.ThreatMatrix[i].Probability = clamp(got.ThreatMatrix[i].Probability, 0, 10)
	}
	f := &got.StrategicFactors
	f.Evidence = clamp(f.Evidence, 0, 10)
	f.Procedural = clamp(f.Procedural, 0, 10)
	f.Jurisdictional = clamp(f.Jurisdictional, 0, 10)
	f.Resource = clamp(f.Resource, 0, 10)
	f.OpponentVulnerability = clamp(f.OpponentVulnerability, 0, 10)
	return got
}

// Adversarial predicts the opponent's next moves and the counters.
func (e *Extractor) Adversarial(ctx context.Context, query, summary string) core.AdversarialStrategy {
	got, _ := run(ctx, e, StageAdversarial, ailink.GenerateRequest{
		PromptSlug: SlugAdversarial,
		Variables:  map[string]string{"query": query, "context": head(summary, AdversarialContextLimit)},
	}, core.DefaultAdversarialStrategy())
	got.ProsecutorMoves = nonNil(got.ProsecutorMoves)
	got.DefenseCounters = nonNil(got.DefenseCounters)
	got.HiddenRisks = nonNil(got.HiddenRisks)
	return got
}

// IdentifiedJudges lists the judges named in the summary.
func (e *Extractor) IdentifiedJudges(ctx context.Context, summary string) []core.JudgeSummary {
	type payload struct {
		Judges []core.JudgeSummary `json:"judges"`
	}
	got, _ := run(ctx, e, StageIdentifiedJudges, ailink.GenerateRequest{
		PromptSlug: SlugIdentifiedJudges,
		Variables:  map[string]string{"context": head(summary, JudgesContextLimit)},
	}, payload{})
	judges := make([]core.JudgeSummary, 0, len(got.Judges))
	seen := make(map[string]struct{}, len(got.Judges))
	for _, j := range got.Judges {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		judges = append(judges, core.JudgeSummary{Name: name})
	}
	return judges
}

// JudgeDetails builds a grounded dossier. Unlike the enrichments, a failure
// here is returned to the caller.
func (e *Extractor) JudgeDetails(ctx context.Context, name string) (core.JudgeDetail, error) {
	name = strings.TrimSpace(name)
	got, err := run(ctx, e, StageJudgeDetails, ailink.GenerateRequest{
		PromptSlug: SlugJudgeDetails,
		Variables:  map[string]string{"judge_name": name},
	}, core.JudgeDetail{})
	if err != nil {
		return core.JudgeDetail{}, &core.GatewayError{
			Stage:   StageJudgeDetails,
			Message: fmt.Sprintf("Dossier retrieve failed for Judge %s.", name),
			Err:     err,
		}
	}
	if strings.TrimSpace(got.Name) == "" {
		got.Name = name
	}
	got.NotableCases = nonNil(got.NotableCases)
	got.Statistics = nonNil(got.Statistics)
	return got, nil
}

// AnalyzeDocument audits one document.
func (e *Extractor) AnalyzeDocument(ctx context.Context, doc core.Document) core.DocumentAnalysisResult {
	fallback := core.DefaultDocumentAnalysis(doc.Name)
	got, err := run(ctx, e, StageDocumentAnalysis, ailink.GenerateRequest{
		PromptSlug:  SlugDocumentAnalysis,
		Variables:   map[string]string{"file_name": doc.Name},
		Attachments: []content.ContentBlock{attachment(doc)},
	}, fallback)
	if err != nil {
		return got
	}
	// FileName is the bookmark identity and must match what was uploaded.
	got.FileName = doc.Name
	got.KeyArguments = nonNil(got.KeyArguments)
	got.IdentifiedEntities = nonNil(got.IdentifiedEntities)
	got.ActionableInsights = nonNil(got.ActionableInsights)
	return got
}

// CrossReference compares two documents, a then b.
func (e *Extractor) CrossReference(ctx context.Context, a, b core.Document) core.CrossReferenceResult {
	got, err := run(ctx, e, StageCrossReference, ailink.GenerateRequest{
		PromptSlug:  SlugCrossReference,
		Variables:   map[string]string{"file_a_name": a.Name, "file_b_name": b.Name},
		Attachments: []content.ContentBlock{attachment(a), attachment(b)},
	}, core.DefaultCrossReference(a.Name, b.Name))
	if err != nil {
		return got
	}
	got.FileAName = a.Name
	got.FileBName = b.Name
	got.OverallCredibilityScore = clamp(got.OverallCredibilityScore, 0, 100)
	got.Contradictions = nonNil(got.Contradictions)
	return got
}

// NarrativeMap extracts the entity graph and dual-track timeline of a
// document. Links pointing at unknown nodes are kept and logged.
func (e *Extractor) NarrativeMap(ctx context.Context, doc core.Document) core.NarrativeMapResult {
	got, err := run(ctx, e, StageNarrativeMap, ailink.GenerateRequest{
		PromptSlug:  SlugNarrativeMap,
		Variables:   map[string]string{"file_name": doc.Name},
		Attachments: []content.ContentBlock{attachment(doc)},
	}, core.DefaultNarrativeMap())
	if err != nil {
		return got
	}
	got.Nodes = nonNil(got.Nodes)
	got.Links = nonNil(got.Links)
	got.Timeline = normalizeEvents(got.Timeline)
	if dangling := got.DanglingLinks(); len(dangling) > 0 {
		e.warn("narrative map has dangling links",
			zap.String("file", doc.Name),
			zap.Int("dangling", len(dangling)),
			zap.Int("links", len(got.Links)))
	}
	return got
}

// AskFollowUp answers a free-text question about a prior analysis. A gateway
// failure is returned; an empty answer becomes core.AnswerUnavailable.
func (e *Extractor) AskFollowUp(ctx context.Context, analysis any, question string) (string, error) {
	raw, err := json.Marshal(analysis)
	if err != nil {
		return "", fmt.Errorf("encode analysis context: %w", err)
	}
	start := time.Now()
	resp, err := e.gw.Generate(ctx, ailink.GenerateRequest{
		PromptSlug: SlugDocumentQuestion,
		Variables:  map[string]string{"context": string(raw), "question": strings.TrimSpace(question)},
	})
	if e.recorder != nil {
		e.recorder.RecordExtraction(StageAskFollowUp, err == nil, time.Since(start))
	}
	if err != nil {
		return "", &core.GatewayError{Stage: StageAskFollowUp, Err: err}
	}
	answer := ""
	if resp != nil {
		answer = strings.TrimSpace(resp.Text)
	}
	if answer == "" {
		return core.AnswerUnavailable, nil
	}
	return answer, nil
}

func attachment(doc core.Document) content.ContentBlock {
	return content.Binary(doc.MIMEType, doc.Data)
}

func normalizeEvents(events []core.TimelineEvent) []core.TimelineEvent {
	events = nonNil(events)
	for i := range events {
		switch events[i].Type {
		case core.EventFiling, core.EventMotion, core.EventCourtDate, core.EventRuling, core.EventOther:
		default:
			events[i].Type = core.EventOther
		}
	}
	return events
}
