package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/courtcopilot/courtcopilot/internal/core"
)

// block is one titled part of a report: a paragraph, a list, or a grid.
type block struct {
	Title  string
	Text   string
	Lines  []string
	Header table.Row
	Rows   []table.Row
}

func (b block) empty() bool {
	return strings.TrimSpace(b.Text) == "" && len(b.Lines) == 0 && len(b.Rows) == 0
}

type report struct {
	Title  string
	Blocks []block
}

func (r *report) add(b block) {
	if !b.empty() {
		r.Blocks = append(r.Blocks, b)
	}
}

func buildReport(v any) (report, error) {
	switch value := v.(type) {
	case SearchReport:
		return searchReport(value), nil
	case *SearchReport:
		return searchReport(*value), nil
	case []core.Bookmark:
		return bookmarksReport(value), nil
	case []core.SearchRequest:
		return historyReport(value), nil
	case core.DocumentAnalysisResult:
		return documentReport(value), nil
	case core.CrossReferenceResult:
		return crossReferenceReport(value), nil
	case core.NarrativeMapResult:
		return narrativeReport(value), nil
	case core.JudgeDetail:
		return judgeReport(value), nil
	default:
		return report{}, fmt.Errorf("cannot render %T", v)
	}
}

func searchReport(s SearchReport) report {
	res := s.Result
	r := report{Title: "Search: " + s.Request.Query}
	if s.Cached {
		r.Title += " (cached)"
	}
	r.add(block{Title: "Summary", Text: res.Summary})

	sources := block{Title: "Sources", Header: table.Row{"#", "Title", "URI"}}
	for i, src := range res.Sources {
		sources.Rows = append(sources.Rows, table.Row{i + 1, src.Title, src.URI})
	}
	r.add(sources)
	r.add(timelineBlock("Timeline", res.TimelineEvents))

	judges := block{Title: "Identified judges"}
	for _, j := range res.IdentifiedJudges {
		judges.Lines = append(judges.Lines, j.Name)
	}
	r.add(judges)

	if t := res.Telemetry; t != nil {
		f := t.StrategicFactors
		r.add(block{Title: "Case telemetry", Lines: []string{
			fmt.Sprintf("Readiness: %s/100", score(t.ReadinessScore)),
			fmt.Sprintf("Complexity: %s/10", score(t.ComplexityIndex)),
			fmt.Sprintf("Factors: evidence %s, procedural %s, jurisdictional %s, resource %s, opponent %s",
				score(f.Evidence), score(f.Procedural), score(f.Jurisdictional), score(f.Resource), score(f.OpponentVulnerability)),
		}})
		threats := block{Title: "Threat matrix", Header: table.Row{"Threat", "Impact", "Probability"}}
		for _, n := range t.ThreatMatrix {
			threats.Rows = append(threats.Rows, table.Row{n.Label, score(n.Impact), score(n.Probability)})
		}
		r.add(threats)
	}
	if a := res.AdversarialStrategy; a != nil {
		r.add(block{Title: "Opponent moves", Lines: a.ProsecutorMoves})
		r.add(block{Title: "Counters", Lines: a.DefenseCounters})
		r.add(block{Title: "Hidden risks", Lines: a.HiddenRisks})
	}
	r.add(block{Title: "Follow-up questions", Lines: res.FollowUpQuestions})
	r.add(block{Title: "Related searches", Lines: res.RelatedQueries})
	return r
}

func timelineBlock(title string, events []core.TimelineEvent) block {
	b := block{Title: title, Header: table.Row{"Date", "Type", "Track", "Description", "Citation"}}
	for _, e := range events {
		b.Rows = append(b.Rows, table.Row{e.Date, string(e.Type), string(e.NarrativeTrack), e.Description, e.Citation})
	}
	return b
}

func bookmarksReport(list []core.Bookmark) report {
	r := report{Title: fmt.Sprintf("Bookmarks (%d)", len(list))}
	b := block{Title: "Saved", Header: table.Row{"Key", "Type", "Title", "Saved"}}
	for _, bm := range list {
		b.Rows = append(b.Rows, table.Row{bm.Key, string(bm.Kind), bm.Title(), bm.SavedAt.Local().Format(time.DateTime)})
	}
	r.add(b)
	return r
}

func historyReport(list []core.SearchRequest) report {
	r := report{Title: fmt.Sprintf("Recent searches (%d)", len(list))}
	b := block{Title: "History", Header: table.Row{"#", "Query", "Filters"}}
	for i, req := range list {
		b.Rows = append(b.Rows, table.Row{i + 1, req.Query, strings.Join(filters(req), ", ")})
	}
	r.add(b)
	return r
}

// filters lists the request fields that narrow a search.
func filters(req core.SearchRequest) []string {
	var out []string
	add := func(name, value string) {
		if value != "" && value != "all" && value != "any" {
			out = append(out, name+"="+value)
		}
	}
	if req.SearchType != core.SearchTypeSearch {
		add("type", string(req.SearchType))
	}
	add("jurisdiction", string(req.Jurisdiction))
	add("case", string(req.CaseType))
	add("status", string(req.CaseStatus))
	add("range", string(req.DateRange))
	add("party", req.PartyName)
	add("number", req.CaseNumber)
	add("site", req.SiteRestrict)
	add("file", req.FileType)
	if req.ListCount > 0 {
		add("list", strconv.Itoa(req.ListCount))
	}
	return out
}

func documentReport(d core.DocumentAnalysisResult) report {
	r := report{Title: "Document: " + d.FileName}
	r.add(block{Title: "Strategic summary", Text: d.StrategicSummary})
	r.add(block{Title: "Key arguments", Lines: d.KeyArguments})
	entities := block{Title: "Entities", Header: table.Row{"Type", "Value"}}
	for _, e := range d.IdentifiedEntities {
		entities.Rows = append(entities.Rows, table.Row{string(e.Type), e.Value})
	}
	r.add(entities)
	r.add(block{Title: "Actionable insights", Lines: d.ActionableInsights})
	return r
}

func crossReferenceReport(x core.CrossReferenceResult) report {
	r := report{Title: fmt.Sprintf("Cross-reference: %s vs %s", x.FileAName, x.FileBName)}
	r.add(block{Title: "Credibility", Text: score(x.OverallCredibilityScore) + "/100"})
	r.add(block{Title: "Discrepancies", Text: x.SummaryOfDiscrepancies})
	contradictions := block{Title: "Contradictions", Header: table.Row{"Topic", "Severity", x.FileAName, x.FileBName, "Analysis"}}
	for _, c := range x.Contradictions {
		contradictions.Rows = append(contradictions.Rows, table.Row{c.Topic, string(c.Severity), c.SourceAClaim, c.SourceBClaim, c.Analysis})
	}
	r.add(contradictions)
	return r
}

func narrativeReport(m core.NarrativeMapResult) report {
	r := report{Title: "Narrative map"}
	r.add(block{Title: "Assessment", Text: m.StrategicAssessment})
	nodes := block{Title: "Entities", Header: table.Row{"ID", "Label", "Type", "Brady", "Citation"}}
	for _, n := range m.Nodes {
		nodes.Rows = append(nodes.Rows, table.Row{n.ID, n.Label, string(n.Type), n.BradyFlag, n.SourceCitation})
	}
	r.add(nodes)
	links := block{Title: "Links", Header: table.Row{"From", "To", "Type", "Label"}}
	for _, l := range m.Links {
		links.Rows = append(links.Rows, table.Row{l.Source, l.Target, string(l.Type), l.Label})
	}
	r.add(links)
	dangling := block{Title: "Links to unknown entities"}
	for _, l := range m.DanglingLinks() {
		dangling.Lines = append(dangling.Lines, fmt.Sprintf("%s -> %s (%s)", l.Source, l.Target, l.Label))
	}
	r.add(dangling)
	r.add(timelineBlock("Dual-track timeline", m.Timeline))
	return r
}

func judgeReport(j core.JudgeDetail) report {
	r := report{Title: "Judge: " + j.Name}
	r.add(block{Title: "Tendencies", Text: j.Tendencies})
	if j.AverageTimeToDisposition != "" {
		r.add(block{Title: "Average time to disposition", Text: j.AverageTimeToDisposition})
	}

	stats := block{Title: "Statistics"}
	for _, s := range j.Statistics {
		var parts []string
		if s.TotalCases > 0 {
			parts = append(parts, "total cases "+score(s.TotalCases))
		}
		if s.ConvictionRate != "" {
			parts = append(parts, "conviction rate "+s.ConvictionRate)
		}
		if s.AverageSentence != "" {
			parts = append(parts, "average sentence "+s.AverageSentence)
		}
		if s.CaseLoad != "" {
			parts = append(parts, "case load "+s.CaseLoad)
		}
		if len(parts) > 0 {
			stats.Lines = append(stats.Lines, strings.Join(parts, ", "))
		}
	}
	r.add(stats)

	cases := block{Title: "Notable cases", Header: table.Row{"Case", "Outcome", "Date"}}
	for _, c := range j.NotableCases {
		cases.Rows = append(cases.Rows, table.Row{c.CaseName, c.Outcome, c.Date})
	}
	r.add(cases)

	patterns := block{Title: "Ruling patterns", Header: table.Row{"Case type", "Pattern", "Share", "Risk"}}
	for _, p := range j.RulingPatternsByCaseType {
		patterns.Rows = append(patterns.Rows, table.Row{p.CaseType, p.Pattern, p.Percentage, string(p.RiskLevel)})
	}
	r.add(patterns)

	sentencing := block{Title: "Sentencing", Header: table.Row{"Offense", "Average sentence"}}
	for _, s := range j.SentencingData {
		sentencing.Rows = append(sentencing.Rows, table.Row{s.Offense, s.AverageSentence})
	}
	r.add(sentencing)

	r.add(block{Title: "Strategic insights", Text: j.StrategicInsights})
	return r
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
