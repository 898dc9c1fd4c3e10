package core

// SearchType selects the flavour of research the primary call performs.
type SearchType string

const (
	SearchTypeSearch   SearchType = "search"
	SearchTypeNews     SearchType = "news"
	SearchTypeAcademic SearchType = "academic"
)

// DateRange bounds the recency of grounded sources.
type DateRange string

const (
	DateRangeAny   DateRange = "any"
	DateRangeDay   DateRange = "day"
	DateRangeWeek  DateRange = "week"
	DateRangeMonth DateRange = "month"
	DateRangeYear  DateRange = "year"
)

// CaseStatus filters by docket state.
type CaseStatus string

const (
	CaseStatusAll    CaseStatus = "all"
	CaseStatusOpen   CaseStatus = "open"
	CaseStatusClosed CaseStatus = "closed"
)

// CaseType filters by docket category.
type CaseType string

const (
	CaseTypeAll      CaseType = "all"
	CaseTypeCivil    CaseType = "civil"
	CaseTypeCriminal CaseType = "criminal"
	CaseTypeFamily   CaseType = "family"
	CaseTypeProbate  CaseType = "probate"
	CaseTypeTraffic  CaseType = "traffic"
)

// Jurisdiction limits research to a court.
type Jurisdiction string

const (
	JurisdictionAll             Jurisdiction = "all"
	JurisdictionDenverDistrict  Jurisdiction = "denver_district"
	JurisdictionDenverCounty    Jurisdiction = "denver_county"
	JurisdictionColoradoSupreme Jurisdiction = "colorado_supreme"
	JurisdictionColoradoAppeals Jurisdiction = "colorado_appeals"
)

const (
	// MaxQueryLength is the longest query, in characters, the pipeline accepts.
	MaxQueryLength = 10000
	MinListCount   = 1
	MaxListCount   = 50
)

// SearchRequest is the immutable set of user-supplied search parameters.
//
// JSON names match the persisted form so fingerprints and stored bookmarks
// stay readable across versions. Zero values mean "unset".
type SearchRequest struct {
	Query        string       `json:"query"`
	SearchType   SearchType   `json:"searchType,omitempty"`
	ListCount    int          `json:"listCount,omitempty"`
	DateRange    DateRange    `json:"dateRange,omitempty"`
	SiteRestrict string       `json:"siteRestrict,omitempty"`
	FileType     string       `json:"fileType,omitempty"`
	PartyName    string       `json:"partyName,omitempty"`
	CaseStatus   CaseStatus   `json:"caseStatus,omitempty"`
	CaseType     CaseType     `json:"caseType,omitempty"`
	Jurisdiction Jurisdiction `json:"jurisdiction,omitempty"`
	CaseNumber   string       `json:"caseNumber,omitempty"`
}

// Source is a grounding citation attached to the narrative.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// TimelineEventType classifies a docket event.
type TimelineEventType string

const (
	EventFiling    TimelineEventType = "filing"
	EventMotion    TimelineEventType = "motion"
	EventCourtDate TimelineEventType = "court_date"
	EventRuling    TimelineEventType = "ruling"
	EventOther     TimelineEventType = "other"
)

// NarrativeTrack tags which side's story an event belongs to.
type NarrativeTrack string

const (
	TrackProsecution NarrativeTrack = "prosecution"
	TrackDefense     NarrativeTrack = "defense"
	TrackUndisputed  NarrativeTrack = "undisputed"
)

// TimelineEvent is a single dated event. Date is model-provided and opaque.
type TimelineEvent struct {
	Date           string            `json:"date"`
	Description    string            `json:"description"`
	Type           TimelineEventType `json:"type"`
	NarrativeTrack NarrativeTrack    `json:"narrativeTrack,omitempty"`
	Citation       string            `json:"citation,omitempty"`
}

// AdversarialStrategy predicts the opponent's moves and the counters to them.
type AdversarialStrategy struct {
	ProsecutorMoves []string `json:"prosecutorMoves"`
	DefenseCounters []string `json:"defenseCounters"`
	HiddenRisks     []string `json:"hiddenRisks"`
}

// ThreatNode is one entry of the threat matrix, both axes scored 1-10.
type ThreatNode struct {
	Label       string  `json:"label"`
	Impact      float64 `json:"impact"`
	Probability float64 `json:"probability"`
}

// StrategicFactors are 1-10 scores along the radar axes.
type StrategicFactors struct {
	Evidence              float64 `json:"evidence"`
	Procedural            float64 `json:"procedural"`
	Jurisdictional        float64 `json:"jurisdictional"`
	Resource              float64 `json:"resource"`
	OpponentVulnerability float64 `json:"opponentVulnerability"`
}

// StrategicTelemetry summarises case readiness.
type StrategicTelemetry struct {
	ReadinessScore   float64          `json:"readinessScore"`
	ThreatMatrix     []ThreatNode     `json:"threatMatrix"`
	ComplexityIndex  float64          `json:"complexityIndex"`
	StrategicFactors StrategicFactors `json:"strategicFactors"`
}

// SearchResult is the aggregate view-model built by the search pipeline.
//
// Every intermediate value is renderable: nil substructures render empty and
// a true loading flag renders as pending.
type SearchResult struct {
	Summary             string               `json:"summary"`
	Sources             []Source             `json:"sources"`
	FollowUpQuestions   []string             `json:"followUpQuestions,omitempty"`
	RelatedQueries      []string             `json:"relatedQueries,omitempty"`
	TimelineEvents      []TimelineEvent      `json:"timelineEvents,omitempty"`
	IdentifiedJudges    []JudgeSummary       `json:"identifiedJudges,omitempty"`
	AdversarialStrategy *AdversarialStrategy `json:"adversarialStrategy,omitempty"`
	Telemetry           *StrategicTelemetry  `json:"telemetry,omitempty"`

	IsSummaryStreaming         bool `json:"isSummaryStreaming"`
	IsFollowUpQuestionsLoading bool `json:"isFollowUpQuestionsLoading"`
	IsRelatedQueriesLoading    bool `json:"isRelatedQueriesLoading"`
	IsTimelineLoading          bool `json:"isTimelineLoading"`
	IsIdentifiedJudgesLoading  bool `json:"isIdentifiedJudgesLoading"`
	IsAdversarialLoading       bool `json:"isAdversarialLoading"`
	IsTelemetryLoading         bool `json:"isTelemetryLoading"`
}

// Settled returns a copy with every loading flag cleared.
func (r SearchResult) Settled() SearchResult {
	r.IsSummaryStreaming = false
	r.IsFollowUpQuestionsLoading = false
	r.IsRelatedQueriesLoading = false
	r.IsTimelineLoading = false
	r.IsIdentifiedJudgesLoading = false
	r.IsAdversarialLoading = false
	r.IsTelemetryLoading = false
	return r
}

// Clone returns a deep copy so snapshots never alias the in-flight result.
func (r SearchResult) Clone() SearchResult {
	out := r
	out.Sources = cloneSlice(r.Sources)
	out.FollowUpQuestions = cloneSlice(r.FollowUpQuestions)
	out.RelatedQueries = cloneSlice(r.RelatedQueries)
	out.TimelineEvents = cloneSlice(r.TimelineEvents)
	out.IdentifiedJudges = cloneSlice(r.IdentifiedJudges)
	if r.AdversarialStrategy != nil {
		adv := AdversarialStrategy{
			ProsecutorMoves: cloneSlice(r.AdversarialStrategy.ProsecutorMoves),
			DefenseCounters: cloneSlice(r.AdversarialStrategy.DefenseCounters),
			HiddenRisks:     cloneSlice(r.AdversarialStrategy.HiddenRisks),
		}
		out.AdversarialStrategy = &adv
	}
	if r.Telemetry != nil {
		tel := *r.Telemetry
		tel.ThreatMatrix = cloneSlice(r.Telemetry.ThreatMatrix)
		out.Telemetry = &tel
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
