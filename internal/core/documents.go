package core

// JudgeSummary names a judge identified in a narrative.
type JudgeSummary struct {
	Name string `json:"name"`
}

// NotableCase is a case a judge presided over.
type NotableCase struct {
	CaseName string `json:"caseName"`
	Outcome  string `json:"outcome"`
	Date     string `json:"date"`
}

// JudgeStatistics is one block of docket statistics.
type JudgeStatistics struct {
	TotalCases      float64 `json:"totalCases,omitempty"`
	ConvictionRate  string  `json:"convictionRate,omitempty"`
	AverageSentence string  `json:"averageSentence,omitempty"`
	CaseLoad        string  `json:"caseLoad,omitempty"`
}

// RiskLevel grades the danger a ruling pattern poses to the defense.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RulingPattern describes how a judge tends to rule for a case type.
type RulingPattern struct {
	CaseType   string    `json:"caseType"`
	Pattern    string    `json:"pattern"`
	Percentage string    `json:"percentage,omitempty"`
	RiskLevel  RiskLevel `json:"riskLevel,omitempty"`
}

// SentencingEntry is an average sentence for an offense.
type SentencingEntry struct {
	Offense         string `json:"offense"`
	AverageSentence string `json:"averageSentence"`
}

// JudgeDetail is the dossier returned for a single judge.
type JudgeDetail struct {
	Name                     string            `json:"name"`
	Tendencies               string            `json:"tendencies"`
	NotableCases             []NotableCase     `json:"notableCases"`
	Statistics               []JudgeStatistics `json:"statistics"`
	RulingPatternsByCaseType []RulingPattern   `json:"rulingPatternsByCaseType,omitempty"`
	AverageTimeToDisposition string            `json:"averageTimeToDisposition,omitempty"`
	SentencingData           []SentencingEntry `json:"sentencingData,omitempty"`
	StrategicInsights        string            `json:"strategicInsights"`
}

// EntityType classifies a value pulled out of a document.
type EntityType string

const (
	EntityJudge      EntityType = "judge"
	EntityParty      EntityType = "party"
	EntityDate       EntityType = "date"
	EntityCaseNumber EntityType = "case_number"
	EntityOther      EntityType = "other"
)

// Entity is a typed key/value pair identified in a document.
type Entity struct {
	Type  EntityType `json:"type"`
	Value string     `json:"value"`
}

// DocumentAnalysisResult is the strategic audit of one document.
// FileName is its bookmark identity.
type DocumentAnalysisResult struct {
	FileName           string   `json:"fileName"`
	StrategicSummary   string   `json:"strategicSummary"`
	KeyArguments       []string `json:"keyArguments"`
	IdentifiedEntities []Entity `json:"identifiedEntities"`
	ActionableInsights []string `json:"actionableInsights"`
}

// Severity grades a contradiction.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Contradiction is one conflicting claim between two documents.
type Contradiction struct {
	Topic        string   `json:"topic"`
	Severity     Severity `json:"severity"`
	SourceAClaim string   `json:"sourceAClaim"`
	SourceBClaim string   `json:"sourceBClaim"`
	Analysis     string   `json:"analysis"`
}

// CrossReferenceResult compares two documents. The (FileAName, FileBName)
// pair, in that order, is its bookmark identity.
type CrossReferenceResult struct {
	FileAName               string          `json:"fileAName"`
	FileBName               string          `json:"fileBName"`
	OverallCredibilityScore float64         `json:"overallCredibilityScore"`
	SummaryOfDiscrepancies  string          `json:"summaryOfDiscrepancies"`
	Contradictions          []Contradiction `json:"contradictions"`
}

// NodeType classifies a narrative graph node.
type NodeType string

const (
	NodePerson      NodeType = "person"
	NodeLocation    NodeType = "location"
	NodeAsset       NodeType = "asset"
	NodeInstitution NodeType = "institution"
	NodeEvent       NodeType = "event"
)

// LinkType classifies a narrative graph edge.
type LinkType string

const (
	LinkExplicit      LinkType = "explicit"
	LinkInferred      LinkType = "inferred"
	LinkContradiction LinkType = "contradiction"
)

// NarrativeNode is a graph vertex. BradyFlag is an opaque exculpatory tag.
type NarrativeNode struct {
	ID             string   `json:"id"`
	Label          string   `json:"label"`
	Type           NodeType `json:"type"`
	Description    string   `json:"description,omitempty"`
	BradyFlag      string   `json:"bradyFlag,omitempty"`
	EvidenceTags   []string `json:"evidenceTags,omitempty"`
	SourceCitation string   `json:"sourceCitation,omitempty"`
}

// NarrativeLink is a graph edge between two node ids.
type NarrativeLink struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Label    string   `json:"label"`
	Type     LinkType `json:"type"`
	Evidence string   `json:"evidence,omitempty"`
}

// NarrativeMapResult is the entity graph plus dual-track timeline of a document.
type NarrativeMapResult struct {
	Nodes               []NarrativeNode `json:"nodes"`
	Links               []NarrativeLink `json:"links"`
	Timeline            []TimelineEvent `json:"timeline"`
	StrategicAssessment string          `json:"strategicAssessment"`
}

// DanglingLinks reports links whose source or target is not a known node id.
// Links are never removed; this is a diagnostic only.
func (m NarrativeMapResult) DanglingLinks() []NarrativeLink {
	ids := make(map[string]struct{}, len(m.Nodes))
	for _, node := range m.Nodes {
		ids[node.ID] = struct{}{}
	}
	var dangling []NarrativeLink
	for _, link := range m.Links {
		_, okSource := ids[link.Source]
		_, okTarget := ids[link.Target]
		if !okSource || !okTarget {
			dangling = append(dangling, link)
		}
	}
	return dangling
}

// Document is an uploaded file passed inline to the model. Name is the
// identity used for fingerprints and bookmarks; MIMEType defaults to PDF.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}
