package core

// Fallback values returned by extractions that fail. Each is fully populated
// so a failed enrichment renders as empty rather than as an error.

const (
	DocumentFailureSummary       = "Audit failure."
	CrossReferenceFailureSummary = "Sync failure."
	NarrativeFailureAssessment   = "Mapping failure."
	AnswerUnavailable            = "Connection unstable."
)

// DefaultAdversarialStrategy is the fallback for a failed adversarial extraction.
func DefaultAdversarialStrategy() AdversarialStrategy {
	return AdversarialStrategy{
		ProsecutorMoves: []string{},
		DefenseCounters: []string{},
		HiddenRisks:     []string{},
	}
}

// DefaultTelemetry is the fallback for a failed telemetry extraction.
func DefaultTelemetry() StrategicTelemetry {
	return StrategicTelemetry{
		ReadinessScore:   0,
		ThreatMatrix:     []ThreatNode{},
		ComplexityIndex:  0,
		StrategicFactors: StrategicFactors{},
	}
}

// DefaultDocumentAnalysis is the fallback for a failed document audit.
func DefaultDocumentAnalysis(fileName string) DocumentAnalysisResult {
	return DocumentAnalysisResult{
		FileName:           fileName,
		StrategicSummary:   DocumentFailureSummary,
		KeyArguments:       []string{},
		IdentifiedEntities: []Entity{},
		ActionableInsights: []string{},
	}
}

// DefaultCrossReference is the fallback for a failed cross-reference.
func DefaultCrossReference(fileAName, fileBName string) CrossReferenceResult {
	return CrossReferenceResult{
		FileAName:               fileAName,
		FileBName:               fileBName,
		OverallCredibilityScore: 0,
		SummaryOfDiscrepancies:  CrossReferenceFailureSummary,
		Contradictions:          []Contradiction{},
	}
}

// DefaultNarrativeMap is the fallback for a failed narrative mapping.
func DefaultNarrativeMap() NarrativeMapResult {
	return NarrativeMapResult{
		Nodes:               []NarrativeNode{},
		Links:               []NarrativeLink{},
		Timeline:            []TimelineEvent{},
		StrategicAssessment: NarrativeFailureAssessment,
	}
}
