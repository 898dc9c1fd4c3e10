// Package extract runs single-shot structured model calls. Every enrichment
// of a search result and every document feature is one Run with its own
// prompt and its own fallback value.
package extract

import (
	"context"
	"errors"
	"iter"
	"time"
	"unicode/utf8"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/ailink"
	"github.com/courtcopilot/courtcopilot/internal/ailink/decode"
)

// Prompt slugs in the embedded prompt set.
const (
	SlugSearch           = "legal-search"
	SlugFollowUps        = "follow-up-questions"
	SlugRelatedQueries   = "related-queries"
	SlugTimeline         = "timeline"
	SlugTelemetry        = "telemetry"
	SlugAdversarial      = "adversarial-strategy"
	SlugIdentifiedJudges = "identified-judges"
	SlugJudgeDetails     = "judge-details"
	SlugDocumentAnalysis = "document-analysis"
	SlugCrossReference   = "cross-reference"
	SlugNarrativeMap     = "narrative-map"
	SlugDocumentQuestion = "document-question"
)

// Context bounds, in characters, of the summary passed to each extraction.
const (
	FollowUpContextLimit    = 1000
	AdversarialContextLimit = 4000
	TelemetryContextLimit   = 4000
	JudgesContextLimit      = 4000
	TimelineContextLimit    = 5000
)

// ErrUndecodable is returned by Run when the response holds no usable JSON.
var ErrUndecodable = errors.New("response is not decodable JSON")

// Gateway is the model surface extractions and the search stream run on.
// *ailink.Service satisfies it.
type Gateway interface {
	Generate(ctx context.Context, req ailink.GenerateRequest) (*ailink.GenerateResponse, error)
	Stream(ctx context.Context, req ailink.GenerateRequest) iter.Seq2[ailink.Chunk, error]
}

// Recorder observes the outcome of every extraction.
type Recorder interface {
	RecordExtraction(stage string, ok bool, elapsed time.Duration)
}

// Run issues exactly one non-streaming request and decodes the JSON in its
// text into T. On a gateway or decode failure it returns fallback together
// with the cause; callers decide whether the cause matters.
func Run[T any](ctx context.Context, gw Gateway, req ailink.GenerateRequest, fallback T) (T, error) {
	resp, err := gw.Generate(ctx, req)
	if err != nil {
		return fallback, err
	}
	if resp == nil {
		return fallback, ErrUndecodable
	}
	value, ok := decode.Decode[T](resp.Text)
	if !ok {
		return fallback, ErrUndecodable
	}
	return value, nil
}

// Extractor binds the extraction features to a gateway.
type Extractor struct {
	gw       Gateway
	logger   *logging.Logger
	recorder Recorder
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger attaches a logger for fallbacks and integrity diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// WithRecorder attaches an outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Extractor) { e.recorder = r }
}

// New returns an Extractor over gw.
func New(gw Gateway, opts ...Option) *Extractor {
	e := &Extractor{gw: gw}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run wraps Run with logging and outcome recording.
func run[T any](ctx context.Context, e *Extractor, stage string, req ailink.GenerateRequest, fallback T) (T, error) {
	start := time.Now()
	value, err := Run(ctx, e.gw, req, fallback)
	if e.recorder != nil {
		e.recorder.RecordExtraction(stage, err == nil, time.Since(start))
	}
	if err != nil {
		e.warn("extraction fell back to default", zap.String("stage", stage), zap.Error(err))
	}
	return value, err
}

func (e *Extractor) warn(msg string, fields ...zap.Field) {
	if e.logger != nil {
		e.logger.Warn(msg, fields...)
	}
}

// head returns at most n characters of s.
func head(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
