package ailink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/fulmenhq/gofulmen/schema"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/ailink/content"
	"github.com/courtcopilot/courtcopilot/internal/ailink/decode"
	"github.com/courtcopilot/courtcopilot/internal/ailink/driver"
	"github.com/courtcopilot/courtcopilot/internal/ailink/prompt"
)

const (
	defaultTimeout = 60 * time.Second
	maxTimeout     = 10 * time.Minute
)

// Service coordinates prompt loading, provider selection, and driver execution.
type Service struct {
	Providers *Registry
	Registry  prompt.Registry
	Logger    *logging.Logger

	closeTrace func()
}

// NewService builds a service from configuration: the embedded prompt set
// (overlaid by cfg.PromptsDir) and the configured providers. When
// cfg.Debug.TraceFile is set every model call is traced there.
func NewService(cfg Config, logger *logging.Logger) (*Service, error) {
	registry, err := prompt.LoadRegistry(cfg.PromptsDir)
	if err != nil {
		return nil, err
	}
	svc := &Service{
		Providers: NewRegistry(cfg),
		Registry:  registry,
		Logger:    logger,
	}
	if path := strings.TrimSpace(cfg.Debug.TraceFile); path != "" {
		closeFn, err := driver.EnableTracing(path)
		if err != nil {
			return nil, fmt.Errorf("enable tracing: %w", err)
		}
		svc.closeTrace = closeFn
	}
	return svc, nil
}

// Close releases the trace file, if any.
func (s *Service) Close() {
	if s != nil && s.closeTrace != nil {
		s.closeTrace()
		s.closeTrace = nil
	}
}

// Generate runs a prompt to completion.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	call, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, call.timeout)
	defer cancel()

	resp, err := call.resolved.Driver.Complete(ctx, call.request)
	if err != nil {
		return nil, err
	}

	out := &GenerateResponse{
		Text:         resp.Text(),
		Citations:    resp.Citations,
		FinishReason: resp.FinishReason,
		Model:        call.resolved.Model,
		Usage:        resp.Usage,
	}
	if call.prompt.WantsJSON() {
		out.SchemaError = validateResponse(call.prompt, out.Text)
		if out.SchemaError != nil {
			s.warn("response does not match schema",
				zap.String("prompt", call.prompt.Config.Slug),
				zap.Error(out.SchemaError))
		}
	}
	return out, nil
}

// Stream runs a prompt and yields its output incrementally. The sequence
// ends after the first error.
func (s *Service) Stream(ctx context.Context, req GenerateRequest) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		call, err := s.prepare(req)
		if err != nil {
			yield(Chunk{}, err)
			return
		}
		for resp, err := range call.resolved.Driver.Stream(ctx, call.request) {
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			if !yield(Chunk{Text: resp.Text(), Citations: resp.Citations}, nil) {
				return
			}
		}
	}
}

type preparedCall struct {
	prompt   *prompt.Prompt
	resolved *ResolvedProvider
	request  *driver.Request
	timeout  time.Duration
}

func (s *Service) prepare(req GenerateRequest) (*preparedCall, error) {
	if s == nil || s.Providers == nil {
		return nil, errors.New("ailink provider registry not configured")
	}
	if s.Registry == nil {
		return nil, errors.New("ailink prompt registry not configured")
	}

	slug := strings.TrimSpace(req.PromptSlug)
	if slug == "" {
		return nil, errors.New("prompt slug is required")
	}
	promptDef, err := s.Registry.Get(slug)
	if err != nil {
		return nil, err
	}

	for _, required := range promptDef.Config.Input.RequiredVariables {
		if val, ok := req.Variables[required]; !ok || strings.TrimSpace(val) == "" {
			return nil, fmt.Errorf("required variable %q not provided", required)
		}
	}
	if err := checkAttachments(promptDef, req.Attachments); err != nil {
		return nil, err
	}

	system, user := renderPrompt(promptDef, req.Variables)

	userBlocks := make([]content.ContentBlock, 0, len(req.Attachments)+1)
	userBlocks = append(userBlocks, req.Attachments...)
	userBlocks = append(userBlocks, content.Text(user))

	resolved, err := s.Providers.Resolve(promptDef, req.Model)
	if err != nil {
		return nil, err
	}

	driverReq := &driver.Request{
		Model:             resolved.Model,
		SystemInstruction: system,
		Messages:          []content.Message{{Role: "user", Content: userBlocks}},
		Tools:             promptTools(promptDef),
		ThinkingBudget:    promptDef.Config.ThinkingBudget,
		PromptSlug:        promptDef.Config.Slug,
	}
	if promptDef.WantsJSON() {
		driverReq.ResponseFormat = &driver.ResponseFormat{Type: "json_object", Schema: promptDef.Config.ResponseSchema}
	}

	duration := s.Providers.cfg.DefaultTimeout
	if duration <= 0 {
		duration = defaultTimeout
	}
	if req.TimeoutSec > 0 {
		duration = time.Duration(req.TimeoutSec) * time.Second
	}
	if duration > maxTimeout {
		duration = maxTimeout
	}

	return &preparedCall{prompt: promptDef, resolved: resolved, request: driverReq, timeout: duration}, nil
}

func checkAttachments(def *prompt.Prompt, attachments []content.ContentBlock) error {
	if len(attachments) == 0 {
		return nil
	}
	input := def.Config.Input
	if !input.AcceptsDocuments {
		return fmt.Errorf("prompt %q does not accept documents", def.Config.Slug)
	}
	if input.MaxDocuments > 0 && len(attachments) > input.MaxDocuments {
		return fmt.Errorf("prompt %q accepts at most %d documents", def.Config.Slug, input.MaxDocuments)
	}
	for _, att := range attachments {
		if len(att.Data) == 0 {
			return fmt.Errorf("attachment of type %s is empty", att.Type)
		}
		if len(input.DocumentTypes) > 0 && !slices.Contains(input.DocumentTypes, string(att.Type)) {
			return fmt.Errorf("prompt %q does not accept %s", def.Config.Slug, att.Type)
		}
	}
	return nil
}

func promptTools(def *prompt.Prompt) []driver.Tool {
	if def == nil || len(def.Config.Tools) == 0 {
		return nil
	}
	tools := make([]driver.Tool, 0, len(def.Config.Tools))
	for _, tool := range def.Config.Tools {
		tools = append(tools, driver.Tool{Type: tool.Type, Config: tool.Config})
	}
	return tools
}

// renderPrompt applies conditionals and then variables to both templates.
func renderPrompt(def *prompt.Prompt, vars map[string]string) (string, string) {
	system := applyConditionals(def.Config.SystemTemplate, vars)
	system = applyVars(system, vars)

	user := applyConditionals(def.Config.UserTemplate, vars)
	user = applyVars(user, vars)
	return strings.TrimSpace(system), strings.TrimSpace(user)
}

func applyVars(template string, vars map[string]string) string {
	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}

// applyConditionals handles {{#if var}}content{{else}}fallback{{/if}} blocks.
// If the variable exists and is non-empty, the content is included; otherwise the fallback is used.
func applyConditionals(template string, vars map[string]string) string {
	result := template
	for {
		start := strings.Index(result, "{{#if")
		if start == -1 {
			break
		}
		tagEnd := strings.Index(result[start:], "}}")
		if tagEnd == -1 {
			break
		}
		tagEnd += start

		varName := strings.TrimSpace(result[start+len("{{#if") : tagEnd])
		blockStart := tagEnd + 2

		elseStart, elseEnd, endStart, endEnd := findConditionalBlock(result, blockStart)
		if endStart == -1 {
			break
		}

		ifContent := result[blockStart:endStart]
		elseContent := ""
		if elseStart != -1 {
			ifContent = result[blockStart:elseStart]
			elseContent = result[elseEnd:endStart]
		}

		value, exists := vars[varName]
		replacement := elseContent
		if exists && strings.TrimSpace(value) != "" {
			replacement = ifContent
		}

		result = result[:start] + replacement + result[endEnd:]
	}
	return result
}

func findConditionalBlock(input string, start int) (int, int, int, int) {
	depth := 0
	elseStart := -1
	elseEnd := -1

	pos := start
	for {
		openIdx := strings.Index(input[pos:], "{{")
		if openIdx == -1 {
			return -1, -1, -1, -1
		}
		openIdx += pos

		closeIdx := strings.Index(input[openIdx:], "}}")
		if closeIdx == -1 {
			return -1, -1, -1, -1
		}
		closeIdx += openIdx

		tag := strings.TrimSpace(input[openIdx+2 : closeIdx])
		switch {
		case tag == "#if" || strings.HasPrefix(tag, "#if "):
			depth++
		case tag == "/if":
			if depth == 0 {
				return elseStart, elseEnd, openIdx, closeIdx + 2
			}
			depth--
		case tag == "else" && depth == 0 && elseStart == -1:
			elseStart = openIdx
			elseEnd = closeIdx + 2
		}

		pos = closeIdx + 2
	}
}

// validateResponse checks the JSON span of text against the prompt's
// response schema. A response with no JSON at all is reported too.
func validateResponse(def *prompt.Prompt, text string) error {
	span, ok := decode.Span(text)
	if !ok {
		return errors.New("response contains no JSON")
	}

	schemaBytes, err := json.Marshal(def.Config.ResponseSchema)
	if err != nil {
		return fmt.Errorf("encode response schema: %w", err)
	}
	validator, err := schema.NewValidator(schemaBytes)
	if err != nil {
		return fmt.Errorf("compile response schema: %w", err)
	}
	diagnostics, err := validator.ValidateJSON([]byte(span))
	if err != nil {
		return err
	}
	if len(diagnostics) > 0 {
		return fmt.Errorf("response schema validation failed: %s", diagnostics[0].Message)
	}
	return nil
}

func (s *Service) warn(msg string, fields ...zap.Field) {
	if s.Logger != nil {
		s.Logger.Warn(msg, fields...)
	}
}
