package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/courtcopilot/courtcopilot/internal/ailink/content"
	"github.com/courtcopilot/courtcopilot/internal/ailink/driver"
)

func TestBuildRequest(t *testing.T) {
	budget := int32(32768)
	temp := 0.2
	req := &driver.Request{
		Model:             "gemini-3-pro-preview",
		SystemInstruction: "You are Denver Court Copilot.",
		Messages: []content.Message{
			{Role: "system", Content: []content.ContentBlock{content.Text("Be brief.")}},
			{Role: "user", Content: []content.ContentBlock{
				content.Binary("application/pdf", []byte("%PDF-1.7")),
				content.Text("Deep strategic audit of \"brief.pdf\"."),
			}},
		},
		Tools:          []driver.Tool{{Type: driver.ToolGoogleSearch}},
		ThinkingBudget: &budget,
		Temperature:    &temp,
		ResponseFormat: &driver.ResponseFormat{
			Type: "json_object",
			Schema: map[string]any{
				"type":     "object",
				"required": []any{"questions"},
				"properties": map[string]any{
					"questions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
		},
	}

	contents, cfg, err := buildRequest(req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	require.Equal(t, string(genai.RoleUser), contents[0].Role)
	require.Len(t, contents[0].Parts, 2)
	require.NotNil(t, contents[0].Parts[0].InlineData)
	require.Equal(t, "application/pdf", contents[0].Parts[0].InlineData.MIMEType)
	require.Equal(t, "Deep strategic audit of \"brief.pdf\".", contents[0].Parts[1].Text)

	require.NotNil(t, cfg.SystemInstruction)
	require.Equal(t, "You are Denver Court Copilot.\n\nBe brief.", cfg.SystemInstruction.Parts[0].Text)
	require.Len(t, cfg.Tools, 1)
	require.NotNil(t, cfg.Tools[0].GoogleSearch)
	require.Equal(t, int32(32768), *cfg.ThinkingConfig.ThinkingBudget)
	require.InDelta(t, 0.2, float64(*cfg.Temperature), 1e-6)
	require.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.Equal(t, genai.TypeObject, cfg.ResponseSchema.Type)
	require.Equal(t, []string{"questions"}, cfg.ResponseSchema.Required)
	require.Equal(t, genai.TypeString, cfg.ResponseSchema.Properties["questions"].Items.Type)
}

func TestBuildRequestErrors(t *testing.T) {
	_, _, err := buildRequest(&driver.Request{Messages: []content.Message{{Role: "user", Content: []content.ContentBlock{content.Text("x")}}}})
	require.ErrorContains(t, err, "model")

	_, _, err = buildRequest(&driver.Request{Model: "m"})
	require.ErrorContains(t, err, "no content")

	_, _, err = buildRequest(&driver.Request{
		Model:    "m",
		Messages: []content.Message{{Role: "user", Content: []content.ContentBlock{{Type: content.ContentTypePDF}}}},
	})
	require.ErrorContains(t, err, "no data")

	_, _, err = buildRequest(&driver.Request{
		Model:    "m",
		Messages: []content.Message{{Role: "user", Content: []content.ContentBlock{content.Text("x")}}},
		Tools:    []driver.Tool{{Type: "x_search"}},
	})
	require.ErrorContains(t, err, "unsupported tool")
}

func TestToSchema(t *testing.T) {
	doc := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"events": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"date": map[string]any{"type": "string"},
						"type": map[string]any{
							"type": "string",
							"enum": []any{"filing", "motion", "court_date", "ruling", "other"},
						},
						"score":    map[string]any{"type": "number", "minimum": 1, "maximum": 10},
						"citation": map[string]any{"type": []any{"string", "null"}},
					},
					"required": []any{"date"},
				},
			},
		},
	}

	schema, err := toSchema(doc)
	require.NoError(t, err)
	item := schema.Properties["events"].Items
	require.Equal(t, genai.TypeObject, item.Type)
	require.Equal(t, []string{"filing", "motion", "court_date", "ruling", "other"}, item.Properties["type"].Enum)
	require.Equal(t, float64(10), *item.Properties["score"].Maximum)
	require.Equal(t, genai.TypeString, item.Properties["citation"].Type)
	require.True(t, *item.Properties["citation"].Nullable)
	require.Equal(t, []string{"date"}, item.Required)

	_, err = toSchema(map[string]any{"type": "tuple"})
	require.Error(t, err)
}

func TestToDriverResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "planning", Thought: true},
				{Text: "Hello, "},
				{Text: "world"},
			}},
			GroundingMetadata: &genai.GroundingMetadata{GroundingChunks: []*genai.GroundingChunk{
				{Web: &genai.GroundingChunkWeb{URI: "https://courts.state.co.us", Title: "Colorado Judicial"}},
				{Web: &genai.GroundingChunkWeb{Title: "no uri"}},
				{},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 4,
			ThoughtsTokenCount:   2,
			TotalTokenCount:      16,
		},
	}

	out := toDriverResponse(resp)
	require.Equal(t, "Hello, world", out.Text())
	require.Equal(t, []driver.Citation{{URI: "https://courts.state.co.us", Title: "Colorado Judicial"}}, out.Citations)
	require.Equal(t, "STOP", out.FinishReason)
	require.Equal(t, 16, out.Usage.TotalTokens)
	require.Equal(t, 2, out.Usage.ThinkingTokens)

	require.Empty(t, toDriverResponse(nil).Text())
}

func TestMapError(t *testing.T) {
	err := mapError(fmt.Errorf("call: %w", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}))
	var perr *driver.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 429, perr.StatusCode)
	require.Equal(t, "RESOURCE_EXHAUSTED", perr.Status)
	require.True(t, perr.Retryable())

	plain := fmt.Errorf("dial tcp: refused")
	require.Equal(t, plain, mapError(plain))
}

func TestCompleteRequiresKey(t *testing.T) {
	_, err := NewClient("", "").Complete(context.Background(), &driver.Request{Model: "m"})
	require.ErrorContains(t, err, "api key")
}

func TestCompleteAgainstServer(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-3-flash-preview:generateContent")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "{\"questions\":[\"a\"]}"}]},
				"finishReason": "STOP",
				"groundingMetadata": {"groundingChunks": [{"web": {"uri": "https://a.example", "title": "A"}}]}
			}],
			"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 5, "totalTokenCount": 8}
		}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	resp, err := client.Complete(context.Background(), &driver.Request{
		Model:    "gemini-3-flash-preview",
		Messages: []content.Message{{Role: "user", Content: []content.ContentBlock{content.Text("Generate 3 tactical follow-up questions")}}},
	})
	require.NoError(t, err)
	require.Equal(t, `{"questions":["a"]}`, resp.Text())
	require.Len(t, resp.Citations, 1)
	require.Equal(t, 8, resp.Usage.TotalTokens)
	require.NotNil(t, gotBody["contents"])
}

func TestCompleteProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error": {"code": 429, "message": "quota exhausted", "status": "RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "test-key").Complete(context.Background(), &driver.Request{
		Model:    "m",
		Messages: []content.Message{{Role: "user", Content: []content.ContentBlock{content.Text("x")}}},
	})
	var perr *driver.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 429, perr.StatusCode)
}

func TestStreamAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":streamGenerateContent")
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"Hel", "lo, ", "world"} {
			_, _ = fmt.Fprintf(w, "data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":%q}]}}]}\n\n", chunk)
		}
	}))
	defer srv.Close()

	var text strings.Builder
	chunks := 0
	for resp, err := range NewClient(srv.URL, "test-key").Stream(context.Background(), &driver.Request{
		Model:    "m",
		Messages: []content.Message{{Role: "user", Content: []content.ContentBlock{content.Text("x")}}},
	}) {
		require.NoError(t, err)
		chunks++
		text.WriteString(resp.Text())
	}
	require.Equal(t, 3, chunks)
	require.Equal(t, "Hello, world", text.String())
}
