// Package gemini implements the driver contract on google.golang.org/genai.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/courtcopilot/courtcopilot/internal/ailink/driver"
)

const driverName = "gemini"

// Client implements driver.Driver against the Gemini API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration

	mu     sync.Mutex
	client *genai.Client
}

// NewClient returns a client with defaults applied. An empty baseURL uses
// the SDK's default endpoint.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSpace(baseURL),
		APIKey:  strings.TrimSpace(apiKey),
	}
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return driverName
}

// Capabilities describes supported features.
func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		SupportsTools:      true,
		SupportsDocuments:  true,
		SupportsStreaming:  true,
		SupportsThinking:   true,
		SupportsJSONSchema: true,
		SupportedMIMETypes: []string{"application/pdf", "text/plain", "image/png", "image/jpeg"},
	}
}

// Complete sends a single generateContent request.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	client, err := c.sdk(ctx)
	if err != nil {
		return nil, err
	}
	contents, cfg, err := buildRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	entry := driver.TraceEntry{
		Driver:     driverName,
		Operation:  "generateContent",
		Model:      req.Model,
		PromptSlug: req.PromptSlug,
		Request:    traceRequest(contents, cfg),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		err = mapError(err)
		entry.Error = err.Error()
		driver.Trace(entry)
		return nil, err
	}

	out := toDriverResponse(resp)
	entry.Response = out.Text()
	entry.Citations = len(out.Citations)
	entry.Usage = out.Usage
	driver.Trace(entry)
	return out, nil
}

// Stream sends a streamGenerateContent request. The timeout covers the
// whole stream.
func (c *Client) Stream(ctx context.Context, req *driver.Request) iter.Seq2[*driver.Response, error] {
	return func(yield func(*driver.Response, error) bool) {
		client, err := c.sdk(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		contents, cfg, err := buildRequest(req)
		if err != nil {
			yield(nil, err)
			return
		}

		ctx, cancel := withTimeout(ctx, c.Timeout)
		if cancel != nil {
			defer cancel()
		}

		start := time.Now()
		entry := driver.TraceEntry{
			Driver:     driverName,
			Operation:  "streamGenerateContent",
			Model:      req.Model,
			PromptSlug: req.PromptSlug,
			Request:    traceRequest(contents, cfg),
		}
		var text strings.Builder
		defer func() {
			entry.Response = text.String()
			entry.DurationMs = time.Since(start).Milliseconds()
			driver.Trace(entry)
		}()

		for resp, err := range client.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
			if err != nil {
				err = mapError(err)
				entry.Error = err.Error()
				yield(nil, err)
				return
			}
			out := toDriverResponse(resp)
			entry.Chunks++
			entry.Citations += len(out.Citations)
			if out.Usage != nil {
				entry.Usage = out.Usage
			}
			text.WriteString(out.Text())
			if !yield(out, nil) {
				return
			}
		}
	}
}

func (c *Client) sdk(ctx context.Context) (*genai.Client, error) {
	if c == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:     c.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.HTTPClient,
	}
	if c.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.client = client
	return client, nil
}

// traceRequest renders the request for the trace file with inline data
// replaced by its size.
func traceRequest(contents []*genai.Content, cfg *genai.GenerateContentConfig) json.RawMessage {
	if !driver.IsTracingEnabled() {
		return nil
	}
	type part struct {
		Text     string `json:"text,omitempty"`
		MIMEType string `json:"mime_type,omitempty"`
		Bytes    int    `json:"bytes,omitempty"`
	}
	parts := make([]part, 0)
	for _, content := range contents {
		if content == nil {
			continue
		}
		for _, p := range content.Parts {
			if p == nil {
				continue
			}
			if p.InlineData != nil {
				parts = append(parts, part{MIMEType: p.InlineData.MIMEType, Bytes: len(p.InlineData.Data)})
				continue
			}
			parts = append(parts, part{Text: p.Text})
		}
	}
	payload := map[string]any{"parts": parts}
	if cfg != nil {
		payload["response_mime_type"] = cfg.ResponseMIMEType
		payload["tools"] = len(cfg.Tools)
		if cfg.ThinkingConfig != nil && cfg.ThinkingConfig.ThinkingBudget != nil {
			payload["thinking_budget"] = *cfg.ThinkingConfig.ThinkingBudget
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return raw
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}
