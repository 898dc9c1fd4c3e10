package gemini

import (
	"errors"

	"google.golang.org/genai"

	"github.com/courtcopilot/courtcopilot/internal/ailink/content"
	"github.com/courtcopilot/courtcopilot/internal/ailink/driver"
)

func toDriverResponse(resp *genai.GenerateContentResponse) *driver.Response {
	out := &driver.Response{}
	if resp == nil {
		return out
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		cand := resp.Candidates[0]
		out.FinishReason = string(cand.FinishReason)

		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if part == nil || part.Thought || part.Text == "" {
					continue
				}
				out.Content = append(out.Content, content.Text(part.Text))
			}
		}

		if gm := cand.GroundingMetadata; gm != nil {
			for _, chunk := range gm.GroundingChunks {
				if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
					continue
				}
				out.Citations = append(out.Citations, driver.Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
			}
		}
	}

	if usage := resp.UsageMetadata; usage != nil {
		out.Usage = &driver.Usage{
			PromptTokens:     int(usage.PromptTokenCount),
			CompletionTokens: int(usage.CandidatesTokenCount),
			ThinkingTokens:   int(usage.ThoughtsTokenCount),
			TotalTokens:      int(usage.TotalTokenCount),
		}
	}

	return out
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &driver.ProviderError{
			Provider:   driverName,
			StatusCode: apiErr.Code,
			Status:     apiErr.Status,
			Message:    apiErr.Message,
		}
	}
	return err
}
