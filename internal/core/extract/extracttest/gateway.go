// Package extracttest provides a scripted in-memory model gateway.
package extracttest

import (
	"context"
	"iter"
	"sync"

	"github.com/courtcopilot/courtcopilot/internal/ailink"
)

// Gateway answers by prompt slug. Unscripted slugs reply with an empty
// JSON object. It is safe for concurrent use.
type Gateway struct {
	// Chunks is what every Stream call yields, in order.
	Chunks []ailink.Chunk
	// StreamErr, when set, is yielded after Chunks.
	StreamErr error
	// Release, when set, holds every Stream call until it is closed.
	Release chan struct{}
	// Started, when set, receives one value per Stream call once the call
	// has been counted.
	Started chan struct{}

	mu       sync.Mutex
	replies  map[string]string
	errs     map[string]error
	hang     map[string]bool
	requests []ailink.GenerateRequest
}

// New returns an empty Gateway.
func New() *Gateway {
	return &Gateway{
		replies: map[string]string{},
		errs:    map[string]error{},
		hang:    map[string]bool{},
	}
}

// Reply scripts the text returned for slug.
func (g *Gateway) Reply(slug, text string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies[slug] = text
	return g
}

// Fail scripts an error for slug.
func (g *Gateway) Fail(slug string, err error) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[slug] = err
	return g
}

// Hang makes calls for slug block until their context ends.
func (g *Gateway) Hang(slug string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hang[slug] = true
	return g
}

// Generate implements extract.Gateway.
func (g *Gateway) Generate(ctx context.Context, req ailink.GenerateRequest) (*ailink.GenerateResponse, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	reply, scripted := g.replies[req.PromptSlug]
	err := g.errs[req.PromptSlug]
	hang := g.hang[req.PromptSlug]
	g.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if !scripted {
		reply = "{}"
	}
	return &ailink.GenerateResponse{Text: reply}, nil
}

// Stream implements extract.Gateway.
func (g *Gateway) Stream(ctx context.Context, req ailink.GenerateRequest) iter.Seq2[ailink.Chunk, error] {
	return func(yield func(ailink.Chunk, error) bool) {
		g.mu.Lock()
		g.requests = append(g.requests, req)
		hang := g.hang[req.PromptSlug]
		g.mu.Unlock()

		if g.Started != nil {
			g.Started <- struct{}{}
		}
		if g.Release != nil {
			select {
			case <-g.Release:
			case <-ctx.Done():
				yield(ailink.Chunk{}, ctx.Err())
				return
			}
		}
		if hang {
			<-ctx.Done()
			yield(ailink.Chunk{}, ctx.Err())
			return
		}
		for _, chunk := range g.Chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if g.StreamErr != nil {
			yield(ailink.Chunk{}, g.StreamErr)
		}
	}
}

// Calls counts requests made for slug.
func (g *Gateway) Calls(slug string) int {
	return len(g.Requests(slug))
}

// TotalCalls counts every request.
func (g *Gateway) TotalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// Requests returns the requests made for slug, oldest first.
func (g *Gateway) Requests(slug string) []ailink.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []ailink.GenerateRequest
	for _, req := range g.requests {
		if req.PromptSlug == slug {
			out = append(out, req)
		}
	}
	return out
}
