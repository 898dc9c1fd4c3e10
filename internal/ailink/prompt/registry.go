package prompt

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Registry looks up prompt definitions by slug or model tier.
type Registry interface {
	Get(slug string) (*Prompt, error)
	List() []*Prompt
	ByTier(tier string) []*Prompt
	Has(slug string) bool
}

// InMemoryRegistry stores prompts by slug.
type InMemoryRegistry struct {
	prompts map[string]*Prompt
}

// NewRegistry indexes prompts by trimmed slug. Nil entries are skipped and
// a duplicate slug is an error.
func NewRegistry(prompts []*Prompt) (*InMemoryRegistry, error) {
	reg := &InMemoryRegistry{prompts: make(map[string]*Prompt, len(prompts))}
	for _, p := range prompts {
		if p == nil {
			continue
		}
		slug := strings.TrimSpace(p.Config.Slug)
		if slug == "" {
			return nil, fmt.Errorf("prompt missing slug")
		}
		if reg.Has(slug) {
			return nil, fmt.Errorf("duplicate prompt slug: %s", slug)
		}
		reg.prompts[slug] = p
	}
	return reg, nil
}

func (r *InMemoryRegistry) Get(slug string) (*Prompt, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry not configured")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("prompt slug is required")
	}
	p, ok := r.prompts[slug]
	if !ok {
		return nil, fmt.Errorf("prompt %q not found", slug)
	}
	return p, nil
}

func (r *InMemoryRegistry) Has(slug string) bool {
	if r == nil {
		return false
	}
	_, ok := r.prompts[strings.TrimSpace(slug)]
	return ok
}

// List returns every prompt sorted by slug.
func (r *InMemoryRegistry) List() []*Prompt {
	if r == nil {
		return nil
	}
	out := make([]*Prompt, 0, len(r.prompts))
	for _, slug := range slices.Sorted(maps.Keys(r.prompts)) {
		out = append(out, r.prompts[slug])
	}
	return out
}

// ByTier returns the prompts routed to tier, sorted by slug. Tier matching
// ignores case and surrounding space.
func (r *InMemoryRegistry) ByTier(tier string) []*Prompt {
	tier = strings.ToLower(strings.TrimSpace(tier))
	var out []*Prompt
	for _, p := range r.List() {
		if strings.ToLower(strings.TrimSpace(p.Config.Tier)) == tier {
			out = append(out, p)
		}
	}
	return out
}
