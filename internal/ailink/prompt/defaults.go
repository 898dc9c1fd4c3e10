package prompt

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed prompts/*.md
var defaultPromptsFS embed.FS

// LoadDefaults loads the embedded prompt set.
func LoadDefaults() ([]*Prompt, error) {
	entries, err := defaultPromptsFS.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("read embedded prompts: %w", err)
	}
	results := make([]*Prompt, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := defaultPromptsFS.ReadFile("prompts/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded prompt %s: %w", entry.Name(), err)
		}
		prompt, err := Load(entry.Name(), data)
		if err != nil {
			return nil, err
		}
		results = append(results, prompt)
	}
	return results, nil
}

// DefaultRegistry builds a registry from embedded prompts.
func DefaultRegistry() (Registry, error) {
	return LoadRegistry("")
}

// LoadRegistry builds a registry from the embedded prompts, replacing any
// whose slug also appears in overrideDir.
func LoadRegistry(overrideDir string) (Registry, error) {
	prompts, err := LoadDefaults()
	if err != nil {
		return nil, err
	}
	if dir := strings.TrimSpace(overrideDir); dir != "" {
		overrides, err := LoadFromDir(dir)
		if err != nil {
			return nil, err
		}
		prompts = Overlay(prompts, overrides)
	}
	return NewRegistry(prompts)
}

// Overlay returns base with every prompt sharing a slug with overrides
// replaced. Overrides with new slugs are appended.
func Overlay(base, overrides []*Prompt) []*Prompt {
	bySlug := make(map[string]int, len(base))
	out := make([]*Prompt, 0, len(base)+len(overrides))
	for _, p := range base {
		if p == nil {
			continue
		}
		bySlug[strings.TrimSpace(p.Config.Slug)] = len(out)
		out = append(out, p)
	}
	for _, p := range overrides {
		if p == nil {
			continue
		}
		slug := strings.TrimSpace(p.Config.Slug)
		if idx, ok := bySlug[slug]; ok {
			out[idx] = p
			continue
		}
		bySlug[slug] = len(out)
		out = append(out, p)
	}
	return out
}
