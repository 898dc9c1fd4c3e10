package prompt

// Model tiers a prompt can ask for. Providers map each tier to a model id.
const (
	TierPro   = "pro"
	TierFlash = "flash"
)

// Config describes a prompt definition loaded from YAML frontmatter. The
// markdown body becomes UserTemplate when user_template is not set.
type Config struct {
	Slug           string         `yaml:"slug" json:"slug"`
	Name           string         `yaml:"name,omitempty" json:"name,omitempty"`
	Description    string         `yaml:"description,omitempty" json:"description,omitempty"`
	Version        string         `yaml:"version,omitempty" json:"version,omitempty"`
	Tier           string         `yaml:"tier" json:"tier"`
	ThinkingBudget *int32         `yaml:"thinking_budget,omitempty" json:"thinking_budget,omitempty"`
	Input          InputSpec      `yaml:"input,omitempty" json:"input,omitempty"`
	SystemTemplate string         `yaml:"system_template,omitempty" json:"system_template,omitempty"`
	UserTemplate   string         `yaml:"user_template,omitempty" json:"user_template,omitempty"`
	Tools          []ToolConfig   `yaml:"tools,omitempty" json:"tools,omitempty"`
	ResponseSchema map[string]any `yaml:"response_schema,omitempty" json:"response_schema,omitempty"`
	ProviderHints  map[string]any `yaml:"provider_hints,omitempty" json:"provider_hints,omitempty"`
}

// InputSpec defines prompt input requirements.
type InputSpec struct {
	RequiredVariables []string `yaml:"required_variables,omitempty" json:"required_variables,omitempty"`
	OptionalVariables []string `yaml:"optional_variables,omitempty" json:"optional_variables,omitempty"`
	AcceptsDocuments  bool     `yaml:"accepts_documents,omitempty" json:"accepts_documents,omitempty"`
	DocumentTypes     []string `yaml:"document_types,omitempty" json:"document_types,omitempty"`
	MaxDocuments      int      `yaml:"max_documents,omitempty" json:"max_documents,omitempty"`
}

// ToolConfig represents a server-side tool configuration in the prompt.
type ToolConfig struct {
	Type   string         `yaml:"type" json:"type"`
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// Prompt wraps a validated prompt configuration with its source.
type Prompt struct {
	Config Config
	Source string
}

// WantsJSON reports whether the prompt declares a response schema.
func (p *Prompt) WantsJSON() bool {
	return p != nil && len(p.Config.ResponseSchema) > 0
}
