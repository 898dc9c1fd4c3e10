package gemini

import (
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/courtcopilot/courtcopilot/internal/ailink/content"
	"github.com/courtcopilot/courtcopilot/internal/ailink/driver"
)

func buildRequest(req *driver.Request) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	if req == nil {
		return nil, nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, nil, fmt.Errorf("model is required")
	}

	system := []string{}
	if s := strings.TrimSpace(req.SystemInstruction); s != "" {
		system = append(system, s)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if strings.EqualFold(msg.Role, "system") {
			for _, block := range msg.Content {
				if block.IsText() && strings.TrimSpace(block.Text) != "" {
					system = append(system, block.Text)
				}
			}
			continue
		}

		parts, err := buildParts(msg.Content)
		if err != nil {
			return nil, nil, err
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, roleFor(msg.Role)))
	}
	if len(contents) == 0 {
		return nil, nil, fmt.Errorf("request has no content")
	}

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(*req.MaxTokens)
	}
	if req.ThinkingBudget != nil {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(*req.ThinkingBudget)}
	}

	for _, tool := range req.Tools {
		switch strings.ToLower(strings.TrimSpace(tool.Type)) {
		case driver.ToolGoogleSearch, "web_search":
			cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
		default:
			return nil, nil, fmt.Errorf("unsupported tool %q", tool.Type)
		}
	}

	if format := req.ResponseFormat; format != nil && format.Type == "json_object" {
		cfg.ResponseMIMEType = "application/json"
		if len(format.Schema) > 0 {
			schema, err := toSchema(format.Schema)
			if err != nil {
				return nil, nil, fmt.Errorf("response schema: %w", err)
			}
			cfg.ResponseSchema = schema
		}
	}

	return contents, cfg, nil
}

func buildParts(blocks []content.ContentBlock) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(blocks))
	for _, block := range blocks {
		if block.IsText() {
			if block.Text != "" {
				parts = append(parts, genai.NewPartFromText(block.Text))
			}
			continue
		}
		if len(block.Data) == 0 {
			return nil, fmt.Errorf("%s attachment has no data", block.Type)
		}
		parts = append(parts, genai.NewPartFromBytes(block.Data, string(block.Type)))
	}
	return parts, nil
}

func roleFor(role string) genai.Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "model":
		return genai.RoleModel
	default:
		return genai.RoleUser
	}
}

// toSchema converts an inline JSON Schema document into the SDK's OpenAPI
// subset. Keywords the API does not support are ignored.
func toSchema(doc map[string]any) (*genai.Schema, error) {
	out := &genai.Schema{}

	typ, nullable, err := schemaType(doc["type"])
	if err != nil {
		return nil, err
	}
	out.Type = typ
	if nullable {
		out.Nullable = genai.Ptr(true)
	}

	if desc, ok := doc["description"].(string); ok {
		out.Description = desc
	}
	if format, ok := doc["format"].(string); ok {
		out.Format = format
	}
	if enum, ok := doc["enum"]; ok {
		out.Enum = stringList(enum)
	}
	if required, ok := doc["required"]; ok {
		out.Required = stringList(required)
	}
	if v, ok := number(doc["minimum"]); ok {
		out.Minimum = genai.Ptr(v)
	}
	if v, ok := number(doc["maximum"]); ok {
		out.Maximum = genai.Ptr(v)
	}

	if props, ok := asMap(doc["properties"]); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child, ok := asMap(props[name])
			if !ok {
				return nil, fmt.Errorf("property %q is not a schema", name)
			}
			converted, err := toSchema(child)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			out.Properties[name] = converted
		}
	}

	if items, ok := asMap(doc["items"]); ok {
		converted, err := toSchema(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out.Items = converted
	}

	return out, nil
}

func schemaType(value any) (genai.Type, bool, error) {
	switch typed := value.(type) {
	case nil:
		return genai.TypeUnspecified, false, nil
	case string:
		t, err := mapType(typed)
		return t, false, err
	case []any:
		var (
			found    genai.Type
			nullable bool
		)
		for _, item := range typed {
			name, _ := item.(string)
			if strings.EqualFold(name, "null") {
				nullable = true
				continue
			}
			t, err := mapType(name)
			if err != nil {
				return "", false, err
			}
			found = t
		}
		return found, nullable, nil
	default:
		return "", false, fmt.Errorf("unsupported type declaration %v", value)
	}
}

func mapType(name string) (genai.Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "object":
		return genai.TypeObject, nil
	case "array":
		return genai.TypeArray, nil
	case "string":
		return genai.TypeString, nil
	case "number":
		return genai.TypeNumber, nil
	case "integer":
		return genai.TypeInteger, nil
	case "boolean":
		return genai.TypeBoolean, nil
	default:
		return "", fmt.Errorf("unsupported schema type %q", name)
	}
}

func asMap(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func stringList(value any) []string {
	switch typed := value.(type) {
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func number(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}
