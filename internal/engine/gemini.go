package engine

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kalambet/flowmart/internal/gemini"
)

// GeminiEngine adapts the hosted Gemini API to the Engine interface.
type GeminiEngine struct {
	client *gemini.Client
}

// NewGeminiEngine creates a GeminiEngine. An empty baseURL targets the public endpoint.
func NewGeminiEngine(ctx context.Context, apiKey, baseURL string) (*GeminiEngine, error) {
	c, err := gemini.NewClient(ctx, apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	return &GeminiEngine{client: c}, nil
}

// Chat maps system messages onto the system instruction and assistant
// messages onto the "model" role.
func (e *GeminiEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	var (
		contents []*genai.Content
		system   []*genai.Part
	)
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, genai.NewPartFromText(m.Content))
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("gemini: no user content")
	}

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}
	if jsonSchema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGeminiSchema(jsonSchema)
	}

	return e.client.GenerateContent(ctx, model, contents, cfg)
}

func toGeminiSchema(s *Schema) *genai.Schema {
	out := &genai.Schema{
		Type:     genai.Type(strings.ToUpper(s.Type)),
		Required: s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toGeminiProperty(v)
		}
	}
	return out
}

func toGeminiProperty(p SchemaProperty) *genai.Schema {
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(p.Type)),
		Description: p.Description,
	}
	if p.Items != nil {
		out.Items = toGeminiProperty(*p.Items)
	}
	return out
}

// IsRunning always reports true: a GeminiEngine only exists with a key, and
// the hosted service is not checked ahead of the first request.
func (e *GeminiEngine) IsRunning(_ context.Context) bool {
	return true
}

func (e *GeminiEngine) HasModel(_ context.Context, name string) bool {
	return strings.HasPrefix(name, "gemini")
}

func (e *GeminiEngine) Name() string { return "gemini" }
