package aisearch

import (
	"encoding/json"
	"fmt"

	"github.com/kalambet/flowmart/internal/catalog"
	"github.com/kalambet/flowmart/internal/engine"
)

const systemPrompt = `You are an intelligent search assistant for an automation workflow marketplace. You receive a user query and the list of available workflows in JSON format. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

Rules:
- Return in "matchedIds" the ids of the workflows that best match the user's query.
- Sort them by relevance, most relevant first.
- Only use ids that appear in the workflow list.
- If no relevant matches are found, return an empty array.`

// BuildPrompt constructs the chat messages for matching query against the
// catalog summaries.
func BuildPrompt(query string, summaries []catalog.Summary) ([]engine.Message, error) {
	if summaries == nil {
		summaries = []catalog.Summary{}
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		return nil, fmt.Errorf("encoding workflow summaries: %w", err)
	}

	user := fmt.Sprintf("User Query: %q\n\nHere is the list of available workflows in JSON format:\n%s", query, data)

	return []engine.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}, nil
}

// matchSchema returns the JSON schema for the structured match list.
func matchSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"matchedIds": {
				Type:        "array",
				Description: "Workflow ids ordered by relevance",
				Items:       &engine.SchemaProperty{Type: "string"},
			},
		},
		Required: []string{"matchedIds"},
	}
}
