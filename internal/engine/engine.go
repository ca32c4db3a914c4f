package engine

import "context"

// Engine abstracts a chat-completion backend (hosted Gemini or a local
// Ollama server). The AI search adapter depends on this interface instead
// of a concrete client.
type Engine interface {
	// Chat sends messages to the given model and returns the assistant's response.
	// When jsonSchema is non-nil, structured JSON output is requested.
	Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool

	// HasModel reports whether the given model can be used.
	HasModel(ctx context.Context, name string) bool

	// Name identifies the backend in logs and status output.
	Name() string
}
