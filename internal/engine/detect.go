package engine

import (
	"context"
	"errors"
	"fmt"
)

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderNone   = "none"
)

// ErrNotConfigured is returned by Detect when AI search has no usable backend.
var ErrNotConfigured = errors.New("no inference backend configured")

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Provider      string
	GeminiAPIKey  string
	GeminiBaseURL string
	OllamaBaseURL string
}

// Detect returns the backend named by cfg.Provider. Gemini without an API
// key and the "none" provider both yield ErrNotConfigured.
func Detect(ctx context.Context, cfg DetectConfig) (Engine, error) {
	switch cfg.Provider {
	case ProviderGemini, "":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%w: gemini API key missing", ErrNotConfigured)
		}
		e, err := NewGeminiEngine(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL)
		if err != nil {
			return nil, err
		}
		return e, nil
	case ProviderOllama:
		if cfg.OllamaBaseURL == "" {
			return nil, fmt.Errorf("%w: ollama base URL missing", ErrNotConfigured)
		}
		return NewOllamaEngine(cfg.OllamaBaseURL), nil
	case ProviderNone:
		return nil, ErrNotConfigured
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
