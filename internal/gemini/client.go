package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"google.golang.org/genai"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// ErrBlocked is returned when the service refuses to answer the prompt.
var ErrBlocked = errors.New("prompt blocked")

// ErrNoAPIKey is returned by NewClient for an empty key. The SDK would
// otherwise fall back to GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
var ErrNoAPIKey = errors.New("gemini API key is empty")

// Client wraps the genai SDK with retry on rate limiting and overload.
type Client struct {
	models *genai.Models
}

// NewClient creates a client for the Gemini Developer API. An empty baseURL
// targets the public endpoint; tests and proxies pass their own.
func NewClient(ctx context.Context, apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Client{models: gc.Models}, nil
}

// GenerateContent sends contents to the given model and returns the text of
// the first candidate. Rate-limit and overload responses are retried with
// exponential backoff; other failures return immediately.
func (c *Client) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	var lastErr error
	for attempt := range maxRetries {
		resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
		if err == nil {
			if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
				return "", fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
			}
			return resp.Text(), nil
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("gave up after %d attempts: %w", maxRetries, lastErr)
}

func isRetryable(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code == http.StatusServiceUnavailable
}
