package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Catalog  CatalogConfig
	Storage  StorageConfig
	AI       AIConfig
	Cache    CacheConfig
	Checkout CheckoutConfig
	Events   EventsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
}

// CatalogConfig selects where workflow records come from: "seed" (the
// embedded catalog), "file" (a YAML file at Path) or "sqlite" (the database
// in Storage.DataDir).
type CatalogConfig struct {
	Source  string
	Path    string
	Latency time.Duration
}

type StorageConfig struct {
	DataDir string
}

type AIConfig struct {
	Provider      string
	Model         string
	Timeout       time.Duration
	GeminiAPIKey  string
	GeminiBaseURL string
	OllamaBaseURL string
}

// CacheConfig enables the Redis match cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string
	TTL       time.Duration
}

type CheckoutConfig struct {
	Delay time.Duration
}

// EventsConfig publishes purchase events to Kafka when KafkaBrokers is set;
// otherwise they are logged.
type EventsConfig struct {
	KafkaBrokers string
	KafkaTopic   string
}

// Brokers splits the comma-separated broker list.
func (e EventsConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(e.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Catalog: CatalogConfig{
			Source: "seed",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		AI: AIConfig{
			Provider:      "gemini",
			Model:         "gemini-3-flash-preview",
			Timeout:       10 * time.Second,
			OllamaBaseURL: "http://localhost:11434",
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Checkout: CheckoutConfig{
			Delay: 2 * time.Second,
		},
		Events: EventsConfig{
			KafkaTopic: "flowmart.purchases",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform store, environment variables,
// and the platform secret store.
//
// On macOS the store is the com.flowmart.app defaults domain and the Gemini
// key lives in the Keychain. Elsewhere the store is
// $XDG_CONFIG_HOME/flowmart/config.json and the key is the 0600 file
// $XDG_CONFIG_HOME/flowmart/gemini_api_key.
//
// Environment variables (FLOWMART_*) override stored values on all platforms.
// A missing Gemini key is not an error: AI search is reported unavailable.
func Load() (Config, error) {
	return loadWith(newPlatformStore(), platformSecrets{})
}

// secrets abstracts the platform secret store for testing.
type secrets interface {
	GeminiKey() (string, error)
}

func loadWith(st Store, sec secrets) (Config, error) {
	cfg := defaults()

	if err := applyStore(&cfg, st); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.AI.GeminiAPIKey == "" {
		key, err := sec.GeminiKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not read the stored Gemini key: %v. AI search will be unavailable.\n", err)
		}
		cfg.AI.GeminiAPIKey = key
	}

	return cfg, nil
}

// APIKeyHint tells the user where the Gemini key can be provided.
func APIKeyHint() string {
	return "set FLOWMART_GEMINI_API_KEY" + apiKeyHint()
}
