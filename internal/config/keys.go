package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	check   func(v any) error
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

func oneOf(allowed ...string) func(v any) error {
	return func(v any) error {
		if !slices.Contains(allowed, v.(string)) {
			return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
		}
		return nil
	}
}

func portRange(v any) error {
	if p := v.(int); p < 1 || p > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", p)
	}
	return nil
}

func nonNegative(v any) error {
	if v.(time.Duration) < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	return nil
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "FLOWMART_SERVER_PORT",
		check:   portRange,
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "catalog.source", typ: kString, env: "FLOWMART_CATALOG_SOURCE",
		check:   oneOf("seed", "file", "sqlite"),
		apply:   func(cfg *Config, v any) { cfg.Catalog.Source = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Source },
	},
	{
		key: "catalog.path", typ: kString, env: "FLOWMART_CATALOG_PATH",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Path },
	},
	{
		key: "catalog.latency", typ: kDuration, env: "FLOWMART_CATALOG_LATENCY",
		check:   nonNegative,
		apply:   func(cfg *Config, v any) { cfg.Catalog.Latency = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Catalog.Latency },
	},
	{
		key: "storage.data_dir", typ: kString, env: "FLOWMART_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "ai.provider", typ: kString, env: "FLOWMART_AI_PROVIDER",
		check:   oneOf("gemini", "ollama", "none"),
		apply:   func(cfg *Config, v any) { cfg.AI.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.Provider },
	},
	{
		key: "ai.model", typ: kString, env: "FLOWMART_AI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.AI.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.Model },
	},
	{
		key: "ai.timeout", typ: kDuration, env: "FLOWMART_AI_TIMEOUT",
		check:   nonNegative,
		apply:   func(cfg *Config, v any) { cfg.AI.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.AI.Timeout },
	},
	{
		key: "ai.gemini_api_key", typ: kString, env: "FLOWMART_GEMINI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.AI.GeminiAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.GeminiAPIKey },
	},
	{
		key: "ai.gemini_base_url", typ: kString, env: "FLOWMART_GEMINI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.AI.GeminiBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.GeminiBaseURL },
	},
	{
		key: "ai.ollama_base_url", typ: kString, env: "FLOWMART_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.AI.OllamaBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.OllamaBaseURL },
	},
	{
		key: "cache.redis_addr", typ: kString, env: "FLOWMART_CACHE_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Cache.RedisAddr = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.RedisAddr },
	},
	{
		key: "cache.ttl", typ: kDuration, env: "FLOWMART_CACHE_TTL",
		check:   nonNegative,
		apply:   func(cfg *Config, v any) { cfg.Cache.TTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.TTL },
	},
	{
		key: "checkout.delay", typ: kDuration, env: "FLOWMART_CHECKOUT_DELAY",
		check:   nonNegative,
		apply:   func(cfg *Config, v any) { cfg.Checkout.Delay = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Checkout.Delay },
	},
	{
		key: "events.kafka_brokers", typ: kString, env: "FLOWMART_EVENTS_KAFKA_BROKERS",
		apply:   func(cfg *Config, v any) { cfg.Events.KafkaBrokers = v.(string) },
		extract: func(cfg Config) any { return cfg.Events.KafkaBrokers },
	},
	{
		key: "events.kafka_topic", typ: kString, env: "FLOWMART_EVENTS_KAFKA_TOPIC",
		apply:   func(cfg *Config, v any) { cfg.Events.KafkaTopic = v.(string) },
		extract: func(cfg Config) any { return cfg.Events.KafkaTopic },
	},
	{
		key: "log.level", typ: kString, env: "FLOWMART_LOG_LEVEL",
		check:   oneOf("debug", "info", "warn", "error"),
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parse converts raw to the key's type and runs its check.
func (s keySpec) parse(raw string) (any, error) {
	var v any
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		v = i
	case kDuration:
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", raw)
		}
		v = d
	default:
		v = raw
	}
	if s.check != nil {
		if err := s.check(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// applyStore fails on any stored value that does not parse or check, except
// durations, which fall back to their default with a warning.
func applyStore(cfg *Config, st Store) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok, err := st.Get(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (s.typ == kDuration && raw == "") {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			if s.typ == kDuration {
				fmt.Fprintf(os.Stderr, "[WARN] config key %s: %v. Using default value.\n", s.key, err)
				continue
			}
			return fmt.Errorf("config key %s: %w", s.key, err)
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] env var %s: %v. Using default value.\n", s.env, err)
			continue
		}
		s.apply(cfg, v)
	}
}
