package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"deepgram"},
	"tts": {"deepgram", "elevenlabs"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "mistral", "groq", "deepseek"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	errs = append(errs, validateSlot("stt", cfg.Providers.STT)...)
	errs = append(errs, validateSlot("tts", cfg.Providers.TTS)...)
	errs = append(errs, validateSlot("llm", cfg.Providers.LLM)...)

	// Media credentials come as a pair. Both empty is a development setup
	// where no room tokens can be minted.
	switch {
	case cfg.Media.APIKey == "" && cfg.Media.APISecret == "":
		slog.Warn("media.api_key and media.api_secret are empty; room access tokens cannot be minted")
	case cfg.Media.APIKey == "" || cfg.Media.APISecret == "":
		errs = append(errs, errors.New("media.api_key and media.api_secret must be set together"))
	}

	if cfg.Storage.Backend != "" && !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: memory, postgres", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when storage.backend is postgres"))
	}
	if cfg.Storage.Backend == StorageMemory {
		slog.Warn("storage.backend is memory; calls and transcripts are lost on restart")
	}
	if cfg.Storage.RedisAddr == "" {
		slog.Warn("storage.redis_addr is empty; event dedup state is per-process only")
	}

	if cfg.AgentRuntime.BaseURL == "" && cfg.Server.AgentAddr == "" {
		slog.Warn("no agent runtime configured; calls will not get an automated agent")
	}

	if cfg.Pipeline.HistoryWindow < 0 {
		errs = append(errs, fmt.Errorf("pipeline.history_window %d must not be negative", cfg.Pipeline.HistoryWindow))
	}

	return errors.Join(errs...)
}

// validateSlot checks one provider slot: fallback entries need a name, and
// unknown names get a warning since they may be typos.
func validateSlot(kind string, slot ProviderSlot) []error {
	var errs []error

	validateProviderName(kind, slot.Name)
	for i, fb := range slot.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d].name is required", kind, i))
			continue
		}
		validateProviderName(kind, fb.Name)
	}
	if slot.Name == "" && len(slot.Fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("providers.%s.fallbacks set without a primary provider", kind))
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
