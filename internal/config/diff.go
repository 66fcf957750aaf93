package config

import "maps"

// ConfigDiff describes what changed between two configs. Only fields that
// can be safely hot-reloaded are tracked; provider, media, and storage
// changes need a restart and are reported only so operators see them.
type ConfigDiff struct {
	// LogLevelChanged is safe to apply live.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PipelineChanged applies to pipelines attached after the reload;
	// running calls keep the tuning they started with.
	PipelineChanged bool
	NewPipeline     PipelineConfig

	// RestartRequired lists sections whose changes only take effect after
	// a restart.
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Pipeline != new.Pipeline {
		d.PipelineChanged = true
		d.NewPipeline = new.Pipeline
	}

	if !slotEqual(old.Providers.STT, new.Providers.STT) {
		d.RestartRequired = append(d.RestartRequired, "providers.stt")
	}
	if !slotEqual(old.Providers.TTS, new.Providers.TTS) {
		d.RestartRequired = append(d.RestartRequired, "providers.tts")
	}
	if !slotEqual(old.Providers.LLM, new.Providers.LLM) {
		d.RestartRequired = append(d.RestartRequired, "providers.llm")
	}
	if old.Media != new.Media {
		d.RestartRequired = append(d.RestartRequired, "media")
	}
	if old.AgentRuntime != new.AgentRuntime {
		d.RestartRequired = append(d.RestartRequired, "agent_runtime")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if old.Server.ControlAddr != new.Server.ControlAddr ||
		old.Server.AgentAddr != new.Server.AgentAddr ||
		!tlsEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}

	return d
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// slotEqual compares a provider slot including its fallback chain.
func slotEqual(a, b ProviderSlot) bool {
	if !entryEqual(a.ProviderEntry, b.ProviderEntry) {
		return false
	}
	if len(a.Fallbacks) != len(b.Fallbacks) {
		return false
	}
	for i := range a.Fallbacks {
		if !entryEqual(a.Fallbacks[i], b.Fallbacks[i]) {
			return false
		}
	}
	return true
}

// entryEqual compares entries field by field; Options is a map so the
// struct is not directly comparable.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name &&
		a.APIKey == b.APIKey &&
		a.BaseURL == b.BaseURL &&
		a.Model == b.Model &&
		maps.EqualFunc(a.Options, b.Options, func(x, y any) bool { return x == y })
}
