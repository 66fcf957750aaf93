package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const exampleYAML = `
server:
  control_addr: ":8080"
  agent_addr: ":8081"
  log_level: info

providers:
  stt:
    name: deepgram
    api_key: dg-key
    model: nova-2
  tts:
    name: elevenlabs
    api_key: el-key
    fallbacks:
      - name: deepgram
        api_key: dg-key
  llm:
    name: openai
    api_key: oa-key
    model: gpt-4o
    options:
      temperature: 0.3

media:
  url: wss://media.example.com
  api_key: mk
  api_secret: ms

agent_runtime:
  base_url: http://127.0.0.1:8081

storage:
  backend: postgres
  postgres_dsn: postgres://localhost:5432/sonara?sslmode=disable
  redis_addr: localhost:6379

pipeline:
  greeting: "Hi, you have reached support."
  history_window: 30
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(exampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ControlAddr != ":8080" {
		t.Errorf("ControlAddr = %q, want :8080", cfg.Server.ControlAddr)
	}
	if cfg.Providers.STT.Name != "deepgram" || cfg.Providers.STT.Model != "nova-2" {
		t.Errorf("STT = %+v", cfg.Providers.STT.ProviderEntry)
	}
	if len(cfg.Providers.TTS.Fallbacks) != 1 || cfg.Providers.TTS.Fallbacks[0].Name != "deepgram" {
		t.Errorf("TTS fallbacks = %+v", cfg.Providers.TTS.Fallbacks)
	}
	if temp, ok := cfg.Providers.LLM.Options["temperature"]; !ok || temp != 0.3 {
		t.Errorf("LLM options = %v", cfg.Providers.LLM.Options)
	}
	if cfg.Storage.Backend != StoragePostgres {
		t.Errorf("Backend = %q, want postgres", cfg.Storage.Backend)
	}
	if cfg.Pipeline.HistoryWindow != 30 {
		t.Errorf("HistoryWindow = %d, want 30", cfg.Pipeline.HistoryWindow)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("sevrer:\n  control_addr: \":8080\"\n"))
	if err == nil {
		t.Fatal("LoadFromReader accepted a misspelled top-level key")
	}
	if !strings.Contains(err.Error(), "decode yaml") {
		t.Errorf("err = %v, want a decode error", err)
	}
}

func TestLoadFromReader_InvalidConfig(t *testing.T) {
	bad := `
storage:
  backend: postgres
`
	_, err := LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("LoadFromReader accepted postgres backend without a DSN")
	}
	if !strings.Contains(err.Error(), "storage.postgres_dsn") {
		t.Errorf("err = %v, want postgres_dsn validation failure", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sonara.yaml")
	if err := os.WriteFile(path, []byte(exampleYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Media.APIKey != "mk" {
		t.Errorf("Media.APIKey = %q, want mk", cfg.Media.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load of a missing file succeeded")
	}
}
