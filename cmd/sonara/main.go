// Command sonara is the voice support call orchestrator: one binary
// hosting the control-plane API, the media-transport webhook, and the
// agent runtime that drives automated voice pipelines.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sonara-ai/sonara/internal/agentctl"
	"github.com/sonara-ai/sonara/internal/agentd"
	"github.com/sonara-ai/sonara/internal/call"
	"github.com/sonara-ai/sonara/internal/callctx"
	"github.com/sonara-ai/sonara/internal/config"
	"github.com/sonara-ai/sonara/internal/event"
	"github.com/sonara-ai/sonara/internal/handoff"
	"github.com/sonara-ai/sonara/internal/health"
	"github.com/sonara-ai/sonara/internal/httpapi"
	"github.com/sonara-ai/sonara/internal/media"
	"github.com/sonara-ai/sonara/internal/observe"
	"github.com/sonara-ai/sonara/internal/pipeline"
	"github.com/sonara-ai/sonara/internal/resilience"
	"github.com/sonara-ai/sonara/internal/storage/postgres"
	"github.com/sonara-ai/sonara/internal/transcript"
	"github.com/sonara-ai/sonara/internal/webhook"
	"github.com/sonara-ai/sonara/pkg/provider/llm"
	"github.com/sonara-ai/sonara/pkg/provider/llm/anyllm"
	oaillm "github.com/sonara-ai/sonara/pkg/provider/llm/openai"
	"github.com/sonara-ai/sonara/pkg/provider/stt"
	sttdeepgram "github.com/sonara-ai/sonara/pkg/provider/stt/deepgram"
	"github.com/sonara-ai/sonara/pkg/provider/tts"
	ttsdeepgram "github.com/sonara-ai/sonara/pkg/provider/tts/deepgram"
	"github.com/sonara-ai/sonara/pkg/provider/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "sonara.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Logger; level is adjustable at runtime via config reload ─────────────
	logLevel := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// ── Configuration with hot reload ────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, newCfg *config.Config) {
		d := config.Diff(old, newCfg)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		for _, section := range d.RestartRequired {
			slog.Warn("config section changed, restart required to apply", "section", section)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sonara: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sonara: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()

	cfg := watcher.Current()
	logLevel.Set(slogLevel(cfg.Server.LogLevel))

	slog.Info("sonara starting",
		"config", *configPath,
		"controlAddr", cfg.Server.ControlAddr,
		"agentAddr", cfg.Server.AgentAddr,
		"storage", cfg.Storage.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "sonara"})
	if err != nil {
		slog.Error("init telemetry", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	gin.SetMode(gin.ReleaseMode)

	// ── Durable stores ───────────────────────────────────────────────────────
	var (
		callStore call.Store
		turnStore transcript.Store
		checkers  []health.Checker
	)
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			slog.Error("connect postgres", "error", err)
			return 1
		}
		defer store.Close()
		callStore = store.Calls()
		turnStore = store.Turns()
		checkers = append(checkers, health.Checker{Name: "postgres", Check: store.Ping})
	default:
		callStore = call.NewMemStore()
		turnStore = transcript.NewMemStore()
	}

	// ── Event notifier with optional cross-process dedup ─────────────────────
	var dedup event.DedupStore
	if cfg.Storage.RedisAddr != "" {
		prefix := cfg.Storage.RedisPrefix
		if prefix == "" {
			prefix = "sonara"
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Error("connect redis", "addr", cfg.Storage.RedisAddr, "error", err)
			return 1
		}
		dedup = event.NewRedisDedup(client, prefix)
		checkers = append(checkers, health.Checker{Name: "event-dedup", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	} else {
		dedup = event.NewMemoryDedup()
	}
	notifier := event.NewNotifier(dedup)
	defer notifier.Wait()

	// ── Room access tokens ───────────────────────────────────────────────────
	mediaKey, mediaSecret := cfg.Media.APIKey, cfg.Media.APISecret
	if mediaKey == "" && mediaSecret == "" {
		// Development setup: tokens still mint, but no real media server
		// will accept them.
		mediaKey = "dev"
		mediaSecret = uuid.NewString() + uuid.NewString()
		slog.Warn("media credentials are empty; signing room tokens with an ephemeral dev secret")
	}
	minter, err := media.NewTokenMinter(mediaKey, mediaSecret)
	if err != nil {
		slog.Error("media credentials", "error", err)
		return 1
	}

	// ── Domain services ──────────────────────────────────────────────────────
	calls := call.NewService(callStore, notifier, minter)
	turns := transcript.NewService(turnStore, calls)
	contextSvc := callctx.NewService(calls, turns, notifier)
	coordinator := handoff.NewCoordinator(calls, contextSvc, turns, minter, notifier)

	// ── Agent lifecycle subscriber ───────────────────────────────────────────
	if cfg.AgentRuntime.BaseURL != "" {
		agentctl.Register(notifier, agentctl.NewClient(cfg.AgentRuntime.BaseURL, minter))
	}

	// ── Control plane ────────────────────────────────────────────────────────
	api := httpapi.NewRouter(httpapi.Handlers{
		Calls:   calls,
		Turns:   turns,
		Context: contextSvc,
		Handoff: coordinator,
	}, health.New(checkers...), metrics)
	webhook.New(calls).Routes(api)

	controlSrv := &http.Server{
		Addr:              cfg.Server.ControlAddr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve(controlSrv, cfg.Server.TLS, "control plane")
	})

	// ── Agent runtime ────────────────────────────────────────────────────────
	var runner *agentd.Runner
	if cfg.Server.AgentAddr != "" {
		runner, err = buildRunner(cfg, turns, minter)
		if err != nil {
			slog.Error("build agent runtime", "error", err)
			return 1
		}
		defer runner.Shutdown()

		agentRouter := gin.New()
		agentRouter.Use(gin.Recovery())
		agentRouter.Use(observe.GinMiddleware(metrics))
		agentd.Handlers{Runner: runner}.Routes(agentRouter)
		health.New(checkers...).Routes(agentRouter)

		agentSrv := &http.Server{
			Addr:              cfg.Server.AgentAddr,
			Handler:           agentRouter,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			return serve(agentSrv, nil, "agent runtime")
		})
		g.Go(func() error {
			<-gctx.Done()
			return shutdownServer(agentSrv, "agent runtime")
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return shutdownServer(controlSrv, "control plane")
	})

	slog.Info("sonara ready")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "error", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// serve runs srv until Shutdown, with TLS when configured.
func serve(srv *http.Server, tlsCfg *config.TLSConfig, name string) error {
	slog.Info("listening", "server", name, "addr", srv.Addr)

	var err error
	if tlsCfg != nil {
		err = srv.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func shutdownServer(srv *http.Server, name string) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down", "server", name)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown: %w", name, err)
	}
	return nil
}

// roomConnector adapts the media gateway client to the runtime's
// Connector seam.
type roomConnector struct {
	client *media.RoomClient
}

func (c roomConnector) Connect(ctx context.Context, req agentd.StartRequest) (media.InputStream, media.OutputSource, func() error, error) {
	return c.client.JoinRoom(ctx, req.CallID, req.RoomName, req.Token)
}

// buildRunner assembles the voice pipeline factory: providers with their
// fallback chains, the room gateway connector, and per-call tuning.
func buildRunner(cfg *config.Config, ledger pipeline.Ledger, minter *media.TokenMinter) (*agentd.Runner, error) {
	if cfg.Media.URL == "" {
		return nil, errors.New("media.url is required to run the agent runtime")
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	sttP, err := buildSTT(reg, cfg.Providers.STT)
	if err != nil {
		return nil, err
	}
	ttsP, err := buildTTS(reg, cfg.Providers.TTS)
	if err != nil {
		return nil, err
	}
	llmP, err := buildLLM(reg, cfg.Providers.LLM)
	if err != nil {
		return nil, err
	}

	rooms, err := media.NewRoomClient(cfg.Media.URL, minter)
	if err != nil {
		return nil, err
	}

	var opts []pipeline.Option
	if cfg.Pipeline.Greeting != "" {
		opts = append(opts, pipeline.WithGreeting(cfg.Pipeline.Greeting))
	}
	if cfg.Pipeline.SystemPrompt != "" {
		opts = append(opts, pipeline.WithSystemPrompt(cfg.Pipeline.SystemPrompt))
	}
	if cfg.Pipeline.Voice != "" {
		opts = append(opts, pipeline.WithVoice(cfg.Pipeline.Voice))
	}
	if cfg.Pipeline.HistoryWindow > 0 {
		opts = append(opts, pipeline.WithHistoryWindow(cfg.Pipeline.HistoryWindow))
	}
	if cfg.Pipeline.RecordDir != "" {
		opts = append(opts, pipeline.WithDebugRecording(cfg.Pipeline.RecordDir))
	}

	factory := func(callID string, out media.OutputSource) *pipeline.Pipeline {
		return pipeline.New(callID, sttP, ttsP, llmP, ledger, out, opts...)
	}
	return agentd.NewRunner(roomConnector{client: rooms}, factory), nil
}

// buildSTT creates the primary transcription provider and folds any
// fallbacks into a failover wrapper.
func buildSTT(reg *config.Registry, slot config.ProviderSlot) (stt.Provider, error) {
	primary, err := reg.CreateSTT(slot.ProviderEntry)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", slot.Name, err)
	}
	if len(slot.Fallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewSTTFallback(primary, slot.Name, resilience.FallbackConfig{})
	for _, entry := range slot.Fallbacks {
		p, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
		}
		fb.AddFallback(entry.Name, p)
	}
	return fb, nil
}

func buildTTS(reg *config.Registry, slot config.ProviderSlot) (tts.Provider, error) {
	primary, err := reg.CreateTTS(slot.ProviderEntry)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", slot.Name, err)
	}
	if len(slot.Fallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewTTSFallback(primary, slot.Name, resilience.FallbackConfig{})
	for _, entry := range slot.Fallbacks {
		p, err := reg.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
		}
		fb.AddFallback(entry.Name, p)
	}
	return fb, nil
}

func buildLLM(reg *config.Registry, slot config.ProviderSlot) (llm.Provider, error) {
	primary, err := reg.CreateLLM(slot.ProviderEntry)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", slot.Name, err)
	}
	if len(slot.Fallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewLLMFallback(primary, slot.Name, resilience.FallbackConfig{})
	for _, entry := range slot.Fallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %q: %w", entry.Name, err)
		}
		fb.AddFallback(entry.Name, p)
	}
	return fb, nil
}

// registerBuiltinProviders wires the provider factories that ship with
// Sonara into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttdeepgram.Option
		if entry.Model != "" {
			opts = append(opts, sttdeepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, sttdeepgram.WithLanguage(lang))
		}
		return sttdeepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("deepgram", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsdeepgram.Option
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, ttsdeepgram.WithVoice(voice))
		}
		return ttsdeepgram.New(entry.APIKey, opts...)
	})
	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, elevenlabs.WithVoice(voice))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// OpenAI goes through the native SDK; everything else any-llm-go
	// supports shares one factory shape.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})
	for _, name := range []string{"anthropic", "gemini", "mistral", "groq", "deepseek"} {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(entry.Name, entry.Model, opts...)
		})
	}
	// ollama is a local server; it takes a base URL, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string from a provider Options map. Returns ""
// when the map is nil, the key is absent, or the value is another type.
func optString(opts map[string]any, key string) string {
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
