// Command gateway runs the conversational avatar gateway: it loads
// configuration, constructs the inference adapters and asset store,
// registers the Transport Surface's three endpoints, and serves HTTP/2
// until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lookatitude/avatar-gateway/assetstore"
	"github.com/lookatitude/avatar-gateway/cache"
	"github.com/lookatitude/avatar-gateway/chunker"
	"github.com/lookatitude/avatar-gateway/config"
	"github.com/lookatitude/avatar-gateway/core"
	"github.com/lookatitude/avatar-gateway/dialogue"
	"github.com/lookatitude/avatar-gateway/llm"
	"github.com/lookatitude/avatar-gateway/o11y"
	"github.com/lookatitude/avatar-gateway/o11y/providers/langfuse"
	"github.com/lookatitude/avatar-gateway/o11y/providers/langsmith"
	"github.com/lookatitude/avatar-gateway/o11y/providers/opik"
	"github.com/lookatitude/avatar-gateway/o11y/providers/phoenix"
	"github.com/lookatitude/avatar-gateway/pipeline"
	"github.com/lookatitude/avatar-gateway/server"
	"github.com/lookatitude/avatar-gateway/voice/lipsync"
	"github.com/lookatitude/avatar-gateway/voice/stt"
	"github.com/lookatitude/avatar-gateway/voice/tts"

	_ "github.com/lookatitude/avatar-gateway/cache/providers/inmemory"
	_ "github.com/lookatitude/avatar-gateway/llm/providers/anthropic"
	_ "github.com/lookatitude/avatar-gateway/llm/providers/ollama"
	_ "github.com/lookatitude/avatar-gateway/llm/providers/openai"
	_ "github.com/lookatitude/avatar-gateway/voice/lipsync/providers/local"
	_ "github.com/lookatitude/avatar-gateway/voice/stt/providers/local"
	_ "github.com/lookatitude/avatar-gateway/voice/tts/providers/local"
)

func main() {
	logger := o11y.NewLogger(o11y.WithJSON())
	ctx := o11y.WithLogger(context.Background(), logger)

	if err := config.LoadConfig(); err != nil {
		logger.Error(ctx, "failed to load configuration", "error", err)
		os.Exit(1)
	}

	adapters, err := buildAdapters(config.Cfg)
	if err != nil {
		logger.Error(ctx, "failed to build adapters", "error", err)
		os.Exit(1)
	}

	adapter := server.NewStdlibAdapter(server.Config{H2C: config.Cfg.Transport.Protocol != "https"})

	historyBackend, err := cache.New("inmemory", cache.Config{TTL: 30 * time.Minute, MaxSize: 10000})
	if err != nil {
		logger.Error(ctx, "failed to build dialogue history cache", "error", err)
		os.Exit(1)
	}
	history := dialogue.New(historyBackend, 10, 30*time.Minute)

	conv := &server.ConversationHandler{Adapters: adapters, History: history}
	if err := adapter.RegisterHandler(http.MethodPost, "/conversation/stream", conv); err != nil {
		logger.Error(ctx, "failed to register conversation handler", "error", err)
		os.Exit(1)
	}

	videoServer := &server.VideoServer{Store: adapters.Store}
	if err := adapter.RegisterHandler(http.MethodGet, "/videos/{artifact_id}", videoServer); err != nil {
		logger.Error(ctx, "failed to register video handler", "error", err)
		os.Exit(1)
	}

	health := server.NewHealthHandler(adapters)
	if err := adapter.RegisterHandler(http.MethodGet, "/health", health); err != nil {
		logger.Error(ctx, "failed to register health handler", "error", err)
		os.Exit(1)
	}

	static := server.NewStaticHandler()
	if err := adapter.RegisterHandler(http.MethodGet, "/static/player.js", static); err != nil {
		logger.Error(ctx, "failed to register static handler", "error", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := config.Cfg.Transport.Addr
	if addr == "" {
		addr = ":8080"
	}

	app := core.NewApp()
	app.Register(&storeLifecycle{store: adapters.Store})
	srv := &serverLifecycle{adapter: adapter, addr: addr}
	app.Register(srv)

	if err := app.Start(runCtx); err != nil {
		logger.Error(runCtx, "failed to start gateway components", "error", err)
		os.Exit(1)
	}
	logger.Info(runCtx, "gateway listening", "addr", addr)

	<-runCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "error during gateway shutdown", "error", err)
		os.Exit(1)
	}
}

func buildAdapters(cfg config.Config) (pipeline.Adapters, error) {
	asrModel, err := stt.New(cfg.ASR.Provider, stt.Config{Language: cfg.ASR.Language})
	if err != nil {
		return pipeline.Adapters{}, err
	}

	ttsModel, err := tts.New(cfg.TTS.Provider, tts.Config{Voice: cfg.TTS.Voice})
	if err != nil {
		return pipeline.Adapters{}, err
	}

	lipsyncModel, err := lipsync.New(cfg.LipSync.Provider, lipsync.Config{})
	if err != nil {
		return pipeline.Adapters{}, err
	}

	llmModel, err := llm.New(cfg.LLM.Provider, config.ProviderConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return pipeline.Adapters{}, err
	}

	store, err := assetstore.New(assetstore.Config{
		Dir:              cfg.AssetStore.Dir,
		StableSizePoll:   time.Duration(cfg.AssetStore.StableSizePollMS) * time.Millisecond,
		StableSizeBudget: time.Duration(cfg.AssetStore.StableSizeBudgetMS) * time.Millisecond,
	})
	if err != nil {
		return pipeline.Adapters{}, err
	}

	fallback := ""
	if cfg.LLM.FallbackEnabled {
		fallback = "Sorry, I'm having trouble responding right now. Could you say that again?"
	}

	traceExporter, err := buildTraceExporter(cfg)
	if err != nil {
		return pipeline.Adapters{}, err
	}

	return pipeline.Adapters{
		ASR:              asrModel,
		LLM:              llmModel,
		TTS:              ttsModel,
		LipSync:          lipsyncModel,
		Store:            store,
		FallbackResponse: fallback,
		TraceExporter:    traceExporter,
		ChunkerOptions: []chunker.Option{
			chunker.WithMaxChars(cfg.Chunker.MaxChars),
			chunker.WithFirstChunkHardLimit(cfg.Chunker.FirstChunkHardLimit),
			chunker.WithAbbreviations(splitAbbreviations(cfg.Chunker.AbbreviationSet)),
		},
	}, nil
}

// buildTraceExporter constructs the configured GenAI call-tracing backend,
// if any. An empty cfg.Observability.TraceExporter disables LLM call export
// entirely, leaving pipeline.Adapters.TraceExporter nil.
func buildTraceExporter(cfg config.Config) (o11y.TraceExporter, error) {
	o := cfg.Observability
	switch o.TraceExporter {
	case "":
		return nil, nil
	case "langfuse":
		return langfuse.New(
			langfuse.WithBaseURL(o.BaseURL),
			langfuse.WithPublicKey(o.APIKey),
			langfuse.WithSecretKey(o.SecretKey),
		)
	case "langsmith":
		return langsmith.New(
			langsmith.WithBaseURL(o.BaseURL),
			langsmith.WithAPIKey(o.APIKey),
		)
	case "opik":
		return opik.New(
			opik.WithBaseURL(o.BaseURL),
			opik.WithAPIKey(o.APIKey),
			opik.WithWorkspace(o.Workspace),
		)
	case "phoenix":
		return phoenix.New(
			phoenix.WithBaseURL(o.BaseURL),
			phoenix.WithAPIKey(o.APIKey),
		)
	default:
		return nil, fmt.Errorf("unknown observability.trace_exporter %q", o.TraceExporter)
	}
}

func splitAbbreviations(set string) []string {
	if set == "" {
		return nil
	}
	parts := strings.Split(set, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
