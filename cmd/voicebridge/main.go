// Voicebridge brokers voice-assistant conversations between a voice
// pipeline, an OpenAI-compatible LLM backend, and Home Assistant.
//
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	voicebridge serve       Start the API server
//	voicebridge version     Print version and build information
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nugget/voicebridge/internal/agent"
	"github.com/nugget/voicebridge/internal/api"
	"github.com/nugget/voicebridge/internal/archive"
	"github.com/nugget/voicebridge/internal/buildinfo"
	"github.com/nugget/voicebridge/internal/config"
	"github.com/nugget/voicebridge/internal/facts"
	"github.com/nugget/voicebridge/internal/homeassistant"
	"github.com/nugget/voicebridge/internal/llm"
	"github.com/nugget/voicebridge/internal/mqtt"
	"github.com/nugget/voicebridge/internal/music"
	"github.com/nugget/voicebridge/internal/prompts"
	"github.com/nugget/voicebridge/internal/search"
	"github.com/nugget/voicebridge/internal/session"
	"github.com/nugget/voicebridge/internal/storage"
	"github.com/nugget/voicebridge/internal/tools"
)

// main constructs the OS-level environment and delegates to [run] so
// the full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run parses arguments and dispatches to the selected command.
// Arguments are parsed by hand: the flag package's global state makes
// concurrent test invocations of run() impossible, and the surface is
// tiny.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var command string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "version":
		return runVersion(stdout)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runVersion(w io.Writer) error {
	fmt.Fprintln(w, buildinfo.String())
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(buildinfo.Info())
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "voicebridge - Home Assistant voice conversation broker")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: voicebridge [flags] <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve     Start the API server")
	fmt.Fprintln(w, "  version   Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>   Path to config file (default: auto-discover)")
	return nil
}

// runServe is the primary operating mode: load config, wire the
// conversation stack, serve HTTP until SIGINT/SIGTERM, then drain.
//
// Shutdown sequence:
//  1. SIGINT or SIGTERM cancels the context
//  2. The HTTP server drains in-flight requests
//  3. The live session is retired and fact extraction drains
//  4. MQTT publishes offline and disconnects
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting voicebridge", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}
	logger.Info("config loaded", "path", cfgPath, "model", cfg.LLM.Model)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	// --- LLM client ---
	llmClient := llm.NewGroqClient(cfg.LLM.APIKey, logger,
		llm.WithBaseURL(cfg.LLM.BaseURL),
		llm.WithModel(cfg.LLM.Model),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTimeout(cfg.LLM.Timeout()),
	)

	// --- Home Assistant clients ---
	ha := homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token)
	if err := ha.Ping(ctx); err != nil {
		logger.Warn("Home Assistant unreachable at startup", "url", cfg.HomeAssistant.URL, "error", err)
	}

	var services tools.ServicesSource
	haWS := homeassistant.NewWSClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger)
	if err := haWS.Connect(ctx); err != nil {
		logger.Warn("Home Assistant websocket unavailable, tool discovery limited", "error", err)
	} else {
		defer haWS.Close()
		services = haWS
	}

	// --- Fact store ---
	var factStore *facts.Store
	var factTools *facts.Tools
	if cfg.Conversation.FactLearning {
		factStore = facts.NewStore(storage.New(filepath.Join(cfg.DataDir, "facts.json")), logger)
		if err := factStore.Load(); err != nil {
			return fmt.Errorf("load fact store: %w", err)
		}
		factTools = facts.NewTools(factStore, logger)
		logger.Info("fact store loaded", "facts", factStore.Count())
	}

	// --- Feature handlers ---
	var musicHandler *music.Handler
	if cfg.Conversation.Music {
		musicHandler = music.NewHandler(ha, logger)
	}

	var tavily *search.Tavily
	if cfg.Search.TavilyAPIKey != "" {
		tavily = search.NewTavily(cfg.Search.TavilyAPIKey, logger)
	}

	// --- Conversation stack ---
	registry := tools.NewRegistry(ha, services, logger)
	router := tools.NewRouter(registry, factTools, musicHandler, tavily, logger)

	sessions := session.NewManager(cfg.SessionTimeout(), llmClient, factStore, logger)
	go sessions.Sweep(ctx)

	systemPrompt := cfg.Conversation.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = prompts.DefaultSystem
	}
	loop := agent.NewLoop(llmClient, router, sessions, agent.Config{
		SystemPrompt:   systemPrompt,
		MaxIterations:  cfg.Conversation.MaxToolIterations,
		ContinueMarker: cfg.Conversation.ContinueMarker,
		AutoContinue:   cfg.Conversation.AutoContinue,
	}, logger)

	// --- Exchange archive ---
	archiveStore, err := archive.Open(filepath.Join(cfg.DataDir, "archive.db"))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveStore.Close()

	// --- MQTT announcer ---
	var announcer *mqtt.Announcer
	if cfg.MQTT.Enabled {
		announcer = mqtt.New(cfg.MQTT, logger)
		if err := announcer.Start(ctx); err != nil {
			return fmt.Errorf("start mqtt announcer: %w", err)
		}
	}

	// --- API server ---
	addr := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	server := api.NewServer(addr, loop, cfg.Conversation.Streaming, logger)
	server.SetArchive(archiveStore)
	if factStore != nil {
		server.SetFactStore(factStore)
	}
	if announcer != nil {
		server.SetAnnouncer(announcer)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", "error", err)
	}

	// Retire the live session so its facts are extracted, then let
	// in-flight extractions finish before the process exits.
	sessions.Retire()
	sessions.Wait()

	if announcer != nil {
		if err := announcer.Stop(shutdownCtx); err != nil {
			logger.Warn("mqtt disconnect failed", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}
