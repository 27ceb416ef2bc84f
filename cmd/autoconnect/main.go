// Autoconnect is a voice chat server: it transcribes speech or accepts text,
// asks a hosted language model for a reply, and speaks the reply back.
//
// Usage:
//
//	autoconnect [flags]
//	autoconnect --config /path/to/autoconnect.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nadzzz/autoconnect/internal/config"
	"github.com/nadzzz/autoconnect/internal/dispatch"
	"github.com/nadzzz/autoconnect/internal/health"
	openaiinterp "github.com/nadzzz/autoconnect/internal/interpreter/openai"
	"github.com/nadzzz/autoconnect/internal/metrics"
	"github.com/nadzzz/autoconnect/internal/transport"
	httptransport "github.com/nadzzz/autoconnect/internal/transport/http"
	"github.com/nadzzz/autoconnect/internal/tts/elevenlabs"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/autoconnect.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("autoconnect %s\n", version)
		os.Exit(0)
	}

	// A local .env is optional.
	_ = godotenv.Load()

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("refusing to start", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("autoconnect starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Provider clients are built once and shared read-only by every request.
	interp := openaiinterp.New(cfg.Interpreter)
	defer interp.Close()
	slog.Info("using OpenAI-compatible interpreter",
		"base_url", cfg.Interpreter.BaseURL,
		"transcription_model", cfg.Interpreter.TranscriptionModel,
		"completion_model", cfg.Interpreter.CompletionModel)

	synth := elevenlabs.New(cfg.TTS)
	defer synth.Close()
	slog.Info("using ElevenLabs synthesizer", "voice_id", cfg.TTS.VoiceID, "model_id", cfg.TTS.ModelID)

	var m *metrics.Metrics
	if cfg.Server.Metrics {
		m = metrics.New()
	}

	dispatcher := dispatch.New(interp, synth, m)
	handlers := transport.Handlers{
		Chat: dispatcher.Handle,
		Speak: func(ctx context.Context, text string) ([]byte, error) {
			return dispatch.Speak(ctx, synth, m, text)
		},
	}

	transports := []transport.Transport{
		httptransport.New(cfg.HTTP, cfg.Edge),
	}

	// Start health check server.
	healthServer := health.New(cfg.Server.HealthPort)
	if m != nil {
		healthServer.Handle("GET /metrics", m.Handler())
	}
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	// Start all transports.
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, handlers); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
				cancel()
			}
		}(t)
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	slog.Info("autoconnect ready",
		"http_port", cfg.HTTP.Port,
		"health_port", cfg.Server.HealthPort)

	// Block until shutdown signal.
	<-ctx.Done()
	healthServer.SetReady(false)
	slog.Info("shutdown signal received, draining...")

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("autoconnect stopped")
}
