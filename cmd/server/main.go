package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediscribe/scribe-gateway/internal/config"
	"github.com/mediscribe/scribe-gateway/internal/events"
	"github.com/mediscribe/scribe-gateway/internal/observability"
	"github.com/mediscribe/scribe-gateway/internal/pipeline"
	"github.com/mediscribe/scribe-gateway/internal/provider"
	"github.com/mediscribe/scribe-gateway/internal/server"
	"github.com/mediscribe/scribe-gateway/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("stt_provider", cfg.STTProvider).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Bool("kafka_enabled", cfg.KafkaEnabled()).
		Msg("Scribe Gateway Service starting")

	settings := provider.Settings{
		STTProvider:           cfg.STTProvider,
		DeepgramAPIKey:        cfg.DeepgramAPIKey,
		DeepgramModel:         cfg.DeepgramModel,
		DeepgramLanguage:      cfg.DeepgramLanguage,
		OpenAIAPIKey:          cfg.OpenAIAPIKey,
		OpenAIModel:           cfg.OpenAIModel,
		OpenAITranscribeModel: cfg.OpenAITranscribeModel,
	}

	transcriber, err := provider.NewTranscriber(settings)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transcription provider")
	}
	summarizer := provider.NewSummarizer(settings)

	// Session store with idle-session reaper
	store := session.NewStore(transcriber, summarizer, session.StoreConfig{
		AudioMIMEType: cfg.AudioMIMEType,
		QueueSize:     cfg.FlushQueueSize,
		IdleTimeout:   cfg.SessionIdleTimeout(),
	}, logger)
	store.StartJanitor(cfg.JanitorInterval())
	defer store.StopJanitor()

	// Note-event publisher (log-only when Kafka is not configured)
	publisher := events.New(events.Config{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	}, logger)
	defer publisher.Close()

	batch := pipeline.NewBatch(transcriber, summarizer)

	// Create HTTP server
	mux := http.NewServeMux()

	// Streaming encounter endpoint
	mux.HandleFunc("/streams/encounter", server.HandleStream(store, publisher, logger))

	// One-shot batch endpoint
	mux.HandleFunc("POST /transcriptions", server.HandleBatch(batch, publisher, cfg.MaxUploadBytes, logger))

	// Health check endpoint
	mux.HandleFunc("/healthz", observability.HealthCheckHandler())

	// Readiness endpoint - validates provider client construction only, to
	// avoid API costs on every probe
	transcriberCheck := func(ctx context.Context) (bool, error) {
		_, err := provider.NewTranscriber(settings)
		if err != nil {
			return false, err
		}
		return true, nil
	}
	summarizerCheck := func(ctx context.Context) (bool, error) {
		if cfg.OpenAIAPIKey == "" {
			return false, fmt.Errorf("OpenAI API key not configured")
		}
		return true, nil
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"transcriber": transcriberCheck,
		"summarizer":  summarizerCheck,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts. No WriteTimeout: the streaming
	// endpoint holds its connection open for the whole encounter.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/encounter", cfg.Port)).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
