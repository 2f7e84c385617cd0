// Package main provides the entry point for the autovoyce API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autovoyce/autovoyce/internal/chunker"
	"github.com/autovoyce/autovoyce/internal/config"
	"github.com/autovoyce/autovoyce/internal/embedding"
	"github.com/autovoyce/autovoyce/internal/events"
	"github.com/autovoyce/autovoyce/internal/genai"
	"github.com/autovoyce/autovoyce/internal/pipeline"
	"github.com/autovoyce/autovoyce/internal/server"
	"github.com/autovoyce/autovoyce/internal/session"
	"github.com/autovoyce/autovoyce/internal/vector"
	"github.com/autovoyce/autovoyce/internal/vector/pinecone"
	"github.com/autovoyce/autovoyce/internal/youtube"
)

var Version = "dev"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Local development keeps credentials in a .env; absence is fine.
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file loaded")
	}

	cfg := config.Load()

	log.Info().
		Str("version", Version).
		Int("port", cfg.Port).
		Dur("sessionTimeout", cfg.SessionTimeout).
		Dur("cleanupInterval", cfg.CleanupInterval).
		Msg("Starting autovoyce server")

	index := pinecone.NewClient(pinecone.Config{
		APIKey:  cfg.IndexAPIKey,
		HostURL: cfg.IndexHostURL,
	})
	embedder := embedding.NewClient(embedding.Config{
		APIKey:  cfg.EmbeddingAPIKey,
		BaseURL: cfg.EmbeddingBaseURL,
		Model:   cfg.EmbeddingModel,
	})
	tokenChunker, err := chunker.New(chunker.DefaultChunkTokens, chunker.DefaultOverlapTokens)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize chunker")
	}
	store := vector.NewStore(index, embedder, tokenChunker)

	registry := session.NewRegistry(store)
	cleaner := session.NewCleaner(registry, cfg.CleanupInterval, cfg.SessionTimeout)

	eventLog := events.NewLog(cfg.MaxEventsPerSession)

	searcher := youtube.NewSearchClient(youtube.SearchConfig{
		APIKey: cfg.SerpAPIKey,
		Limit:  cfg.SearchLimit,
	})
	fetcher := youtube.NewCachedFetcher(youtube.NewTranscriptClient(youtube.TranscriptConfig{}))
	answerer := genai.NewClient(genai.Config{
		APIKey: cfg.GoogleAPIKey,
		Model:  cfg.GenModel,
	})

	runner := pipeline.NewRunner(fetcher, store, registry, eventLog)
	dispatcher := pipeline.NewDispatcher(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleaner.Start(ctx)
	dispatcher.Start(ctx)

	svc := server.NewService(cfg, registry, eventLog, runner, dispatcher, searcher, store, answerer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}

	dispatcher.Stop()
	cleaner.Stop()

	log.Info().Msg("Server shutdown complete")
}
