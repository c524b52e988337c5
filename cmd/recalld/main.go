// cmd/recalld is the entry point for the Recall maintenance daemon. It
// wires the configured storage backend through the engine and runs the
// periodic sweeper: garbage collection of decayed memories and
// consolidation of memory clusters into summaries.
//
// Startup sequence:
//  1. Load .env (if present) and configuration.
//  2. Open the configured store (sqlite, postgres, or in-memory).
//  3. Build the engine with the embedding and LLM providers that have
//     credentials configured; missing providers degrade gracefully.
//  4. Run the sweeper until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/engine"
	"github.com/scrypster/recall/internal/llm"
	"github.com/scrypster/recall/internal/similarity"
	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/internal/storage/memstore"
	"github.com/scrypster/recall/internal/storage/postgres"
	"github.com/scrypster/recall/internal/storage/sqlite"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("recalld: ")
	log.SetFlags(log.LstdFlags)

	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	// .env is a development convenience; absence is not an error.
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded environment from .env")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	eng := buildEngine(cfg, store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := engine.NewSweeper(eng, cfg.Maintenance.Users, cfg.Maintenance.Interval, cfg.Maintenance.OpsPerSecond)
	log.Printf("sweeping %d users every %s on %s storage",
		len(cfg.Maintenance.Users), cfg.Maintenance.Interval, cfg.Storage.Engine)
	sweeper.Run(ctx)
	log.Printf("shutting down")
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, fmt.Errorf("create data directory %q: %w", cfg.Storage.DataPath, err)
		}
		return sqlite.New(filepath.Join(cfg.Storage.DataPath, "recall.db"))
	case "postgres":
		return postgres.New(cfg.Storage.PostgresDSN)
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.Engine)
	}
}

func buildEngine(cfg *config.Config, store storage.Store) *engine.Engine {
	var opts []engine.Option

	if cfg.Similarity.APIKey != "" {
		var provider similarity.Provider
		if cfg.Similarity.BaseURL != "" {
			provider = similarity.NewOpenAIProviderWithBaseURL(
				cfg.Similarity.APIKey, cfg.Similarity.Model, cfg.Similarity.BaseURL)
		} else {
			provider = similarity.NewOpenAIProvider(cfg.Similarity.APIKey, cfg.Similarity.Model)
		}
		provider = similarity.NewBreakerProvider(provider)
		if cached, err := similarity.NewCachedProvider(provider, cfg.Similarity.CacheSize); err == nil {
			provider = cached
		} else {
			log.Printf("embedding cache disabled: %v", err)
		}
		opts = append(opts, engine.WithEmbedder(provider))
	} else {
		log.Printf("no embedding credentials, retrieval runs without similarity")
	}

	if cfg.LLM.APIKey != "" {
		var generator llm.TextGenerator
		if cfg.LLM.BaseURL != "" {
			generator = llm.NewOpenAIGeneratorWithBaseURL(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
		} else {
			generator = llm.NewOpenAIGenerator(cfg.LLM.APIKey, cfg.LLM.Model)
		}
		opts = append(opts,
			engine.WithFactExtractor(engine.NewLLMExtractor(generator)),
			engine.WithProseGenerator(engine.NewLLMProseGenerator(generator)),
		)
	} else {
		log.Printf("no LLM credentials, consolidation uses deterministic extraction")
	}

	return engine.New(store, opts...)
}
