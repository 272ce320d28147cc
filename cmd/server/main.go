package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mnemonic-kb/mnemonic/api"
	"github.com/mnemonic-kb/mnemonic/config"
	"github.com/mnemonic-kb/mnemonic/core/ai/embedding"
	"github.com/mnemonic-kb/mnemonic/core/ai/llm"
	"github.com/mnemonic-kb/mnemonic/core/ai/voice"
	"github.com/mnemonic-kb/mnemonic/core/query"
	"github.com/mnemonic-kb/mnemonic/core/rank"
	"github.com/mnemonic-kb/mnemonic/core/synth"
	"github.com/mnemonic-kb/mnemonic/notes"
	"github.com/mnemonic-kb/mnemonic/persistence"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML configuration file")
		host       = flag.String("host", "", "Host to listen on (overrides config)")
		port       = flag.Int("port", 0, "Port to listen on (overrides config)")
		storeType  = flag.String("store", "", "Store type: memory, bolt, postgres (overrides config)")
		storePath  = flag.String("store-path", "", "Bolt database path (overrides config)")
		storeDSN   = flag.String("store-dsn", "", "Postgres DSN (overrides config)")
	)
	flag.Parse()

	// Provider API keys live in the environment; a local .env is optional.
	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *storeType != "" {
		cfg.Store.Type = persistence.StoreType(*storeType)
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *storeDSN != "" {
		cfg.Store.DSN = *storeDSN
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	store, err := persistence.NewStore(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("Failed to create note store: %v", err)
	}
	defer store.Close()

	embedder, err := embedding.NewHuggingFaceEngine(embedding.Config{
		Endpoint: cfg.Providers.HuggingFace.Endpoint,
		Model:    cfg.Providers.HuggingFace.Model,
		APIKey:   cfg.Providers.HuggingFace.APIKey,
		Timeout:  cfg.Providers.HuggingFace.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to create embedding engine: %v", err)
	}

	completer, err := llm.NewGroqProvider(llm.Config{
		Endpoint: cfg.Providers.Groq.Endpoint,
		Model:    cfg.Providers.Groq.CompletionModel,
		APIKey:   cfg.Providers.Groq.APIKey,
		Timeout:  cfg.Providers.Groq.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to create completion provider: %v", err)
	}

	transcriber, err := voice.NewWhisperTranscriber(voice.Config{
		Endpoint: cfg.Providers.Groq.Endpoint,
		Model:    cfg.Providers.Groq.TranscriptionModel,
		APIKey:   cfg.Providers.Groq.APIKey,
		Timeout:  cfg.Providers.Groq.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to create transcriber: %v", err)
	}

	orchestrator := query.NewOrchestrator(
		embedder,
		transcriber,
		rank.NewRanker(store),
		synth.NewSynthesizer(completer),
	)
	noteService := notes.NewService(store, embedder)

	server := api.NewServer(noteService, orchestrator, api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	// Run the server and wait for a shutdown signal
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}
}
