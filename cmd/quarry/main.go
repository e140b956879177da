// Command quarry indexes a directory of documents into an embedded
// chunk store and answers semantic queries over it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/quarry/internal/adapters/driven/config/file"
	"github.com/custodia-labs/quarry/internal/adapters/driven/embedding/hash"
	"github.com/custodia-labs/quarry/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/quarry/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/quarry/internal/adapters/driven/embedding/resilient"
	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/quarry/internal/adapters/driving/cli"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/services"
	"github.com/custodia-labs/quarry/internal/loaders/filesystem"
	"github.com/custodia-labs/quarry/internal/logger"
	"github.com/custodia-labs/quarry/internal/normalisers"
	"github.com/custodia-labs/quarry/internal/postprocessors"
)

// version is set at build time via -ldflags.
var version = "dev"

// corpusStore is the composite storage surface every backend provides.
type corpusStore interface {
	driven.DocumentStore
	driven.VectorIndex
}

func main() {
	// A .env file is optional; secrets may come from the environment.
	_ = godotenv.Load()

	if os.Getenv("QUARRY_DEBUG") != "" {
		logger.SetVerbose(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening storage backend: %w", err)
	}
	defer store.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("configuring embedder: %w", err)
	}

	loaderFactory, err := filesystem.NewFactory(
		cfg.GetStringSlice("source.include"),
		cfg.GetStringSlice("source.exclude"),
	)
	if err != nil {
		return fmt.Errorf("configuring loader: %w", err)
	}

	registry := normalisers.DefaultRegistry()

	processors := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(processors)
	chunker, err := processors.Build("chunker", chunkerConfig(cfg))
	if err != nil {
		return fmt.Errorf("configuring chunker: %w", err)
	}
	pipeline := postprocessors.NewPipeline(chunker)

	indexer := services.NewIndexer(loaderFactory, registry, pipeline, embedder, store, services.IndexerConfig{
		DefaultRoot:    cfg.GetString("source.root"),
		Workers:        cfg.GetInt("indexing.workers"),
		DocumentPrefix: cfg.GetString("embedding.document_prefix"),
	})
	retriever := services.NewRetriever(store, store, embedder, services.RetrieverConfig{
		QueryPrefix: cfg.GetString("embedding.query_prefix"),
	})
	documents := services.NewDocumentService(store)

	cli.SetServices(cli.Services{
		Retriever: retriever,
		Indexer:   indexer,
		Documents: documents,
		Config:    cfg,
	})
	cli.SetVersion(version)

	return cli.Execute(ctx)
}

// openStore selects the storage backend from configuration.
// All backends serve both storage ports from one handle so a document
// replacement commits chunks, vectors and the hash together.
func openStore(ctx context.Context, cfg driven.ConfigStore) (corpusStore, error) {
	backend := cfg.GetString("storage.backend")
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "sqlite":
		return sqlite.NewStore(cfg.GetString("storage.path"))
	case "postgres":
		return postgres.NewStore(ctx, postgresDSN(cfg))
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", backend)
	}
}

// postgresDSN assembles a key/value DSN from the storage.* keys.
// QUARRY_PG_PASSWORD overrides the stored password so the secret can
// stay out of the config file.
func postgresDSN(cfg driven.ConfigStore) string {
	host := cfg.GetString("storage.host")
	if host == "" {
		host = "localhost"
	}
	port := cfg.GetInt("storage.port")
	if port == 0 {
		port = 5432
	}
	user := cfg.GetString("storage.user")
	if user == "" {
		user = "quarry"
	}
	dbname := cfg.GetString("storage.dbname")
	if dbname == "" {
		dbname = "quarry"
	}
	password := os.Getenv("QUARRY_PG_PASSWORD")
	if password == "" {
		password = cfg.GetString("storage.password")
	}

	parts := []string{
		"host=" + host,
		fmt.Sprintf("port=%d", port),
		"user=" + user,
		"dbname=" + dbname,
	}
	if password != "" {
		parts = append(parts, "password="+password)
	}
	if sslmode := cfg.GetString("storage.sslmode"); sslmode != "" {
		parts = append(parts, "sslmode="+sslmode)
	}
	return strings.Join(parts, " ")
}

// buildEmbedder constructs the configured provider and wraps it in the
// retry, breaker, and throttle policy.
func buildEmbedder(cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	provider := cfg.GetString("embedding.provider")
	if provider == "" {
		provider = "ollama"
	}

	timeout := time.Duration(cfg.GetInt("embedding.timeout")) * time.Second

	var inner driven.EmbeddingService
	switch provider {
	case "ollama":
		inner = ollama.NewEmbeddingService(ollama.Config{
			BaseURL:        cfg.GetString("embedding.endpoint"),
			Model:          cfg.GetString("embedding.model"),
			Timeout:        timeout,
			Dimensions:     cfg.GetInt("embedding.dimensions"),
			MaxInputLength: cfg.GetInt("embedding.max_input"),
		})
	case "openai":
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			BaseURL:        cfg.GetString("embedding.endpoint"),
			Model:          cfg.GetString("embedding.model"),
			Timeout:        timeout,
			Dimensions:     cfg.GetInt("embedding.dimensions"),
			MaxInputLength: cfg.GetInt("embedding.max_input"),
		})
		if err != nil {
			return nil, err
		}
		inner = svc
	case "hash":
		inner = hash.NewEmbeddingService(cfg.GetInt("embedding.dimensions"))
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", provider)
	}

	// Zero means no client-side throttle, not the decorator default.
	rps := float64(rate.Inf)
	if limit := cfg.GetFloat("indexing.rate_limit"); limit > 0 {
		rps = limit
	}

	return resilient.NewEmbeddingService(inner, resilient.Config{
		MaxRetries:        uint64(cfg.GetInt("indexing.retry_attempts")),
		BreakerThreshold:  uint32(cfg.GetInt("indexing.breaker_threshold")),
		RequestsPerSecond: rps,
	}), nil
}

// chunkerConfig forwards only the chunking keys the user actually set,
// leaving the rest to the chunker defaults.
func chunkerConfig(cfg driven.ConfigStore) map[string]any {
	out := make(map[string]any)
	for key, name := range map[string]string{
		"chunking.size":     "size",
		"chunking.overlap":  "overlap",
		"chunking.min_size": "min_size",
	} {
		if v, ok := cfg.Get(key); ok {
			out[name] = v
		}
	}
	return out
}
