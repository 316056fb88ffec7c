// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/docindex"
	"github.com/poiesic/docindex/ai"
	"github.com/poiesic/docindex/chunker"
	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/ingestion"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "docindex",
		Usage: "Document ingestion pipeline for vector search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Chunk, embed, and index a document into a knowledge base",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "kb",
						Usage:    "Knowledge base identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "doc-id",
						Usage:    "Document identifier (stable across re-ingestion)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "doc-name",
						Usage: "Human-readable document name (defaults to the input filename)",
					},
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Path to the document text to ingest",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "config",
						Usage: "Path to a YAML config file (flags override file values)",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "text-embedding-3-small",
					},
					&cli.StringFlag{
						Name:  "api-key",
						Usage: "API key for the embedding service",
					},
					&cli.IntFlag{
						Name:  "requests-per-minute",
						Usage: "Client-side embedding request rate limit (0 disables)",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Target chunk size in tokens",
						Value: chunker.DefaultChunkSize,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Token overlap between consecutive chunks",
						Value: chunker.DefaultChunkOverlap,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks per embedding request",
						Value: ingestion.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts after rate limiting",
						Value: ingestion.DefaultMaxRetries,
					},
					&cli.BoolFlag{
						Name:  "skip-unchanged",
						Usage: "Skip embedding and indexing when the document content is unchanged",
					},
				},
			},
			{
				Name:   "delete",
				Usage:  "Remove every indexed vector of a document",
				Action: deleteCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "kb",
						Usage:    "Knowledge base identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "doc-id",
						Usage:    "Document identifier",
						Required: true,
					},
				},
			},
			{
				Name:   "count",
				Usage:  "Report the number of indexed chunks for a document",
				Action: countCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "kb",
						Usage:    "Knowledge base identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "doc-id",
						Usage:    "Document identifier",
						Required: true,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	inputPath := c.String("input")
	text, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input document: %w", err)
	}

	docName := c.String("doc-name")
	if docName == "" {
		docName = inputPath
	}

	// Start from file config (if any) and let explicit flags win.
	var cfg fileConfig
	if path := c.String("config"); path != "" {
		loaded, err := loadFileConfig(path)
		if err != nil {
			return err
		}
		cfg = *loaded
	}

	if c.IsSet("embedding-host") || cfg.Embedding.Host == "" {
		cfg.Embedding.Host = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") || cfg.Embedding.Model == "" {
		cfg.Embedding.Model = c.String("embedding-model")
	}
	if c.IsSet("api-key") || cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = c.String("api-key")
	}
	if c.IsSet("requests-per-minute") {
		cfg.Embedding.RequestsPerMinute = c.Int("requests-per-minute")
	}
	if c.IsSet("chunk-size") || cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("chunk-overlap") || cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = c.Int("chunk-overlap")
	}
	if c.IsSet("batch-size") || cfg.Batching.BatchSize == 0 {
		cfg.Batching.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("max-retries") || cfg.Batching.MaxRetries == 0 {
		cfg.Batching.MaxRetries = c.Int("max-retries")
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(cfg.Embedding.Host),
		ai.WithEmbeddingModel(cfg.Embedding.Model),
		ai.WithAPIKey(cfg.Embedding.APIKey),
		ai.WithRequestsPerMinute(cfg.Embedding.RequestsPerMinute),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	batcherOpts := []ingestion.BatcherOption{
		ingestion.WithBatchSize(cfg.Batching.BatchSize),
		ingestion.WithMaxRetries(cfg.Batching.MaxRetries),
	}
	if len(cfg.Batching.Backoff) > 0 {
		batcherOpts = append(batcherOpts, ingestion.WithBackoffSchedule(cfg.Batching.Backoff))
	}

	ingestorOpts := []docindex.IngestorOption{
		docindex.WithAIConfig(aiConfig),
		docindex.WithChunkerOptions(
			chunker.WithChunkSize(cfg.Chunking.ChunkSize),
			chunker.WithChunkOverlap(cfg.Chunking.ChunkOverlap),
		),
		docindex.WithBatcherOptions(batcherOpts...),
	}
	if c.Bool("skip-unchanged") {
		ingestorOpts = append(ingestorOpts,
			docindex.WithPipelineOptions(ingestion.WithSkipUnchanged(true)))
	}

	ingestor, err := docindex.NewIngestor(c.String("db"), ingestorOpts...)
	if err != nil {
		return fmt.Errorf("failed to open ingestor: %w", err)
	}
	defer ingestor.Close()

	job := &ingestion.Job{
		DocumentID:      c.String("doc-id"),
		DocumentName:    docName,
		KnowledgeBaseID: c.String("kb"),
		Content: &core.ParsedContent{
			Text:         string(text),
			SourceFormat: "text",
		},
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Knowledge base: %s\n", c.String("kb"))
	fmt.Fprintf(os.Stderr, "Document: %s (%s)\n", docName, c.String("doc-id"))

	result, err := ingestor.IngestDocument(ctx, job)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if result.Skipped {
		fmt.Fprintf(os.Stderr, "Content unchanged, nothing to do\n")
		return nil
	}

	fmt.Fprintf(os.Stderr, "Chunks: %d\n", result.Chunks)
	fmt.Fprintf(os.Stderr, "Indexed: %d\n", result.Indexed)
	if result.OrphansRemoved > 0 {
		fmt.Fprintf(os.Stderr, "Stale chunks removed: %d\n", result.OrphansRemoved)
	}
	fmt.Fprintf(os.Stderr, "Tokens embedded: %d\n", ingestor.TotalTokens())

	return nil
}

func deleteCommand(c *cli.Context) error {
	ctx := context.Background()

	ingestor, err := openLocalIngestor(c.String("db"))
	if err != nil {
		return err
	}
	defer ingestor.Close()

	removed, err := ingestor.DeleteDocument(ctx, c.String("doc-id"), c.String("kb"))
	if err != nil {
		return fmt.Errorf("failed to delete document vectors: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Removed %d indexed chunks\n", removed)
	return nil
}

func countCommand(c *cli.Context) error {
	ctx := context.Background()

	ingestor, err := openLocalIngestor(c.String("db"))
	if err != nil {
		return err
	}
	defer ingestor.Close()

	count := ingestor.ChunkCount(ctx, c.String("doc-id"), c.String("kb"))
	fmt.Printf("%d\n", count)
	return nil
}

// openLocalIngestor opens an ingestor for commands that only touch the
// local store and never call the embedding service.
func openLocalIngestor(dbPath string) (*docindex.Ingestor, error) {
	ingestor, err := docindex.NewIngestor(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return ingestor, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
