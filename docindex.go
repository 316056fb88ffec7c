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


// Package docindex turns parsed document text into durably indexed,
// retrievable vector embeddings for a RAG knowledge base.
//
// The Ingestor facade bundles a local vector store, an embedding
// provider, and the ingestion pipeline behind a single lifecycle. The
// underlying pieces (chunker, ingestion, index, storage) can also be
// composed directly when a caller brings its own vector store or
// embedding client.
package docindex

import (
	"context"
	"log/slog"

	"github.com/poiesic/docindex/ai"
	"github.com/poiesic/docindex/ai/openai"
	"github.com/poiesic/docindex/chunker"
	"github.com/poiesic/docindex/index"
	"github.com/poiesic/docindex/ingestion"
	"github.com/poiesic/docindex/storage"
	"github.com/poiesic/docindex/storage/badger"
)

// Ingestor is the one-call assembly of the ingestion stack on top of a
// BadgerDB-backed vector store.
type Ingestor struct {
	store    storage.VectorStore
	provider ai.Provider
	indexer  *index.Indexer
	batcher  *ingestion.Batcher
	pipeline *ingestion.Pipeline
	logger   *slog.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*ingestorOptions)

type ingestorOptions struct {
	aiConfig     *ai.Config
	chunkerOpts  []chunker.Option
	batcherOpts  []ingestion.BatcherOption
	indexerOpts  []index.Option
	pipelineOpts []ingestion.Option
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) IngestorOption {
	return func(o *ingestorOptions) {
		o.aiConfig = config
	}
}

// WithChunkerOptions forwards options to the chunker.
func WithChunkerOptions(opts ...chunker.Option) IngestorOption {
	return func(o *ingestorOptions) {
		o.chunkerOpts = append(o.chunkerOpts, opts...)
	}
}

// WithBatcherOptions forwards options to the embedding batcher.
func WithBatcherOptions(opts ...ingestion.BatcherOption) IngestorOption {
	return func(o *ingestorOptions) {
		o.batcherOpts = append(o.batcherOpts, opts...)
	}
}

// WithIndexerOptions forwards options to the indexer.
func WithIndexerOptions(opts ...index.Option) IngestorOption {
	return func(o *ingestorOptions) {
		o.indexerOpts = append(o.indexerOpts, opts...)
	}
}

// WithPipelineOptions forwards options to the pipeline.
func WithPipelineOptions(opts ...ingestion.Option) IngestorOption {
	return func(o *ingestorOptions) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// NewIngestor opens (or creates) a vector store at filePath and wires the
// full ingestion stack on top of it.
func NewIngestor(filePath string, opts ...IngestorOption) (*Ingestor, error) {
	options := &ingestorOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}

	store, err := badger.NewVectorStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider, err := openai.NewProvider(options.aiConfig)
	if err != nil {
		store.Close()
		return nil, err
	}

	return newIngestor(store, provider, options)
}

// NewIngestorWithProvider wires the ingestion stack on top of an
// existing vector store and embedding provider. The Ingestor takes
// ownership of both and closes them on Close.
func NewIngestorWithProvider(store storage.VectorStore, provider ai.Provider, opts ...IngestorOption) (*Ingestor, error) {
	options := &ingestorOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return newIngestor(store, provider, options)
}

func newIngestor(store storage.VectorStore, provider ai.Provider, options *ingestorOptions) (*Ingestor, error) {
	chunk, err := chunker.New(options.chunkerOpts...)
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}

	batcher, err := ingestion.NewBatcher(provider.Embedder(), options.batcherOpts...)
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}

	indexer, err := index.New(store, options.indexerOpts...)
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}

	pipeline, err := ingestion.NewPipeline(chunk, batcher, indexer, options.pipelineOpts...)
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}

	return &Ingestor{
		store:    store,
		provider: provider,
		indexer:  indexer,
		batcher:  batcher,
		pipeline: pipeline,
		logger:   slog.Default(),
	}, nil
}

// IngestDocument runs one document through the pipeline synchronously.
func (ing *Ingestor) IngestDocument(ctx context.Context, job *ingestion.Job) (*ingestion.Result, error) {
	return ing.pipeline.Run(ctx, job)
}

// SubmitDocument schedules an asynchronous ingestion run.
func (ing *Ingestor) SubmitDocument(job *ingestion.Job) error {
	return ing.pipeline.Submit(job)
}

// DeleteDocument removes every indexed vector of a document.
func (ing *Ingestor) DeleteDocument(ctx context.Context, documentID, kbID string) (int, error) {
	return ing.indexer.DeleteDocumentVectors(ctx, documentID, kbID)
}

// ChunkCount returns the number of chunks currently indexed for a document.
func (ing *Ingestor) ChunkCount(ctx context.Context, documentID, kbID string) int {
	return ing.indexer.DocumentChunkCount(ctx, documentID, kbID)
}

// TotalTokens returns the cumulative embedded token count.
func (ing *Ingestor) TotalTokens() int64 {
	return ing.batcher.TotalTokens()
}

// Pipeline exposes the underlying pipeline for advanced callers.
func (ing *Ingestor) Pipeline() *ingestion.Pipeline {
	return ing.pipeline
}

// Close releases the pipeline's workers and closes the provider and store.
func (ing *Ingestor) Close() error {
	ing.pipeline.Release()

	if err := ing.provider.Close(); err != nil {
		ing.logger.Error("error closing embedding provider", "err", err)
	}

	if err := ing.store.Close(); err != nil {
		ing.logger.Error("error closing vector store", "err", err)
		return err
	}
	return nil
}
