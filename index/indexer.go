package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/storage"
)

const (
	// DefaultVectorSize matches the OpenAI text-embedding-3-small and
	// ada-002 models.
	DefaultVectorSize = 1536

	// DefaultMaxRetries is the upsert retry budget.
	DefaultMaxRetries = 5

	// DefaultRetryBaseDelay is the base delay for upsert retry backoff.
	DefaultRetryBaseDelay = 1 * time.Second
)

// CollectionName returns the vector-store collection for a knowledge base.
func CollectionName(kbID string) string {
	return "kb_" + kbID
}

// Indexer persists chunk embeddings as idempotent vector-store points and
// reconciles stale points after re-upload. All writes are keyed by the
// deterministic point id, so re-running any operation is safe.
type Indexer struct {
	store          storage.VectorStore
	vectorSize     int
	distance       storage.Distance
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithVectorSize sets the embedding dimensionality used when creating
// collections. Default is DefaultVectorSize.
func WithVectorSize(size int) Option {
	return func(ix *Indexer) error {
		if size < 1 {
			return fmt.Errorf("vector size must be at least 1")
		}
		ix.vectorSize = size
		return nil
	}
}

// WithDistance sets the distance metric used when creating collections.
// Default is cosine.
func WithDistance(distance storage.Distance) Option {
	return func(ix *Indexer) error {
		ix.distance = distance
		return nil
	}
}

// WithMaxRetries sets the retry budget for upserts.
func WithMaxRetries(retries int) Option {
	return func(ix *Indexer) error {
		if retries < 1 {
			return ErrInvalidMaxAttempts
		}
		ix.maxRetries = retries
		return nil
	}
}

// WithRetryBaseDelay sets the base delay for upsert retry backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(ix *Indexer) error {
		ix.retryBaseDelay = delay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// New creates an Indexer writing through the given vector store.
func New(store storage.VectorStore, opts ...Option) (*Indexer, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	ix := &Indexer{
		store:          store,
		vectorSize:     DefaultVectorSize,
		distance:       storage.DistanceCosine,
		maxRetries:     DefaultMaxRetries,
		retryBaseDelay: DefaultRetryBaseDelay,
		logger:         slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

// IndexDocument writes all embeddings of a document as points in the
// knowledge base's collection, creating the collection if needed. The
// whole upsert is retried on transient failure; on exhaustion it returns
// core.IndexingError and performs no cleanup, so the prior version's
// vectors stay intact and the job can simply be re-submitted.
// Returns the number of points written.
func (ix *Indexer) IndexDocument(ctx context.Context, documentID, kbID string, embeddings []*core.ChunkEmbedding) (int, error) {
	if len(embeddings) == 0 {
		return 0, nil
	}

	collection := CollectionName(kbID)
	points := make([]*core.Point, len(embeddings))
	chunks := make([]*core.DocumentChunk, len(embeddings))
	for i, embedding := range embeddings {
		chunk := embedding.Chunk
		chunks[i] = chunk
		points[i] = &core.Point{
			ID:     embedding.PointID(),
			Vector: embedding.Vector,
			Payload: core.PointPayload{
				DocumentID:    chunk.DocumentID,
				DocumentName:  chunk.DocumentName,
				ChunkText:     chunk.Text,
				CharStart:     chunk.CharStart,
				CharEnd:       chunk.CharEnd,
				ChunkIndex:    chunk.ChunkIndex,
				PageNumber:    chunk.PageNumber,
				SectionHeader: chunk.SectionHeader,
			},
		}
	}

	err := RetryWithBackoff(ctx, func() error {
		if err := ix.store.EnsureCollection(ctx, collection, ix.vectorSize, ix.distance); err != nil {
			return err
		}
		return ix.store.UpsertPoints(ctx, collection, points)
	}, ix.maxRetries, ix.retryBaseDelay)
	if err != nil {
		ix.logger.Error("upsert failed after retries",
			"document", documentID, "collection", collection, "err", err)
		return 0, &core.IndexingError{Op: "upsert", Err: err}
	}

	manifest := &core.DocumentManifest{
		DocumentID:  documentID,
		Fingerprint: core.ChunksFingerprint(chunks),
		ChunkCount:  len(points),
		VectorSize:  ix.vectorSize,
		IndexedAt:   time.Now().UTC(),
	}
	if err := ix.store.PutManifest(ctx, collection, manifest); err != nil {
		// The points are durable; a stale manifest only disables the
		// skip-unchanged fast path for this document.
		ix.logger.Warn("manifest write failed", "document", documentID, "err", err)
	}

	ix.logger.Info("indexed document",
		"document", documentID, "collection", collection, "points", len(points))
	return len(points), nil
}

// CleanupOrphanChunks deletes points left over from a previously longer
// version of the document: those with chunk index greater than
// maxChunkIndex. It must run only after IndexDocument for the replacement
// content has succeeded; that upsert-before-delete ordering guarantees
// retrieval never observes a window with zero chunks for the document.
// Failures are logged and swallowed: a stale orphan degrades ranking at
// worst, it never corrupts results. Returns the number of points deleted.
func (ix *Indexer) CleanupOrphanChunks(ctx context.Context, documentID, kbID string, maxChunkIndex int) int {
	collection := CollectionName(kbID)
	deleted, err := ix.store.DeleteChunksAfter(ctx, collection, documentID, maxChunkIndex)
	if err != nil {
		ix.logger.Warn("orphan cleanup failed",
			"document", documentID, "collection", collection,
			"maxChunkIndex", maxChunkIndex, "err", err)
		return 0
	}
	if deleted > 0 {
		ix.logger.Info("removed orphan chunks",
			"document", documentID, "collection", collection, "deleted", deleted)
	}
	return deleted
}

// DeleteDocumentVectors removes every point of a deliberately deleted
// document. Unlike orphan cleanup, failure here is fatal: vectors left
// behind after an explicit delete are a data-leak concern, so the error
// propagates as core.IndexingError.
func (ix *Indexer) DeleteDocumentVectors(ctx context.Context, documentID, kbID string) (int, error) {
	collection := CollectionName(kbID)
	deleted, err := ix.store.DeleteDocumentPoints(ctx, collection, documentID)
	if err != nil {
		return 0, &core.IndexingError{Op: "delete", Err: err}
	}
	ix.logger.Info("deleted document vectors",
		"document", documentID, "collection", collection, "deleted", deleted)
	return deleted, nil
}

// DocumentChunkCount returns the number of chunks currently indexed for
// the document. The manifest provides a fast path; a missing manifest
// falls back to counting points. Non-critical read: any backing-store
// error returns 0.
func (ix *Indexer) DocumentChunkCount(ctx context.Context, documentID, kbID string) int {
	collection := CollectionName(kbID)
	if manifest, err := ix.store.GetManifest(ctx, collection, documentID); err == nil {
		return manifest.ChunkCount
	}
	count, err := ix.store.CountDocumentPoints(ctx, collection, documentID)
	if err != nil {
		ix.logger.Debug("chunk count unavailable", "document", documentID, "err", err)
		return 0
	}
	return count
}

// StoredPointCount returns the number of points the store actually holds
// for the document, bypassing the manifest fast path.
func (ix *Indexer) StoredPointCount(ctx context.Context, documentID, kbID string) (int, error) {
	return ix.store.CountDocumentPoints(ctx, CollectionName(kbID), documentID)
}

// Manifest returns the stored manifest for a document, or
// storage.ErrNotFound if the document has never been indexed.
func (ix *Indexer) Manifest(ctx context.Context, documentID, kbID string) (*core.DocumentManifest, error) {
	return ix.store.GetManifest(ctx, CollectionName(kbID), documentID)
}
