package ingestion

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docindex/chunker"
	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/index"
	"github.com/poiesic/docindex/storage"
)

// Job describes one document ingestion run.
type Job struct {
	DocumentID      string
	DocumentName    string
	KnowledgeBaseID string
	Content         *core.ParsedContent
}

// Result summarizes a completed ingestion run.
type Result struct {
	Chunks         int  // chunks produced by the splitter
	Indexed        int  // points written to the vector store
	OrphansRemoved int  // stale points removed after re-upload
	Skipped        bool // true when unchanged content short-circuited
}

// Pipeline orchestrates per-document ingestion: chunking, batched
// embedding, and idempotent indexing, in strict order. Independent
// documents run fully concurrently on a worker pool with no shared
// mutable state between runs; callers are expected to schedule at most
// one run per document id at a time.
type Pipeline struct {
	chunker       *chunker.Chunker
	batcher       *Batcher
	indexer       *index.Indexer
	pool          *ants.Pool
	status        StatusFunc
	skipUnchanged bool
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent document runs.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithStatusFunc sets the callback receiving status transitions.
func WithStatusFunc(fn StatusFunc) Option {
	return func(p *Pipeline) error {
		p.status = fn
		return nil
	}
}

// WithSkipUnchanged enables the unchanged-content fast path: a re-upload
// whose chunks fingerprint-match the stored manifest goes straight to
// ready without embedding or indexing.
func WithSkipUnchanged(skip bool) Option {
	return func(p *Pipeline) error {
		p.skipUnchanged = skip
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline from its three stages.
func NewPipeline(c *chunker.Chunker, b *Batcher, ix *index.Indexer, opts ...Option) (*Pipeline, error) {
	if c == nil {
		return nil, ErrChunkerRequired
	}
	if b == nil {
		return nil, ErrBatcherRequired
	}
	if ix == nil {
		return nil, ErrIndexerRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		chunker: c,
		batcher: b,
		indexer: ix,
		pool:    pool,
		logger:  slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Run ingests one document synchronously, driving the status transitions
// Pending → Chunking → Embedding → Indexing → Ready. On error the
// document is reported failed with the stage the error originated from,
// and the vector store is left exactly as it was: every stage is
// idempotent given stable chunk indexes, so re-running the whole job
// after a failure needs no cleanup step.
//
// Orphan cleanup runs after Ready and its failure never reverts it.
func (p *Pipeline) Run(ctx context.Context, job *Job) (*Result, error) {
	if job == nil || job.DocumentID == "" || job.KnowledgeBaseID == "" || job.Content == nil {
		return nil, ErrJobRequired
	}

	p.report(job.DocumentID, StatusChunking, core.StageUnknown, nil)
	chunks, err := p.chunker.Chunk(job.Content, job.DocumentID, job.DocumentName)
	if err != nil {
		return nil, p.fail(job.DocumentID, err)
	}

	if len(chunks) == 0 {
		return p.runEmpty(ctx, job)
	}

	if p.skipUnchanged {
		if skipped := p.unchanged(ctx, job, chunks); skipped {
			p.report(job.DocumentID, StatusReady, core.StageUnknown, nil)
			return &Result{Chunks: len(chunks), Skipped: true}, nil
		}
	}

	p.report(job.DocumentID, StatusEmbedding, core.StageUnknown, nil)
	embeddings, err := p.batcher.Embed(ctx, chunks)
	if err != nil {
		return nil, p.fail(job.DocumentID, err)
	}

	p.report(job.DocumentID, StatusIndexing, core.StageUnknown, nil)
	indexed, err := p.indexer.IndexDocument(ctx, job.DocumentID, job.KnowledgeBaseID, embeddings)
	if err != nil {
		return nil, p.fail(job.DocumentID, err)
	}

	p.report(job.DocumentID, StatusReady, core.StageUnknown, nil)

	// Upsert-before-delete: the replacement content is durable, so stale
	// chunks from a previously longer version can go.
	orphans := p.indexer.CleanupOrphanChunks(ctx, job.DocumentID, job.KnowledgeBaseID, len(chunks)-1)

	p.logger.Info("document ingested",
		"document", job.DocumentID, "kb", job.KnowledgeBaseID,
		"chunks", len(chunks), "indexed", indexed, "orphans", orphans)

	return &Result{Chunks: len(chunks), Indexed: indexed, OrphansRemoved: orphans}, nil
}

// runEmpty handles a re-upload whose content chunked to nothing: the
// document now has no indexable text, so every prior point and the
// manifest go. Leaving the manifest behind would let a later
// skip-unchanged run fingerprint-match it and report ready over an
// empty store.
func (p *Pipeline) runEmpty(ctx context.Context, job *Job) (*Result, error) {
	p.report(job.DocumentID, StatusIndexing, core.StageUnknown, nil)
	deleted, err := p.indexer.DeleteDocumentVectors(ctx, job.DocumentID, job.KnowledgeBaseID)
	if err != nil {
		return nil, p.fail(job.DocumentID, err)
	}
	p.report(job.DocumentID, StatusReady, core.StageUnknown, nil)

	p.logger.Info("document emptied",
		"document", job.DocumentID, "kb", job.KnowledgeBaseID, "removed", deleted)
	return &Result{OrphansRemoved: deleted}, nil
}

// Submit schedules an ingestion run on the worker pool. Errors during the
// async run are reported through the status callback and logged, but do
// not surface to the submitter.
func (p *Pipeline) Submit(job *Job) error {
	return p.pool.Submit(func() {
		if _, err := p.Run(context.Background(), job); err != nil {
			p.logger.Error("ingestion run failed", "document", job.DocumentID, "err", err)
		}
	})
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// unchanged reports whether the document's chunks match what is already
// indexed, using the stored manifest's fingerprint.
func (p *Pipeline) unchanged(ctx context.Context, job *Job, chunks []*core.DocumentChunk) bool {
	manifest, err := p.indexer.Manifest(ctx, job.DocumentID, job.KnowledgeBaseID)
	if err != nil {
		if !storage.IsNotFound(err) {
			p.logger.Debug("manifest lookup failed", "document", job.DocumentID, "err", err)
		}
		return false
	}
	if manifest.ChunkCount != len(chunks) || manifest.Fingerprint != core.ChunksFingerprint(chunks) {
		return false
	}
	// The manifest is advisory. Trust it only when the store actually
	// holds the points it describes, otherwise a skip here would report
	// ready for a document retrieval cannot see.
	stored, err := p.indexer.StoredPointCount(ctx, job.DocumentID, job.KnowledgeBaseID)
	if err != nil || stored != manifest.ChunkCount {
		return false
	}
	p.logger.Info("content unchanged, skipping re-embedding",
		"document", job.DocumentID, "chunks", len(chunks))
	return true
}

func (p *Pipeline) fail(documentID string, err error) error {
	stage := core.StageOf(err)
	p.logger.Error("ingestion stage failed", "document", documentID, "stage", stage, "err", err)
	p.report(documentID, StatusFailed, stage, err)
	return err
}

func (p *Pipeline) report(documentID string, status Status, stage core.Stage, err error) {
	if p.status == nil {
		return
	}
	p.status(documentID, status, stage, err)
}
