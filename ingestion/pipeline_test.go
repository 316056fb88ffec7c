package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docindex/ai/mock"
	"github.com/poiesic/docindex/chunker"
	"github.com/poiesic/docindex/core"
	"github.com/poiesic/docindex/index"
	"github.com/poiesic/docindex/storage"
	"github.com/poiesic/docindex/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fieldsTokenizer counts whitespace-separated words so pipeline tests
// never load tiktoken data.
type fieldsTokenizer struct{}

func (fieldsTokenizer) Count(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

// statusRecorder captures status transitions for assertions. Safe for
// concurrent use because Submit runs jobs on pool goroutines.
type statusRecorder struct {
	mu          sync.Mutex
	transitions []Status
	failedStage core.Stage
	failedErr   error
}

func (r *statusRecorder) record(documentID string, status Status, stage core.Stage, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, status)
	if status == StatusFailed {
		r.failedStage = stage
		r.failedErr = err
	}
}

func (r *statusRecorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.transitions...)
}

type pipelineFixture struct {
	pipeline *Pipeline
	embedder *mock.MockEmbedder
	indexer  *index.Indexer
	store    storage.VectorStore
	recorder *statusRecorder
}

func newPipelineFixture(t *testing.T, opts ...Option) *pipelineFixture {
	t.Helper()

	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c, err := chunker.New(
		chunker.WithChunkSize(10),
		chunker.WithChunkOverlap(2),
		chunker.WithTokenizer(fieldsTokenizer{}),
	)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	embedder.VectorSize = 8

	b, err := NewBatcher(embedder, WithBatchSize(20))
	require.NoError(t, err)

	ix, err := index.New(store,
		index.WithVectorSize(8),
		index.WithRetryBaseDelay(time.Millisecond))
	require.NoError(t, err)

	recorder := &statusRecorder{}
	opts = append([]Option{WithStatusFunc(recorder.record)}, opts...)

	p, err := NewPipeline(c, b, ix, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	return &pipelineFixture{
		pipeline: p,
		embedder: embedder,
		indexer:  ix,
		store:    store,
		recorder: recorder,
	}
}

func wordsJob(documentID string, wordCount int) *Job {
	parts := make([]string, wordCount)
	for i := range parts {
		parts[i] = "w" + strings.Repeat("x", i%7)
	}
	return &Job{
		DocumentID:      documentID,
		DocumentName:    documentID + ".txt",
		KnowledgeBaseID: "kb1",
		Content:         &core.ParsedContent{Text: strings.Join(parts, " ")},
	}
}

func TestNewPipeline(t *testing.T) {
	fx := newPipelineFixture(t)

	t.Run("requires chunker", func(t *testing.T) {
		_, err := NewPipeline(nil, fx.pipeline.batcher, fx.pipeline.indexer)
		assert.ErrorIs(t, err, ErrChunkerRequired)
	})

	t.Run("requires batcher", func(t *testing.T) {
		_, err := NewPipeline(fx.pipeline.chunker, nil, fx.pipeline.indexer)
		assert.ErrorIs(t, err, ErrBatcherRequired)
	})

	t.Run("requires indexer", func(t *testing.T) {
		_, err := NewPipeline(fx.pipeline.chunker, fx.pipeline.batcher, nil)
		assert.ErrorIs(t, err, ErrIndexerRequired)
	})
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()
	fx := newPipelineFixture(t)

	result, err := fx.pipeline.Run(ctx, wordsJob("doc-1", 40))
	require.NoError(t, err)

	assert.Greater(t, result.Chunks, 1)
	assert.Equal(t, result.Chunks, result.Indexed)
	assert.Zero(t, result.OrphansRemoved)
	assert.False(t, result.Skipped)

	assert.Equal(t, []Status{
		StatusChunking, StatusEmbedding, StatusIndexing, StatusReady,
	}, fx.recorder.statuses())

	assert.Equal(t, result.Chunks, fx.indexer.DocumentChunkCount(ctx, "doc-1", "kb1"))
}

func TestPipelineRunEmptyDocument(t *testing.T) {
	fx := newPipelineFixture(t)

	job := wordsJob("doc-1", 0)
	job.Content = &core.ParsedContent{Text: "   \n  "}

	result, err := fx.pipeline.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Zero(t, result.Chunks)
	assert.Zero(t, result.Indexed)
	assert.Zero(t, fx.embedder.CallCount())
}

func TestPipelineRunInvalidJob(t *testing.T) {
	fx := newPipelineFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		job  *Job
	}{
		{"nil job", nil},
		{"missing document id", &Job{KnowledgeBaseID: "kb1", Content: &core.ParsedContent{Text: "x"}}},
		{"missing knowledge base", &Job{DocumentID: "d", Content: &core.ParsedContent{Text: "x"}}},
		{"missing content", &Job{DocumentID: "d", KnowledgeBaseID: "kb1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.pipeline.Run(ctx, tt.job)
			assert.ErrorIs(t, err, ErrJobRequired)
		})
	}
}

func TestPipelineReingestShorterDocument(t *testing.T) {
	ctx := context.Background()
	fx := newPipelineFixture(t)

	first, err := fx.pipeline.Run(ctx, wordsJob("doc-1", 80))
	require.NoError(t, err)

	second, err := fx.pipeline.Run(ctx, wordsJob("doc-1", 30))
	require.NoError(t, err)
	require.Less(t, second.Chunks, first.Chunks)

	// Stale chunks from the longer version are reconciled away.
	assert.Equal(t, first.Chunks-second.Chunks, second.OrphansRemoved)
	assert.Equal(t, second.Chunks, fx.indexer.DocumentChunkCount(ctx, "doc-1", "kb1"))
}

// opRecordingStore logs write-path operations in call order.
type opRecordingStore struct {
	storage.VectorStore
	mu  sync.Mutex
	ops []string
}

func (s *opRecordingStore) UpsertPoints(ctx context.Context, collection string, points []*core.Point) error {
	s.mu.Lock()
	s.ops = append(s.ops, "upsert")
	s.mu.Unlock()
	return s.VectorStore.UpsertPoints(ctx, collection, points)
}

func (s *opRecordingStore) DeleteChunksAfter(ctx context.Context, collection, documentID string, maxChunkIndex int) (int, error) {
	s.mu.Lock()
	s.ops = append(s.ops, "deleteChunksAfter")
	s.mu.Unlock()
	return s.VectorStore.DeleteChunksAfter(ctx, collection, documentID, maxChunkIndex)
}

func TestPipelineUpsertBeforeDelete(t *testing.T) {
	ctx := context.Background()

	memory, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { memory.Close() })
	recording := &opRecordingStore{VectorStore: memory}

	c, err := chunker.New(
		chunker.WithChunkSize(10),
		chunker.WithChunkOverlap(0),
		chunker.WithTokenizer(fieldsTokenizer{}),
	)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	embedder.VectorSize = 8

	b, err := NewBatcher(embedder)
	require.NoError(t, err)

	ix, err := index.New(recording, index.WithVectorSize(8))
	require.NoError(t, err)

	p, err := NewPipeline(c, b, ix)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	_, err = p.Run(ctx, wordsJob("doc-1", 60))
	require.NoError(t, err)

	_, err = p.Run(ctx, wordsJob("doc-1", 20))
	require.NoError(t, err)

	// Each run upserts the replacement content before touching stale
	// chunks, so retrieval never sees the document empty.
	assert.Equal(t, []string{
		"upsert", "deleteChunksAfter",
		"upsert", "deleteChunksAfter",
	}, recording.ops)
}

func TestPipelineFailureStageAttribution(t *testing.T) {
	ctx := context.Background()

	t.Run("embedding failure", func(t *testing.T) {
		fx := newPipelineFixture(t)
		fx.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("connection refused")
		}

		_, err := fx.pipeline.Run(ctx, wordsJob("doc-1", 40))
		require.Error(t, err)

		statuses := fx.recorder.statuses()
		assert.Equal(t, StatusFailed, statuses[len(statuses)-1])
		assert.Equal(t, core.StageEmbedding, fx.recorder.failedStage)
		assert.NotContains(t, statuses, StatusIndexing, "indexing must not start after embedding fails")

		// Nothing was written for the document.
		assert.Zero(t, fx.indexer.DocumentChunkCount(ctx, "doc-1", "kb1"))
	})

	t.Run("rate limit exhaustion surfaces retries", func(t *testing.T) {
		fx := newPipelineFixture(t)
		fx.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("429 Too Many Requests")
		}
		fx.pipeline.batcher.maxRetries = 1
		fx.pipeline.batcher.sleep = func(ctx context.Context, d time.Duration) error { return nil }

		_, err := fx.pipeline.Run(ctx, wordsJob("doc-1", 10))
		var rateErr *core.RateLimitExceededError
		require.ErrorAs(t, err, &rateErr)
		assert.Equal(t, core.StageEmbedding, fx.recorder.failedStage)
	})
}

func TestPipelineSkipUnchanged(t *testing.T) {
	ctx := context.Background()
	fx := newPipelineFixture(t, WithSkipUnchanged(true))

	first, err := fx.pipeline.Run(ctx, wordsJob("doc-1", 40))
	require.NoError(t, err)
	require.False(t, first.Skipped)
	callsAfterFirst := fx.embedder.CallCount()

	second, err := fx.pipeline.Run(ctx, wordsJob("doc-1", 40))
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.Chunks, second.Chunks)
	assert.Equal(t, callsAfterFirst, fx.embedder.CallCount(), "unchanged content must not re-embed")

	// Changed content goes through the full pipeline again.
	third, err := fx.pipeline.Run(ctx, wordsJob("doc-1", 45))
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	assert.Greater(t, fx.embedder.CallCount(), callsAfterFirst)
}

func TestPipelineEmptyReupload(t *testing.T) {
	ctx := context.Background()
	fx := newPipelineFixture(t, WithSkipUnchanged(true))

	original := wordsJob("doc-1", 40)
	first, err := fx.pipeline.Run(ctx, original)
	require.NoError(t, err)
	require.Greater(t, first.Chunks, 0)

	// The emptied document drops all points and the manifest with them.
	empty := wordsJob("doc-1", 0)
	empty.Content = &core.ParsedContent{Text: "   \n  "}
	emptied, err := fx.pipeline.Run(ctx, empty)
	require.NoError(t, err)
	assert.Zero(t, emptied.Chunks)
	assert.Equal(t, first.Chunks, emptied.OrphansRemoved)
	assert.Zero(t, fx.indexer.DocumentChunkCount(ctx, "doc-1", "kb1"))

	_, err = fx.indexer.Manifest(ctx, "doc-1", "kb1")
	assert.True(t, storage.IsNotFound(err), "manifest must not survive an empty re-upload")

	// Re-uploading the original content must go through the full
	// pipeline again, not fingerprint-match leftover state.
	third, err := fx.pipeline.Run(ctx, original)
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	assert.Equal(t, first.Chunks, third.Indexed)
	assert.Equal(t, first.Chunks, fx.indexer.DocumentChunkCount(ctx, "doc-1", "kb1"))
}

func TestPipelineSkipDistrustsStaleManifest(t *testing.T) {
	ctx := context.Background()
	fx := newPipelineFixture(t, WithSkipUnchanged(true))

	original := wordsJob("doc-1", 40)
	first, err := fx.pipeline.Run(ctx, original)
	require.NoError(t, err)

	// Drop the points behind the manifest's back.
	deleted, err := fx.store.DeleteChunksAfter(ctx, index.CollectionName("kb1"), "doc-1", -1)
	require.NoError(t, err)
	require.Equal(t, first.Chunks, deleted)

	second, err := fx.pipeline.Run(ctx, original)
	require.NoError(t, err)
	assert.False(t, second.Skipped, "a manifest without backing points must not short-circuit")
	assert.Equal(t, first.Chunks, second.Indexed)
}

func TestPipelineSubmit(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c, err := chunker.New(
		chunker.WithChunkSize(10),
		chunker.WithChunkOverlap(0),
		chunker.WithTokenizer(fieldsTokenizer{}),
	)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	embedder.VectorSize = 8

	b, err := NewBatcher(embedder)
	require.NoError(t, err)

	ix, err := index.New(store, index.WithVectorSize(8))
	require.NoError(t, err)

	ready := make(chan string, 1)
	p, err := NewPipeline(c, b, ix,
		WithPoolSize(2),
		WithStatusFunc(func(documentID string, status Status, stage core.Stage, err error) {
			if status == StatusReady {
				ready <- documentID
			}
		}))
	require.NoError(t, err)
	t.Cleanup(p.Release)

	require.NoError(t, p.Submit(wordsJob("doc-async", 25)))

	select {
	case documentID := <-ready:
		assert.Equal(t, "doc-async", documentID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for async ingestion")
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusPending, "pending"},
		{StatusChunking, "chunking"},
		{StatusEmbedding, "embedding"},
		{StatusIndexing, "indexing"},
		{StatusReady, "ready"},
		{StatusFailed, "failed"},
		{Status(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}
