package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/docindex/ai/mock"
	"github.com/poiesic/docindex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeChunks(n int) []*core.DocumentChunk {
	chunks := make([]*core.DocumentChunk, n)
	for i := range chunks {
		chunks[i] = &core.DocumentChunk{
			ChunkIndex: i,
			Text:       fmt.Sprintf("chunk text %d", i),
			DocumentID: "doc-1",
			CharStart:  i * 10,
			CharEnd:    i*10 + 10,
			TokenCount: 10,
		}
	}
	return chunks
}

// recordSleeps replaces the batcher's sleep with one that records the
// requested delays and returns immediately.
func recordSleeps(b *Batcher) *[]time.Duration {
	var slept []time.Duration
	b.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return &slept
}

func TestNewBatcher(t *testing.T) {
	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewBatcher(nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("defaults", func(t *testing.T) {
		b, err := NewBatcher(mock.NewMockEmbedder())
		require.NoError(t, err)
		assert.Equal(t, DefaultBatchSize, b.batchSize)
		assert.Equal(t, DefaultMaxRetries, b.maxRetries)
		assert.Equal(t, DefaultBackoffSchedule, b.backoff)
	})

	t.Run("invalid batch size", func(t *testing.T) {
		_, err := NewBatcher(mock.NewMockEmbedder(), WithBatchSize(0))
		assert.ErrorIs(t, err, ErrInvalidBatchSize)
	})

	t.Run("negative max retries", func(t *testing.T) {
		_, err := NewBatcher(mock.NewMockEmbedder(), WithMaxRetries(-1))
		assert.ErrorIs(t, err, ErrInvalidMaxRetries)
	})

	t.Run("empty backoff schedule", func(t *testing.T) {
		_, err := NewBatcher(mock.NewMockEmbedder(), WithBackoffSchedule(nil))
		assert.ErrorIs(t, err, ErrEmptyBackoffSchedule)
	})
}

func TestEmbedEmpty(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	b, err := NewBatcher(embedder)
	require.NoError(t, err)

	out, err := b.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Zero(t, embedder.CallCount(), "empty input must not call the API")
}

func TestEmbedBatching(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.VectorSize = 8
	b, err := NewBatcher(embedder, WithBatchSize(20))
	require.NoError(t, err)

	chunks := makeChunks(45)
	out, err := b.Embed(context.Background(), chunks)
	require.NoError(t, err)

	// 45 chunks at batch size 20 is three API calls.
	assert.Equal(t, 3, embedder.CallCount())

	require.Len(t, out, len(chunks))
	for i, embedding := range out {
		assert.Same(t, chunks[i], embedding.Chunk, "order must be preserved")
		assert.Len(t, embedding.Vector, 8)
	}
}

func TestEmbedRateLimitBackoff(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	failures := 2
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if failures > 0 {
			failures--
			return nil, errors.New("429 Too Many Requests")
		}
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = []float32{1, 2, 3}
		}
		return vectors, nil
	}

	b, err := NewBatcher(embedder,
		WithBackoffSchedule([]time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}))
	require.NoError(t, err)
	slept := recordSleeps(b)

	out, err := b.Embed(context.Background(), makeChunks(3))
	require.NoError(t, err)
	assert.Len(t, out, 3)

	// First retry waits the first schedule entry, second the next.
	assert.Equal(t, []time.Duration{30 * time.Second, 60 * time.Second}, *slept)
}

func TestEmbedRateLimitSchedulePlateau(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	failures := 4
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if failures > 0 {
			failures--
			return nil, errors.New("rate limit exceeded")
		}
		return [][]float32{{1}}, nil
	}

	b, err := NewBatcher(embedder,
		WithMaxRetries(5),
		WithBackoffSchedule([]time.Duration{time.Second, 2 * time.Second}))
	require.NoError(t, err)
	slept := recordSleeps(b)

	_, err = b.Embed(context.Background(), makeChunks(1))
	require.NoError(t, err)

	// Attempts beyond the schedule reuse its last entry.
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second,
	}, *slept)
}

func TestEmbedRateLimitExhausted(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("429 Too Many Requests")
	}

	b, err := NewBatcher(embedder,
		WithMaxRetries(2),
		WithBackoffSchedule([]time.Duration{time.Millisecond}))
	require.NoError(t, err)
	slept := recordSleeps(b)

	out, err := b.Embed(context.Background(), makeChunks(3))
	assert.Nil(t, out)

	var rateErr *core.RateLimitExceededError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 2, rateErr.Retries)
	assert.Len(t, *slept, 2, "should sleep once per retry")
	assert.Equal(t, core.StageEmbedding, core.StageOf(err))
}

func TestEmbedTokenLimit(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	chunks := makeChunks(45)

	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		// Fail only the third batch.
		if texts[0] == chunks[40].Text {
			return nil, errors.New("this model's maximum context length is 8192 tokens")
		}
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = []float32{1}
		}
		return vectors, nil
	}

	b, err := NewBatcher(embedder, WithBatchSize(20))
	require.NoError(t, err)

	out, err := b.Embed(context.Background(), chunks)
	assert.Nil(t, out, "failure must be all-or-nothing")

	var tokenErr *core.TokenLimitExceededError
	require.ErrorAs(t, err, &tokenErr)
	assert.Equal(t, 40, tokenErr.BatchStartIndex)
}

func TestEmbedGenerationError(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("connection refused")
	}

	b, err := NewBatcher(embedder)
	require.NoError(t, err)

	_, err = b.Embed(context.Background(), makeChunks(1))
	var genErr *core.EmbeddingGenerationError
	assert.ErrorAs(t, err, &genErr)
}

func TestEmbedResultLengthMismatch(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil // always one vector, whatever was asked
	}

	b, err := NewBatcher(embedder)
	require.NoError(t, err)

	_, err = b.Embed(context.Background(), makeChunks(3))
	var genErr *core.EmbeddingGenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, err.Error(), "expected 3")
}

func TestEmbedContextCanceledDuringBackoff(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("429 Too Many Requests")
	}

	b, err := NewBatcher(embedder,
		WithBackoffSchedule([]time.Duration{time.Hour}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.Embed(ctx, makeChunks(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTotalTokens(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.VectorSize = 4
	b, err := NewBatcher(embedder)
	require.NoError(t, err)

	chunks := makeChunks(5) // 10 tokens each
	_, err = b.Embed(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, int64(50), b.TotalTokens())

	_, err = b.Embed(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, int64(100), b.TotalTokens(), "counter accumulates across calls")

	b.ResetTotalTokens()
	assert.Zero(t, b.TotalTokens())
}

func TestTotalTokensNotCountedOnFailure(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("connection refused")
	}

	b, err := NewBatcher(embedder)
	require.NoError(t, err)

	_, err = b.Embed(context.Background(), makeChunks(5))
	require.Error(t, err)
	assert.Zero(t, b.TotalTokens())
}
