package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/docindex/ai"
	"github.com/poiesic/docindex/core"
)

const (
	// DefaultBatchSize is the number of chunk texts sent per embedding
	// API call.
	DefaultBatchSize = 20

	// DefaultMaxRetries is the rate-limit retry budget per batch.
	DefaultMaxRetries = 5
)

// DefaultBackoffSchedule is the escalating delay ladder applied on
// rate-limit responses. Attempts beyond the ladder reuse the last delay.
var DefaultBackoffSchedule = []time.Duration{
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
	240 * time.Second,
	300 * time.Second,
}

// Batcher converts chunk texts into embedding vectors, batching API calls
// and backing off on rate limits. Batches are issued sequentially: one
// document's run never has concurrent embedding calls in flight, which
// keeps backoff bookkeeping simple and respects per-key rate limits.
type Batcher struct {
	embedder   ai.Embedder
	batchSize  int
	maxRetries int
	backoff    []time.Duration
	sleep      func(ctx context.Context, d time.Duration) error

	totalTokens atomic.Int64
	logger      *slog.Logger
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher) error

// WithBatchSize sets the maximum number of texts per embedding API call.
func WithBatchSize(size int) BatcherOption {
	return func(b *Batcher) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		b.batchSize = size
		return nil
	}
}

// WithMaxRetries sets the rate-limit retry budget per batch.
func WithMaxRetries(retries int) BatcherOption {
	return func(b *Batcher) error {
		if retries < 0 {
			return ErrInvalidMaxRetries
		}
		b.maxRetries = retries
		return nil
	}
}

// WithBackoffSchedule sets the delays slept between rate-limited
// attempts. Attempts beyond the schedule reuse its last entry.
func WithBackoffSchedule(schedule []time.Duration) BatcherOption {
	return func(b *Batcher) error {
		if len(schedule) == 0 {
			return ErrEmptyBackoffSchedule
		}
		b.backoff = schedule
		return nil
	}
}

// WithBatcherLogger sets a custom logger.
// Default is slog.Default().
func WithBatcherLogger(logger *slog.Logger) BatcherOption {
	return func(b *Batcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBatcher creates a Batcher on top of an embedder.
func NewBatcher(embedder ai.Embedder, opts ...BatcherOption) (*Batcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	b := &Batcher{
		embedder:   embedder,
		batchSize:  DefaultBatchSize,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoffSchedule,
		sleep:      sleepContext,
		logger:     slog.Default().With("component", "batcher"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Embed converts chunks into embeddings, preserving input order and
// length. Empty input returns an empty result with zero API calls.
//
// Failure is all-or-nothing: a failing batch aborts the whole call and no
// partial embedding set is ever returned, since partially indexing a
// document would silently drop citation-relevant content.
func (b *Batcher) Embed(ctx context.Context, chunks []*core.DocumentChunk) ([]*core.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		return []*core.ChunkEmbedding{}, nil
	}

	b.logger.Debug("embedding chunks", "chunks", len(chunks), "batchSize", b.batchSize)

	out := make([]*core.ChunkEmbedding, 0, len(chunks))
	for start := 0; start < len(chunks); start += b.batchSize {
		end := min(start+b.batchSize, len(chunks))
		batch := chunks[start:end]

		vectors, err := b.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for i, vector := range vectors {
			out = append(out, &core.ChunkEmbedding{Chunk: batch[i], Vector: vector})
		}
	}
	return out, nil
}

// TotalTokens returns the cumulative token count of all successfully
// embedded chunks, for cost observability.
func (b *Batcher) TotalTokens() int64 {
	return b.totalTokens.Load()
}

// ResetTotalTokens resets the cumulative token counter.
func (b *Batcher) ResetTotalTokens() {
	b.totalTokens.Store(0)
}

func (b *Batcher) embedBatch(ctx context.Context, batch []*core.DocumentChunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	retries := 0
	for {
		vectors, err := b.embedder.EmbedTexts(ctx, texts)
		if err == nil {
			if len(vectors) != len(batch) {
				return nil, &core.EmbeddingGenerationError{
					Err: fmt.Errorf("embedding result mismatch: expected %d, received %d", len(batch), len(vectors)),
				}
			}
			for _, chunk := range batch {
				b.totalTokens.Add(int64(chunk.TokenCount))
			}
			return vectors, nil
		}

		switch {
		case ai.IsRateLimit(err):
			if retries >= b.maxRetries {
				return nil, &core.RateLimitExceededError{Retries: b.maxRetries, Err: err}
			}
			delay := b.backoff[min(retries, len(b.backoff)-1)]
			b.logger.Warn("embedding API rate limited, backing off",
				"delay", delay, "attempt", retries+1, "maxRetries", b.maxRetries)
			if sleepErr := b.sleep(ctx, delay); sleepErr != nil {
				return nil, sleepErr
			}
			retries++
		case ai.IsTokenLimit(err):
			// Should not happen when the chunker's ceiling holds, but
			// embedding-model limits can diverge from the tokenizer's.
			return nil, &core.TokenLimitExceededError{
				BatchStartIndex: batch[0].ChunkIndex,
				Err:             err,
			}
		default:
			return nil, &core.EmbeddingGenerationError{Err: err}
		}
	}
}

// sleepContext sleeps for d, waking early if the context is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
