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


package core

import (
	"errors"
	"fmt"
)

// Stage identifies which pipeline stage an error originated from.
// The job orchestrator uses it to tag FAILED job records.
type Stage int

const (
	// StageUnknown indicates the error could not be attributed to a stage.
	StageUnknown Stage = iota
	// StageChunking covers splitter and tokenizer failures.
	StageChunking
	// StageEmbedding covers embedding API failures.
	StageEmbedding
	// StageIndexing covers vector-store write failures.
	StageIndexing
)

// String returns the stage tag used in job records and logs.
func (s Stage) String() string {
	switch s {
	case StageChunking:
		return "chunking"
	case StageEmbedding:
		return "embedding"
	case StageIndexing:
		return "indexing"
	default:
		return "unknown"
	}
}

// ChunkingError indicates an unexpected splitter or tokenizer fault.
// A partial chunk set is unusable, so chunking errors abort the document.
type ChunkingError struct {
	Err error
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("chunking failed: %v", e.Err)
}

func (e *ChunkingError) Unwrap() error { return e.Err }

// TokenLimitExceededError indicates a batch text exceeded the embedding
// API's hard token limit. BatchStartIndex is the chunk index of the first
// chunk in the failing batch.
type TokenLimitExceededError struct {
	BatchStartIndex int
	Err             error
}

func (e *TokenLimitExceededError) Error() string {
	return fmt.Sprintf("embedding input exceeds model token limit in batch starting at chunk %d: %v",
		e.BatchStartIndex, e.Err)
}

func (e *TokenLimitExceededError) Unwrap() error { return e.Err }

// RateLimitExceededError indicates the embedding API kept rate limiting
// after the full backoff budget was spent.
type RateLimitExceededError struct {
	Retries int
	Err     error
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("embedding API still rate limited after %d retries: %v", e.Retries, e.Err)
}

func (e *RateLimitExceededError) Unwrap() error { return e.Err }

// EmbeddingGenerationError indicates an embedding API failure that is
// neither a rate limit nor a token limit.
type EmbeddingGenerationError struct {
	Err error
}

func (e *EmbeddingGenerationError) Error() string {
	return fmt.Sprintf("embedding generation failed: %v", e.Err)
}

func (e *EmbeddingGenerationError) Unwrap() error { return e.Err }

// IndexingError indicates a vector-store upsert or mandatory delete
// failed after retries. Op names the failing operation.
type IndexingError struct {
	Op  string
	Err error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("indexing failed during %s: %v", e.Op, e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }

// StageOf maps a pipeline error to the stage it originated from.
// Unrecognized errors map to StageUnknown.
func StageOf(err error) Stage {
	var (
		chunkErr    *ChunkingError
		tokenErr    *TokenLimitExceededError
		rateErr     *RateLimitExceededError
		embedErr    *EmbeddingGenerationError
		indexingErr *IndexingError
	)
	switch {
	case errors.As(err, &chunkErr):
		return StageChunking
	case errors.As(err, &tokenErr), errors.As(err, &rateErr), errors.As(err, &embedErr):
		return StageEmbedding
	case errors.As(err, &indexingErr):
		return StageIndexing
	default:
		return StageUnknown
	}
}
