package ingestion

import "errors"

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrChunkerRequired is returned when a chunker is not provided.
	ErrChunkerRequired = errors.New("chunker required")

	// ErrBatcherRequired is returned when a batcher is not provided.
	ErrBatcherRequired = errors.New("batcher required")

	// ErrIndexerRequired is returned when an indexer is not provided.
	ErrIndexerRequired = errors.New("indexer required")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")

	// ErrInvalidMaxRetries is returned when the retry budget is negative.
	ErrInvalidMaxRetries = errors.New("max retries cannot be negative")

	// ErrEmptyBackoffSchedule is returned when an empty backoff schedule
	// is provided.
	ErrEmptyBackoffSchedule = errors.New("backoff schedule cannot be empty")

	// ErrJobRequired is returned when a nil or incomplete job is submitted.
	ErrJobRequired = errors.New("job with document id, knowledge base id and content required")
)
