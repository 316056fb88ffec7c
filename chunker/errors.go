package chunker

import "errors"

var (
	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("chunk size must be at least 1 token")

	// ErrInvalidChunkOverlap is returned when the chunk overlap is negative.
	ErrInvalidChunkOverlap = errors.New("chunk overlap cannot be negative")

	// ErrOverlapTooLarge is returned when the overlap is not smaller than
	// the chunk size.
	ErrOverlapTooLarge = errors.New("chunk overlap must be smaller than chunk size")

	// ErrTokenizerRequired is returned when a nil tokenizer is provided.
	ErrTokenizerRequired = errors.New("tokenizer required")
)
