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

// Domain validation errors
var (
	// ErrInvalidChunk indicates a DocumentChunk failed validation.
	ErrInvalidChunk = errors.New("invalid document chunk")

	// ErrInvalidPoint indicates a Point failed validation.
	ErrInvalidPoint = errors.New("invalid point")

	// ErrEmptyText indicates a required text field is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyDocumentID indicates the DocumentID field is empty.
	ErrEmptyDocumentID = errors.New("document id cannot be empty")

	// ErrInvalidOffsets indicates CharStart/CharEnd do not form a valid span.
	ErrInvalidOffsets = errors.New("char offsets do not form a valid span")

	// ErrEmptyVector indicates a Point has no embedding vector.
	ErrEmptyVector = errors.New("vector cannot be empty")
)

// ValidateDocumentChunk validates a DocumentChunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - DocumentID must not be empty
//   - ChunkIndex must not be negative
//   - CharStart must be <= CharEnd and both non-negative
//
// NOT validated (populated downstream):
//   - PageNumber and SectionHeader (optional provenance)
func ValidateDocumentChunk(chunk *DocumentChunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyText)
	}

	if chunk.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyDocumentID)
	}

	if chunk.ChunkIndex < 0 {
		return fmt.Errorf("%w: chunk index %d is negative", ErrInvalidChunk, chunk.ChunkIndex)
	}

	if chunk.CharStart < 0 || chunk.CharEnd < chunk.CharStart {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrInvalidOffsets)
	}

	return nil
}

// ValidatePoint validates a Point before it is written to the vector store.
//
// Validation rules:
//   - ID must not be empty
//   - Vector must not be empty
//   - Payload DocumentID and ChunkText must not be empty
func ValidatePoint(point *Point) error {
	if point == nil {
		return fmt.Errorf("%w: point is nil", ErrInvalidPoint)
	}

	if point.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidPoint)
	}

	if len(point.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, ErrEmptyVector)
	}

	if point.Payload.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, ErrEmptyDocumentID)
	}

	if point.Payload.ChunkText == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, ErrEmptyText)
	}

	return nil
}
