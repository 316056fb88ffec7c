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


package chunker

import (
	"log/slog"
	"strings"

	"github.com/poiesic/docindex/core"
)

const (
	// DefaultChunkSize is the target chunk length in tokens.
	DefaultChunkSize = 500

	// DefaultChunkOverlap is how many trailing tokens of a chunk are
	// repeated at the start of the next one.
	DefaultChunkOverlap = 50

	// maxSectionHeaderLen caps the section header carried on a chunk.
	maxSectionHeaderLen = 100
)

// Chunker splits parsed document text into token-bounded, metadata-tagged
// chunks. Chunking is pure computation: no I/O, no suspension.
type Chunker struct {
	tokenizer    Tokenizer
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithChunkSize sets the target chunk size in tokens.
func WithChunkSize(size int) Option {
	return func(c *Chunker) error {
		if size < 1 {
			return ErrInvalidChunkSize
		}
		c.chunkSize = size
		return nil
	}
}

// WithChunkOverlap sets the overlap between consecutive chunks in tokens.
func WithChunkOverlap(overlap int) Option {
	return func(c *Chunker) error {
		if overlap < 0 {
			return ErrInvalidChunkOverlap
		}
		c.chunkOverlap = overlap
		return nil
	}
}

// WithTokenizer sets a custom tokenizer.
// Default is a tiktoken cl100k_base tokenizer.
func WithTokenizer(tokenizer Tokenizer) Option {
	return func(c *Chunker) error {
		if tokenizer == nil {
			return ErrTokenizerRequired
		}
		c.tokenizer = tokenizer
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// New creates a Chunker. Without options it targets DefaultChunkSize
// tokens per chunk with DefaultChunkOverlap tokens of overlap, counting
// tokens with the tiktoken cl100k_base encoding.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		logger:       slog.Default().With("component", "chunker"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.chunkOverlap >= c.chunkSize {
		return nil, ErrOverlapTooLarge
	}

	if c.tokenizer == nil {
		tokenizer, err := NewTiktokenTokenizer(DefaultEncoding)
		if err != nil {
			return nil, &core.ChunkingError{Err: err}
		}
		c.tokenizer = tokenizer
	}

	return c, nil
}

// Chunk splits parsed content into ordered document chunks. Chunk indexes
// are assigned sequentially from 0 with no gaps. Empty or whitespace-only
// input yields an empty result, not an error; the only error condition is
// an internal tokenizer fault, reported as core.ChunkingError.
func (c *Chunker) Chunk(content *core.ParsedContent, documentID, documentName string) ([]*core.DocumentChunk, error) {
	if content == nil || strings.TrimSpace(content.Text) == "" {
		return nil, nil
	}

	text := content.Text
	spans, err := c.splitText(text)
	if err != nil {
		return nil, &core.ChunkingError{Err: err}
	}

	markers := buildMarkers(text, content.Elements)

	chunks := make([]*core.DocumentChunk, 0, len(spans))
	searchFrom := 0
	page, header := 0, ""
	mi := 0
	for _, span := range spans {
		span = strings.TrimSpace(span)
		if span == "" {
			continue
		}

		tokens, err := c.tokenizer.Count(span)
		if err != nil {
			return nil, &core.ChunkingError{Err: err}
		}

		start, end := locateSpan(text, span, searchFrom)

		// Advance the marker cursor to the last element at or before this
		// chunk's start. Chunk starts are nondecreasing, so the cursor
		// never rewinds.
		for mi < len(markers) && markers[mi].start <= start {
			if markers[mi].page > 0 {
				page = markers[mi].page
			}
			if markers[mi].header != "" {
				header = markers[mi].header
			}
			mi++
		}

		chunks = append(chunks, &core.DocumentChunk{
			ChunkIndex:    len(chunks),
			Text:          span,
			DocumentID:    documentID,
			DocumentName:  documentName,
			PageNumber:    page,
			SectionHeader: header,
			CharStart:     start,
			CharEnd:       end,
			TokenCount:    tokens,
			SourceFormat:  content.SourceFormat,
		})
		searchFrom = start + 1
	}

	c.logger.Debug("chunked document",
		"document", documentID, "chunks", len(chunks), "chars", len(text))
	return chunks, nil
}

// locateSpan finds span's exact offsets in the original text, searching
// forward from just before the last known offset. The splitter trims
// whitespace, so the span may not start exactly where the previous one
// ended; when no match is found the last known offset is used rather than
// failing the document.
func locateSpan(text, span string, from int) (start, end int) {
	if from > len(text) {
		from = len(text)
	}
	if idx := strings.Index(text[from:], span); idx >= 0 {
		start = from + idx
		return start, start + len(span)
	}
	start = from
	end = start + len(span)
	if end > len(text) {
		end = len(text)
	}
	return start, end
}

// sectionMarker records where an element begins in the document text and
// the provenance it contributes.
type sectionMarker struct {
	start  int
	page   int    // 0 when the element carries no page number
	header string // empty when the element is not a heading
}

// buildMarkers resolves each element's character offset in the full text
// with a single forward pass. Elements that cannot be located inherit the
// running offset.
func buildMarkers(text string, elements []core.ParsedElement) []sectionMarker {
	markers := make([]sectionMarker, 0, len(elements))
	pos := 0
	for i := range elements {
		el := &elements[i]
		elText := strings.TrimSpace(el.Text)
		if elText == "" {
			continue
		}

		start := pos
		if idx := strings.Index(text[pos:], elText); idx >= 0 {
			start = pos + idx
			pos = start + len(elText)
		}

		m := sectionMarker{start: start, page: el.PageNumber}
		if el.IsHeading() {
			m.header = truncateHeader(elText, maxSectionHeaderLen)
		}
		markers = append(markers, m)
	}
	return markers
}

func truncateHeader(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
