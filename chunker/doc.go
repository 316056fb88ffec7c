// Package chunker splits parsed document text into token-bounded chunks
// suitable for embedding.
//
// Splitting follows a separator priority (paragraph break, line break,
// sentence end, word boundary, character) with every candidate span
// measured in model tokens. Consecutive chunks share a configurable token
// overlap for context continuity. Spans that still exceed twice the chunk
// size after natural splitting are force-split near their midpoint, so no
// chunk can silently exceed the embedding API's limits downstream.
//
// Each chunk carries citation provenance: its exact character offsets in
// the original text, the page number and section header in effect at its
// start, and its token count.
package chunker
