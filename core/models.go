package core

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// PointID derives the vector-store identity for a chunk of a document.
// The id is deterministic: re-ingesting the same document produces the
// same ids, so repeated upserts overwrite in place instead of duplicating.
func PointID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", documentID, chunkIndex)
}

// Fingerprint computes a content fingerprint for parsed document text
// using BLAKE2b hashing. Identical text always produces an identical
// fingerprint, which lets re-uploads of unchanged documents be detected
// without re-embedding.
func Fingerprint(text string) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// ChunksFingerprint computes a fingerprint over a document's chunk texts
// in order. Equal chunk sets produce equal fingerprints, so a re-upload
// that chunks identically can be detected without re-embedding.
func ChunksFingerprint(chunks []*DocumentChunk) string {
	h, _ := blake2b.New(16, nil)
	for _, chunk := range chunks {
		h.Write([]byte(chunk.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Element types emitted by the upstream parsing stage that carry section
// structure. Elements of these types supply section headers for chunks.
const (
	ElementTitle  = "Title"
	ElementHeader = "Header"
)

// ParsedElement is a single structural element of a parsed document,
// produced upstream in document order.
type ParsedElement struct {
	Text        string
	ElementType string
	PageNumber  int // 0 when the source format has no page numbering
}

// IsHeading reports whether the element introduces a document section.
func (e *ParsedElement) IsHeading() bool {
	return e.ElementType == ElementTitle || e.ElementType == ElementHeader
}

// ParsedContent is the immutable output of the parsing stage: the full
// document text plus its ordered structural elements.
type ParsedContent struct {
	Text         string
	Elements     []ParsedElement
	SourceFormat string
}

// DocumentChunk is a token-bounded span of a parsed document, carrying
// the provenance needed to reconstruct a citation. Chunks are transient:
// only the Point derived from a chunk is durable.
type DocumentChunk struct {
	ChunkIndex    int // 0-based, strictly increasing, no gaps
	Text          string
	DocumentID    string
	DocumentName  string
	PageNumber    int    // 0 when unknown
	SectionHeader string // empty when no preceding heading
	CharStart     int
	CharEnd       int
	TokenCount    int
	SourceFormat  string
}

// PointID returns the deterministic vector-store id for this chunk.
func (c *DocumentChunk) PointID() string {
	return PointID(c.DocumentID, c.ChunkIndex)
}

// ChunkEmbedding pairs a chunk with its embedding vector.
type ChunkEmbedding struct {
	Chunk  *DocumentChunk
	Vector []float32
}

// PointID returns the deterministic vector-store id for the embedded chunk.
func (e *ChunkEmbedding) PointID() string {
	return e.Chunk.PointID()
}

// PointPayload is the retrievable metadata stored with every vector.
// The payload alone is sufficient to build a citation without re-reading
// the source document.
type PointPayload struct {
	DocumentID    string
	DocumentName  string
	ChunkText     string
	CharStart     int
	CharEnd       int
	ChunkIndex    int
	PageNumber    int
	SectionHeader string
}

// Point is a durable vector-store record.
type Point struct {
	ID      string
	Vector  []float32
	Payload PointPayload
}

// DocumentManifest summarizes the indexed state of a document within a
// collection. It is written after a successful index pass and backs fast
// chunk counts and unchanged-content detection on re-upload.
type DocumentManifest struct {
	DocumentID  string
	Fingerprint string
	ChunkCount  int
	VectorSize  int
	IndexedAt   time.Time
}
