package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointID(t *testing.T) {
	t.Run("deterministic format", func(t *testing.T) {
		assert.Equal(t, "doc-123_5", PointID("doc-123", 5))
		assert.Equal(t, "doc-123_0", PointID("doc-123", 0))
	})

	t.Run("same inputs same id", func(t *testing.T) {
		assert.Equal(t, PointID("doc-abc", 42), PointID("doc-abc", 42))
	})

	t.Run("document ids with underscores stay distinct", func(t *testing.T) {
		assert.NotEqual(t, PointID("doc_1", 23), PointID("doc_12", 3))
	})

	t.Run("chunk method matches free function", func(t *testing.T) {
		chunk := &DocumentChunk{DocumentID: "doc-9", ChunkIndex: 7}
		assert.Equal(t, PointID("doc-9", 7), chunk.PointID())
	})
}

func TestFingerprint(t *testing.T) {
	t.Run("identical text identical fingerprint", func(t *testing.T) {
		assert.Equal(t, Fingerprint("hello world"), Fingerprint("hello world"))
	})

	t.Run("different text different fingerprint", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint("hello world"), Fingerprint("hello worlds"))
	})

	t.Run("empty text is valid", func(t *testing.T) {
		assert.Len(t, Fingerprint(""), 32) // 16 bytes hex encoded
	})
}

func TestChunksFingerprint(t *testing.T) {
	chunks := func(texts ...string) []*DocumentChunk {
		out := make([]*DocumentChunk, len(texts))
		for i, text := range texts {
			out[i] = &DocumentChunk{Text: text, ChunkIndex: i}
		}
		return out
	}

	t.Run("equal chunk sets equal fingerprints", func(t *testing.T) {
		assert.Equal(t,
			ChunksFingerprint(chunks("alpha", "beta")),
			ChunksFingerprint(chunks("alpha", "beta")))
	})

	t.Run("order matters", func(t *testing.T) {
		assert.NotEqual(t,
			ChunksFingerprint(chunks("alpha", "beta")),
			ChunksFingerprint(chunks("beta", "alpha")))
	})

	t.Run("chunk boundaries matter", func(t *testing.T) {
		// "ab" + "c" must not collide with "a" + "bc".
		assert.NotEqual(t,
			ChunksFingerprint(chunks("ab", "c")),
			ChunksFingerprint(chunks("a", "bc")))
	})
}

func TestParsedElementIsHeading(t *testing.T) {
	tests := []struct {
		elementType string
		want        bool
	}{
		{ElementTitle, true},
		{ElementHeader, true},
		{"NarrativeText", false},
		{"", false},
	}

	for _, tt := range tests {
		el := &ParsedElement{ElementType: tt.elementType}
		assert.Equal(t, tt.want, el.IsHeading(), "element type %q", tt.elementType)
	}
}
