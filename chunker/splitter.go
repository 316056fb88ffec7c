package chunker

import (
	"strings"
	"unicode/utf8"
)

// Separator priority for natural splitting: paragraph break, line break,
// sentence end, word boundary, then individual characters as a last resort.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// boundaryWindow bounds the outward search for a natural boundary when an
// oversized span must be force-split around its midpoint.
const boundaryWindow = 500

// splitText splits text into spans of roughly chunkSize tokens, then runs
// every span through the oversize guard so no span exceeds 2x chunkSize.
func (c *Chunker) splitText(text string) ([]string, error) {
	pieces, err := c.splitRecursive(text, defaultSeparators)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		n, err := c.tokenizer.Count(piece)
		if err != nil {
			return nil, err
		}
		if n <= c.chunkSize*2 {
			out = append(out, piece)
			continue
		}
		forced, err := c.forceSplit(piece)
		if err != nil {
			return nil, err
		}
		out = append(out, forced...)
	}
	return out, nil
}

// splitRecursive splits text on the highest-priority separator it
// contains, recursing with lower-priority separators on any split that is
// still too large. Recursion depth is bounded by the separator list.
func (c *Chunker) splitRecursive(text string, separators []string) ([]string, error) {
	sep := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			next = separators[i+1:]
			break
		}
	}

	var final []string
	var good []string
	for _, split := range splitOn(text, sep) {
		n, err := c.tokenizer.Count(split)
		if err != nil {
			return nil, err
		}
		if n < c.chunkSize {
			good = append(good, split)
			continue
		}

		if len(good) > 0 {
			merged, err := c.mergeSplits(good, sep)
			if err != nil {
				return nil, err
			}
			final = append(final, merged...)
			good = good[:0]
		}

		if len(next) == 0 {
			final = append(final, split)
			continue
		}
		sub, err := c.splitRecursive(split, next)
		if err != nil {
			return nil, err
		}
		final = append(final, sub...)
	}

	if len(good) > 0 {
		merged, err := c.mergeSplits(good, sep)
		if err != nil {
			return nil, err
		}
		final = append(final, merged...)
	}
	return final, nil
}

// mergeSplits greedily joins consecutive splits into spans of at most
// chunkSize tokens, carrying chunkOverlap trailing tokens into the next
// span for context continuity across boundaries.
func (c *Chunker) mergeSplits(splits []string, sep string) ([]string, error) {
	sepTokens, err := c.tokenizer.Count(sep)
	if err != nil {
		return nil, err
	}

	var spans []string
	var current []string
	total := 0
	for _, split := range splits {
		n, err := c.tokenizer.Count(split)
		if err != nil {
			return nil, err
		}

		if len(current) > 0 && total+n+sepTokens > c.chunkSize {
			if span := joinSplits(current, sep); span != "" {
				spans = append(spans, span)
			}
			// Drop leading splits until what remains fits in the overlap
			// budget and leaves room for the incoming split.
			for len(current) > 0 &&
				(total > c.chunkOverlap || total+n+sepTokens > c.chunkSize) {
				head, err := c.tokenizer.Count(current[0])
				if err != nil {
					return nil, err
				}
				total -= head
				if len(current) > 1 {
					total -= sepTokens
				}
				current = current[1:]
			}
		}

		if len(current) > 0 {
			total += sepTokens
		}
		current = append(current, split)
		total += n
	}

	if span := joinSplits(current, sep); span != "" {
		spans = append(spans, span)
	}
	return spans, nil
}

// forceSplit binary-splits a span that exceeds the token ceiling and has
// no usable natural boundary at any separator level. An explicit work
// stack bounds memory on pathological inputs where recursion depth would
// otherwise track text length.
func (c *Chunker) forceSplit(text string) ([]string, error) {
	ceiling := c.chunkSize * 2
	var out []string
	stack := []string{text}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := c.tokenizer.Count(s)
		if err != nil {
			return nil, err
		}
		if n <= ceiling || len(s) < 2 {
			out = append(out, s)
			continue
		}

		cut := boundaryNear(s, len(s)/2, boundaryWindow)
		if cut <= 0 || cut >= len(s) {
			// No boundary in the window: pure midpoint split. Guarantees
			// termination on long unpunctuated text.
			cut = len(s) / 2
		}
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = len(s) / 2
		}

		// Push the right half first so the left half is processed next
		// and document order is preserved.
		stack = append(stack, s[cut:], s[:cut])
	}
	return out, nil
}

// boundaryNear searches outward from mid, at most window bytes in either
// direction, for the nearest sentence or paragraph boundary. Returns the
// cut position, or -1 when no boundary exists in the window.
func boundaryNear(s string, mid, window int) int {
	for delta := 0; delta <= window; delta++ {
		if pos := mid + delta; pos > 0 && pos < len(s) && isBoundary(s, pos) {
			return pos
		}
		if delta == 0 {
			continue
		}
		if pos := mid - delta; pos > 0 && pos < len(s) && isBoundary(s, pos) {
			return pos
		}
	}
	return -1
}

// isBoundary reports whether cutting s at pos lands just after a sentence
// end or line break.
func isBoundary(s string, pos int) bool {
	prev := s[pos-1]
	if prev == '\n' {
		return true
	}
	if prev == '.' || prev == '!' || prev == '?' {
		cur := s[pos]
		return cur == ' ' || cur == '\n' || cur == '\t'
	}
	return false
}

func splitOn(text, sep string) []string {
	if sep == "" {
		return strings.Split(text, "")
	}
	return strings.Split(text, sep)
}

func joinSplits(parts []string, sep string) string {
	return strings.TrimSpace(strings.Join(parts, sep))
}
