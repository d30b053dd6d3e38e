// Package chunker splits long documents into windows that fit a model's
// context, preferring paragraph and line breaks as cut points.
package chunker

import (
	"strings"
	"unicode"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = 12000

// DefaultChunkOverlap is the default number of overlapping runes, enough to
// keep a dated heading with the paragraph that follows it.
const DefaultChunkOverlap = 400

// Chunker splits text into overlapping windows.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// Split returns the chunks of text. Text that fits in one chunk is
// returned as is; empty text yields no chunks.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		end = cutPoint(runes, start+c.chunkSize/2, end)
		chunks = append(chunks, string(runes[start:end]))

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// cutPoint finds the best break in runes[lo:hi]: the last blank line, else
// the last newline, else the last space. Without any, it cuts at hi.
func cutPoint(runes []rune, lo, hi int) int {
	lastNewline, lastSpace := -1, -1
	for i := hi - 1; i > lo; i-- {
		if runes[i] == '\n' {
			if runes[i-1] == '\n' {
				return i + 1
			}
			if lastNewline < 0 {
				lastNewline = i + 1
			}
		} else if lastSpace < 0 && unicode.IsSpace(runes[i]) {
			lastSpace = i + 1
		}
	}
	switch {
	case lastNewline > 0:
		return lastNewline
	case lastSpace > 0:
		return lastSpace
	default:
		return hi
	}
}
