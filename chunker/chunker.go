// Package chunker splits rule documents into overlapping word windows.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"volleyref-backend/models"
)

const (
	DefaultWindowSize = 800
	DefaultOverlap    = 80
)

// ErrInvalidConfig is returned for a window that could never advance
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Chunker cuts text into windows of WindowSize words, each sharing Overlap
// words with the previous one.
type Chunker struct {
	windowSize int
	overlap    int
}

// New validates the window and overlap sizes
func New(windowSize, overlap int) (*Chunker, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidConfig, windowSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= windowSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than window size %d", ErrInvalidConfig, overlap, windowSize)
	}
	return &Chunker{windowSize: windowSize, overlap: overlap}, nil
}

// Default returns a chunker with 800 word windows and 80 words of overlap
func Default() *Chunker {
	return &Chunker{windowSize: DefaultWindowSize, overlap: DefaultOverlap}
}

// WindowSize returns the window length in words
func (c *Chunker) WindowSize() int { return c.windowSize }

// Overlap returns the number of words shared by consecutive windows
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the windows of text in document order. Splitting stops after
// the first window that reaches the last word, so no window is made only of
// words the previous one already covered. Empty or whitespace-only text
// yields no chunks.
func (c *Chunker) Split(text string) []models.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.windowSize - c.overlap
	chunks := make([]models.Chunk, 0, c.Count(len(words)))
	for start := 0; start < len(words); start += step {
		end := min(start+c.windowSize, len(words))
		chunks = append(chunks, models.Chunk{
			Text:         strings.Join(words[start:end], " "),
			SourceOffset: start,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

// Count returns how many chunks Split produces for a text of n words
func (c *Chunker) Count(n int) int {
	if n <= 0 {
		return 0
	}
	step := c.windowSize - c.overlap
	span := max(n-c.overlap, 1)
	return (span + step - 1) / step
}
