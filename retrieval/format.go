package retrieval

import (
	"fmt"
	"strings"

	"volleyref-backend/models"
)

// dedupePrefixLen is how many leading characters identify a chunk
const dedupePrefixLen = 100

// Format renders chunks as numbered snippets in input order, separated by a
// blank line. It does not sort or deduplicate.
func Format(chunks []models.RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = fmt.Sprintf("Rule Snippet %d (sim %.2f): %s", i+1, c.Similarity, c.Chunk)
	}
	return strings.Join(blocks, "\n\n")
}

// Dedupe drops chunks whose first 100 characters equal those of an earlier
// chunk, keeping first occurrences in order.
func Dedupe(chunks []models.RetrievedChunk) []models.RetrievedChunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]models.RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		key := prefix(c.Chunk, dedupePrefixLen)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
