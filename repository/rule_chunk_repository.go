package repository

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"volleyref-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RuleChunkRepository handles database operations for rule chunks
type RuleChunkRepository struct {
	db         *pgxpool.Pool
	dimensions int
}

// NewRuleChunkRepository creates a new rule chunk repository. dimensions is
// the size of the embedding column; 0 disables the length check.
func NewRuleChunkRepository(db *pgxpool.Pool, dimensions int) *RuleChunkRepository {
	return &RuleChunkRepository{db: db, dimensions: dimensions}
}

// formatVector formats an embedding as a pgvector literal
func formatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', 6, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// normalizeEmbedding scales v to unit L2 length in place. Reduced dimension
// embeddings are not normalized by the providers.
func normalizeEmbedding(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

func (r *RuleChunkRepository) checkDimensions(embedding []float32) error {
	if r.dimensions > 0 && len(embedding) != r.dimensions {
		return fmt.Errorf("embedding must be %d dimensions, got %d", r.dimensions, len(embedding))
	}
	return nil
}

// NearestNeighbors returns the k chunks closest to vector by cosine distance,
// most similar first. Similarity is 1 - distance.
func (r *RuleChunkRepository) NearestNeighbors(ctx context.Context, vector []float32, k int) ([]models.RetrievedChunk, error) {
	if err := r.checkDimensions(vector); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT
			chunk_text,
			1 - (embedding <=> $1::vector) AS similarity
		FROM rule_chunks
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, formatVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]models.RetrievedChunk, 0, k)
	for rows.Next() {
		var c models.RetrievedChunk
		if err := rows.Scan(&c.Chunk, &c.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan rule chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule chunks: %w", err)
	}
	return chunks, nil
}

// ReplaceForRulebook deletes the rulebook's chunks and inserts chunks in one
// transaction, then updates the rulebook's chunk count
func (r *RuleChunkRepository) ReplaceForRulebook(ctx context.Context, rulebookID uuid.UUID, chunks []models.RuleChunk) error {
	for i := range chunks {
		if err := r.checkDimensions(chunks[i].Embedding); err != nil {
			return fmt.Errorf("chunk %d: %w", chunks[i].ChunkIndex, err)
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM rule_chunks WHERE rulebook_id = $1`, rulebookID); err != nil {
		return fmt.Errorf("failed to delete previous chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range chunks {
		c := &chunks[i]
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.RulebookID = rulebookID
		normalizeEmbedding(c.Embedding)
		batch.Queue(`
			INSERT INTO rule_chunks (
				id, rulebook_id, chunk_index, chunk_text, source_offset, embedding
			) VALUES ($1, $2, $3, $4, $5, $6::vector)`,
			c.ID, c.RulebookID, c.ChunkIndex, c.Text, c.SourceOffset, formatVector(c.Embedding),
		)
	}
	results := tx.SendBatch(ctx, batch)
	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert chunk %d: %w", chunks[i].ChunkIndex, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE rulebooks SET chunk_count = $2 WHERE id = $1`, rulebookID, len(chunks)); err != nil {
		return fmt.Errorf("failed to update rulebook chunk count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Count returns the number of stored chunks
func (r *RuleChunkRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM rule_chunks`).Scan(&n)
	return n, err
}
