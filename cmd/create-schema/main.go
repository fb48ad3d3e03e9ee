package main

import (
	"context"
	"fmt"
	"os"

	"volleyref-backend/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kart-io/logger"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := config.InitLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err.Error())
	}
	defer pool.Close()

	// pgvector may already be installed by a superuser
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		logger.Warnw("failed to create pgvector extension", "error", err.Error())
	} else {
		logger.Infow("pgvector extension enabled")
	}

	tables := []struct {
		name string
		sql  string
	}{
		{
			name: "rulebooks",
			sql: `
CREATE TABLE IF NOT EXISTS rulebooks (
    id UUID PRIMARY KEY,
    filename TEXT NOT NULL,
    mime_type VARCHAR(100) NOT NULL,
    size BIGINT NOT NULL DEFAULT 0,
    storage_path TEXT NOT NULL,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
		},
		{
			name: "rule_chunks",
			sql: fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS rule_chunks (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    rulebook_id UUID NOT NULL REFERENCES rulebooks(id) ON DELETE CASCADE,
    chunk_index INTEGER NOT NULL,
    chunk_text TEXT NOT NULL,
    source_offset INTEGER NOT NULL DEFAULT 0,
    embedding vector(%d) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT rule_chunk_order_unique UNIQUE (rulebook_id, chunk_index)
);`, cfg.EmbeddingDimensions),
		},
		{
			name: "ingestion_jobs",
			sql: `
CREATE TABLE IF NOT EXISTS ingestion_jobs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    rulebook_id UUID NOT NULL REFERENCES rulebooks(id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'in_progress', 'completed', 'failed')),
    steps JSONB NOT NULL DEFAULT '[]'::jsonb,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMPTZ
);`,
		},
		{
			name: "videos",
			sql: `
CREATE TABLE IF NOT EXISTS videos (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL,
    correct_call TEXT NOT NULL,
    difficulty VARCHAR(10) NOT NULL CHECK (difficulty IN ('easy', 'medium', 'hard', 'extreme')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
		},
		{
			name: "video_attempts",
			sql: `
CREATE TABLE IF NOT EXISTS video_attempts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    video_id UUID NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
    user_id UUID NOT NULL,
    correct BOOLEAN NOT NULL,
    time_taken DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
		},
		{
			name: "quiz_attempts",
			sql: `
CREATE TABLE IF NOT EXISTS quiz_attempts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL,
    question TEXT NOT NULL,
    selected_option TEXT NOT NULL,
    correct BOOLEAN NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
		},
	}

	for _, t := range tables {
		if _, err := pool.Exec(ctx, t.sql); err != nil {
			logger.Fatalw("failed to create table", "table", t.name, "error", err.Error())
		}
		logger.Infow("created table", "table", t.name)
	}

	indexes := []struct {
		name string
		sql  string
	}{
		{
			name: "Vector similarity search (HNSW)",
			sql: `CREATE INDEX IF NOT EXISTS idx_rule_chunks_embedding_hnsw ON rule_chunks
USING hnsw (embedding vector_cosine_ops)
WITH (m = 16, ef_construction = 64);`,
		},
		{
			name: "Rulebook chunk lookup",
			sql:  "CREATE INDEX IF NOT EXISTS idx_rule_chunks_rulebook ON rule_chunks(rulebook_id);",
		},
		{
			name: "Jobs by rulebook",
			sql:  "CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_rulebook ON ingestion_jobs(rulebook_id);",
		},
		{
			name: "Videos by difficulty",
			sql:  "CREATE INDEX IF NOT EXISTS idx_videos_difficulty ON videos(difficulty, created_at DESC);",
		},
		{
			name: "Video attempts by user",
			sql:  "CREATE INDEX IF NOT EXISTS idx_video_attempts_user ON video_attempts(user_id);",
		},
		{
			name: "Quiz attempts by user",
			sql:  "CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user ON quiz_attempts(user_id);",
		},
	}

	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx.sql); err != nil {
			logger.Warnw("failed to create index", "index", idx.name, "error", err.Error())
		} else {
			logger.Infow("created index", "index", idx.name)
		}
	}

	fmt.Println("\n✅ Database schema created successfully!")
	fmt.Println("   Tables: rulebooks, rule_chunks, ingestion_jobs, videos, video_attempts, quiz_attempts")
	fmt.Printf("   Embedding dimensions: %d\n", cfg.EmbeddingDimensions)
}
