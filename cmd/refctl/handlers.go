package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"volleyref-backend/app"
	"volleyref-backend/config"
	"volleyref-backend/models"
	"volleyref-backend/retrieval"
	"volleyref-backend/service"
	"volleyref-backend/storage"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

type rulebookIngester interface {
	UploadRulebook(ctx context.Context, req service.UploadRulebookRequest) (*models.Rulebook, error)
	StartIngestion(ctx context.Context, rulebookID uuid.UUID) (*models.IngestionJob, error)
	ProcessIngestion(ctx context.Context, jobID uuid.UUID) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.IngestionJob, error)
}

type ruleSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.RetrievedChunk, error)
}

type rulingEvaluator interface {
	EvaluateRuling(ctx context.Context, req models.EvaluationRequest) models.EvaluationResult
}

func openApp(ctx context.Context) (*app.App, error) {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// keep stdout clean for command output
	if err := config.InitLogger(cfg.LogLevel, "console", "stderr"); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func runIngest(ctx context.Context, out io.Writer, rules rulebookIngester, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open rulebook: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat rulebook: %w", err)
	}

	filename := filepath.Base(path)
	rb, err := rules.UploadRulebook(ctx, service.UploadRulebookRequest{
		Filename: filename,
		MimeType: storage.ContentType(filename),
		Size:     info.Size(),
		Body:     f,
	})
	if err != nil {
		return err
	}

	job, err := rules.StartIngestion(ctx, rb.ID)
	if err != nil {
		return err
	}
	if err := rules.ProcessIngestion(ctx, job.ID); err != nil {
		return err
	}

	done, err := rules.GetJob(ctx, job.ID)
	if err != nil {
		return err
	}
	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", boldGreen("Ingested"), filename)
	fmt.Fprintf(out, "  rulebook: %s\n", rb.ID)
	fmt.Fprintf(out, "  job:      %s (%s)\n", done.ID, done.Status)
	fmt.Fprintf(out, "  chunks:   %d\n", done.ChunkCount)
	return nil
}

func runSearch(ctx context.Context, out io.Writer, rules ruleSearcher, query string, k int) error {
	results, err := rules.Search(ctx, query, k)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(out, color.YellowString("No rule snippets found."))
		return nil
	}
	fmt.Fprintln(out, retrieval.Format(results))
	return nil
}

func runEvaluate(ctx context.Context, out io.Writer, evaluator rulingEvaluator, answer, correct, difficulty string) error {
	result := evaluator.EvaluateRuling(ctx, models.EvaluationRequest{
		UserAnswer:  answer,
		CorrectCall: correct,
		Difficulty:  models.Difficulty(difficulty),
	})
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
