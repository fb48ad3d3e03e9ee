package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"volleyref-backend/ingest"
	"volleyref-backend/models"
	"volleyref-backend/repository"
	"volleyref-backend/storage"

	"github.com/google/uuid"
	"github.com/kart-io/logger"
)

var (
	ErrRulebookNotFound = errors.New("rulebook not found")
	ErrJobNotFound      = errors.New("ingestion job not found")
	ErrEmptyQuery       = errors.New("query is required")
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// RulebookStore persists rulebook records
type RulebookStore interface {
	Create(ctx context.Context, rb *models.Rulebook) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Rulebook, error)
}

// IngestionJobStore persists ingestion job progress
type IngestionJobStore interface {
	Create(ctx context.Context, job *models.IngestionJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.IngestionJob, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, steps models.IngestionSteps) error
	Complete(ctx context.Context, id uuid.UUID, chunkCount int, steps models.IngestionSteps) error
	Fail(ctx context.Context, id uuid.UUID, errorMessage string, steps models.IngestionSteps) error
}

// RuleSearcher is the retrieval used by the rule search endpoint
type RuleSearcher interface {
	Search(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error)
}

// RuleService uploads rulebooks, runs ingestion jobs and searches the index
type RuleService struct {
	rulebooks RulebookStore
	jobs      IngestionJobStore
	storage   storage.Storage
	pipeline  *ingest.Pipeline
	searcher  RuleSearcher
}

// RuleServiceOption is a functional option for RuleService
type RuleServiceOption func(*RuleService)

// RuleWithRulebookStore sets the rulebook repository
func RuleWithRulebookStore(store RulebookStore) RuleServiceOption {
	return func(s *RuleService) {
		s.rulebooks = store
	}
}

// RuleWithJobStore sets the ingestion job repository
func RuleWithJobStore(store IngestionJobStore) RuleServiceOption {
	return func(s *RuleService) {
		s.jobs = store
	}
}

// RuleWithStorage sets where uploaded rulebooks are kept
func RuleWithStorage(st storage.Storage) RuleServiceOption {
	return func(s *RuleService) {
		s.storage = st
	}
}

// RuleWithPipeline sets the ingestion pipeline
func RuleWithPipeline(p *ingest.Pipeline) RuleServiceOption {
	return func(s *RuleService) {
		s.pipeline = p
	}
}

// RuleWithSearcher sets the retriever used by Search
func RuleWithSearcher(searcher RuleSearcher) RuleServiceOption {
	return func(s *RuleService) {
		s.searcher = searcher
	}
}

// NewRuleService creates a new rule service
func NewRuleService(opts ...RuleServiceOption) *RuleService {
	s := &RuleService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadRulebookRequest is an uploaded rule document
type UploadRulebookRequest struct {
	Filename string
	MimeType string
	Size     int64
	Body     io.Reader
}

// UploadRulebook stores the document and records it. The stored object is
// removed again if the record cannot be written.
func (s *RuleService) UploadRulebook(ctx context.Context, req UploadRulebookRequest) (*models.Rulebook, error) {
	if s.rulebooks == nil || s.storage == nil {
		return nil, errors.New("rule service is not configured for uploads")
	}
	if !ingest.IsSupported(req.MimeType, req.Filename) {
		return nil, fmt.Errorf("%w: %s", ingest.ErrUnsupportedType, req.Filename)
	}

	id := uuid.New()
	key := storage.RulebookKey(id, req.Filename)
	if err := s.storage.Put(ctx, key, req.Body, req.MimeType); err != nil {
		return nil, fmt.Errorf("failed to store rulebook: %w", err)
	}

	rb := &models.Rulebook{
		ID:          id,
		Filename:    req.Filename,
		MimeType:    req.MimeType,
		Size:        req.Size,
		StoragePath: key,
	}
	if err := s.rulebooks.Create(ctx, rb); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			logger.Warnw("failed to remove orphaned rulebook", "key", key, "error", delErr.Error())
		}
		return nil, fmt.Errorf("failed to save rulebook record: %w", err)
	}
	return rb, nil
}

// StartIngestion creates a pending job for a rulebook. The caller runs
// ProcessIngestion, usually in the background.
func (s *RuleService) StartIngestion(ctx context.Context, rulebookID uuid.UUID) (*models.IngestionJob, error) {
	if s.rulebooks == nil || s.jobs == nil {
		return nil, errors.New("rule service is not configured for ingestion")
	}
	if _, err := s.rulebooks.GetByID(ctx, rulebookID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRulebookNotFound
		}
		return nil, err
	}

	job := &models.IngestionJob{
		RulebookID: rulebookID,
		Status:     models.IngestionPending,
		Steps:      models.NewIngestionSteps(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create ingestion job: %w", err)
	}
	return job, nil
}

// ProcessIngestion downloads, extracts, chunks, embeds and stores the job's
// rulebook, recording each step. The returned error is also saved on the job.
func (s *RuleService) ProcessIngestion(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return ErrJobNotFound
	}
	steps := job.Steps
	if len(steps) == 0 {
		steps = models.NewIngestionSteps()
	}

	fail := func(step string, err error) error {
		steps.Mark(step, models.IngestionFailed, err.Error())
		if ferr := s.jobs.Fail(ctx, jobID, err.Error(), steps); ferr != nil {
			logger.Errorw("failed to mark ingestion job failed", "job_id", jobID.String(), "error", ferr.Error())
		}
		return err
	}
	mark := func(step string, status models.IngestionStatus, detail string) {
		steps.Mark(step, status, detail)
		if err := s.jobs.UpdateProgress(ctx, jobID, steps); err != nil {
			logger.Warnw("failed to update ingestion progress", "job_id", jobID.String(), "error", err.Error())
		}
	}

	rb, err := s.rulebooks.GetByID(ctx, job.RulebookID)
	if err != nil {
		return fail(models.StepDownload, ErrRulebookNotFound)
	}

	mark(models.StepDownload, models.IngestionInProgress, rb.StoragePath)
	body, err := s.storage.Get(ctx, rb.StoragePath)
	if err != nil {
		return fail(models.StepDownload, fmt.Errorf("failed to download rulebook: %w", err))
	}
	mark(models.StepDownload, models.IngestionCompleted, "")

	mark(models.StepExtract, models.IngestionInProgress, "")
	text, err := ingest.ExtractText(body, rb.MimeType, rb.Filename)
	body.Close()
	if err != nil {
		return fail(models.StepExtract, err)
	}
	mark(models.StepExtract, models.IngestionCompleted, fmt.Sprintf("%d words", len(strings.Fields(text))))

	var failedStep string
	n, err := s.pipeline.Ingest(ctx, rb.ID, text, func(step string, status models.IngestionStatus, detail string) {
		if status == models.IngestionFailed {
			failedStep = step
			return
		}
		mark(step, status, detail)
	})
	if err != nil {
		if failedStep == "" {
			failedStep = models.StepStore
		}
		return fail(failedStep, err)
	}

	if err := s.jobs.Complete(ctx, jobID, n, steps); err != nil {
		return fmt.Errorf("failed to complete ingestion job: %w", err)
	}
	logger.Infow("ingestion job completed", "job_id", jobID.String(), "rulebook", rb.Filename, "chunks", n)
	return nil
}

// GetJob returns an ingestion job
func (s *RuleService) GetJob(ctx context.Context, jobID uuid.UUID) (*models.IngestionJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// Search returns the rule snippets most similar to query. A limit outside
// 1..50 uses 5.
func (s *RuleService) Search(ctx context.Context, query string, limit int) ([]models.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}
	return s.searcher.Search(ctx, query, limit)
}
