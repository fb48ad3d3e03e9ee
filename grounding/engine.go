// Package grounding runs retrieval-grounded structured generation: retrieve
// rule snippets, prompt the model with them, validate its JSON and retry a
// bounded number of times.
package grounding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"volleyref-backend/llm"
	"volleyref-backend/metrics"
	"volleyref-backend/models"
	"volleyref-backend/retrieval"

	"github.com/kart-io/logger"
)

var (
	ErrRetriesExhausted = errors.New("structured generation retries exhausted")
	ErrNoRuleContext    = errors.New("no rule context retrieved")
)

// Searcher is the retrieval side of the engine
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error)
	SearchTopics(ctx context.Context, topics []string, k int) ([]models.RetrievedChunk, error)
}

// Context is the grounding material handed to the prompt builder and decoder
type Context struct {
	Snippets   []models.RetrievedChunk
	Text       string
	HasContext bool
}

// PromptSpec describes one structured generation task
type PromptSpec[T any] struct {
	// Task labels logs and metrics
	Task string
	// Queries are searched with TopK each. Several queries run concurrently
	// and their results are deduplicated.
	Queries []string
	TopK    int
	// Arrange reorders snippets after deduplication, before MaxSnippets
	Arrange     func([]models.RetrievedChunk) []models.RetrievedChunk
	MaxSnippets int
	// RequireContext fails with ErrNoRuleContext instead of generating
	// without snippets
	RequireContext bool
	// OptionalRetrieval generates without snippets when the index is
	// unreachable instead of returning the retrieval error
	OptionalRetrieval bool

	Messages func(Context) []llm.Message
	Model    string
	Options  llm.Options
	Decode   func(raw string, c Context) (T, error)
}

// Result is a decoded value plus the context it was grounded on
type Result[T any] struct {
	Value    T
	Context  Context
	Attempts int
}

// Engine owns the retrieval and generation collaborators
type Engine struct {
	searcher  Searcher
	generator llm.Generator
	retry     RetryPolicy
	metrics   *metrics.Metrics
	sleep     func(context.Context, time.Duration) error
}

// Option configures an Engine
type Option func(*Engine)

// WithRetryPolicy overrides DefaultRetryPolicy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) {
		e.retry = p
	}
}

// WithMetrics records every generation attempt
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithSleep replaces the backoff wait, mainly for tests
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// NewEngine creates an engine
func NewEngine(searcher Searcher, generator llm.Generator, opts ...Option) *Engine {
	e := &Engine{
		searcher:  searcher,
		generator: generator,
		retry:     DefaultRetryPolicy(),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type state int

const (
	stateRetrieving state = iota
	stateGenerating
	stateValidating
	stateRetrying
	stateSucceeded
	stateFailed
)

// GenerateStructuredContent retrieves context for spec, then generates and
// decodes until Decode succeeds or the retry policy is spent. Retrieval
// failures are returned as is; exhausted retries wrap ErrRetriesExhausted and
// still carry the retrieved context in the result.
func GenerateStructuredContent[T any](ctx context.Context, e *Engine, spec PromptSpec[T]) (*Result[T], error) {
	var (
		st        = stateRetrieving
		gc        Context
		raw       string
		value     T
		attempt   int
		lastErr   error
		transport bool
	)

	for {
		switch st {
		case stateRetrieving:
			var err error
			gc, err = retrieve(ctx, e, spec)
			if err != nil {
				if !spec.OptionalRetrieval {
					return nil, err
				}
				logger.Warnw("rule retrieval unavailable, generating without snippets",
					"task", spec.Task, "error", err.Error())
				gc = Context{}
			}
			if spec.RequireContext && !gc.HasContext {
				return nil, ErrNoRuleContext
			}
			st = stateGenerating

		case stateGenerating:
			attempt++
			raw, lastErr = e.generator.Complete(ctx, spec.Messages(gc), spec.Model, spec.Options)
			if lastErr != nil {
				transport = true
				e.metrics.RecordAttempt(spec.Task, metrics.AttemptTransportError)
				st = e.afterFailure(spec.Task, attempt, lastErr)
				continue
			}
			st = stateValidating

		case stateValidating:
			value, lastErr = spec.Decode(raw, gc)
			if lastErr != nil {
				transport = false
				e.metrics.RecordAttempt(spec.Task, metrics.AttemptFormatError)
				st = e.afterFailure(spec.Task, attempt, lastErr)
				continue
			}
			e.metrics.RecordAttempt(spec.Task, metrics.AttemptOK)
			st = stateSucceeded

		case stateRetrying:
			if err := e.sleep(ctx, e.retry.Delay(attempt, transport)); err != nil {
				lastErr = err
				st = stateFailed
				continue
			}
			st = stateGenerating

		case stateSucceeded:
			return &Result[T]{Value: value, Context: gc, Attempts: attempt}, nil

		case stateFailed:
			return &Result[T]{Context: gc, Attempts: attempt},
				fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, lastErr)
		}
	}
}

func (e *Engine) afterFailure(task string, attempt int, err error) state {
	logger.Warnw("structured generation attempt failed",
		"task", task, "attempt", attempt, "max_attempts", e.retry.MaxRetries+1, "error", err.Error())
	if attempt <= e.retry.MaxRetries {
		return stateRetrying
	}
	return stateFailed
}

func retrieve[T any](ctx context.Context, e *Engine, spec PromptSpec[T]) (Context, error) {
	var (
		chunks []models.RetrievedChunk
		err    error
	)
	switch len(spec.Queries) {
	case 0:
	case 1:
		chunks, err = e.searcher.Search(ctx, spec.Queries[0], spec.TopK)
	default:
		chunks, err = e.searcher.SearchTopics(ctx, spec.Queries, spec.TopK)
		chunks = retrieval.Dedupe(chunks)
	}
	if err != nil {
		return Context{}, err
	}

	if spec.Arrange != nil {
		chunks = spec.Arrange(chunks)
	}
	if spec.MaxSnippets > 0 && len(chunks) > spec.MaxSnippets {
		chunks = chunks[:spec.MaxSnippets]
	}

	text := retrieval.Format(chunks)
	return Context{
		Snippets:   chunks,
		Text:       text,
		HasContext: len(chunks) > 0 && strings.TrimSpace(text) != "",
	}, nil
}
