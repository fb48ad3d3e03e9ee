package service

import (
	"context"
	"errors"
	"strings"

	"volleyref-backend/grounding"
	"volleyref-backend/llm"
	"volleyref-backend/metrics"
	"volleyref-backend/models"
	"volleyref-backend/structured"

	"github.com/kart-io/logger"
)

// Fixed result returned when an evaluation cannot be completed
const (
	FailedSafeExplanation   = "Evaluation failed due to technical error. Please try again. If the problem persists, the ruling may need manual review."
	FailedSafeRuleReference = "Evaluation unavailable"
)

const (
	defaultEvaluationModel     = "gpt-4o-mini"
	defaultEvaluationTopK      = 4
	defaultEvaluationMaxTokens = 500
)

// EvaluationService grades a trainee's ruling against the known correct call
type EvaluationService struct {
	engine    *grounding.Engine
	model     string
	topK      int
	maxTokens int
	metrics   *metrics.Metrics
}

// EvaluationServiceOption is a functional option for EvaluationService
type EvaluationServiceOption func(*EvaluationService)

// EvalWithModel sets the generation model
func EvalWithModel(model string) EvaluationServiceOption {
	return func(s *EvaluationService) {
		if model != "" {
			s.model = model
		}
	}
}

// EvalWithTopK sets how many rule snippets ground the evaluation
func EvalWithTopK(k int) EvaluationServiceOption {
	return func(s *EvaluationService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// EvalWithMetrics records evaluation outcomes
func EvalWithMetrics(m *metrics.Metrics) EvaluationServiceOption {
	return func(s *EvaluationService) {
		s.metrics = m
	}
}

// NewEvaluationService creates a new evaluation service
func NewEvaluationService(engine *grounding.Engine, opts ...EvaluationServiceOption) *EvaluationService {
	s := &EvaluationService{
		engine:    engine,
		model:     defaultEvaluationModel,
		topK:      defaultEvaluationTopK,
		maxTokens: defaultEvaluationMaxTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailedSafe is the result for an evaluation that could not be completed
func FailedSafe(userAnswer string) models.EvaluationResult {
	return models.EvaluationResult{
		IsCorrect:      false,
		NormalizedCall: strings.TrimSpace(userAnswer),
		Explanation:    FailedSafeExplanation,
		RuleReference:  FailedSafeRuleReference,
	}
}

// EvaluateRuling always returns a result. Retrieval is anchored on the
// correct call, never on the trainee's answer. Without rule context the
// result is incorrect; on persistent failure it is FailedSafe.
func (s *EvaluationService) EvaluateRuling(ctx context.Context, req models.EvaluationRequest) (result models.EvaluationResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("evaluation panicked", "panic", r)
			s.metrics.RecordEvaluation(metrics.OutcomeFailedSafe)
			result = FailedSafe(req.UserAnswer)
		}
	}()

	req.UserAnswer = strings.TrimSpace(req.UserAnswer)
	req.CorrectCall = strings.TrimSpace(req.CorrectCall)
	if d, err := models.ParseDifficulty(string(req.Difficulty)); err == nil {
		req.Difficulty = d
	} else {
		logger.Warnw("unknown difficulty, evaluating as medium", "difficulty", req.Difficulty)
		req.Difficulty = models.DifficultyMedium
	}

	if req.UserAnswer == "" {
		s.metrics.RecordEvaluation(metrics.OutcomeFailedSafe)
		return FailedSafe(req.UserAnswer)
	}

	spec := grounding.PromptSpec[models.EvaluationResult]{
		Task:    "evaluation",
		Queries: []string{req.CorrectCall},
		TopK:    s.topK,
		Messages: func(gc grounding.Context) []llm.Message {
			return []llm.Message{
				llm.System(evaluationSystemPrompt),
				llm.User(evaluationUserPrompt(req, gc)),
			}
		},
		Model: s.model,
		Options: llm.Options{
			Temperature:     llm.Temperature(llm.EvaluationTemperature),
			MaxOutputTokens: s.maxTokens,
		},
		Decode: func(raw string, gc grounding.Context) (models.EvaluationResult, error) {
			return structured.DecodeEvaluation(raw, gc.HasContext)
		},
	}

	res, err := grounding.GenerateStructuredContent(ctx, s.engine, spec)
	if err != nil {
		if errors.Is(err, grounding.ErrRetriesExhausted) {
			logger.Errorw("evaluation failed after retries", "error", err.Error())
		} else {
			logger.Errorw("evaluation retrieval failed", "error", err.Error())
		}
		s.metrics.RecordEvaluation(metrics.OutcomeFailedSafe)
		return FailedSafe(req.UserAnswer)
	}

	if !res.Context.HasContext {
		s.metrics.RecordEvaluation(metrics.OutcomeInsufficient)
	} else {
		s.metrics.RecordEvaluation(metrics.OutcomeSucceeded)
	}
	logger.Infow("ruling evaluated",
		"is_correct", res.Value.IsCorrect, "has_context", res.Context.HasContext,
		"snippets", len(res.Context.Snippets), "attempts", res.Attempts)
	return res.Value
}
