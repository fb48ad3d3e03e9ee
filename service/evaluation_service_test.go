package service

import (
	"context"
	"strings"
	"testing"

	"volleyref-backend/llm"
	"volleyref-backend/metrics"
	"volleyref-backend/models"
	"volleyref-backend/structured"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var netTouchSnippet = models.RetrievedChunk{
	Chunk:      "Rule 11.2.1 Contact with the net by a player between the antennae during the action of playing the ball is a fault. Any player touching the net during play is a fault.",
	Similarity: 0.82,
}

const netTouchVerdict = "```json\n" + `{
  "is_correct": true,
  "normalized_call": "Net touch fault",
  "explanation": "The trainee identified the net contact, which Rule 11.2.1 defines as a fault.",
  "rule_reference": "Rule 11.2.1"
}` + "\n```"

func netTouchRequest() models.EvaluationRequest {
	return models.EvaluationRequest{
		UserAnswer:  "  net touch ",
		CorrectCall: "Net touch fault on blocker",
		Difficulty:  models.DifficultyMedium,
	}
}

func TestEvaluateRulingGrounded(t *testing.T) {
	gen := &recordingGenerator{responses: []string{netTouchVerdict}}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := NewEvaluationService(newEngine([]models.RetrievedChunk{netTouchSnippet}, nil, gen), EvalWithMetrics(m))

	res := svc.EvaluateRuling(context.Background(), netTouchRequest())

	assert.True(t, res.IsCorrect)
	assert.Contains(t, res.RuleReference, "11.2.1")
	assert.Equal(t, "net touch fault", strings.ToLower(res.NormalizedCall))
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Evaluations.WithLabelValues(metrics.OutcomeSucceeded)))

	require.Len(t, gen.messages[0], 2)
	assert.Equal(t, llm.RoleSystem, gen.messages[0][0].Role)
	assert.Contains(t, gen.messages[0][0].Content, "ONLY the provided rule snippets")
	user := gen.messages[0][1].Content
	assert.Contains(t, user, `Trainee's answer: "net touch"`)
	assert.Contains(t, user, `Correct call: "Net touch fault on blocker"`)
	assert.Contains(t, user, "Difficulty: medium")
	assert.Contains(t, user, "Rule Snippet 1 (sim 0.82): Rule 11.2.1")
	assert.NotContains(t, user, noContextWarning)

	assert.Equal(t, defaultEvaluationModel, gen.models[0])
	assert.Equal(t, llm.EvaluationTemperature, gen.opts[0].EffectiveTemperature())
	assert.Equal(t, defaultEvaluationMaxTokens, gen.opts[0].MaxOutputTokens)
}

func TestEvaluateRulingWithoutContextIsIncorrect(t *testing.T) {
	gen := &recordingGenerator{responses: []string{netTouchVerdict}}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := NewEvaluationService(newEngine(nil, nil, gen), EvalWithMetrics(m))

	res := svc.EvaluateRuling(context.Background(), netTouchRequest())

	assert.False(t, res.IsCorrect)
	assert.True(t, strings.HasPrefix(res.Explanation, structured.InsufficientContextNotice))
	assert.Contains(t, strings.ToLower(res.Explanation), "insufficient rule context")
	assert.Contains(t, gen.messages[0][1].Content, noContextWarning)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Evaluations.WithLabelValues(metrics.OutcomeInsufficient)))
}

func TestEvaluateRulingExactMatchWithoutContextIsIncorrect(t *testing.T) {
	gen := &recordingGenerator{responses: []string{netTouchVerdict}}
	svc := NewEvaluationService(newEngine(nil, nil, gen))

	req := netTouchRequest()
	req.UserAnswer = req.CorrectCall
	res := svc.EvaluateRuling(context.Background(), req)
	assert.False(t, res.IsCorrect)
}

func TestEvaluateRulingRetrievesOnCorrectCall(t *testing.T) {
	gen := &recordingGenerator{responses: []string{netTouchVerdict}}
	store := &queryRecorder{}
	eng := newEngineWithSearcher(store, gen)
	svc := NewEvaluationService(eng)

	svc.EvaluateRuling(context.Background(), netTouchRequest())
	assert.Equal(t, []string{"Net touch fault on blocker"}, store.queries)
}

func TestEvaluateRulingFailsSafeAfterThreeAttempts(t *testing.T) {
	gen := &recordingGenerator{responses: []string{"I think the answer is correct!"}}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := NewEvaluationService(newEngine([]models.RetrievedChunk{netTouchSnippet}, nil, gen), EvalWithMetrics(m))

	res := svc.EvaluateRuling(context.Background(), netTouchRequest())

	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, FailedSafe("net touch"), res)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, "net touch", res.NormalizedCall)
	assert.Equal(t, FailedSafeExplanation, res.Explanation)
	assert.Equal(t, FailedSafeRuleReference, res.RuleReference)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Evaluations.WithLabelValues(metrics.OutcomeFailedSafe)))
}

func TestEvaluateRulingFailsSafeOnTransportErrors(t *testing.T) {
	gen := &recordingGenerator{err: llm.ErrGenerationUnavailable}
	svc := NewEvaluationService(newEngine([]models.RetrievedChunk{netTouchSnippet}, nil, gen))

	res := svc.EvaluateRuling(context.Background(), netTouchRequest())
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, FailedSafe("net touch"), res)
}

func TestEvaluateRulingFailsSafeWhenRetrievalIsDown(t *testing.T) {
	gen := &recordingGenerator{responses: []string{netTouchVerdict}}
	svc := NewEvaluationService(newEngine(nil, errEmbeddingDown, gen))

	res := svc.EvaluateRuling(context.Background(), netTouchRequest())
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, FailedSafe("net touch"), res)
}

func TestEvaluateRulingRecoversOnRetry(t *testing.T) {
	gen := &recordingGenerator{responses: []string{`{"is_correct": true}`, netTouchVerdict}}
	svc := NewEvaluationService(newEngine([]models.RetrievedChunk{netTouchSnippet}, nil, gen))

	res := svc.EvaluateRuling(context.Background(), netTouchRequest())
	assert.Equal(t, 2, gen.calls)
	assert.True(t, res.IsCorrect)
}

func TestEvaluateRulingBlankAnswer(t *testing.T) {
	gen := &recordingGenerator{responses: []string{netTouchVerdict}}
	svc := NewEvaluationService(newEngine([]models.RetrievedChunk{netTouchSnippet}, nil, gen))

	req := netTouchRequest()
	req.UserAnswer = "   "
	res := svc.EvaluateRuling(context.Background(), req)
	assert.Equal(t, 0, gen.calls)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, FailedSafeExplanation, res.Explanation)
}

func TestEvaluateRulingUnknownDifficulty(t *testing.T) {
	gen := &recordingGenerator{responses: []string{netTouchVerdict}}
	svc := NewEvaluationService(newEngine([]models.RetrievedChunk{netTouchSnippet}, nil, gen))

	req := netTouchRequest()
	req.Difficulty = "legendary"
	svc.EvaluateRuling(context.Background(), req)
	assert.Contains(t, gen.messages[0][1].Content, "Difficulty: medium")
}
