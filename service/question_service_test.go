package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"volleyref-backend/grounding"
	"volleyref-backend/llm"
	"volleyref-backend/models"
	"volleyref-backend/retrieval"
	"volleyref-backend/structured"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// topicSearcher returns k distinct snippets per topic
type topicSearcher struct {
	mu     sync.Mutex
	topics []string
	empty  bool
}

func (s *topicSearcher) Search(_ context.Context, query string, k int) ([]models.RetrievedChunk, error) {
	if s.empty {
		return []models.RetrievedChunk{}, nil
	}
	out := make([]models.RetrievedChunk, k)
	for i := range out {
		out[i] = models.RetrievedChunk{Chunk: fmt.Sprintf("%s snippet %d", query, i), Similarity: 0.9 - float64(i)/10}
	}
	return out, nil
}

func (s *topicSearcher) SearchTopics(ctx context.Context, topics []string, k int) ([]models.RetrievedChunk, error) {
	s.mu.Lock()
	s.topics = append([]string(nil), topics...)
	s.mu.Unlock()
	var out []models.RetrievedChunk
	for _, t := range topics {
		res, _ := s.Search(ctx, t, k)
		out = append(out, res...)
	}
	return out, nil
}

const generatedQuestion = `{
  "question": "During a rally the middle blocker brushes the top of the net while the ball is being played on the other side of the court. What is the call?",
  "options": ["Option A - A text", "Option B - B text", "Option C - C text", "Option D - D text"],
  "answer": "Option B - B text",
  "explanation": "Rule 11.3.1 makes contact with the net during the action of playing the ball a fault.",
  "rule_reference": "Rule 11.3.1 - Contact with the net"
}`

func seed(n int64) *int64 { return &n }

func TestGenerateQuestionRepairsAnswer(t *testing.T) {
	gen := &recordingGenerator{responses: []string{"```json\n" + generatedQuestion + "\n```"}}
	svc := NewQuestionService(newEngineWithSearcher(&topicSearcher{}, gen))

	res, err := svc.GenerateQuestion(context.Background(), GenerateQuestionRequest{Difficulty: "hard", Seed: seed(7)})
	require.NoError(t, err)

	q := res.Question
	assert.Equal(t, []string{"A text", "B text", "C text", "D text"}, q.Options)
	assert.Equal(t, "B text", q.Answer)
	assert.Contains(t, q.Options, q.Answer)
	require.NotNil(t, q.RuleReference)
	assert.Equal(t, "Rule 11.3.1 - Contact with the net", *q.RuleReference)

	assert.Equal(t, models.DifficultyHard, res.Difficulty)
	assert.Equal(t, int64(7), res.Seed)
	assert.Len(t, res.Topics, topicsPerQuestion)
	assert.Equal(t, defaultQuestionModel, gen.models[0])
	assert.Equal(t, llm.CreativeTemperature, gen.opts[0].EffectiveTemperature())
}

func TestGenerateQuestionIsDeterministicForSeed(t *testing.T) {
	run := func() (*GenerateQuestionResult, string) {
		gen := &recordingGenerator{responses: []string{generatedQuestion}}
		svc := NewQuestionService(newEngineWithSearcher(&topicSearcher{}, gen))
		res, err := svc.GenerateQuestion(context.Background(), GenerateQuestionRequest{Seed: seed(42)})
		require.NoError(t, err)
		return res, gen.messages[0][0].Content + gen.messages[0][1].Content
	}

	first, firstPrompt := run()
	second, secondPrompt := run()
	assert.Equal(t, first.Topics, second.Topics)
	assert.Equal(t, firstPrompt, secondPrompt)
	assert.Equal(t, 5, strings.Count(firstPrompt, "Rule Snippet "))
	assert.NotContains(t, firstPrompt, "Rule Snippet 6")
}

func TestGenerateQuestionUsesSeedSource(t *testing.T) {
	gen := &recordingGenerator{responses: []string{generatedQuestion}}
	svc := NewQuestionService(newEngineWithSearcher(&topicSearcher{}, gen),
		QuestionWithSeedSource(func() int64 { return 99 }))

	res, err := svc.GenerateQuestion(context.Background(), GenerateQuestionRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(99), res.Seed)
	assert.Equal(t, models.DifficultyMedium, res.Difficulty)
}

func TestGenerateQuestionWithoutRules(t *testing.T) {
	gen := &recordingGenerator{responses: []string{generatedQuestion}}
	svc := NewQuestionService(newEngineWithSearcher(&topicSearcher{empty: true}, gen))

	_, err := svc.GenerateQuestion(context.Background(), GenerateQuestionRequest{Seed: seed(1)})
	assert.ErrorIs(t, err, grounding.ErrNoRuleContext)
	assert.Equal(t, 0, gen.calls)
}

func TestGenerateQuestionRetrievalDown(t *testing.T) {
	gen := &recordingGenerator{responses: []string{generatedQuestion}}
	svc := NewQuestionService(newEngine(nil, errEmbeddingDown, gen))

	_, err := svc.GenerateQuestion(context.Background(), GenerateQuestionRequest{Seed: seed(1)})
	assert.ErrorIs(t, err, retrieval.ErrRetrievalUnavailable)
	assert.Equal(t, 0, gen.calls)
}

func TestGenerateQuestionMismatchPolicies(t *testing.T) {
	mismatch := strings.Replace(generatedQuestion, `"answer": "Option B - B text"`, `"answer": "replay the rally"`, 1)

	gen := &recordingGenerator{responses: []string{mismatch}}
	svc := NewQuestionService(newEngineWithSearcher(&topicSearcher{}, gen))
	res, err := svc.GenerateQuestion(context.Background(), GenerateQuestionRequest{Seed: seed(3)})
	require.NoError(t, err)
	assert.Equal(t, "A text", res.Question.Answer)

	gen = &recordingGenerator{responses: []string{mismatch}}
	svc = NewQuestionService(newEngineWithSearcher(&topicSearcher{}, gen),
		QuestionWithMismatchPolicy(structured.MismatchReject))
	_, err = svc.GenerateQuestion(context.Background(), GenerateQuestionRequest{Seed: seed(3)})
	assert.ErrorIs(t, err, grounding.ErrRetriesExhausted)
	assert.ErrorIs(t, err, structured.ErrGenerationFormat)
	assert.Equal(t, 3, gen.calls)
}

func TestPlanQuestion(t *testing.T) {
	a := planQuestion(rand.New(rand.NewSource(5)), refereeTopics, scenarioTypes)
	b := planQuestion(rand.New(rand.NewSource(5)), refereeTopics, scenarioTypes)
	assert.Equal(t, a, b)
	assert.Len(t, a.Topics, 3)
	assert.Contains(t, scenarioTypes, a.ScenarioType)
	assert.GreaterOrEqual(t, a.Variation, 0)
	assert.Less(t, a.Variation, maxVariation)

	seen := map[string]bool{}
	for _, topic := range a.Topics {
		assert.False(t, seen[topic], "topics must be distinct")
		seen[topic] = true
	}
}

func TestFocusArea(t *testing.T) {
	assert.Equal(t, "net, touch, fault", focusArea("volleyball net touch fault"))
}

const moduleQuizJSON = `{
  "question": "Which player may not attack a ball entirely above the net from the front zone?",
  "options": ["The setter", "The libero", "The captain", "The server"],
  "answer": "The libero",
  "explanation": "Rule 19.3.1.2 forbids the libero from completing an attack hit from anywhere if the ball is entirely above the net."
}`

func TestModuleQuizGrounded(t *testing.T) {
	gen := &recordingGenerator{responses: []string{moduleQuizJSON}}
	svc := NewQuestionService(newEngineWithSearcher(&topicSearcher{}, gen))

	res, err := svc.ModuleQuiz(context.Background(), " libero ")
	require.NoError(t, err)

	assert.Equal(t, "libero", res.Module)
	assert.True(t, res.Grounded)
	assert.Equal(t, "The libero", res.Quiz.Answer)
	assert.Nil(t, res.Quiz.RuleReference)
	assert.Contains(t, gen.messages[0][1].Content, "libero snippet 0")
	assert.NotContains(t, gen.messages[0][1].Content, "libero snippet 3")
}

func TestModuleQuizFallsBackWhenIndexIsDown(t *testing.T) {
	gen := &recordingGenerator{responses: []string{moduleQuizJSON}}
	svc := NewQuestionService(newEngine(nil, errEmbeddingDown, gen))

	res, err := svc.ModuleQuiz(context.Background(), "libero")
	require.NoError(t, err)
	assert.False(t, res.Grounded)
	assert.Contains(t, gen.messages[0][1].Content, "General volleyball libero rules and scenarios.")

	_, err = svc.ModuleQuiz(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyModule)
}
