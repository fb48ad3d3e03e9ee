package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"volleyref-backend/grounding"
	"volleyref-backend/llm"
	"volleyref-backend/models"
	"volleyref-backend/structured"

	"github.com/kart-io/logger"
)

const (
	defaultQuestionModel       = "gpt-4o"
	defaultQuestionTopK        = 4
	defaultQuestionMaxSnippets = 5
	moduleQuizTopK             = 3
)

// ErrEmptyModule is returned for a module quiz request without a module
var ErrEmptyModule = errors.New("module is required")

// QuestionService writes multiple choice quiz questions grounded on the rule
// index
type QuestionService struct {
	engine      *grounding.Engine
	model       string
	policy      structured.MismatchPolicy
	topK        int
	maxSnippets int
	topics      []string
	scenarios   []string
	newSeed     func() int64
}

// QuestionServiceOption is a functional option for QuestionService
type QuestionServiceOption func(*QuestionService)

// QuestionWithModel sets the generation model
func QuestionWithModel(model string) QuestionServiceOption {
	return func(s *QuestionService) {
		if model != "" {
			s.model = model
		}
	}
}

// QuestionWithMismatchPolicy sets how an answer matching no option is handled
func QuestionWithMismatchPolicy(p structured.MismatchPolicy) QuestionServiceOption {
	return func(s *QuestionService) {
		if p != "" {
			s.policy = p
		}
	}
}

// QuestionWithTopics replaces the topic catalogue
func QuestionWithTopics(topics []string) QuestionServiceOption {
	return func(s *QuestionService) {
		if len(topics) > 0 {
			s.topics = topics
		}
	}
}

// QuestionWithSeedSource sets where per-request seeds come from when the
// request carries none
func QuestionWithSeedSource(newSeed func() int64) QuestionServiceOption {
	return func(s *QuestionService) {
		s.newSeed = newSeed
	}
}

// NewQuestionService creates a new question service
func NewQuestionService(engine *grounding.Engine, opts ...QuestionServiceOption) *QuestionService {
	s := &QuestionService{
		engine:      engine,
		model:       defaultQuestionModel,
		policy:      structured.MismatchFirstOption,
		topK:        defaultQuestionTopK,
		maxSnippets: defaultQuestionMaxSnippets,
		topics:      refereeTopics,
		scenarios:   scenarioTypes,
		newSeed:     func() int64 { return time.Now().UnixNano() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateQuestionRequest asks for one question. A nil Seed draws a fresh one.
type GenerateQuestionRequest struct {
	Difficulty string
	Seed       *int64
}

// GenerateQuestionResult is the question plus what it was grounded on
type GenerateQuestionResult struct {
	Question   models.GeneratedQuestion
	Topics     []string
	Difficulty models.Difficulty
	Seed       int64
	Attempts   int
}

// questionDifficulty maps the request difficulty onto easy, medium or hard
func questionDifficulty(s string) models.Difficulty {
	d, err := models.ParseDifficulty(s)
	if err != nil || d == models.DifficultyExtreme {
		return models.DifficultyMedium
	}
	return d
}

func focusArea(topic string) string {
	topic = strings.TrimPrefix(topic, "volleyball ")
	return strings.Join(strings.Fields(topic), ", ")
}

// GenerateQuestion searches three random topics concurrently, keeps at most
// five distinct snippets in random order and asks the model for a question.
// It fails with grounding.ErrNoRuleContext when the index returned nothing,
// with a retrieval error when the index is unreachable and with
// grounding.ErrRetriesExhausted when every attempt produced unusable output.
func (s *QuestionService) GenerateQuestion(ctx context.Context, req GenerateQuestionRequest) (*GenerateQuestionResult, error) {
	seed := s.newSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}
	rng := rand.New(rand.NewSource(seed))
	difficulty := questionDifficulty(req.Difficulty)
	plan := planQuestion(rng, s.topics, s.scenarios)

	data := questionPromptData{
		FocusArea:    focusArea(plan.Topics[0]),
		ScenarioType: plan.ScenarioType,
		Difficulty:   difficulty,
		Variation:    plan.Variation,
	}

	spec := grounding.PromptSpec[models.GeneratedQuestion]{
		Task:    "question",
		Queries: plan.Topics,
		TopK:    s.topK,
		Arrange: func(chunks []models.RetrievedChunk) []models.RetrievedChunk {
			rng.Shuffle(len(chunks), func(i, j int) {
				chunks[i], chunks[j] = chunks[j], chunks[i]
			})
			return chunks
		},
		MaxSnippets:    s.maxSnippets,
		RequireContext: true,
		Messages: func(gc grounding.Context) []llm.Message {
			return []llm.Message{
				llm.System(questionSystemPrompt(data)),
				llm.User(questionUserPrompt(difficulty, gc)),
			}
		},
		Model:   s.model,
		Options: llm.Options{Temperature: llm.Temperature(llm.CreativeTemperature)},
		Decode: func(raw string, _ grounding.Context) (models.GeneratedQuestion, error) {
			return structured.DecodeQuestion(raw, s.policy)
		},
	}

	res, err := grounding.GenerateStructuredContent(ctx, s.engine, spec)
	if err != nil {
		logger.Errorw("question generation failed", "difficulty", difficulty, "seed", seed, "error", err.Error())
		return nil, err
	}

	logger.Infow("question generated",
		"difficulty", difficulty, "scenario", plan.ScenarioType,
		"snippets", len(res.Context.Snippets), "attempts", res.Attempts)
	return &GenerateQuestionResult{
		Question:   res.Value,
		Topics:     plan.Topics,
		Difficulty: difficulty,
		Seed:       seed,
		Attempts:   res.Attempts,
	}, nil
}

// ModuleQuizResult is a lesson quiz question and the snippets behind it
type ModuleQuizResult struct {
	Module   string                   `json:"module"`
	Quiz     models.GeneratedQuestion `json:"quiz"`
	Grounded bool                     `json:"grounded"`
}

// ModuleQuiz writes a single quiz question for a lesson module such as
// "libero" or "net faults". Rule snippets are used when the index has them;
// otherwise the question is written from general knowledge of the module.
func (s *QuestionService) ModuleQuiz(ctx context.Context, module string) (*ModuleQuizResult, error) {
	module = strings.TrimSpace(module)
	if module == "" {
		return nil, ErrEmptyModule
	}

	spec := grounding.PromptSpec[models.GeneratedQuestion]{
		Task:              "module_quiz",
		Queries:           []string{module},
		TopK:              moduleQuizTopK,
		OptionalRetrieval: true,
		Messages: func(gc grounding.Context) []llm.Message {
			return []llm.Message{
				llm.System(moduleQuizSystemPrompt),
				llm.User(moduleQuizUserPrompt(module, gc)),
			}
		},
		Model: s.model,
		Decode: func(raw string, _ grounding.Context) (models.GeneratedQuestion, error) {
			return structured.DecodeQuestion(raw, s.policy)
		},
	}

	res, err := grounding.GenerateStructuredContent(ctx, s.engine, spec)
	if err != nil {
		logger.Errorw("module quiz generation failed", "module", module, "error", err.Error())
		return nil, err
	}
	return &ModuleQuizResult{
		Module:   module,
		Quiz:     res.Value,
		Grounded: res.Context.HasContext,
	}, nil
}
