package grounding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"volleyref-backend/llm"
	"volleyref-backend/metrics"
	"volleyref-backend/models"
	"volleyref-backend/retrieval"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	chunks  []models.RetrievedChunk
	byTopic map[string][]models.RetrievedChunk
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, k int) ([]models.RetrievedChunk, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.chunks) > k {
		return f.chunks[:k], nil
	}
	return f.chunks, nil
}

func (f *fakeSearcher) SearchTopics(_ context.Context, topics []string, _ int) ([]models.RetrievedChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.RetrievedChunk
	for _, t := range topics {
		out = append(out, f.byTopic[t]...)
	}
	return out, nil
}

// scriptedGenerator replays responses in order, repeating the last one
type scriptedGenerator struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	messages  [][]llm.Message
	opts      []llm.Options
}

func (g *scriptedGenerator) Complete(_ context.Context, msgs []llm.Message, _ string, opts llm.Options) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	g.messages = append(g.messages, msgs)
	g.opts = append(g.opts, opts)
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if len(g.responses) == 0 {
		return "", nil
	}
	return g.responses[min(i, len(g.responses)-1)], nil
}

var errBadFormat = errors.New("bad format")

func textSpec(queries ...string) PromptSpec[string] {
	return PromptSpec[string]{
		Task:    "test",
		Queries: queries,
		TopK:    4,
		Messages: func(c Context) []llm.Message {
			return []llm.Message{llm.System("sys"), llm.User(c.Text)}
		},
		Options: llm.Options{Temperature: llm.Temperature(llm.EvaluationTemperature)},
		Decode: func(raw string, _ Context) (string, error) {
			if !strings.HasPrefix(raw, "ok") {
				return "", errBadFormat
			}
			return raw, nil
		},
	}
}

func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

var snippet = models.RetrievedChunk{Chunk: "Rule 11.2.1 any player touching the net during play is a fault", Similarity: 0.82}

func TestGenerateSucceedsFirstAttempt(t *testing.T) {
	s := &fakeSearcher{chunks: []models.RetrievedChunk{snippet}}
	g := &scriptedGenerator{responses: []string{"ok-1"}}
	e := NewEngine(s, g)

	res, err := GenerateStructuredContent(context.Background(), e, textSpec("Net touch fault"))
	require.NoError(t, err)

	assert.Equal(t, "ok-1", res.Value)
	assert.Equal(t, 1, res.Attempts)
	assert.True(t, res.Context.HasContext)
	assert.Equal(t, []string{"Net touch fault"}, s.queries)
	assert.Contains(t, g.messages[0][1].Content, "Rule Snippet 1 (sim 0.82)")
}

func TestGenerateRetriesFormatFailuresImmediately(t *testing.T) {
	var delays []time.Duration
	g := &scriptedGenerator{responses: []string{"garbage", "still garbage", "ok-3"}}
	e := NewEngine(&fakeSearcher{}, g, WithSleep(noSleep(&delays)))

	res, err := GenerateStructuredContent(context.Background(), e, textSpec("q"))
	require.NoError(t, err)
	assert.Equal(t, "ok-3", res.Value)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []time.Duration{0, 0}, delays)
}

func TestGenerateStopsAfterThreeAttempts(t *testing.T) {
	var delays []time.Duration
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	g := &scriptedGenerator{responses: []string{"{not json"}}
	e := NewEngine(&fakeSearcher{}, g, WithSleep(noSleep(&delays)), WithMetrics(m))

	res, err := GenerateStructuredContent(context.Background(), e, textSpec("q"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, errBadFormat)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, g.calls)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("test", metrics.AttemptFormatError)))
}

func TestGenerateBacksOffOnTransportErrors(t *testing.T) {
	var delays []time.Duration
	unavailable := errors.Join(llm.ErrGenerationUnavailable, errors.New("503"))
	g := &scriptedGenerator{
		errs:      []error{unavailable, unavailable},
		responses: []string{"", "", "ok"},
	}
	policy := RetryPolicy{MaxRetries: 2, Backoff: 100 * time.Millisecond, MaxBackoff: time.Second}
	e := NewEngine(&fakeSearcher{}, g, WithSleep(noSleep(&delays)), WithRetryPolicy(policy))

	res, err := GenerateStructuredContent(context.Background(), e, textSpec("q"))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestGenerateAbortsWhenBackoffCancelled(t *testing.T) {
	g := &scriptedGenerator{errs: []error{llm.ErrGenerationUnavailable}}
	e := NewEngine(&fakeSearcher{}, g, WithSleep(func(context.Context, time.Duration) error {
		return context.Canceled
	}))

	_, err := GenerateStructuredContent(context.Background(), e, textSpec("q"))
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, g.calls)
}

func TestGenerateRetrievalFailureIsReturned(t *testing.T) {
	s := &fakeSearcher{err: retrieval.ErrRetrievalUnavailable}
	g := &scriptedGenerator{responses: []string{"ok"}}
	_, err := GenerateStructuredContent(context.Background(), NewEngine(s, g), textSpec("q"))

	assert.ErrorIs(t, err, retrieval.ErrRetrievalUnavailable)
	assert.Equal(t, 0, g.calls)
}

func TestGenerateOptionalRetrievalContinuesWithoutSnippets(t *testing.T) {
	s := &fakeSearcher{err: retrieval.ErrRetrievalUnavailable}
	g := &scriptedGenerator{responses: []string{"ok"}}
	spec := textSpec("q")
	spec.OptionalRetrieval = true

	res, err := GenerateStructuredContent(context.Background(), NewEngine(s, g), spec)
	require.NoError(t, err)
	assert.False(t, res.Context.HasContext)
	assert.Equal(t, 1, g.calls)
}

func TestGenerateWithoutContext(t *testing.T) {
	g := &scriptedGenerator{responses: []string{"ok"}}
	e := NewEngine(&fakeSearcher{}, g)

	res, err := GenerateStructuredContent(context.Background(), e, textSpec("q"))
	require.NoError(t, err)
	assert.False(t, res.Context.HasContext)
	assert.Empty(t, res.Context.Text)

	spec := textSpec("q")
	spec.RequireContext = true
	_, err = GenerateStructuredContent(context.Background(), e, spec)
	assert.ErrorIs(t, err, ErrNoRuleContext)
}

func TestGenerateMultiTopicDedupesArrangesAndCaps(t *testing.T) {
	s := &fakeSearcher{byTopic: map[string][]models.RetrievedChunk{
		"net":      {{Chunk: "net rule", Similarity: 0.9}, {Chunk: "shared rule", Similarity: 0.8}},
		"serve":    {{Chunk: "shared rule", Similarity: 0.7}, {Chunk: "serve rule", Similarity: 0.6}},
		"rotation": {{Chunk: "rotation rule", Similarity: 0.5}},
	}}
	g := &scriptedGenerator{responses: []string{"ok"}}

	spec := textSpec("net", "serve", "rotation")
	spec.MaxSnippets = 3
	spec.Arrange = func(c []models.RetrievedChunk) []models.RetrievedChunk {
		out := append([]models.RetrievedChunk(nil), c...)
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return out
	}

	res, err := GenerateStructuredContent(context.Background(), NewEngine(s, g), spec)
	require.NoError(t, err)

	var got []string
	for _, c := range res.Context.Snippets {
		got = append(got, c.Chunk)
	}
	assert.Equal(t, []string{"rotation rule", "serve rule", "shared rule"}, got)
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, Backoff: time.Second, MaxBackoff: 5 * time.Second}
	assert.Equal(t, time.Duration(0), p.Delay(1, false))
	assert.Equal(t, time.Second, p.Delay(1, true))
	assert.Equal(t, 2*time.Second, p.Delay(2, true))
	assert.Equal(t, 4*time.Second, p.Delay(3, true))
	assert.Equal(t, 5*time.Second, p.Delay(4, true))
	assert.Equal(t, 5*time.Second, p.Delay(40, true))
	assert.Equal(t, time.Duration(0), RetryPolicy{}.Delay(3, true))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
