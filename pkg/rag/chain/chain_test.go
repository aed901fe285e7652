package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"review-rag-be/pkg/embedding/embeddingtest"
	"review-rag-be/pkg/llm"
	"review-rag-be/pkg/rag/document"
	"review-rag-be/pkg/rag/history"
	"review-rag-be/pkg/rag/history/memory"
	"review-rag-be/pkg/rag/prompt"
	"review-rag-be/pkg/rag/ragerr"
	"review-rag-be/pkg/vectorstore"
	vsmemory "review-rag-be/pkg/vectorstore/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel answers rewrite prompts by folding a product mentioned in history
// into the question, and QA prompts with a canned answer.
type fakeModel struct {
	mu       sync.Mutex
	calls    [][]llm.Message
	options  []llm.Options
	failOn   int // 1-based call number that fails; 0 never
	failErr  error
	delay    time.Duration
	answerFn func(msgs []llm.Message) string
}

func (m *fakeModel) Chat(ctx context.Context, msgs []llm.Message, opts ...llm.Option) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, msgs)
	m.options = append(m.options, *llm.Apply(llm.Options{}, opts...))
	n := len(m.calls)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", fmt.Errorf("post: %w", ctx.Err())
		}
	}
	if m.failOn == n {
		if m.failErr != nil {
			return "", m.failErr
		}
		return "", errors.New("rate limited")
	}

	if msgs[0].Content == prompt.RewriteSystemPrompt {
		input := msgs[len(msgs)-1].Content
		for _, h := range msgs[1 : len(msgs)-1] {
			if strings.Contains(strings.ToLower(h.Content), "blender") && !strings.Contains(strings.ToLower(input), "blender") {
				return strings.TrimSuffix(input, "?") + " of the blender?", nil
			}
		}
		return input, nil
	}
	if m.answerFn != nil {
		return m.answerFn(msgs), nil
	}
	if strings.Contains(msgs[0].Content, "CONTEXT:\n\n\n") {
		return "I don't have information about that product.", nil
	}
	return "Reviewers say it works well.", nil
}

func (m *fakeModel) Generate(ctx context.Context, p string, opts ...llm.Option) (string, error) {
	return m.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: p}}, opts...)
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type failingRetriever struct{ err error }

func (f failingRetriever) SimilaritySearch(context.Context, string, int) ([]document.Document, error) {
	return nil, f.err
}

func newEmptyStore() *vectorstore.EmbeddingStore {
	return vectorstore.New(embeddingtest.NewHashingEmbedder(256), vsmemory.NewIndex())
}

func transcriptLen(t *testing.T, h history.HistoryStore, id string) int {
	tr, err := h.GetOrCreate(context.Background(), id)
	require.NoError(t, err)
	return tr.Len()
}

func TestScenarioEmptyStoreThenFollowUp(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{}
	hist := memory.NewStore(0)
	c := New(model, newEmptyStore(), hist)

	res, err := c.Invoke(ctx, "s1", "Is this blender good?")
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.Equal(t, "I don't have information about that product.", res.Answer)
	assert.Equal(t, 2, transcriptLen(t, hist, "s1"))

	// rewrite ran even though history was empty
	require.Equal(t, 2, model.callCount())
	assert.Equal(t, prompt.RewriteSystemPrompt, model.calls[0][0].Content)
	assert.Len(t, model.calls[0], 2)

	res, err = c.Invoke(ctx, "s1", "What about the price?")
	require.NoError(t, err)

	rewriteCall := model.calls[2]
	require.Len(t, rewriteCall, 4)
	assert.Equal(t, "Is this blender good?", rewriteCall[1].Content)
	assert.Equal(t, llm.RoleAssistant, rewriteCall[2].Role)
	assert.Contains(t, res.StandaloneQuery, "blender")
	assert.Contains(t, res.StandaloneQuery, "price")
	assert.Equal(t, 4, transcriptLen(t, hist, "s1"))
}

func TestSuccessfulRequestAppendsUserThenAssistant(t *testing.T) {
	ctx := context.Background()
	store := newEmptyStore()
	require.NoError(t, store.Upsert(ctx, []document.Document{
		document.New("The blender crushes ice easily", "Philips Blender"),
		document.New("Blender jar leaks", "Philips Blender"),
		document.New("Deep bass", "BoAt Rockerz 255"),
		document.New("Kettle boils fast", "Prestige Kettle"),
	}))

	hist := memory.NewStore(0)
	c := New(&fakeModel{}, store, hist)

	res, err := c.Invoke(ctx, "s1", "blender ice")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Documents), TopK)
	assert.NotEmpty(t, res.Documents)

	tr, _ := hist.GetOrCreate(ctx, "s1")
	require.Len(t, tr.Turns, 2)
	assert.Equal(t, history.RoleUser, tr.Turns[0].Role)
	assert.Equal(t, "blender ice", tr.Turns[0].Text)
	assert.Equal(t, history.RoleAssistant, tr.Turns[1].Role)
	assert.Equal(t, res.Answer, tr.Turns[1].Text)
}

func TestQAPromptCarriesRetrievedContext(t *testing.T) {
	ctx := context.Background()
	store := newEmptyStore()
	require.NoError(t, store.Upsert(ctx, []document.Document{document.New("The blender crushes ice easily", "Philips Blender")}))

	model := &fakeModel{}
	c := New(model, store, memory.NewStore(0))
	_, err := c.Invoke(ctx, "s1", "The blender crushes ice easily")
	require.NoError(t, err)

	qa := model.calls[1]
	assert.Contains(t, qa[0].Content, "CONTEXT:\nThe blender crushes ice easily\n")
	assert.Equal(t, "The blender crushes ice easily", qa[len(qa)-1].Content)
}

func TestFailuresLeaveTranscriptUnchanged(t *testing.T) {
	tests := []struct {
		name      string
		model     *fakeModel
		retriever Retriever
		want      error
	}{
		{"rewrite fails", &fakeModel{failOn: 1}, newEmptyStore(), ragerr.ErrGeneration},
		{"synthesis fails", &fakeModel{failOn: 2}, newEmptyStore(), ragerr.ErrGeneration},
		{"retrieval fails", &fakeModel{}, failingRetriever{err: errors.New("store unreachable")}, ragerr.ErrRetrieval},
		{"empty answer", &fakeModel{answerFn: func([]llm.Message) string { return "  " }}, newEmptyStore(), ragerr.ErrGeneration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			hist := memory.NewStore(0)
			require.NoError(t, hist.Append(ctx, "s1", history.UserTurn("earlier"), history.AssistantTurn("reply")))

			c := New(tt.model, tt.retriever, hist)
			res, err := c.Invoke(ctx, "s1", "Is this blender good?")

			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, 2, transcriptLen(t, hist, "s1"))
		})
	}
}

func TestDeadlineSurfacesAsTimeout(t *testing.T) {
	hist := memory.NewStore(0)
	c := New(&fakeModel{delay: time.Second}, newEmptyStore(), hist)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.Invoke(ctx, "s1", "Is this blender good?")
	assert.True(t, errors.Is(err, ragerr.ErrTimeout), "got %v", err)
	assert.Equal(t, ragerr.KindTimeout, ragerr.KindOf(err))
	assert.Equal(t, 0, transcriptLen(t, hist, "s1"))
}

func TestStageTimeout(t *testing.T) {
	c := New(&fakeModel{delay: time.Second}, newEmptyStore(), memory.NewStore(0), WithStageTimeout(20*time.Millisecond))

	_, err := c.Invoke(context.Background(), "s1", "q")
	assert.Equal(t, ragerr.KindTimeout, ragerr.KindOf(err))
}

func TestCancelledContextSkipsModel(t *testing.T) {
	model := &fakeModel{}
	c := New(model, newEmptyStore(), memory.NewStore(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Invoke(ctx, "s1", "q")
	assert.True(t, errors.Is(err, ragerr.ErrTimeout), "got %v", err)
	assert.Equal(t, 0, model.callCount())
}

func TestInvalidInput(t *testing.T) {
	c := New(&fakeModel{}, newEmptyStore(), memory.NewStore(0))

	_, err := c.Invoke(context.Background(), "", "q")
	assert.True(t, errors.Is(err, ragerr.ErrInvalidInput))

	_, err = c.Invoke(context.Background(), "s1", "   ")
	assert.True(t, errors.Is(err, ragerr.ErrInvalidInput))
}

func TestSameSessionRequestsAreSerialized(t *testing.T) {
	ctx := context.Background()
	hist := memory.NewStore(0)
	model := &fakeModel{
		delay: 5 * time.Millisecond,
		answerFn: func(msgs []llm.Message) string {
			return "answer to " + msgs[len(msgs)-1].Content
		},
	}
	c := New(model, newEmptyStore(), hist)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Invoke(ctx, "shared", fmt.Sprintf("q%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	tr, err := hist.GetOrCreate(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, tr.Turns, 2*n)
	for i := 0; i < len(tr.Turns); i += 2 {
		assert.Equal(t, history.RoleUser, tr.Turns[i].Role)
		assert.Equal(t, "answer to "+tr.Turns[i].Text, tr.Turns[i+1].Text)
	}

	// each synthesis saw a transcript that grew by exactly one exchange
	var sizes []int
	for _, call := range model.calls {
		if call[0].Content != prompt.RewriteSystemPrompt {
			sizes = append(sizes, len(call)-2)
		}
	}
	assert.ElementsMatch(t, []int{0, 2, 4, 6, 8, 10, 12, 14}, sizes)
	assert.Equal(t, 0, c.locks.active())
}

func TestModelOptionsReachBothCalls(t *testing.T) {
	model := &fakeModel{}
	c := New(model, newEmptyStore(), memory.NewStore(0), WithTemperature(0.2), WithMaxTokens(256))

	_, err := c.Invoke(context.Background(), "s1", "Is the kettle quiet?")
	require.NoError(t, err)

	require.Len(t, model.options, 2)
	for _, o := range model.options {
		require.NotNil(t, o.Temperature)
		assert.Equal(t, 0.2, *o.Temperature)
		assert.Equal(t, 256, o.MaxTokens)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héé...", truncate("héééé", 3))
	assert.Equal(t, "ब्लें...", truncate("ब्लेंडर कैसा है", 5))
	assert.True(t, utf8.ValidString(truncate(strings.Repeat("é", 100), 80)))
}
