package chain

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"review-rag-be/pkg/llm"
	"review-rag-be/pkg/rag/document"
	"review-rag-be/pkg/rag/history"
	"review-rag-be/pkg/rag/prompt"
	"review-rag-be/pkg/rag/ragerr"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// TopK is the fixed number of reviews retrieved per question.
	TopK = 3
	// DefaultTemperature is used for both model calls.
	DefaultTemperature = 0.5

	logModule = "RAGChain"
)

// Stage names a step of one request.
type Stage string

const (
	StageReceived     Stage = "received"
	StageRewriting    Stage = "rewriting"
	StageRetrieving   Stage = "retrieving"
	StageSynthesizing Stage = "synthesizing"
	StageAppended     Stage = "appended"
	StageReturned     Stage = "returned"
)

// Retriever is the read side of a vector store.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]document.Document, error)
}

// Logger matches the application's structured logger.
type Logger interface {
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}

// Result is what one successful request returns.
type Result struct {
	SessionID       string              `json:"session_id"`
	Answer          string              `json:"answer"`
	StandaloneQuery string              `json:"standalone_query"`
	Documents       []document.Document `json:"retrieved_documents"`
}

// Chain runs rewrite, retrieve and synthesize for one session turn and records
// the exchange only after both model calls succeed.
type Chain struct {
	model        llm.LLMProvider
	retriever    Retriever
	history      history.HistoryStore
	locks        *sessionLocks
	temperature  float64
	maxTokens    int
	stageTimeout time.Duration
	logger       Logger
}

type Option func(*Chain)

func WithTemperature(t float64) Option {
	return func(c *Chain) { c.temperature = t }
}

// WithMaxTokens caps both model calls; zero keeps the provider default.
func WithMaxTokens(n int) Option {
	return func(c *Chain) { c.maxTokens = n }
}

// WithStageTimeout bounds each remote call in addition to the caller's deadline.
func WithStageTimeout(d time.Duration) Option {
	return func(c *Chain) { c.stageTimeout = d }
}

func WithLogger(l Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(model llm.LLMProvider, retriever Retriever, store history.HistoryStore, opts ...Option) *Chain {
	c := &Chain{
		model:       model,
		retriever:   retriever,
		history:     store,
		locks:       newSessionLocks(),
		temperature: DefaultTemperature,
		logger:      nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// History exposes the transcript store the chain appends to.
func (c *Chain) History() history.HistoryStore {
	return c.history
}

// Invoke answers input within sessionID. Requests for the same session are
// processed one at a time in arrival order.
func (c *Chain) Invoke(ctx context.Context, sessionID, input string) (res *Result, err error) {
	const op = "chain.Invoke"
	start := time.Now()

	ctx, span := tracer.Start(ctx, "chain.invoke")
	span.SetAttributes(attribute.String("session.id", sessionID))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = strings.ToLower(string(ragerr.KindOf(err)))
			if outcome == "" {
				outcome = "unknown"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		requestsTotal.WithLabelValues(outcome).Inc()
		span.End()
	}()

	// Received
	if strings.TrimSpace(sessionID) == "" {
		return nil, ragerr.Errorf(ragerr.KindInvalidInput, op, "session id is required")
	}
	if strings.TrimSpace(input) == "" {
		return nil, ragerr.Errorf(ragerr.KindInvalidInput, op, "input is required")
	}

	release, err := c.locks.acquire(ctx, sessionID)
	if err != nil {
		return nil, ragerr.New(ragerr.KindTimeout, op, err)
	}
	defer release()

	transcript, err := c.history.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, ragerr.New(ragerr.KindConnection, op, err)
	}

	c.logger.Info(logModule, "[PHASE 1] Rewriting question", map[string]interface{}{
		"session_id": sessionID,
		"turns":      transcript.Len(),
	})
	standalone, err := c.rewrite(ctx, transcript.Turns, input)
	if err != nil {
		c.fail(StageRewriting, sessionID, err)
		return nil, err
	}

	c.logger.Info(logModule, "[PHASE 2] Retrieving reviews", map[string]interface{}{
		"session_id": sessionID,
		"query":      truncate(standalone, 80),
	})
	docs, err := c.retrieve(ctx, standalone)
	if err != nil {
		c.fail(StageRetrieving, sessionID, err)
		return nil, err
	}

	c.logger.Info(logModule, "[PHASE 3] Synthesizing answer", map[string]interface{}{
		"session_id": sessionID,
		"documents":  len(docs),
	})
	answer, err := c.synthesize(ctx, docs, transcript.Turns, input)
	if err != nil {
		c.fail(StageSynthesizing, sessionID, err)
		return nil, err
	}

	// Appended: both turns in one call so they stay adjacent.
	if err := c.history.Append(ctx, sessionID, history.UserTurn(input), history.AssistantTurn(answer)); err != nil {
		c.fail(StageAppended, sessionID, err)
		return nil, ragerr.New(ragerr.KindConnection, op, err)
	}

	c.logger.Info(logModule, "Request completed", map[string]interface{}{
		"session_id":  sessionID,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &Result{
		SessionID:       sessionID,
		Answer:          answer,
		StandaloneQuery: standalone,
		Documents:       docs,
	}, nil
}

// rewrite always calls the model, even when there is no history yet.
func (c *Chain) rewrite(ctx context.Context, turns []history.Turn, input string) (string, error) {
	var out string
	err := c.stage(ctx, StageRewriting, func(ctx context.Context) error {
		var err error
		out, err = c.model.Chat(ctx, prompt.RewriteMessages(turns, input), c.modelOptions()...)
		if err != nil {
			return ragerr.New(ragerr.KindGeneration, "chain.rewrite", err)
		}
		return nil
	})
	return strings.TrimSpace(out), err
}

func (c *Chain) modelOptions() []llm.Option {
	opts := []llm.Option{llm.WithTemperature(c.temperature)}
	if c.maxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(c.maxTokens))
	}
	return opts
}

func (c *Chain) retrieve(ctx context.Context, query string) ([]document.Document, error) {
	var docs []document.Document
	err := c.stage(ctx, StageRetrieving, func(ctx context.Context) error {
		var err error
		docs, err = c.retriever.SimilaritySearch(ctx, query, TopK)
		if err != nil {
			return ragerr.New(ragerr.KindRetrieval, "chain.retrieve", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(docs) > TopK {
		docs = docs[:TopK]
	}
	if docs == nil {
		docs = []document.Document{}
	}
	retrievedDocuments.Observe(float64(len(docs)))
	return docs, nil
}

func (c *Chain) synthesize(ctx context.Context, docs []document.Document, turns []history.Turn, input string) (string, error) {
	var out string
	err := c.stage(ctx, StageSynthesizing, func(ctx context.Context) error {
		var err error
		out, err = c.model.Chat(ctx, prompt.QAMessages(docs, turns, input), c.modelOptions()...)
		if err != nil {
			return ragerr.New(ragerr.KindGeneration, "chain.synthesize", err)
		}
		if strings.TrimSpace(out) == "" {
			return ragerr.Errorf(ragerr.KindGeneration, "chain.synthesize", "model returned an empty answer")
		}
		return nil
	})
	return out, err
}

// stage runs fn under its own span, timer and optional timeout. A context
// that is already done is reported as a timeout without calling fn.
func (c *Chain) stage(ctx context.Context, name Stage, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return ragerr.New(ragerr.KindTimeout, "chain."+string(name), err)
	}

	ctx, span := tracer.Start(ctx, "chain."+string(name))
	defer span.End()

	if c.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.stageTimeout)
		defer cancel()
	}

	timer := time.Now()
	err := fn(ctx)
	stageDuration.WithLabelValues(string(name)).Observe(time.Since(timer).Seconds())

	if err != nil {
		// a stage timeout surfaces as a context error from the provider
		if ctx.Err() != nil && !errors.Is(err, ragerr.ErrTimeout) {
			err = ragerr.New(ragerr.KindTimeout, "chain."+string(name), err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Chain) fail(stage Stage, sessionID string, err error) {
	c.logger.Error(logModule, "Request failed", map[string]interface{}{
		"session_id": sessionID,
		"stage":      string(stage),
		"kind":       string(ragerr.KindOf(err)),
		"error":      err.Error(),
	})
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
