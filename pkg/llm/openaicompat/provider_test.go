package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"review-rag-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSendsMessagesAndTemperature(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"content":"standalone"}}]}`))
	}))
	defer srv.Close()

	p := NewProvider("groq", "secret", srv.URL+"/", "llama-3.1-8b-instant", time.Second)
	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "rewrite"},
		{Role: llm.RoleUser, Content: "price?"},
	}, llm.WithTemperature(0.5))

	require.NoError(t, err)
	assert.Equal(t, "standalone", out)
	assert.Equal(t, "llama-3.1-8b-instant", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, llm.RoleSystem, got.Messages[0].Role)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.5, *got.Temperature)
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`},
		{"empty choices", http.StatusOK, `{"choices":[]}`},
		{"api error body", http.StatusOK, `{"error":{"message":"bad model"}}`},
		{"malformed", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewProvider("groq", "", srv.URL, "m", time.Second)
			_, err := p.Generate(context.Background(), "hi")
			assert.Error(t, err)
		})
	}
}

func TestChatRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"answer"}}]}`))
	}))
	defer srv.Close()

	out, err := NewProvider("groq", "", srv.URL, "m", time.Second).Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestChatRetryPolicy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		retries int
		calls   int32
	}{
		{"rate limit exhausts retries", http.StatusTooManyRequests, 2, 3},
		{"upstream failure exhausts retries", http.StatusBadGateway, 1, 2},
		{"client error is not retried", http.StatusBadRequest, 2, 1},
		{"retries disabled", http.StatusServiceUnavailable, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := NewProvider("groq", "", srv.URL, "m", time.Second).WithRetries(tt.retries)
			_, err := p.Generate(context.Background(), "hi")

			var se *llm.StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.calls, atomic.LoadInt32(&calls))
		})
	}
}

func TestChatRetryStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewProvider("groq", "", srv.URL, "m", time.Second).WithRetries(5).Generate(ctx, "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMaxTokensOption(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := NewProvider("groq", "", srv.URL, "m", time.Second)
	_, err := p.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, 512, got.MaxTokens)

	_, err = p.Generate(context.Background(), "hi", llm.WithMaxTokens(128))
	require.NoError(t, err)
	assert.Equal(t, 128, got.MaxTokens)
}
