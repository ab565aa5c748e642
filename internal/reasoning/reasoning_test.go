package reasoning_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/docintel/internal/reasoning"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newReasoner(t *testing.T, provider, url string) reasoning.Reasoner {
	t.Helper()
	cfg := &reasoning.Config{
		Provider:          provider,
		BaseURL:           url,
		APIKey:            "test-key",
		Timeout:           "5s",
		RequestsPerSecond: -1,
	}
	require.NoError(t, cfg.Finalize(nil))
	r, err := reasoning.New(cfg, discard())
	require.NoError(t, err)
	return r
}

func TestOpenAIReason(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":" {\"category\":\"KYC_DOC\"} "}}]}`)
	}))
	defer srv.Close()

	r := newReasoner(t, reasoning.ProviderOpenAI, srv.URL)
	text, err := r.Reason(context.Background(), reasoning.Request{System: "sys", Prompt: "doc"})
	require.NoError(t, err)
	assert.Equal(t, `{"category":"KYC_DOC"}`, text)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "doc", msgs[1].(map[string]any)["content"])
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	r := newReasoner(t, reasoning.ProviderOpenAI, srv.URL)
	_, err := r.Reason(context.Background(), reasoning.Request{Prompt: "doc"})
	assert.ErrorIs(t, err, reasoning.ErrMalformed)
}

func TestAnthropicReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sys", body["system"])

		io.WriteString(w, `{"content":[{"type":"text","text":"{\"a\":"},{"type":"tool_use"},{"type":"text","text":"1}"}]}`)
	}))
	defer srv.Close()

	r := newReasoner(t, reasoning.ProviderAnthropic, srv.URL)
	text, err := r.Reason(context.Background(), reasoning.Request{System: "sys", Prompt: "doc"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
		{"throttled", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			r := newReasoner(t, reasoning.ProviderOpenAI, srv.URL)
			_, err := r.Reason(context.Background(), reasoning.Request{Prompt: "doc"})
			require.Error(t, err)
			assert.ErrorIs(t, err, reasoning.ErrTransport)

			var se *reasoning.StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.Code)
			assert.Equal(t, tt.retryable, reasoning.Retryable(err))
		})
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	r := newReasoner(t, reasoning.ProviderOpenAI, url)
	_, err := r.Reason(context.Background(), reasoning.Request{Prompt: "doc"})
	assert.ErrorIs(t, err, reasoning.ErrTransport)
	assert.True(t, reasoning.Retryable(err))
}

type countingReasoner struct {
	calls atomic.Int32
}

func (c *countingReasoner) Reason(ctx context.Context, req reasoning.Request) (string, error) {
	c.calls.Add(1)
	return "{}", nil
}

func TestThrottle(t *testing.T) {
	inner := &countingReasoner{}

	t.Run("disabled", func(t *testing.T) {
		assert.Same(t, reasoning.Reasoner(inner), reasoning.Throttle(inner, 0, 1))
	})

	t.Run("cancelled wait", func(t *testing.T) {
		r := reasoning.Throttle(inner, 0.001, 1)
		_, err := r.Reason(context.Background(), reasoning.Request{})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = r.Reason(ctx, reasoning.Request{})
		assert.ErrorIs(t, err, reasoning.ErrTransport)
		assert.Equal(t, int32(1), inner.calls.Load())
	})
}

func TestConfigFinalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := &reasoning.Config{}
		require.NoError(t, cfg.Finalize(nil))
		assert.Equal(t, reasoning.ProviderOpenAI, cfg.Provider)
		assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
		assert.Equal(t, 2048, cfg.MaxTokens)
		assert.Equal(t, time.Minute, cfg.TimeoutDuration())
	})

	t.Run("env selects provider", func(t *testing.T) {
		t.Setenv("TEST_REASONING_PROVIDER", "anthropic")
		t.Setenv("TEST_REASONING_KEY", "k")
		cfg := &reasoning.Config{}
		require.NoError(t, cfg.Finalize(&reasoning.Env{
			Provider: "TEST_REASONING_PROVIDER",
			APIKey:   "TEST_REASONING_KEY",
		}))
		assert.Equal(t, "https://api.anthropic.com", cfg.BaseURL)
		assert.Equal(t, "claude-3-5-sonnet-latest", cfg.Model)
	})

	t.Run("invalid", func(t *testing.T) {
		for _, cfg := range []*reasoning.Config{
			{Provider: "cohere"},
			{Provider: reasoning.ProviderAnthropic},
			{Temperature: 3},
			{Timeout: "soon"},
		} {
			assert.Error(t, cfg.Finalize(nil))
		}
	})
}

var classifySchema = reasoning.MustCompileSchema("classify", map[string]any{
	"type":     "object",
	"required": []string{"category", "confidence"},
	"properties": map[string]any{
		"category":   map[string]any{"type": "string"},
		"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
	},
})

func TestDecode(t *testing.T) {
	type result struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}

	got, err := reasoning.Decode[result]("```json\n{\"category\":\"KYC_DOC\",\"confidence\":0.9}\n```", classifySchema)
	require.NoError(t, err)
	assert.Equal(t, result{Category: "KYC_DOC", Confidence: 0.9}, got)

	_, err = reasoning.Decode[result](`{"category":"KYC_DOC","confidence":1.5}`, classifySchema)
	assert.ErrorIs(t, err, reasoning.ErrMalformed)

	_, err = reasoning.Decode[result](`{"confidence":0.5}`, classifySchema)
	assert.ErrorIs(t, err, reasoning.ErrMalformed)

	_, err = reasoning.Decode[result]("no json here", nil)
	assert.ErrorIs(t, err, reasoning.ErrMalformed)
}
