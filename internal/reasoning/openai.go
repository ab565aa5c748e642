package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type openAI struct {
	client      *http.Client
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func newOpenAI(cfg *Config, client *http.Client, logger *slog.Logger) *openAI {
	return &openAI{
		client:      client,
		endpoint:    strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

func (o *openAI) Reason(ctx context.Context, req Request) (text string, err error) {
	start := time.Now()
	defer func() { logCall(ctx, o.logger, start, len(text), err) }()

	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Temperature:    o.temperature,
		MaxTokens:      o.maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	headers := map[string]string{}
	if o.apiKey != "" {
		headers["Authorization"] = "Bearer " + o.apiKey
	}

	raw, err := postJSON(ctx, o.client, ProviderOpenAI, o.endpoint, body, headers)
	if err != nil {
		return "", err
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("%w: decode openai response: %w", ErrMalformed, err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in openai response", ErrMalformed)
	}

	text = strings.TrimSpace(cc.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty openai message", ErrMalformed)
	}
	return text, nil
}
