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

const anthropicVersion = "2023-06-01"

type anthropic struct {
	client      *http.Client
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

type messagesRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func newAnthropic(cfg *Config, client *http.Client, logger *slog.Logger) *anthropic {
	return &anthropic{
		client:      client,
		endpoint:    strings.TrimRight(cfg.BaseURL, "/") + "/v1/messages",
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

func (a *anthropic) Reason(ctx context.Context, req Request) (text string, err error) {
	start := time.Now()
	defer func() { logCall(ctx, a.logger, start, len(text), err) }()

	body := messagesRequest{
		Model:       a.model,
		System:      req.System,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}

	raw, err := postJSON(ctx, a.client, ProviderAnthropic, a.endpoint, body, headers)
	if err != nil {
		return "", err
	}

	var mr messagesResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		return "", fmt.Errorf("%w: decode anthropic response: %w", ErrMalformed, err)
	}

	var sb strings.Builder
	for _, block := range mr.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	text = strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: no text content in anthropic response", ErrMalformed)
	}
	return text, nil
}
