// Package llm adapts chat completion APIs to a single Complete call that
// reports failures as tagged provider.TransportError values.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/heartmarshall/nfc-fortune-backend/internal/config"
	"github.com/heartmarshall/nfc-fortune-backend/internal/provider"
)

// OpenAICompleter calls an OpenAI-compatible /chat/completions endpoint.
type OpenAICompleter struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
	timeout     time.Duration
	log         *slog.Logger
}

// NewOpenAICompleter creates a completer for cfg.Endpoint. The endpoint may be
// given either as the API base or as the full .../chat/completions URL.
// SDK retries are disabled: retry policy belongs to the caller.
func NewOpenAICompleter(cfg config.AIConfig, logger *slog.Logger) *OpenAICompleter {
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURLFromEndpoint(cfg.Endpoint)),
		option.WithMaxRetries(0),
	)
	return &OpenAICompleter{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		log:         logger.With("adapter", "openai"),
	}
}

// Complete sends prompt as a single user message.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (*provider.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, provider.StatusError(apiErr.StatusCode, err)
		}
		return nil, provider.ClassifyError(err)
	}

	out := &provider.Completion{Model: resp.Model, Raw: []byte(resp.RawJSON())}
	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content
	}

	c.log.DebugContext(ctx, "completion received",
		slog.String("model", resp.Model),
		slog.Int("choices", len(resp.Choices)),
		slog.Int64("total_tokens", resp.Usage.TotalTokens),
	)
	return out, nil
}

// baseURLFromEndpoint strips a trailing /chat/completions so that both styles
// of AI_ENDPOINT work with the SDK, which appends the path itself.
func baseURLFromEndpoint(endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	return base + "/"
}
