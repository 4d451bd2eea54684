package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/heartmarshall/nfc-fortune-backend/internal/config"
	"github.com/heartmarshall/nfc-fortune-backend/internal/provider"
)

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
	timeout     time.Duration
	log         *slog.Logger
}

// NewAnthropicCompleter creates a completer. cfg.Endpoint, when set,
// overrides the API base URL.
func NewAnthropicCompleter(cfg config.AIConfig, logger *slog.Logger) *AnthropicCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.Endpoint, "/")+"/"))
	}
	return &AnthropicCompleter{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		log:         logger.With("adapter", "anthropic"),
	}
}

// Complete sends prompt as a single user message and joins the text blocks
// of the reply.
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (*provider.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, provider.StatusError(apiErr.StatusCode, err)
		}
		return nil, provider.ClassifyError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	c.log.DebugContext(ctx, "completion received",
		slog.String("model", string(msg.Model)),
		slog.String("stop_reason", string(msg.StopReason)),
		slog.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	return &provider.Completion{
		Text:  sb.String(),
		Model: string(msg.Model),
		Raw:   []byte(msg.RawJSON()),
	}, nil
}
