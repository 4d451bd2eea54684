// Package aiclient turns a prompt into fortune fields: it calls the
// completion endpoint with bounded exponential backoff over transient
// failures and repairs the model's free-text reply into a JSON object.
package aiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/heartmarshall/nfc-fortune-backend/internal/config"
	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
	"github.com/heartmarshall/nfc-fortune-backend/internal/metrics"
	"github.com/heartmarshall/nfc-fortune-backend/internal/provider"
)

type completer interface {
	Complete(ctx context.Context, prompt string) (*provider.Completion, error)
}

// Config is the retry policy. MaxRetries counts retries, so a call makes at
// most MaxRetries+1 attempts. The delay before attempt n+1 is
// min(BaseDelay * Multiplier^(n-1), MaxDelay).
type Config struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	MaxRetries int
}

// ConfigFrom extracts the retry policy from the AI configuration.
func ConfigFrom(cfg config.AIConfig) Config {
	return Config{
		BaseDelay:  cfg.RetryBaseDelay,
		Multiplier: cfg.RetryMultiplier,
		MaxDelay:   cfg.RetryMaxDelay,
		MaxRetries: cfg.MaxRetries,
	}
}

// Result is a successfully parsed reply.
type Result struct {
	Fields domain.FortuneFields
	// Reply is the decoded JSON object as returned by the model.
	Reply    json.RawMessage
	Model    string
	Attempts int
}

// Client generates fortunes through a completer.
type Client struct {
	completer completer
	cfg       Config
	sleep     func(ctx context.Context, d time.Duration) error
	log       *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithSleep replaces the wait between attempts (tests record delays instead
// of sleeping).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewClient creates a Client.
func NewClient(completer completer, cfg Config, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		completer: completer,
		cfg:       cfg,
		sleep:     sleepCtx,
		log:       logger.With("service", "aiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends prompt and returns the parsed fortune fields.
//
// Errors:
//   - wraps ErrRetriesExhausted and the last *provider.TransportError when
//     every attempt failed with a retryable error;
//   - wraps ErrRequestRejected for non-retryable statuses (first occurrence);
//   - *ContentFormatError when the reply cannot be parsed. The model is not
//     re-prompted.
func (c *Client) Generate(ctx context.Context, prompt string) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.AICallDuration.Observe(time.Since(start).Seconds())
	}()

	schedule := c.newSchedule()

	for attempt := 1; ; attempt++ {
		completion, err := c.completer.Complete(ctx, prompt)
		if err == nil {
			return c.parse(ctx, completion, attempt)
		}

		te := provider.ClassifyError(err)
		if !te.Retryable() {
			metrics.AIAttempts.WithLabelValues("rejected").Inc()
			c.log.ErrorContext(ctx, "ai request rejected",
				slog.Int("attempt", attempt),
				slog.Int("status", te.HTTPStatusCode()),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("%w: %w", ErrRequestRejected, te)
		}

		metrics.AIAttempts.WithLabelValues("retryable").Inc()

		if attempt > c.cfg.MaxRetries {
			c.log.ErrorContext(ctx, "ai retries exhausted",
				slog.Int("attempts", attempt),
				slog.String("kind", te.Kind.String()),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, te)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ai generate: %w", ctxErr)
		}

		delay := schedule.NextBackOff()
		c.log.WarnContext(ctx, "ai attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.String("kind", te.Kind.String()),
			slog.Int("status", te.HTTPStatusCode()),
			slog.Duration("delay", delay),
		)

		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("ai generate: %w", err)
		}
	}
}

func (c *Client) parse(ctx context.Context, completion *provider.Completion, attempt int) (*Result, error) {
	fields, reply, err := Parse(completion.Text)
	if err != nil {
		metrics.AIAttempts.WithLabelValues("bad_format").Inc()
		c.log.ErrorContext(ctx, "ai reply could not be parsed",
			slog.Int("attempt", attempt),
			slog.Int("reply_len", len(completion.Text)),
			slog.String("error", err.Error()),
		)
		return nil, &ContentFormatError{Raw: completion.Text, Err: err}
	}

	metrics.AIAttempts.WithLabelValues("success").Inc()
	c.log.InfoContext(ctx, "ai reply parsed",
		slog.Int("attempt", attempt),
		slog.String("model", completion.Model),
		slog.Int("rating", fields.OverallRating),
	)

	return &Result{
		Fields:   fields,
		Reply:    reply,
		Model:    completion.Model,
		Attempts: attempt,
	}, nil
}

// newSchedule returns a deterministic (no jitter) exponential schedule that
// never gives up on its own; the attempt budget is enforced by Generate.
func (c *Client) newSchedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = c.cfg.Multiplier
	b.MaxInterval = c.cfg.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsGenerationFailure reports whether err is a terminal AI failure, as opposed
// to a cancelled context.
func IsGenerationFailure(err error) bool {
	var cfe *ContentFormatError
	return errors.Is(err, ErrRetriesExhausted) || errors.Is(err, ErrRequestRejected) || errors.As(err, &cfe)
}
