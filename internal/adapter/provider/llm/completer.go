package llm

import (
	"context"
	"log/slog"

	"github.com/heartmarshall/nfc-fortune-backend/internal/config"
	"github.com/heartmarshall/nfc-fortune-backend/internal/provider"
)

// Completer produces a completion for a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (*provider.Completion, error)
}

// New returns the completer selected by cfg.Provider.
func New(cfg config.AIConfig, logger *slog.Logger) Completer {
	if cfg.Provider == config.AIProviderAnthropic {
		return NewAnthropicCompleter(cfg, logger)
	}
	return NewOpenAICompleter(cfg, logger)
}
