package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}

	if err := c.AI.validate(); err != nil {
		return fmt.Errorf("ai: %w", err)
	}

	if err := c.Fortune.validate(); err != nil {
		return fmt.Errorf("fortune: %w", err)
	}

	if err := c.Batch.validate(); err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	if c.RateLimit.FortunePerMinute < 0 {
		return fmt.Errorf("rate_limit.fortune_per_minute must be >= 0 (got %d)", c.RateLimit.FortunePerMinute)
	}

	return nil
}

func (a *AIConfig) validate() error {
	switch a.Provider {
	case AIProviderOpenAI, AIProviderAnthropic:
	default:
		return fmt.Errorf("provider must be %q or %q (got %q)", AIProviderOpenAI, AIProviderAnthropic, a.Provider)
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %v)", a.Timeout)
	}
	if a.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0 (got %d)", a.MaxRetries)
	}
	if a.RetryMultiplier < 1 {
		return fmt.Errorf("retry_multiplier must be >= 1 (got %v)", a.RetryMultiplier)
	}
	if a.RetryBaseDelay < 0 || a.RetryMaxDelay < a.RetryBaseDelay {
		return fmt.Errorf("retry delays must satisfy 0 <= base <= max (got %v, %v)", a.RetryBaseDelay, a.RetryMaxDelay)
	}
	if a.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be > 0 (got %d)", a.MaxTokens)
	}
	return nil
}

// RequireCredentials reports an error when the completion endpoint cannot be
// called. Only components that actually generate fortunes check it, so tools
// such as generate-users run without AI settings.
func (a AIConfig) RequireCredentials() error {
	if a.APIKey == "" {
		return errors.New("ai: api_key (AI_API_KEY) is required")
	}
	if a.Provider == AIProviderOpenAI && a.Endpoint == "" {
		return errors.New("ai: endpoint (AI_ENDPOINT) is required for the openai provider")
	}
	return nil
}

func (f *FortuneConfig) validate() error {
	switch f.GenerationMode {
	case GenerationModeOnDemand, GenerationModePreGenerated:
	default:
		return fmt.Errorf("generation_mode must be %q or %q (got %q)",
			GenerationModeOnDemand, GenerationModePreGenerated, f.GenerationMode)
	}

	switch f.RatingPolicy {
	case RatingPolicyClamp, RatingPolicyTrust:
	default:
		return fmt.Errorf("rating_policy must be %q or %q (got %q)", RatingPolicyClamp, RatingPolicyTrust, f.RatingPolicy)
	}

	if f.RatingMin < 1 || f.RatingMax < f.RatingMin {
		return fmt.Errorf("rating range must satisfy 1 <= min <= max (got %d..%d)", f.RatingMin, f.RatingMax)
	}

	if f.PlaceholderPrefix == "" {
		return errors.New("placeholder_prefix must not be empty")
	}

	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", f.Timezone, err)
	}
	f.Location = loc

	return nil
}

func (b *BatchConfig) validate() error {
	if b.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be >= 1 (got %d)", b.MaxConcurrent)
	}
	if b.WindowSize < 1 {
		return fmt.Errorf("window_size must be >= 1 (got %d)", b.WindowSize)
	}
	if b.ItemDelay < 0 || b.WindowDelay < 0 {
		return fmt.Errorf("delays must be >= 0 (got item %v, window %v)", b.ItemDelay, b.WindowDelay)
	}
	if b.MaxErrors < 0 {
		return fmt.Errorf("max_errors must be >= 0 (got %d)", b.MaxErrors)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %v)", b.Timeout)
	}
	return nil
}
