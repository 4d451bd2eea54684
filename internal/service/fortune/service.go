// Package fortune implements the daily fortune orchestrators: the per-request
// get-or-create flow, the user status check and the throttled batch run.
package fortune

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/nfc-fortune-backend/internal/config"
	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
	"github.com/heartmarshall/nfc-fortune-backend/internal/service/aiclient"
)

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByNFCUID(ctx context.Context, nfcUID string) (*domain.User, error)
	ListEligible(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)
}

type fortuneRepo interface {
	GetByUserAndDate(ctx context.Context, userID uuid.UUID, day time.Time) (*domain.Fortune, error)
	HasFortune(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error)
	Upsert(ctx context.Context, f domain.Fortune) (*domain.Fortune, error)
}

type contextProvider interface {
	LocationByIP(ctx context.Context, ip string) *domain.LocationInfo
	LocationByPlace(ctx context.Context, place string) *domain.LocationInfo
	Weather(ctx context.Context, regionCode string) *domain.WeatherSnapshot
}

type promptBuilder interface {
	Build(profile domain.UserProfile, fctx *domain.FortuneContext) string
}

type aiClient interface {
	Generate(ctx context.Context, prompt string) (*aiclient.Result, error)
}

// Config holds the orchestration settings.
type Config struct {
	Location          *time.Location
	OnDemand          bool
	RatingMin         int
	RatingMax         int
	ClampRating       bool
	PlaceholderPrefix string
	Batch             BatchConfig
}

// BatchConfig throttles RunBatch. Within a window at most MaxConcurrent
// generations run at once and starts are spaced by ItemDelay; windows of
// WindowSize users are separated by WindowDelay.
type BatchConfig struct {
	WindowSize    int
	MaxConcurrent int
	ItemDelay     time.Duration
	WindowDelay   time.Duration
	MaxErrors     int
}

// ConfigFrom builds the service configuration from the application config.
// cfg must have been validated (Fortune.Location is resolved there).
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Location:          cfg.Fortune.Location,
		OnDemand:          cfg.Fortune.OnDemand(),
		RatingMin:         cfg.Fortune.RatingMin,
		RatingMax:         cfg.Fortune.RatingMax,
		ClampRating:       cfg.Fortune.RatingPolicy == config.RatingPolicyClamp,
		PlaceholderPrefix: cfg.Fortune.PlaceholderPrefix,
		Batch: BatchConfig{
			WindowSize:    cfg.Batch.WindowSize,
			MaxConcurrent: cfg.Batch.MaxConcurrent,
			ItemDelay:     cfg.Batch.ItemDelay,
			WindowDelay:   cfg.Batch.WindowDelay,
			MaxErrors:     cfg.Batch.MaxErrors,
		},
	}
}

// Service orchestrates fortune generation.
type Service struct {
	users    userRepo
	fortunes fortuneRepo
	locator  contextProvider
	prompts  promptBuilder
	ai       aiClient
	cfg      Config
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	log      *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSleep replaces the pause between batch windows.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) { s.sleep = fn }
}

// NewService creates a new fortune service.
func NewService(
	log *slog.Logger,
	users userRepo,
	fortunes fortuneRepo,
	locator contextProvider,
	prompts promptBuilder,
	ai aiClient,
	cfg Config,
	opts ...Option,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &Service{
		users:    users,
		fortunes: fortunes,
		locator:  locator,
		prompts:  prompts,
		ai:       ai,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepCtx,
		log:      log.With("service", "fortune"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BatchSettings returns the throttling configuration (reported with batch results).
func (s *Service) BatchSettings() BatchConfig {
	return s.cfg.Batch
}

// today returns midnight of the current day in the reference timezone.
func (s *Service) today() time.Time {
	return DayStart(s.now(), s.cfg.Location)
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
