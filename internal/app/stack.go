package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/nfc-fortune-backend/internal/adapter/cache"
	"github.com/heartmarshall/nfc-fortune-backend/internal/adapter/postgres"
	fortunerepo "github.com/heartmarshall/nfc-fortune-backend/internal/adapter/postgres/fortune"
	userrepo "github.com/heartmarshall/nfc-fortune-backend/internal/adapter/postgres/user"
	"github.com/heartmarshall/nfc-fortune-backend/internal/adapter/provider/amap"
	"github.com/heartmarshall/nfc-fortune-backend/internal/adapter/provider/llm"
	"github.com/heartmarshall/nfc-fortune-backend/internal/config"
	"github.com/heartmarshall/nfc-fortune-backend/internal/service/aiclient"
	"github.com/heartmarshall/nfc-fortune-backend/internal/service/fortune"
	"github.com/heartmarshall/nfc-fortune-backend/internal/service/prompt"
	"github.com/heartmarshall/nfc-fortune-backend/internal/service/user"
	"github.com/heartmarshall/nfc-fortune-backend/migrations"
)

// Stack is the wiring shared by the HTTP server and the in-process batch.
type Stack struct {
	Pool    *pgxpool.Pool
	Cache   *cache.Redis // nil when REDIS_ADDR is empty or unreachable
	Fortune *fortune.Service
	Users   *user.Service
}

// NewStack connects to the database (migrating first when asked), the
// optional cache, and builds the fortune service. AI credentials are checked
// here because every caller generates fortunes.
func NewStack(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (*Stack, error) {
	if err := cfg.AI.RequireCredentials(); err != nil {
		return nil, err
	}
	if cfg.AMap.APIKey == "" {
		logger.Warn("AMAP_API_KEY is empty, fortunes will be generated without location and weather")
	}

	if migrate {
		results, err := postgres.Migrate(ctx, cfg.Database.DSN, migrations.FS)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied", slog.Int("count", len(results)))
	}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Stack{Pool: pool}

	// A nil *Redis must not reach amap as a non-nil interface.
	var lookupCache amap.Cache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("lookup cache disabled", slog.String("error", err.Error()))
		} else {
			s.Cache = rc
			lookupCache = rc
		}
	}

	ai := aiclient.NewClient(llm.New(cfg.AI, logger), aiclient.ConfigFrom(cfg.AI), logger)

	users := userrepo.New(pool)
	s.Users = user.NewService(logger, users, cfg.Fortune.PlaceholderPrefix)
	s.Fortune = fortune.NewService(
		logger,
		users,
		fortunerepo.New(pool),
		amap.NewProvider(cfg.AMap, lookupCache, logger),
		prompt.NewBuilder(cfg.Fortune.RatingMin, cfg.Fortune.RatingMax),
		ai,
		fortune.ConfigFrom(cfg),
	)

	return s, nil
}

// Close releases the pool and the cache connection.
func (s *Stack) Close() {
	if s.Cache != nil {
		_ = s.Cache.Close()
	}
	s.Pool.Close()
}
