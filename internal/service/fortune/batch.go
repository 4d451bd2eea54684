package fortune

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
	"github.com/heartmarshall/nfc-fortune-backend/internal/metrics"
)

// RunBatch generates today's fortune for every eligible user that does not
// have one yet. Per-user failures are counted and never abort the run; a
// cancelled ctx stops scheduling and returns the partial result with the
// context error.
func (s *Service) RunBatch(ctx context.Context, variant domain.BatchVariant) (*BatchResult, error) {
	if !variant.IsValid() {
		return nil, domain.NewValidationError("variant", "must be default or birthplace")
	}

	started := s.now()
	today := DayStart(started, s.cfg.Location)

	res := &BatchResult{Variant: variant, Errors: []string{}}

	users, err := s.users.ListEligible(ctx, domain.UserFilter{
		PlaceholderPrefix: s.cfg.PlaceholderPrefix,
		RequireBirthPlace: variant == domain.BatchVariantBirthPlace,
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	pending := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.IsPlaceholder(s.cfg.PlaceholderPrefix) {
			continue
		}
		if variant == domain.BatchVariantBirthPlace && !u.HasBirthPlace() {
			continue
		}
		res.TotalUsers++

		has, err := s.fortunes.HasFortune(ctx, u.ID, today)
		if err != nil {
			return nil, fmt.Errorf("check fortune for %s: %w", u.NFCUID, err)
		}
		if !has {
			pending = append(pending, u)
		}
	}
	res.UsersNeedingFortune = len(pending)

	s.log.InfoContext(ctx, "batch started",
		slog.String("variant", variant.String()),
		slog.Int("total_users", res.TotalUsers),
		slog.Int("pending", len(pending)),
	)

	resolve := s.ipResolver("")
	if variant == domain.BatchVariantBirthPlace {
		resolve = s.birthPlaceResolver()
	}

	col := &collector{res: res, maxErrors: s.cfg.Batch.MaxErrors}
	runErr := s.runWindows(ctx, pending, today, resolve, col)

	res.ProcessingTime = s.now().Sub(started)

	s.log.InfoContext(ctx, "batch finished",
		slog.String("variant", variant.String()),
		slog.Int("success", res.SuccessCount),
		slog.Int("failed", res.FailCount),
		slog.Duration("elapsed", res.ProcessingTime),
	)

	if runErr != nil {
		return res, fmt.Errorf("batch interrupted: %w", runErr)
	}
	return res, nil
}

// runWindows processes users in windows of WindowSize. Inside a window the
// errgroup limit caps in-flight generations and the limiter spaces starts.
func (s *Service) runWindows(ctx context.Context, users []domain.User, today time.Time, resolve contextResolver, col *collector) error {
	size := max(s.cfg.Batch.WindowSize, 1)

	limit := rate.Inf
	if s.cfg.Batch.ItemDelay > 0 {
		limit = rate.Every(s.cfg.Batch.ItemDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	for start := 0; start < len(users); start += size {
		if start > 0 {
			if err := s.sleep(ctx, s.cfg.Batch.WindowDelay); err != nil {
				return err
			}
		}

		end := min(start+size, len(users))

		var g errgroup.Group
		g.SetLimit(max(s.cfg.Batch.MaxConcurrent, 1))

		var waitErr error
		for _, u := range users[start:end] {
			if err := limiter.Wait(ctx); err != nil {
				waitErr = err
				break
			}
			g.Go(func() error {
				s.processOne(ctx, u, today, resolve, col)
				return nil
			})
		}
		_ = g.Wait()

		if waitErr != nil {
			return waitErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) processOne(ctx context.Context, u domain.User, today time.Time, resolve contextResolver, col *collector) {
	_, err := s.getOrCreate(ctx, &u, today, resolve)
	if err != nil {
		s.log.WarnContext(ctx, "batch item failed",
			slog.String("nfc_uid", u.NFCUID),
			slog.String("error", err.Error()),
		)
		metrics.BatchItems.WithLabelValues("failure").Inc()
		col.fail(u.NFCUID, err)
		return
	}
	metrics.BatchItems.WithLabelValues("success").Inc()
	col.succeed()
}

// collector accumulates item outcomes from concurrent workers.
type collector struct {
	mu        sync.Mutex
	res       *BatchResult
	maxErrors int
}

func (c *collector) succeed() {
	c.mu.Lock()
	c.res.SuccessCount++
	c.mu.Unlock()
}

func (c *collector) fail(nfcUID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.res.FailCount++
	if len(c.res.Errors) < c.maxErrors {
		c.res.Errors = append(c.res.Errors, fmt.Sprintf("user %s: %s", nfcUID, err.Error()))
	}
}
