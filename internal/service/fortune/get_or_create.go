package fortune

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
	"github.com/heartmarshall/nfc-fortune-backend/internal/metrics"
	"github.com/heartmarshall/nfc-fortune-backend/internal/service/aiclient"
)

// contextResolver gathers the prompt context for one user. A nil context
// with a nil error is not allowed; an error aborts generation.
type contextResolver func(ctx context.Context, user *domain.User, now time.Time) (*domain.FortuneContext, error)

var errBirthPlaceUnresolved = errors.New("birth place could not be resolved")

// GetOrCreateTodayFortune returns today's fortune for userID, generating and
// storing it first if none exists. clientIP, when public, is used to locate
// the user for the prompt context.
func (s *Service) GetOrCreateTodayFortune(ctx context.Context, userID uuid.UUID, clientIP string) (*domain.Fortune, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.getOrCreate(ctx, user, s.today(), s.ipResolver(clientIP))
}

// GetTodayFortuneByNFC is the HTTP-facing flow: it validates the tag id,
// rejects unknown and unregistered users, and in pre-generated mode only
// reads existing fortunes.
func (s *Service) GetTodayFortuneByNFC(ctx context.Context, nfcUID, clientIP string) (*domain.Fortune, error) {
	user, err := s.registeredUser(ctx, nfcUID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	if !s.cfg.OnDemand {
		f, err := s.fortunes.GetByUserAndDate(ctx, user.ID, today)
		if errors.Is(err, domain.ErrNotFound) {
			metrics.FortuneRequests.WithLabelValues("not_generated").Inc()
			return nil, domain.ErrFortuneNotGenerated
		}
		if err != nil {
			return nil, fmt.Errorf("get fortune: %w", err)
		}
		metrics.FortuneRequests.WithLabelValues("cache_hit").Inc()
		return f, nil
	}

	return s.getOrCreate(ctx, user, today, s.ipResolver(clientIP))
}

// CheckUser reports whether nfcUID belongs to a registered user.
func (s *Service) CheckUser(ctx context.Context, nfcUID string) (*CheckResult, error) {
	if err := domain.ValidateNFCUID(nfcUID); err != nil {
		return nil, err
	}

	user, err := s.users.GetByNFCUID(ctx, nfcUID)
	if errors.Is(err, domain.ErrNotFound) {
		return &CheckResult{Exists: false, Message: "用户未注册"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user.IsPlaceholder(s.cfg.PlaceholderPrefix) {
		return &CheckResult{Exists: false, IsPreGenerated: true, Message: "用户需要完成注册"}, nil
	}
	return &CheckResult{Exists: true, Message: "用户已注册", User: user}, nil
}

func (s *Service) registeredUser(ctx context.Context, nfcUID string) (*domain.User, error) {
	if err := domain.ValidateNFCUID(nfcUID); err != nil {
		return nil, err
	}

	user, err := s.users.GetByNFCUID(ctx, nfcUID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.IsPlaceholder(s.cfg.PlaceholderPrefix) {
		return nil, domain.ErrUserNotRegistered
	}
	return user, nil
}

// getOrCreate returns the stored fortune for (user, today) or generates one.
// A stored fortune short-circuits every external call.
func (s *Service) getOrCreate(ctx context.Context, user *domain.User, today time.Time, resolve contextResolver) (*domain.Fortune, error) {
	existing, err := s.fortunes.GetByUserAndDate(ctx, user.ID, today)
	if err == nil {
		metrics.FortuneRequests.WithLabelValues("cache_hit").Inc()
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get fortune: %w", err)
	}

	f, err := s.generate(ctx, user, today, resolve)
	if err != nil {
		metrics.FortuneRequests.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.FortuneRequests.WithLabelValues("generated").Inc()
	return f, nil
}

// generate builds the prompt, calls the model and upserts the result.
// Nothing is written when the model call fails.
func (s *Service) generate(ctx context.Context, user *domain.User, today time.Time, resolve contextResolver) (*domain.Fortune, error) {
	fctx, err := resolve(ctx, user, s.now())
	if err != nil {
		return nil, err
	}

	prompt := s.prompts.Build(user.Profile(), fctx)

	res, err := s.ai.Generate(ctx, prompt)
	if err != nil {
		s.log.ErrorContext(ctx, "fortune generation failed",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
		if aiclient.IsGenerationFailure(err) {
			return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
		}
		return nil, fmt.Errorf("generate fortune: %w", err)
	}

	fields := res.Fields
	if s.cfg.ClampRating {
		clamped := domain.ClampRating(fields.OverallRating, s.cfg.RatingMin, s.cfg.RatingMax)
		if clamped != fields.OverallRating {
			s.log.WarnContext(ctx, "rating out of range, clamped",
				slog.String("user_id", user.ID.String()),
				slog.Int("rating", fields.OverallRating),
				slog.Int("clamped", clamped),
			)
			fields.OverallRating = clamped
		}
	}

	raw, err := auditRecord(res.Reply, fctx)
	if err != nil {
		return nil, fmt.Errorf("encode raw ai response: %w", err)
	}

	saved, err := s.fortunes.Upsert(ctx, domain.Fortune{
		UserID:        user.ID,
		FortuneDate:   today,
		FortuneFields: fields,
		RawAIResponse: raw,
	})
	if err != nil {
		return nil, fmt.Errorf("save fortune: %w", err)
	}

	s.log.InfoContext(ctx, "fortune generated",
		slog.String("user_id", user.ID.String()),
		slog.String("date", today.Format(time.DateOnly)),
		slog.Int("attempts", res.Attempts),
	)
	return saved, nil
}

// ipResolver locates the user through the request's client IP. Lookups that
// fail leave the corresponding field empty.
func (s *Service) ipResolver(clientIP string) contextResolver {
	return func(ctx context.Context, _ *domain.User, now time.Time) (*domain.FortuneContext, error) {
		fctx := &domain.FortuneContext{Time: now.In(s.cfg.Location)}
		if clientIP == "" {
			return fctx, nil
		}
		fctx.Location = s.locator.LocationByIP(ctx, clientIP)
		if fctx.Location != nil {
			fctx.Weather = s.locator.Weather(ctx, fctx.Location.RegionCode)
		}
		return fctx, nil
	}
}

// birthPlaceResolver uses the user's birth place instead of the caller's
// location. An unresolvable birth place is an error.
func (s *Service) birthPlaceResolver() contextResolver {
	return func(ctx context.Context, user *domain.User, now time.Time) (*domain.FortuneContext, error) {
		profile := user.Profile()
		if profile.BirthPlace == nil {
			return nil, errBirthPlaceUnresolved
		}

		loc := s.locator.LocationByPlace(ctx, *profile.BirthPlace)
		if loc == nil {
			return nil, fmt.Errorf("%w: %q", errBirthPlaceUnresolved, *profile.BirthPlace)
		}

		return &domain.FortuneContext{
			Time:     now.In(s.cfg.Location),
			Location: loc,
			Weather:  s.locator.Weather(ctx, loc.RegionCode),
			Note:     fmt.Sprintf("基于用户出生地 %s 的位置和天气信息", *profile.BirthPlace),
		}, nil
	}
}

type auditContext struct {
	Time     time.Time               `json:"time"`
	Location *domain.LocationInfo    `json:"location"`
	Weather  *domain.WeatherSnapshot `json:"weather"`
	Note     string                  `json:"note,omitempty"`
}

// auditRecord is what gets stored in raw_ai_response.
func auditRecord(reply json.RawMessage, fctx *domain.FortuneContext) (json.RawMessage, error) {
	rec := struct {
		Reply   json.RawMessage `json:"reply"`
		Context *auditContext   `json:"context"`
	}{Reply: reply}

	if len(rec.Reply) == 0 {
		rec.Reply = json.RawMessage("null")
	}
	if fctx != nil {
		rec.Context = &auditContext{
			Time:     fctx.Time,
			Location: fctx.Location,
			Weather:  fctx.Weather,
			Note:     fctx.Note,
		}
	}
	return json.Marshal(rec)
}
