// Package fortune implements the daily fortune repository using PostgreSQL.
package fortune

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/nfc-fortune-backend/internal/adapter/postgres"
	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

const tableFortunes = "fortunes"

var fortuneColumns = []string{
	"id", "user_id", "fortune_date", "overall_rating", "lucky_color",
	"health_fortune", "health_suggestion", "wealth_fortune",
	"interpersonal_fortune", "action_suggestion", "raw_ai_response", "created_at",
}

// Repo provides fortune persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new fortune repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

type row struct {
	ID                   uuid.UUID `db:"id"`
	UserID               uuid.UUID `db:"user_id"`
	FortuneDate          time.Time `db:"fortune_date"`
	OverallRating        int       `db:"overall_rating"`
	LuckyColor           string    `db:"lucky_color"`
	HealthFortune        string    `db:"health_fortune"`
	HealthSuggestion     string    `db:"health_suggestion"`
	WealthFortune        string    `db:"wealth_fortune"`
	InterpersonalFortune string    `db:"interpersonal_fortune"`
	ActionSuggestion     string    `db:"action_suggestion"`
	RawAIResponse        []byte    `db:"raw_ai_response"`
	CreatedAt            time.Time `db:"created_at"`
}

func (r row) toDomain() domain.Fortune {
	return domain.Fortune{
		ID:          r.ID,
		UserID:      r.UserID,
		FortuneDate: r.FortuneDate,
		FortuneFields: domain.FortuneFields{
			OverallRating:        r.OverallRating,
			HealthFortune:        r.HealthFortune,
			HealthSuggestion:     r.HealthSuggestion,
			WealthFortune:        r.WealthFortune,
			InterpersonalFortune: r.InterpersonalFortune,
			LuckyColor:           r.LuckyColor,
			ActionSuggestion:     r.ActionSuggestion,
		},
		RawAIResponse: json.RawMessage(r.RawAIResponse),
		CreatedAt:     r.CreatedAt,
	}
}

// dateKey converts midnight in the reference timezone into the calendar date
// stored in the DATE column, independent of the time's location.
func dateKey(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

func logKey(userID uuid.UUID, day time.Time) string {
	return userID.String() + "/" + day.Format(time.DateOnly)
}

// GetByUserAndDate returns the fortune of userID for the given day.
func (r *Repo) GetByUserAndDate(ctx context.Context, userID uuid.UUID, day time.Time) (*domain.Fortune, error) {
	sql, args, err := postgres.Builder().
		Select(fortuneColumns...).
		From(tableFortunes).
		Where(squirrel.Eq{"user_id": userID, "fortune_date": dateKey(day)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fortune query: %w", err)
	}

	var rec row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &rec, sql, args...); err != nil {
		return nil, postgres.MapError(err, "fortune", logKey(userID, day))
	}

	f := rec.toDomain()
	return &f, nil
}

// HasFortune reports whether a fortune already exists for (userID, day).
func (r *Repo) HasFortune(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error) {
	const sql = `SELECT EXISTS(SELECT 1 FROM fortunes WHERE user_id = $1 AND fortune_date = $2)`

	var exists bool
	if err := postgres.QuerierFromCtx(ctx, r.db).QueryRow(ctx, sql, userID, dateKey(day)).Scan(&exists); err != nil {
		return false, postgres.MapError(err, "fortune", logKey(userID, day))
	}
	return exists, nil
}

// Upsert stores f as the fortune of (f.UserID, f.FortuneDate). When a row for
// that key already exists its content is replaced; the row id and created_at
// are kept. Concurrent callers therefore always end with exactly one row.
func (r *Repo) Upsert(ctx context.Context, f domain.Fortune) (*domain.Fortune, error) {
	id := f.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var raw any
	if len(f.RawAIResponse) > 0 {
		raw = string(f.RawAIResponse)
	}

	sql, args, err := postgres.Builder().
		Insert(tableFortunes).
		Columns(fortuneColumns...).
		Values(
			id, f.UserID, dateKey(f.FortuneDate), f.OverallRating, f.LuckyColor,
			f.HealthFortune, f.HealthSuggestion, f.WealthFortune,
			f.InterpersonalFortune, f.ActionSuggestion, raw, createdAt,
		).
		Suffix(`ON CONFLICT (user_id, fortune_date) DO UPDATE SET
			overall_rating = EXCLUDED.overall_rating,
			lucky_color = EXCLUDED.lucky_color,
			health_fortune = EXCLUDED.health_fortune,
			health_suggestion = EXCLUDED.health_suggestion,
			wealth_fortune = EXCLUDED.wealth_fortune,
			interpersonal_fortune = EXCLUDED.interpersonal_fortune,
			action_suggestion = EXCLUDED.action_suggestion,
			raw_ai_response = EXCLUDED.raw_ai_response
		RETURNING id, user_id, fortune_date, overall_rating, lucky_color,
			health_fortune, health_suggestion, wealth_fortune,
			interpersonal_fortune, action_suggestion, raw_ai_response, created_at`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fortune upsert: %w", err)
	}

	var rec row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &rec, sql, args...); err != nil {
		return nil, postgres.MapError(err, "fortune", logKey(f.UserID, f.FortuneDate))
	}

	out := rec.toDomain()
	return &out, nil
}
