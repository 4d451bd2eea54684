// Package user implements the User repository using PostgreSQL.
package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/nfc-fortune-backend/internal/adapter/postgres"
	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

const tableUsers = "users"

var userColumns = []string{
	"id", "nfc_uid", "name", "gender", "date_of_birth", "birth_place", "status", "created_at", "updated_at",
}

// Repo provides user persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new user repository. db is usually a *pgxpool.Pool.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// row mirrors the users table.
type row struct {
	ID          uuid.UUID `db:"id"`
	NFCUID      string    `db:"nfc_uid"`
	Name        string    `db:"name"`
	Gender      *string   `db:"gender"`
	DateOfBirth time.Time `db:"date_of_birth"`
	BirthPlace  *string   `db:"birth_place"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r row) toDomain() domain.User {
	u := domain.User{
		ID:          r.ID,
		NFCUID:      r.NFCUID,
		Name:        r.Name,
		DateOfBirth: r.DateOfBirth,
		BirthPlace:  r.BirthPlace,
		Status:      domain.UserStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Gender != nil {
		g := domain.Gender(*r.Gender)
		u.Gender = &g
	}
	return u
}

func (r *Repo) selectUsers() squirrel.SelectBuilder {
	return postgres.Builder().Select(userColumns...).From(tableUsers)
}

// GetByID returns a user by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, id.String())
}

// GetByNFCUID returns the user bound to the given NFC tag.
func (r *Repo) GetByNFCUID(ctx context.Context, nfcUID string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"nfc_uid": nfcUID}, nfcUID)
}

func (r *Repo) getOne(ctx context.Context, where squirrel.Sqlizer, key string) (*domain.User, error) {
	sql, args, err := r.selectUsers().Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user query: %w", err)
	}

	var rec row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &rec, sql, args...); err != nil {
		return nil, postgres.MapError(err, "user", key)
	}

	u := rec.toDomain()
	return &u, nil
}

// ListEligible returns registered users ordered by creation time. Users whose
// name carries the placeholder prefix are excluded even if their status says
// registered.
func (r *Repo) ListEligible(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	q := r.selectUsers().
		Where(squirrel.Eq{"status": string(domain.UserStatusRegistered)}).
		OrderBy("created_at ASC", "id ASC")

	if filter.PlaceholderPrefix != "" {
		q = q.Where(squirrel.NotLike{"name": escapeLike(filter.PlaceholderPrefix) + "%"})
	}
	if filter.RequireBirthPlace {
		q = q.Where("birth_place IS NOT NULL AND btrim(birth_place) <> ''")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build eligible users query: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, postgres.MapError(err, "user", "eligible")
	}

	users := make([]domain.User, len(rows))
	for i, rec := range rows {
		users[i] = rec.toDomain()
	}
	return users, nil
}

// CreatePlaceholders inserts placeholder users in a single statement.
// Rows whose nfc_uid already exists are skipped; the number of inserted rows
// is returned.
func (r *Repo) CreatePlaceholders(ctx context.Context, users []domain.User) (int, error) {
	if len(users) == 0 {
		return 0, nil
	}

	q := postgres.Builder().
		Insert(tableUsers).
		Columns("id", "nfc_uid", "name", "date_of_birth", "status", "created_at", "updated_at")
	for _, u := range users {
		q = q.Values(u.ID, u.NFCUID, u.Name, u.DateOfBirth, string(domain.UserStatusPlaceholder), u.CreatedAt, u.UpdatedAt)
	}
	q = q.Suffix("ON CONFLICT (nfc_uid) DO NOTHING")

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build placeholder insert: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(err, "user", "placeholders")
	}
	return int(tag.RowsAffected()), nil
}

// CountRegistered returns the number of users that completed registration.
func (r *Repo) CountRegistered(ctx context.Context, placeholderPrefix string) (int, error) {
	q := postgres.Builder().
		Select("count(*)").
		From(tableUsers).
		Where(squirrel.Eq{"status": string(domain.UserStatusRegistered)})
	if placeholderPrefix != "" {
		q = q.Where(squirrel.NotLike{"name": escapeLike(placeholderPrefix) + "%"})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int
	if err := postgres.QuerierFromCtx(ctx, r.db).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, postgres.MapError(err, "user", "count")
	}
	return n, nil
}

// NFCUIDExists reports whether any user is bound to nfcUID.
func (r *Repo) NFCUIDExists(ctx context.Context, nfcUID string) (bool, error) {
	const sql = `SELECT EXISTS(SELECT 1 FROM users WHERE nfc_uid = $1)`

	var exists bool
	if err := postgres.QuerierFromCtx(ctx, r.db).QueryRow(ctx, sql, nfcUID).Scan(&exists); err != nil {
		return false, postgres.MapError(err, "user", nfcUID)
	}
	return exists, nil
}

// CompleteRegistration binds reg to the placeholder row for nfcUID and marks
// it registered. Only rows that are still placeholders (by status or by the
// legacy name prefix) are updated; otherwise ErrNotFound is returned.
func (r *Repo) CompleteRegistration(ctx context.Context, nfcUID string, reg domain.Registration, placeholderPrefix string, now time.Time) (*domain.User, error) {
	var gender *string
	if reg.Gender != nil {
		g := string(*reg.Gender)
		gender = &g
	}

	stillPlaceholder := squirrel.Or{squirrel.Eq{"status": string(domain.UserStatusPlaceholder)}}
	if placeholderPrefix != "" {
		stillPlaceholder = append(stillPlaceholder, squirrel.Like{"name": escapeLike(placeholderPrefix) + "%"})
	}

	sql, args, err := postgres.Builder().
		Update(tableUsers).
		Set("name", reg.Name).
		Set("gender", gender).
		Set("date_of_birth", reg.DateOfBirth).
		Set("birth_place", reg.BirthPlace).
		Set("status", string(domain.UserStatusRegistered)).
		Set("updated_at", now).
		Where(squirrel.Eq{"nfc_uid": nfcUID}).
		Where(stillPlaceholder).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build registration update: %w", err)
	}

	var rec row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &rec, sql, args...); err != nil {
		return nil, postgres.MapError(err, "placeholder user", nfcUID)
	}

	u := rec.toDomain()
	return &u, nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
