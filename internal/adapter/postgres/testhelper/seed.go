package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

// PlaceholderDOB is the date of birth stored on pre-generated users.
var PlaceholderDOB = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedUser inserts a registered user with the given birth place (nil for none).
func SeedUser(t *testing.T, pool *pgxpool.Pool, birthPlace *string) domain.User {
	t.Helper()

	suffix := uniqueSuffix()
	gender := domain.GenderFemale
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := domain.User{
		ID:          uuid.New(),
		NFCUID:      "TEST_" + suffix,
		Name:        "User " + suffix,
		Gender:      &gender,
		DateOfBirth: time.Date(1950, 3, 15, 0, 0, 0, 0, time.UTC),
		BirthPlace:  birthPlace,
		Status:      domain.UserStatusRegistered,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	insertUser(t, pool, u)
	return u
}

// SeedPlaceholder inserts a pre-generated user that has not registered yet.
func SeedPlaceholder(t *testing.T, pool *pgxpool.Pool) domain.User {
	t.Helper()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := domain.User{
		ID:          uuid.New(),
		NFCUID:      "TEST_" + suffix,
		Name:        "待注册用户_" + suffix,
		DateOfBirth: PlaceholderDOB,
		Status:      domain.UserStatusPlaceholder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	insertUser(t, pool, u)
	return u
}

func insertUser(t *testing.T, pool *pgxpool.Pool, u domain.User) {
	t.Helper()

	var gender *string
	if u.Gender != nil {
		g := string(*u.Gender)
		gender = &g
	}

	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, nfc_uid, name, gender, date_of_birth, birth_place, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.NFCUID, u.Name, gender, u.DateOfBirth, u.BirthPlace, string(u.Status), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: insert user %s: %v", u.NFCUID, err)
	}
}

// CountFortunes returns the number of fortune rows for (userID, date).
func CountFortunes(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, date time.Time) int {
	t.Helper()

	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT count(*) FROM fortunes WHERE user_id = $1 AND fortune_date = $2`,
		userID, date,
	).Scan(&n)
	if err != nil {
		t.Fatalf("testhelper: count fortunes: %v", err)
	}
	return n
}
