package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxNFCUIDLength is the longest NFC identifier accepted on any input path.
const MaxNFCUIDLength = 50

// User is an NFC-bound identity. Placeholder rows are created before a tag
// is handed out and carry no real biographical data.
type User struct {
	ID          uuid.UUID
	NFCUID      string
	Name        string
	Gender      *Gender
	DateOfBirth time.Time
	BirthPlace  *string
	Status      UserStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsPlaceholder reports whether the user has not completed registration.
// Rows imported from the legacy schema carry no status, only a display name
// prefix, so the prefix is honoured as well.
func (u User) IsPlaceholder(namePrefix string) bool {
	if u.Status == UserStatusPlaceholder {
		return true
	}
	return namePrefix != "" && strings.HasPrefix(u.Name, namePrefix)
}

// HasBirthPlace reports whether a non-blank birth place is recorded.
func (u User) HasBirthPlace() bool {
	return u.BirthPlace != nil && strings.TrimSpace(*u.BirthPlace) != ""
}

// Profile returns the read-only view of the user consumed by prompt building.
func (u User) Profile() UserProfile {
	p := UserProfile{
		DisplayName: u.Name,
		Gender:      u.Gender,
		DateOfBirth: u.DateOfBirth,
	}
	if u.HasBirthPlace() {
		place := strings.TrimSpace(*u.BirthPlace)
		p.BirthPlace = &place
	}
	return p
}

// UserProfile is the subset of a registered user that fortune generation reads.
type UserProfile struct {
	DisplayName string
	Gender      *Gender
	DateOfBirth time.Time
	BirthPlace  *string
}

// UserFilter narrows the set of users enumerated for batch generation.
type UserFilter struct {
	// PlaceholderPrefix excludes legacy placeholder rows identified only by name.
	PlaceholderPrefix string
	// RequireBirthPlace keeps only users with a non-empty birth place.
	RequireBirthPlace bool
}

// ValidateNFCUID checks the identifier shape accepted on HTTP and tool inputs.
func ValidateNFCUID(uid string) error {
	if strings.TrimSpace(uid) == "" {
		return NewValidationError("nfc_uid", "required")
	}
	if utf8.RuneCountInString(uid) > MaxNFCUIDLength {
		return NewValidationError("nfc_uid", "must be at most 50 characters")
	}
	return nil
}

// Length limits for registration fields.
const (
	MaxNameLength       = 50
	MaxBirthPlaceLength = 100
)

// Registration is the biographical data written when a placeholder user
// completes registration.
type Registration struct {
	Name        string
	Gender      *Gender
	DateOfBirth time.Time
	BirthPlace  *string
}
