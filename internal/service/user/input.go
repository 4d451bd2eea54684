package user

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

// DateLayout is the accepted dateOfBirth format.
const DateLayout = "2006-01-02"

// RegisterInput holds the registration form as submitted.
type RegisterInput struct {
	NFCUID      string
	Name        string
	Gender      *string
	DateOfBirth string
	BirthPlace  *string
}

// Validate checks the input and returns the normalized registration.
// Dates in the future are rejected relative to now.
func (i RegisterInput) Validate(now time.Time) (domain.Registration, error) {
	var errs []domain.FieldError
	var reg domain.Registration

	if err := domain.ValidateNFCUID(i.NFCUID); err != nil {
		errs = append(errs, domain.FieldError{Field: "nfc_uid", Message: "required, at most 50 characters"})
	}

	name := strings.TrimSpace(i.Name)
	switch {
	case name == "":
		errs = append(errs, domain.FieldError{Field: "name", Message: "required"})
	case utf8.RuneCountInString(name) > domain.MaxNameLength:
		errs = append(errs, domain.FieldError{Field: "name", Message: "must be at most 50 characters"})
	default:
		reg.Name = name
	}

	if i.Gender != nil && *i.Gender != "" {
		g := domain.Gender(*i.Gender)
		if !g.IsValid() {
			errs = append(errs, domain.FieldError{Field: "gender", Message: "must be male or female"})
		} else {
			reg.Gender = &g
		}
	}

	if i.DateOfBirth == "" {
		errs = append(errs, domain.FieldError{Field: "date_of_birth", Message: "required"})
	} else if dob, err := time.Parse(DateLayout, i.DateOfBirth); err != nil {
		errs = append(errs, domain.FieldError{Field: "date_of_birth", Message: "must be YYYY-MM-DD"})
	} else if dob.After(now) {
		errs = append(errs, domain.FieldError{Field: "date_of_birth", Message: "must not be in the future"})
	} else {
		reg.DateOfBirth = dob
	}

	if i.BirthPlace != nil {
		place := strings.TrimSpace(*i.BirthPlace)
		if utf8.RuneCountInString(place) > domain.MaxBirthPlaceLength {
			errs = append(errs, domain.FieldError{Field: "birth_place", Message: "must be at most 100 characters"})
		} else if place != "" {
			reg.BirthPlace = &place
		}
	}

	if len(errs) > 0 {
		return domain.Registration{}, domain.NewValidationErrors(errs)
	}
	return reg, nil
}
