package domain

// Gender is the optional self-reported gender of a registered user.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func (g Gender) String() string { return string(g) }

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale:
		return true
	}
	return false
}

// UserStatus distinguishes pre-generated placeholder identities from users
// who have completed registration.
type UserStatus string

const (
	UserStatusPlaceholder UserStatus = "placeholder"
	UserStatusRegistered  UserStatus = "registered"
)

func (s UserStatus) String() string { return string(s) }

func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusPlaceholder, UserStatusRegistered:
		return true
	}
	return false
}

// BatchVariant selects which users a batch run targets and where their
// location context comes from.
type BatchVariant string

const (
	// BatchVariantDefault covers every registered user; no client location is known.
	BatchVariantDefault BatchVariant = "default"
	// BatchVariantBirthPlace covers users with a birth place and geocodes it for context.
	BatchVariantBirthPlace BatchVariant = "birthplace"
)

func (v BatchVariant) String() string { return string(v) }

func (v BatchVariant) IsValid() bool {
	switch v {
	case BatchVariantDefault, BatchVariantBirthPlace:
		return true
	}
	return false
}
