package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

// ErrAlreadyRegistered is returned when the tag is already bound to a
// registered user.
var ErrAlreadyRegistered = fmt.Errorf("nfc tag already registered: %w", domain.ErrAlreadyExists)

// Register completes registration for a placeholder user. Unknown tags give
// ErrNotFound: tags must be provisioned before they can be registered.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	reg, err := in.Validate(s.now())
	if err != nil {
		return nil, err
	}

	existing, err := s.users.GetByNFCUID(ctx, in.NFCUID)
	if err != nil {
		return nil, fmt.Errorf("user.Register: %w", err)
	}
	if !existing.IsPlaceholder(s.placeholderPrefix) {
		return nil, ErrAlreadyRegistered
	}

	u, err := s.users.CompleteRegistration(ctx, in.NFCUID, reg, s.placeholderPrefix, s.now().UTC())
	if errors.Is(err, domain.ErrNotFound) {
		// Registered concurrently between the read and the update.
		return nil, ErrAlreadyRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("user.Register: %w", err)
	}

	s.log.InfoContext(ctx, "user registered",
		slog.String("user_id", u.ID.String()),
		slog.String("nfc_uid", u.NFCUID),
		slog.Bool("has_birth_place", u.HasBirthPlace()),
	)

	return u, nil
}
