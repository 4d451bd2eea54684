// Package user implements NFC tag registration: binding a person's details
// to a pre-generated placeholder user.
package user

import (
	"context"
	"log/slog"
	"time"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

type userRepo interface {
	GetByNFCUID(ctx context.Context, nfcUID string) (*domain.User, error)
	CompleteRegistration(ctx context.Context, nfcUID string, reg domain.Registration, placeholderPrefix string, now time.Time) (*domain.User, error)
}

// Service implements registration.
type Service struct {
	log               *slog.Logger
	users             userRepo
	placeholderPrefix string
	now               func() time.Time
}

// NewService creates a new user service instance.
func NewService(logger *slog.Logger, users userRepo, placeholderPrefix string) *Service {
	return &Service{
		log:               logger.With("service", "user"),
		users:             users,
		placeholderPrefix: placeholderPrefix,
		now:               time.Now,
	}
}
