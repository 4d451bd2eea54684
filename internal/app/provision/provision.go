// Package provision creates placeholder users for NFC tags that have not been
// handed out yet.
package provision

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

// ChunkSize is the number of placeholders inserted per transaction.
const ChunkSize = 50

const (
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLen      = 8
	// maxDraws bounds the search for an unused NFC UID.
	maxDraws = 20
)

// Environments and their NFC UID prefixes.
const (
	EnvTest = "test"
	EnvProd = "prod"
)

var envPrefix = map[string]string{
	EnvTest: "TEST_",
	EnvProd: "PROD_",
}

// PlaceholderBirthDate marks a date of birth that was never entered.
var PlaceholderBirthDate = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)

// ErrProductionInUse is returned when prod placeholders are requested for a
// database that already has registered users and Force is not set.
var ErrProductionInUse = errors.New("database already has registered users; use -force to add prod placeholders")

type userStore interface {
	CreatePlaceholders(ctx context.Context, users []domain.User) (int, error)
	CountRegistered(ctx context.Context, placeholderPrefix string) (int, error)
	NFCUIDExists(ctx context.Context, nfcUID string) (bool, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Options describe one provisioning run.
type Options struct {
	Count             int
	Env               string
	Force             bool
	PlaceholderPrefix string
}

// Result summarizes a run.
type Result struct {
	Requested int
	Created   int
	// Skipped counts rows dropped by the unique NFC UID constraint.
	Skipped int
	Failed  int
}

// Provisioner generates placeholder users.
type Provisioner struct {
	users  userStore
	tx     txManager
	now    func() time.Time
	suffix func() (string, error)
	log    *slog.Logger
}

// New creates a Provisioner.
func New(users userStore, tx txManager, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		users:  users,
		tx:     tx,
		now:    time.Now,
		suffix: randomSuffix,
		log:    logger.With("service", "provision"),
	}
}

// Run creates opts.Count placeholders in transactions of ChunkSize. A failed
// chunk is counted and logged; later chunks still run.
func (p *Provisioner) Run(ctx context.Context, opts Options) (*Result, error) {
	prefix, ok := envPrefix[opts.Env]
	var invalid []domain.FieldError
	if !ok {
		invalid = append(invalid, domain.FieldError{Field: "env", Message: "must be test or prod"})
	}
	if opts.Count < 1 {
		invalid = append(invalid, domain.FieldError{Field: "count", Message: "must be positive"})
	}
	if len(invalid) > 0 {
		return nil, domain.NewValidationErrors(invalid)
	}

	if opts.Env == EnvProd {
		registered, err := p.users.CountRegistered(ctx, opts.PlaceholderPrefix)
		if err != nil {
			return nil, fmt.Errorf("count registered users: %w", err)
		}
		if registered > 0 {
			if !opts.Force {
				return nil, ErrProductionInUse
			}
			p.log.WarnContext(ctx, "adding prod placeholders to a database in use",
				slog.Int("registered_users", registered))
		}
	}

	res := &Result{Requested: opts.Count}
	seen := make(map[string]struct{}, opts.Count)

	for start := 0; start < opts.Count; start += ChunkSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		size := min(ChunkSize, opts.Count-start)

		chunk, err := p.buildChunk(ctx, prefix, opts.PlaceholderPrefix, size, seen)
		if err != nil {
			return res, err
		}

		var created int
		err = p.tx.RunInTx(ctx, func(ctx context.Context) error {
			n, err := p.users.CreatePlaceholders(ctx, chunk)
			created = n
			return err
		})
		if err != nil {
			p.log.ErrorContext(ctx, "placeholder chunk failed",
				slog.Int("chunk", start/ChunkSize+1),
				slog.Int("size", len(chunk)),
				slog.String("error", err.Error()),
			)
			res.Failed += len(chunk)
			continue
		}

		res.Created += created
		res.Skipped += len(chunk) - created
		p.log.InfoContext(ctx, "placeholder chunk created",
			slog.Int("chunk", start/ChunkSize+1),
			slog.Int("created", created),
		)
	}

	return res, nil
}

func (p *Provisioner) buildChunk(ctx context.Context, envPrefix, namePrefix string, size int, seen map[string]struct{}) ([]domain.User, error) {
	now := p.now().UTC()
	chunk := make([]domain.User, 0, size)

	for len(chunk) < size {
		uid, err := p.freshNFCUID(ctx, envPrefix, seen)
		if err != nil {
			return nil, err
		}
		chunk = append(chunk, domain.User{
			ID:          uuid.New(),
			NFCUID:      uid,
			Name:        namePrefix + uid,
			DateOfBirth: PlaceholderBirthDate,
			Status:      domain.UserStatusPlaceholder,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return chunk, nil
}

func (p *Provisioner) freshNFCUID(ctx context.Context, envPrefix string, seen map[string]struct{}) (string, error) {
	for range maxDraws {
		s, err := p.suffix()
		if err != nil {
			return "", fmt.Errorf("generate nfc uid: %w", err)
		}
		uid := envPrefix + s
		if _, dup := seen[uid]; dup {
			continue
		}
		exists, err := p.users.NFCUIDExists(ctx, uid)
		if err != nil {
			return "", fmt.Errorf("check nfc uid: %w", err)
		}
		if exists {
			continue
		}
		seen[uid] = struct{}{}
		return uid, nil
	}
	return "", fmt.Errorf("no unused nfc uid after %d draws", maxDraws)
}

func randomSuffix() (string, error) {
	b := make([]byte, suffixLen)
	limit := big.NewInt(int64(len(suffixAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = suffixAlphabet[n.Int64()]
	}
	return string(b), nil
}
