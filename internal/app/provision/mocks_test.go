package provision

import (
	"context"
	"sync"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

var (
	_ userStore = &userStoreMock{}
	_ txManager = &txManagerMock{}
)

type userStoreMock struct {
	CreatePlaceholdersFunc func(ctx context.Context, users []domain.User) (int, error)
	CountRegisteredFunc    func(ctx context.Context, placeholderPrefix string) (int, error)
	NFCUIDExistsFunc       func(ctx context.Context, nfcUID string) (bool, error)

	mu      sync.Mutex
	batches [][]domain.User
}

func (m *userStoreMock) CreatePlaceholders(ctx context.Context, users []domain.User) (int, error) {
	if m.CreatePlaceholdersFunc == nil {
		panic("userStoreMock.CreatePlaceholdersFunc: method is nil but userStore.CreatePlaceholders was just called")
	}
	m.mu.Lock()
	m.batches = append(m.batches, users)
	m.mu.Unlock()
	return m.CreatePlaceholdersFunc(ctx, users)
}

func (m *userStoreMock) CountRegistered(ctx context.Context, placeholderPrefix string) (int, error) {
	if m.CountRegisteredFunc == nil {
		panic("userStoreMock.CountRegisteredFunc: method is nil but userStore.CountRegistered was just called")
	}
	return m.CountRegisteredFunc(ctx, placeholderPrefix)
}

func (m *userStoreMock) NFCUIDExists(ctx context.Context, nfcUID string) (bool, error) {
	if m.NFCUIDExistsFunc == nil {
		return false, nil
	}
	return m.NFCUIDExistsFunc(ctx, nfcUID)
}

func (m *userStoreMock) Batches() [][]domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

type txManagerMock struct {
	calls int
}

func (m *txManagerMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}
