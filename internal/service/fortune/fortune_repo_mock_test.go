package fortune

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

var _ fortuneRepo = &fortuneRepoMock{}

type fortuneRepoMock struct {
	GetByUserAndDateFunc func(ctx context.Context, userID uuid.UUID, day time.Time) (*domain.Fortune, error)
	HasFortuneFunc       func(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error)
	UpsertFunc           func(ctx context.Context, f domain.Fortune) (*domain.Fortune, error)

	calls struct {
		GetByUserAndDate []struct {
			UserID uuid.UUID
			Day    time.Time
		}
		Upsert []struct {
			F domain.Fortune
		}
	}
	lockGetByUserAndDate sync.RWMutex
	lockUpsert           sync.RWMutex
}

func (mock *fortuneRepoMock) GetByUserAndDate(ctx context.Context, userID uuid.UUID, day time.Time) (*domain.Fortune, error) {
	if mock.GetByUserAndDateFunc == nil {
		panic("fortuneRepoMock.GetByUserAndDateFunc: method is nil but fortuneRepo.GetByUserAndDate was just called")
	}
	callInfo := struct {
		UserID uuid.UUID
		Day    time.Time
	}{UserID: userID, Day: day}
	mock.lockGetByUserAndDate.Lock()
	mock.calls.GetByUserAndDate = append(mock.calls.GetByUserAndDate, callInfo)
	mock.lockGetByUserAndDate.Unlock()
	return mock.GetByUserAndDateFunc(ctx, userID, day)
}

func (mock *fortuneRepoMock) GetByUserAndDateCalls() []struct {
	UserID uuid.UUID
	Day    time.Time
} {
	mock.lockGetByUserAndDate.RLock()
	calls := mock.calls.GetByUserAndDate
	mock.lockGetByUserAndDate.RUnlock()
	return calls
}

func (mock *fortuneRepoMock) HasFortune(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error) {
	if mock.HasFortuneFunc == nil {
		panic("fortuneRepoMock.HasFortuneFunc: method is nil but fortuneRepo.HasFortune was just called")
	}
	return mock.HasFortuneFunc(ctx, userID, day)
}

func (mock *fortuneRepoMock) Upsert(ctx context.Context, f domain.Fortune) (*domain.Fortune, error) {
	if mock.UpsertFunc == nil {
		panic("fortuneRepoMock.UpsertFunc: method is nil but fortuneRepo.Upsert was just called")
	}
	mock.lockUpsert.Lock()
	mock.calls.Upsert = append(mock.calls.Upsert, struct{ F domain.Fortune }{F: f})
	mock.lockUpsert.Unlock()
	return mock.UpsertFunc(ctx, f)
}

func (mock *fortuneRepoMock) UpsertCalls() []struct{ F domain.Fortune } {
	mock.lockUpsert.RLock()
	calls := mock.calls.Upsert
	mock.lockUpsert.RUnlock()
	return calls
}
