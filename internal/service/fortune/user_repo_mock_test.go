package fortune

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

var _ userRepo = &userRepoMock{}

type userRepoMock struct {
	GetByIDFunc      func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByNFCUIDFunc  func(ctx context.Context, nfcUID string) (*domain.User, error)
	ListEligibleFunc func(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)

	calls struct {
		GetByID []struct {
			ID uuid.UUID
		}
		GetByNFCUID []struct {
			NFCUID string
		}
		ListEligible []struct {
			Filter domain.UserFilter
		}
	}
	lockGetByID      sync.RWMutex
	lockGetByNFCUID  sync.RWMutex
	lockListEligible sync.RWMutex
}

func (mock *userRepoMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if mock.GetByIDFunc == nil {
		panic("userRepoMock.GetByIDFunc: method is nil but userRepo.GetByID was just called")
	}
	mock.lockGetByID.Lock()
	mock.calls.GetByID = append(mock.calls.GetByID, struct{ ID uuid.UUID }{ID: id})
	mock.lockGetByID.Unlock()
	return mock.GetByIDFunc(ctx, id)
}

func (mock *userRepoMock) GetByNFCUID(ctx context.Context, nfcUID string) (*domain.User, error) {
	if mock.GetByNFCUIDFunc == nil {
		panic("userRepoMock.GetByNFCUIDFunc: method is nil but userRepo.GetByNFCUID was just called")
	}
	mock.lockGetByNFCUID.Lock()
	mock.calls.GetByNFCUID = append(mock.calls.GetByNFCUID, struct{ NFCUID string }{NFCUID: nfcUID})
	mock.lockGetByNFCUID.Unlock()
	return mock.GetByNFCUIDFunc(ctx, nfcUID)
}

func (mock *userRepoMock) ListEligible(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	if mock.ListEligibleFunc == nil {
		panic("userRepoMock.ListEligibleFunc: method is nil but userRepo.ListEligible was just called")
	}
	mock.lockListEligible.Lock()
	mock.calls.ListEligible = append(mock.calls.ListEligible, struct{ Filter domain.UserFilter }{Filter: filter})
	mock.lockListEligible.Unlock()
	return mock.ListEligibleFunc(ctx, filter)
}

func (mock *userRepoMock) ListEligibleCalls() []struct{ Filter domain.UserFilter } {
	mock.lockListEligible.RLock()
	calls := mock.calls.ListEligible
	mock.lockListEligible.RUnlock()
	return calls
}
