package fortune

import (
	"context"
	"sync"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
	"github.com/heartmarshall/nfc-fortune-backend/internal/service/aiclient"
)

var (
	_ contextProvider = &contextProviderMock{}
	_ promptBuilder   = &promptBuilderMock{}
	_ aiClient        = &aiClientMock{}
)

type contextProviderMock struct {
	LocationByIPFunc    func(ctx context.Context, ip string) *domain.LocationInfo
	LocationByPlaceFunc func(ctx context.Context, place string) *domain.LocationInfo
	WeatherFunc         func(ctx context.Context, regionCode string) *domain.WeatherSnapshot

	mu    sync.Mutex
	calls int
}

func (mock *contextProviderMock) count() {
	mock.mu.Lock()
	mock.calls++
	mock.mu.Unlock()
}

func (mock *contextProviderMock) LocationByIP(ctx context.Context, ip string) *domain.LocationInfo {
	if mock.LocationByIPFunc == nil {
		panic("contextProviderMock.LocationByIPFunc: method is nil but contextProvider.LocationByIP was just called")
	}
	mock.count()
	return mock.LocationByIPFunc(ctx, ip)
}

func (mock *contextProviderMock) LocationByPlace(ctx context.Context, place string) *domain.LocationInfo {
	if mock.LocationByPlaceFunc == nil {
		panic("contextProviderMock.LocationByPlaceFunc: method is nil but contextProvider.LocationByPlace was just called")
	}
	mock.count()
	return mock.LocationByPlaceFunc(ctx, place)
}

func (mock *contextProviderMock) Weather(ctx context.Context, regionCode string) *domain.WeatherSnapshot {
	if mock.WeatherFunc == nil {
		panic("contextProviderMock.WeatherFunc: method is nil but contextProvider.Weather was just called")
	}
	mock.count()
	return mock.WeatherFunc(ctx, regionCode)
}

// Calls returns the number of lookups made through any method.
func (mock *contextProviderMock) Calls() int {
	mock.mu.Lock()
	defer mock.mu.Unlock()
	return mock.calls
}

type promptBuilderMock struct {
	BuildFunc func(profile domain.UserProfile, fctx *domain.FortuneContext) string

	mu    sync.Mutex
	calls []*domain.FortuneContext
}

func (mock *promptBuilderMock) Build(profile domain.UserProfile, fctx *domain.FortuneContext) string {
	if mock.BuildFunc == nil {
		panic("promptBuilderMock.BuildFunc: method is nil but promptBuilder.Build was just called")
	}
	mock.mu.Lock()
	mock.calls = append(mock.calls, fctx)
	mock.mu.Unlock()
	return mock.BuildFunc(profile, fctx)
}

func (mock *promptBuilderMock) BuildCalls() []*domain.FortuneContext {
	mock.mu.Lock()
	defer mock.mu.Unlock()
	return mock.calls
}

type aiClientMock struct {
	GenerateFunc func(ctx context.Context, prompt string) (*aiclient.Result, error)

	mu    sync.Mutex
	calls []string
}

func (mock *aiClientMock) Generate(ctx context.Context, prompt string) (*aiclient.Result, error) {
	if mock.GenerateFunc == nil {
		panic("aiClientMock.GenerateFunc: method is nil but aiClient.Generate was just called")
	}
	mock.mu.Lock()
	mock.calls = append(mock.calls, prompt)
	mock.mu.Unlock()
	return mock.GenerateFunc(ctx, prompt)
}

func (mock *aiClientMock) GenerateCalls() []string {
	mock.mu.Lock()
	defer mock.mu.Unlock()
	return mock.calls
}
