//go:build e2e

package e2e_test

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	fortunerepo "github.com/heartmarshall/nfc-fortune-backend/internal/adapter/postgres/fortune"
	"github.com/heartmarshall/nfc-fortune-backend/internal/adapter/postgres/testhelper"
	userrepo "github.com/heartmarshall/nfc-fortune-backend/internal/adapter/postgres/user"
	"github.com/heartmarshall/nfc-fortune-backend/internal/adapter/provider/amap"
	"github.com/heartmarshall/nfc-fortune-backend/internal/adapter/provider/llm"
	"github.com/heartmarshall/nfc-fortune-backend/internal/config"
	"github.com/heartmarshall/nfc-fortune-backend/internal/service/aiclient"
	"github.com/heartmarshall/nfc-fortune-backend/internal/service/fortune"
	"github.com/heartmarshall/nfc-fortune-backend/internal/service/prompt"
	usersvc "github.com/heartmarshall/nfc-fortune-backend/internal/service/user"
	"github.com/heartmarshall/nfc-fortune-backend/internal/transport/middleware"
	"github.com/heartmarshall/nfc-fortune-backend/internal/transport/rest"
)

const (
	batchToken        = "e2e-batch-token"
	placeholderPrefix = "待注册用户_"
)

// testServer wraps the full HTTP stack backed by a real PostgreSQL and fake
// completion and AMap endpoints.
type testServer struct {
	URL     string
	Client  *http.Client
	Pool    *pgxpool.Pool
	AICalls *atomic.Int64
}

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

const fortuneReply = `{"overallRating":4,"healthFortune":"精神不错","healthSuggestion":"多喝水","wealthFortune":"小有收获","interpersonalFortune":"与家人和睦","luckyColor":"红色","actionSuggestion":"散步半小时"}`

// newFakeOpenAI serves chat completions whose content is fortuneReply.
func newFakeOpenAI(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		content, _ := json.Marshal(fortuneReply)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"cmpl-1","object":"chat.completion","created":%d,"model":"gpt-test",`+
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%s}}],`+
			`"usage":{"prompt_tokens":10,"completion_tokens":20,"total_tokens":30}}`,
			time.Now().Unix(), content)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newFakeAMap answers every lookup with a failure status, so fortunes are
// generated with a degraded context.
func newFakeAMap(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"0","info":"INVALID_USER_KEY","infocode":"10001"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupTestServer bootstraps the application stack with the given generation
// mode.
func setupTestServer(t *testing.T, mode string) *testServer {
	t.Helper()

	pool := testhelper.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(testLogWriter{t}, nil))

	calls := &atomic.Int64{}
	aiSrv := newFakeOpenAI(t, calls)
	amapSrv := newFakeAMap(t)

	aiCfg := config.AIConfig{
		Provider:        config.AIProviderOpenAI,
		Endpoint:        aiSrv.URL + "/v1/chat/completions",
		APIKey:          "test-key",
		Model:           "gpt-test",
		Timeout:         5 * time.Second,
		Temperature:     0.7,
		MaxTokens:       1000,
		RetryBaseDelay:  10 * time.Millisecond,
		RetryMultiplier: 2,
		RetryMaxDelay:   50 * time.Millisecond,
		MaxRetries:      1,
	}
	ai := aiclient.NewClient(llm.New(aiCfg, logger), aiclient.ConfigFrom(aiCfg), logger)

	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	users := userrepo.New(pool)
	svc := fortune.NewService(
		logger,
		users,
		fortunerepo.New(pool),
		amap.NewProviderWithURL(amapSrv.URL, "test-key", nil, logger),
		prompt.NewBuilder(1, 5),
		ai,
		fortune.Config{
			Location:          shanghai,
			OnDemand:          mode == config.GenerationModeOnDemand,
			RatingMin:         1,
			RatingMax:         5,
			ClampRating:       true,
			PlaceholderPrefix: placeholderPrefix,
			Batch: fortune.BatchConfig{
				WindowSize:    5,
				MaxConcurrent: 2,
				MaxErrors:     10,
			},
		},
	)

	limiter := middleware.NewRateLimiter(time.Minute)
	t.Cleanup(limiter.Stop)

	mux := rest.NewRouter(rest.Routes{
		Fortune:     rest.NewFortuneHandler(svc, time.Minute, logger),
		User:        rest.NewUserHandler(usersvc.NewService(logger, users, placeholderPrefix), logger),
		Health:      rest.NewHealthHandler(pool, "test-version"),
		Metrics:     promhttp.Handler(),
		PublicLimit: limiter.Limit(100),
		BatchAuth:   middleware.BearerToken(batchToken),
	})

	handler := middleware.Chain(
		middleware.RequestID(),
		middleware.ClientIP(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.CORS(config.CORSConfig{
			AllowedOrigins: "*",
			AllowedMethods: "GET,POST,OPTIONS",
			AllowedHeaders: "Authorization,Content-Type",
			MaxAge:         86400,
		}),
	)(mux)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		URL:     srv.URL,
		Client:  srv.Client(),
		Pool:    pool,
		AICalls: calls,
	}
}

// getJSON issues a GET and decodes the JSON body.
func (ts *testServer) getJSON(t *testing.T, path string) (int, map[string]any) {
	t.Helper()

	resp, err := ts.Client.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

// postJSON issues a POST with a JSON body and decodes the JSON reply.
func (ts *testServer) postJSON(t *testing.T, path, body string) (int, map[string]any) {
	t.Helper()

	resp, err := ts.Client.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// postBatch triggers a batch run with the given token.
func (ts *testServer) postBatch(t *testing.T, variant, token string) (int, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/fortune/batch?variant="+variant, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

// todayShanghai is the fortune date the service stores for "now".
func todayShanghai(t *testing.T) time.Time {
	t.Helper()

	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	return fortune.DayStart(time.Now(), loc)
}
