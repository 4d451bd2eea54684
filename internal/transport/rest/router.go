package rest

import (
	"net/http"

	"github.com/heartmarshall/nfc-fortune-backend/internal/transport/middleware"
)

// Routes collects the handlers and per-route middleware mounted by NewRouter.
type Routes struct {
	Fortune *FortuneHandler
	User    *UserHandler
	Health  *HealthHandler
	Metrics http.Handler

	// PublicLimit wraps the endpoints the NFC landing page calls.
	PublicLimit middleware.Middleware
	// BatchAuth guards the batch trigger.
	BatchAuth middleware.Middleware
}

// NewRouter registers every HTTP endpoint. Cross-cutting middleware (request
// id, client ip, logging, recovery, CORS) is applied by the caller.
func NewRouter(rt Routes) *http.ServeMux {
	public := middleware.Chain(rt.PublicLimit)
	batchAuth := middleware.Chain(rt.BatchAuth)

	mux := http.NewServeMux()

	mux.Handle("GET /fortune/{nfcUid}", public(http.HandlerFunc(rt.Fortune.GetFortune)))
	mux.Handle("GET /users/check/{nfcUid}", public(http.HandlerFunc(rt.Fortune.CheckUser)))
	if rt.User != nil {
		mux.Handle("POST /users", public(http.HandlerFunc(rt.User.Register)))
	}
	mux.Handle("POST /fortune/batch", batchAuth(http.HandlerFunc(rt.Fortune.RunBatch)))

	mux.HandleFunc("GET /live", rt.Health.Live)
	mux.HandleFunc("GET /ready", rt.Health.Ready)
	mux.HandleFunc("GET /health", rt.Health.Health)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	return mux
}
