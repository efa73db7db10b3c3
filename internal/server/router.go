package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/maruel/jsonkv/internal/server/handlers"
)

// Config configures the router.
type Config struct {
	// Gatherer serves /metrics. nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// WritesPerSecond limits mutating requests. 0 means unlimited.
	WritesPerSecond float64
	// WriteBurst is the number of mutating requests allowed at once.
	WriteBurst int
}

// NewRouter creates and configures the HTTP router.
func NewRouter(store handlers.Store, cfg Config) http.Handler {
	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store)
	keyHandler := handlers.NewKeyHandler(store)

	limit := rate.Inf
	if cfg.WritesPerSecond > 0 {
		limit = rate.Limit(cfg.WritesPerSecond)
	}
	writes := LimitWrites(rate.NewLimiter(limit, max(cfg.WriteBurst, 1)))

	mux.Handle("GET /api/health", Wrap(healthHandler.Health))

	mux.Handle("GET /api/keys/{path...}", Wrap(keyHandler.GetKey))
	mux.Handle("PUT /api/keys/{path...}", writes(Wrap(keyHandler.SetKey)))
	mux.Handle("GET /api/children", Wrap(keyHandler.ListChildren))
	mux.Handle("GET /api/tree/{path...}", Wrap(keyHandler.GetTree))
	mux.Handle("PUT /api/tree/{path...}", writes(Wrap(keyHandler.ReplaceTree)))
	mux.Handle("POST /api/flush", writes(Wrap(keyHandler.Flush)))

	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	}
	return LogRequests(mux)
}
