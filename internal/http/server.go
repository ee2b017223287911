// Package http exposes the variance reporting engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"previsto/internal/cache"
	"previsto/internal/core"
	"previsto/internal/log"
	"previsto/internal/middleware/ratelimit"
	"previsto/internal/middleware/security"
	"previsto/internal/middleware/trace"
	"previsto/internal/services"
)

// handlerTimeout bounds a single report request, including the fan-out
// queries behind it.
const handlerTimeout = 7 * time.Second

type Server struct {
	http.Server

	reports     *services.VarianceReportService
	reportCache cache.Cache[core.VarianceReport]
	limiter     *ratelimit.Limiter
	logger      *log.Logger
}

// NewServer wires routes and middleware. reportCache may be shared with the
// background worker so warmed reports are served without recomputation.
func NewServer(addr string, reports *services.VarianceReportService, reportCache cache.Cache[core.VarianceReport], logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reports:     reports,
		reportCache: reportCache,
		limiter:     ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		logger:      logger,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/plans/{id}/variance-report", s.handleVarianceReport)
	mux.HandleFunc("GET /api/plans/{id}/variance/categories", s.handleCategoryVariances)
	mux.HandleFunc("GET /api/plans/{id}/variance/vendors", s.handleVendorVariances)
	mux.HandleFunc("GET /api/plans/{id}/variance/largest", s.handleLargestVariances)
	mux.HandleFunc("GET /api/plans/{id}/variance/critical", s.handleCriticalVariances)
	mux.HandleFunc("GET /api/variance/trends", s.handleVarianceTrends)

	ipResolver := security.NewIPResolver()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(ipResolver.ExtractClientIP)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(ipResolver.ExtractClientIP, nil)(handler)
	handler = headers.Middleware(handler)
	handler = tracer.Middleware(handler)
	s.Handler = handler

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
