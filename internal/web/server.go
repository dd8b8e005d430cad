// Package web provides the HTTP surface of the catalog import service.
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mosaicly/catalog/internal/config"
	"github.com/mosaicly/catalog/internal/importer"
	mw "github.com/mosaicly/catalog/internal/web/middleware"
)

// Server is the HTTP server for the import API.
type Server struct {
	importer *importer.Importer
	pool     *pgxpool.Pool
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server

	mu      sync.Mutex
	history map[string]*finishedImport
	order   []string // insertion order, for eviction
}

// finishedImport is one retained import report.
type finishedImport struct {
	ID         string           `json:"id"`
	Kind       string           `json:"kind"`
	FinishedAt time.Time        `json:"finishedAt"`
	Report     *importer.Report `json:"report"`
}

// NewServer creates a Server and wires its routes.
func NewServer(imp *importer.Importer, pool *pgxpool.Pool, cfg *config.Config) *Server {
	s := &Server{
		importer: imp,
		pool:     pool,
		cfg:      cfg,
		router:   chi.NewRouter(),
		history:  make(map[string]*finishedImport),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/imports/{kind}", s.handleImport)
		r.Get("/imports", s.handleListImports)
		r.Get("/imports/{importID}", s.handleGetImport)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// remember retains a finished report, evicting the oldest beyond the
// configured history size.
func (s *Server) remember(fi *finishedImport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[fi.ID] = fi
	s.order = append(s.order, fi.ID)
	for len(s.order) > s.cfg.Import.HistorySize {
		delete(s.history, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Server) lookup(id string) (*finishedImport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fi, ok := s.history[id]
	return fi, ok
}

func (s *Server) recent() []*finishedImport {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*finishedImport, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.history[s.order[i]])
	}
	return out
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
