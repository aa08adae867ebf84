// Package server exposes the profiling and cleaning engine over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/insightduck/insightduck/internal/auth"
	"github.com/insightduck/insightduck/internal/chart"
	"github.com/insightduck/insightduck/internal/cleaning"
	"github.com/insightduck/insightduck/internal/ingest"
	"github.com/insightduck/insightduck/internal/profile"
	"github.com/insightduck/insightduck/internal/projects"
	"github.com/insightduck/insightduck/internal/secrets"
	"github.com/insightduck/insightduck/internal/store"
)

// Config holds the server's collaborators and listener settings.
type Config struct {
	Host     string
	Port     int
	Workers  int
	Store    *store.Accessor
	Meta     *projects.Store
	Resolver auth.UserResolver
	// Box seals stored Kaggle credentials. Optional.
	Box *secrets.Box
	// Chat powers chart suggestions. Optional.
	Chat   chart.ChatClient
	Logger *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	host     string
	port     int
	workers  int
	store    *store.Accessor
	meta     *projects.Store
	resolver auth.UserResolver
	box      *secrets.Box

	profiler  *profile.Profiler
	cleaner   *cleaning.Cleaner
	projector *chart.Projector
	suggester *chart.Suggester
	loader    *ingest.Loader

	logger *slog.Logger

	// nextWorker round-robins requests across cached store connections.
	nextWorker atomic.Int64

	// locks serializes mutating operations per project.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewServer creates a server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	s := &Server{
		host:      cfg.Host,
		port:      cfg.Port,
		workers:   workers,
		store:     cfg.Store,
		meta:      cfg.Meta,
		resolver:  cfg.Resolver,
		box:       cfg.Box,
		profiler:  profile.NewProfiler(cfg.Store, logger),
		cleaner:   cleaning.NewCleaner(cfg.Store, logger),
		projector: chart.NewProjector(cfg.Store, logger),
		loader:    ingest.NewLoader(cfg.Store, logger),
		logger:    logger,
		locks:     make(map[int64]*sync.Mutex),
	}
	if cfg.Chat != nil {
		s.suggester = chart.NewSuggester(s.profiler, cfg.Chat, logger)
	}
	return s
}

// Routes builds the full router.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate, s.assignWorker)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/upload", s.handleUpload)
			r.Post("/kaggle", s.handleKaggleImport)
			r.Post("/kaggle/credentials", s.handleSaveKaggleCredentials)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Use(s.withProject)
				r.Delete("/", s.handleDeleteProject)

				r.Get("/profile", s.handleProfile)
				r.Get("/summary", s.handleSummary)
				r.Get("/insights", s.handleInsights)
				r.Get("/conversion-suggestions", s.handleConversionSuggestions)
				r.Get("/duplicates", s.handleFindDuplicates)
				r.Get("/chart-data", s.handleChartData)
				r.Get("/chart-suggestions", s.handleChartSuggestions)
				r.Get("/export", s.handleExport)

				r.Post("/conversions", s.handleConversions)
				r.Post("/duplicates/handle", s.handleHandleDuplicates)
				r.Post("/impute", s.handleImpute)
				r.Post("/auto-clean", s.handleAutoClean)
			})
		})
	})

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.logger.Info("starting api server", "addr", addr, "workers", s.workers)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down api server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// projectLock returns the mutex serializing mutations of one project.
func (s *Server) projectLock(projectID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[projectID] = lock
	}
	return lock
}
