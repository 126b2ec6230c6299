// Package server is the larder HTTP server: job submission, polling and
// cancellation over the endpoint registry, plus the lifecycle of the job
// store and the task scheduler.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/larderhq/larder/internal/api"
	"github.com/larderhq/larder/internal/config"
	"github.com/larderhq/larder/internal/extraction"
	"github.com/larderhq/larder/internal/extractor"
	"github.com/larderhq/larder/internal/home"
	"github.com/larderhq/larder/internal/jobs"
	"github.com/larderhq/larder/internal/jobstore"
	"github.com/larderhq/larder/internal/pdfdoc"
	"github.com/larderhq/larder/internal/recipes"
	"github.com/larderhq/larder/internal/server/endpoints"
	"github.com/larderhq/larder/internal/svcctx"
)

// Server is the main larder HTTP server.
// It owns the embedded job store and the task scheduler, opening both on
// start and closing them on shutdown.
type Server struct {
	httpServer *http.Server
	home       *home.Dir
	configMgr  *config.Manager
	logger     *slog.Logger

	store     *jobstore.BadgerStore
	scheduler *jobs.Scheduler
	pipeline  *extraction.Pipeline

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the larder home directory (job store, originals, page images)
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
	// Extractor overrides the config-selected page extractor (tests)
	Extractor extractor.PageExtractor
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	s := &Server{
		home:      cfg.Home,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	appCfg := cfg.ConfigManager.Get()

	ext := cfg.Extractor
	if ext == nil {
		var err error
		ext, err = buildExtractor(appCfg)
		if err != nil {
			return nil, err
		}
	}

	// Extractor settings are read once at startup; config file edits to the
	// extractor section apply on the next start.
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		cfg.Logger.Info("configuration reloaded; extractor and lane changes apply on restart")
	})

	s.services = &svcctx.Services{
		Extractor: ext,
		ConfigMgr: cfg.ConfigManager,
		Home:      cfg.Home,
		Logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{MaxUploadBytes: appCfg.MaxUploadBytes()}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// buildExtractor selects the page extractor from configuration.
func buildExtractor(cfg *config.Config) (extractor.PageExtractor, error) {
	switch cfg.Extractor.Type {
	case "", "openai":
		key := cfg.ResolvedAPIKey()
		if key == "" {
			return nil, errors.New("extractor.api_key is not set (export OPENAI_API_KEY or edit config.yaml)")
		}
		return extractor.NewOpenAIExtractor(extractor.OpenAIConfig{
			APIKey:    key,
			Model:     cfg.Extractor.Model,
			RateLimit: cfg.Extractor.RateLimit,
		}), nil
	case "mock":
		return extractor.NewMockExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown extractor type: %s", cfg.Extractor.Type)
	}
}

// Start starts the server, opening the job store and launching the task
// scheduler. It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.home.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to prepare home directory: %w", err)
	}

	store, err := jobstore.Open(s.home.DBPath(), s.logger)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open job store: %w", err)
	}
	s.store = store

	appCfg := s.configMgr.Get()

	s.scheduler = jobs.NewScheduler(jobs.SchedulerConfig{
		Logger:            s.logger,
		FanoutWorkers:     appCfg.Extraction.FanoutWorkers,
		ExtractionWorkers: appCfg.Extraction.ExtractionWorkers,
	})

	recipeStore := recipes.NewStore(store.DB(), s.logger)

	s.pipeline = extraction.NewPipeline(extraction.PipelineConfig{
		Store:     store,
		Recipes:   recipeStore,
		Extractor: s.services.Extractor,
		Home:      s.home,
		Scheduler: s.scheduler,
		Logger:    s.logger,
		Limits: pdfdoc.Limits{
			MaxBytes: appCfg.MaxUploadBytes(),
			MaxPages: appCfg.Extraction.MaxPages,
		},
		RenderOptions: pdfdoc.RenderOptions{
			DPI:    appCfg.Extraction.RenderDPI,
			Format: appCfg.Extraction.RenderFormat,
		},
		PageTimeout:     appCfg.Extraction.PageTimeout,
		DocumentTimeout: appCfg.Extraction.DocumentTimeout,
	})

	s.services.Store = store
	s.services.Recipes = recipeStore
	s.services.Scheduler = s.scheduler
	s.services.Pipeline = s.pipeline

	// Lanes run until the server context is cancelled.
	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	go s.scheduler.Start(schedCtx)

	// Periodic value-log GC keeps the embedded store compact as job and
	// recipe rows churn.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-schedCtx.Done():
				return
			case <-ticker.C:
				if err := store.RunGC(); err != nil {
					s.logger.Warn("job store GC", "error", err)
				}
			}
		}
	}()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and the job store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("job store close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Pipeline returns the extraction pipeline.
// Returns nil if the server hasn't started yet.
func (s *Server) Pipeline() *extraction.Pipeline {
	return s.pipeline
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices enriches each request context with the core services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), s.services)))
	})
}

// requireInit rejects requests until the job store and scheduler are up.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		ready := s.running && s.store != nil
		s.mu.RUnlock()
		if !ready {
			http.Error(w, `{"error":"server is still initializing"}`, http.StatusServiceUnavailable)
			return
		}
		next(w, r)
	}
}
