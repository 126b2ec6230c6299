// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/larderhq/larder/internal/config"
	"github.com/larderhq/larder/internal/extraction"
	"github.com/larderhq/larder/internal/extractor"
	"github.com/larderhq/larder/internal/home"
	"github.com/larderhq/larder/internal/jobs"
	"github.com/larderhq/larder/internal/jobstore"
	"github.com/larderhq/larder/internal/recipes"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store     jobstore.Store
	Recipes   *recipes.Store
	Pipeline  *extraction.Pipeline
	Scheduler *jobs.Scheduler
	Extractor extractor.PageExtractor
	ConfigMgr *config.Manager
	Home      *home.Dir
	Logger    *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the job store from context.
func StoreFrom(ctx context.Context) jobstore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// PipelineFrom extracts the extraction pipeline from context.
func PipelineFrom(ctx context.Context) *extraction.Pipeline {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pipeline
	}
	return nil
}

// SchedulerFrom extracts the scheduler from context.
func SchedulerFrom(ctx context.Context) *jobs.Scheduler {
	if s := ServicesFrom(ctx); s != nil {
		return s.Scheduler
	}
	return nil
}

// RecipesFrom extracts the recipe store from context.
func RecipesFrom(ctx context.Context) *recipes.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Recipes
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigMgr
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// LoggerFrom extracts the logger from context.
// Returns slog.Default() if not present so callers can log unconditionally.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
