// Package extraction orchestrates document extraction jobs: one fan-out task
// per uploaded document, one extraction task per page, and the read path that
// folds the page rows back into a single reported status.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/larderhq/larder/internal/extractor"
	"github.com/larderhq/larder/internal/home"
	"github.com/larderhq/larder/internal/jobs"
	"github.com/larderhq/larder/internal/jobstore"
	"github.com/larderhq/larder/internal/pdfdoc"
	"github.com/larderhq/larder/internal/recipes"
)

// TaskSubmitter dispatches tasks onto a named lane.
type TaskSubmitter interface {
	Submit(lane string, task jobs.Task) error
}

// PipelineConfig configures a new pipeline.
type PipelineConfig struct {
	Store     jobstore.Store
	Recipes   *recipes.Store
	Extractor extractor.PageExtractor
	Home      *home.Dir
	Scheduler TaskSubmitter
	Logger    *slog.Logger

	Limits          pdfdoc.Limits
	RenderOptions   pdfdoc.RenderOptions
	PageTimeout     time.Duration // per-page extraction ceiling (default 5m)
	DocumentTimeout time.Duration // whole-document fan-out ceiling (default 45m)

	// Inspect and RenderPage override the pdfcpu/pdftoppm implementations.
	// Optional (tests).
	Inspect    func(data []byte, limits pdfdoc.Limits) (pdfdoc.Info, error)
	RenderPage func(pdfPath string, pageNumber int, opts pdfdoc.RenderOptions) ([]byte, error)
}

// Pipeline owns the extraction job lifecycle from upload to aggregate status.
type Pipeline struct {
	store     jobstore.Store
	recipes   *recipes.Store
	extractor extractor.PageExtractor
	home      *home.Dir
	scheduler TaskSubmitter
	logger    *slog.Logger

	limits          pdfdoc.Limits
	renderOpts      pdfdoc.RenderOptions
	pageTimeout     time.Duration
	documentTimeout time.Duration

	inspect    func(data []byte, limits pdfdoc.Limits) (pdfdoc.Info, error)
	renderPage func(pdfPath string, pageNumber int, opts pdfdoc.RenderOptions) ([]byte, error)
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 5 * time.Minute
	}
	if cfg.DocumentTimeout <= 0 {
		cfg.DocumentTimeout = 45 * time.Minute
	}
	if cfg.Inspect == nil {
		cfg.Inspect = pdfdoc.Inspect
	}
	if cfg.RenderPage == nil {
		cfg.RenderPage = pdfdoc.RenderPage
	}
	return &Pipeline{
		store:           cfg.Store,
		recipes:         cfg.Recipes,
		extractor:       cfg.Extractor,
		home:            cfg.Home,
		scheduler:       cfg.Scheduler,
		logger:          logger.With("component", "extraction"),
		limits:          cfg.Limits,
		renderOpts:      cfg.RenderOptions,
		pageTimeout:     cfg.PageTimeout,
		documentTimeout: cfg.DocumentTimeout,
		inspect:         cfg.Inspect,
		renderPage:      cfg.RenderPage,
	}
}

// SubmitDocument validates the upload synchronously, creates the parent job
// and queues the fan-out task. Validation failures return a typed error from
// pdfdoc and create no job.
func (p *Pipeline) SubmitDocument(ctx context.Context, userID string, data []byte, hints extractor.Hints) (string, error) {
	if userID == "" {
		return "", errors.New("user ID is required")
	}

	if _, err := p.inspect(data, p.limits); err != nil {
		return "", err
	}

	jobID := uuid.New().String()

	if err := p.home.EnsureExists(); err != nil {
		return "", fmt.Errorf("failed to prepare storage: %w", err)
	}
	if err := os.WriteFile(p.home.OriginalPath(jobID), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store document: %w", err)
	}

	job := &jobstore.DocumentJob{
		ID:     jobID,
		UserID: userID,
		Status: jobstore.ParentPending,
		Locale: hints.Locale,
		Region: hints.Region,
	}
	if err := p.store.CreateParent(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	task := p.newDocumentTask(jobID, userID, hints)
	if err := p.scheduler.Submit(jobs.LaneFanout, task); err != nil {
		// The row exists; record why it will never run.
		_ = p.store.SetParentStatus(ctx, jobID, jobstore.ParentFailed, "could not queue document for processing")
		return "", fmt.Errorf("failed to queue document: %w", err)
	}

	p.logger.Info("document submitted", "job_id", jobID, "user_id", userID, "bytes", len(data))
	return jobID, nil
}
