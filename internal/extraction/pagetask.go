package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/larderhq/larder/internal/extractor"
	"github.com/larderhq/larder/internal/jobs"
	"github.com/larderhq/larder/internal/jobstore"
)

// TypePage identifies the per-page extraction task.
const TypePage = "page_extraction"

// pageMaxAttempts allows one retry for transient model failures. A page is
// cheap to re-run; a whole document is not.
const pageMaxAttempts = 2

// PageTask extracts one page of one document. Failures are isolated: a failed
// page never aborts its siblings.
type PageTask struct {
	pipeline   *Pipeline
	jobID      string
	userID     string
	pageNumber int
	hints      extractor.Hints
}

var _ jobs.Task = (*PageTask)(nil)

func (p *Pipeline) newPageTask(jobID, userID string, pageNumber int, hints extractor.Hints) *PageTask {
	return &PageTask{pipeline: p, jobID: jobID, userID: userID, pageNumber: pageNumber, hints: hints}
}

func (t *PageTask) Type() string           { return TypePage }
func (t *PageTask) JobID() string          { return t.jobID }
func (t *PageTask) MaxAttempts() int       { return pageMaxAttempts }
func (t *PageTask) Timeout() time.Duration { return t.pipeline.pageTimeout }

// Execute runs one extraction attempt. The cancellation check at the top is
// the task's only cancellation checkpoint: once past it, an in-flight model
// call runs to completion.
func (t *PageTask) Execute(ctx context.Context) error {
	p := t.pipeline

	parent, err := p.store.GetParent(ctx, t.jobID, t.userID)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			// Job deleted or no longer owned; nothing left to extract for.
			return t.setTerminal(ctx, jobstore.PageCancelled, nil)
		}
		return fmt.Errorf("failed to read parent job: %w", err)
	}
	if parent.Status == jobstore.ParentCancelled {
		p.logger.Debug("page skipped, job cancelled", "job_id", t.jobID, "page", t.pageNumber)
		return t.setTerminal(ctx, jobstore.PageCancelled, nil)
	}

	if err := p.store.SetChildRunning(ctx, t.jobID, t.pageNumber); err != nil {
		return fmt.Errorf("failed to mark page running: %w", err)
	}

	image, err := os.ReadFile(p.home.PageImagePath(t.jobID, t.pageNumber))
	if err != nil {
		return fmt.Errorf("failed to read page image: %w", err)
	}

	result, err := p.extractor.ExtractFromImage(ctx, image, t.hints)
	if err != nil {
		return fmt.Errorf("page extraction failed: %w", err)
	}

	if !result.Found {
		p.logger.Debug("no recipe on page", "job_id", t.jobID, "page", t.pageNumber)
		return t.setTerminal(ctx, jobstore.PageSkipped, nil)
	}

	ref, err := p.recipes.Persist(ctx, t.jobID, t.userID, t.pageNumber, result.Recipe)
	if err != nil {
		return fmt.Errorf("failed to persist recipe: %w", err)
	}

	p.logger.Info("page extracted", "job_id", t.jobID, "page", t.pageNumber, "recipe_id", ref.RecipeID, "title", ref.Title)
	return t.setTerminal(ctx, jobstore.PageCompleted, &ref)
}

// OnFailure records the page as failed after retries are exhausted.
func (t *PageTask) OnFailure(ctx context.Context, err error) {
	p := t.pipeline
	p.logger.Error("page extraction exhausted retries", "job_id", t.jobID, "page", t.pageNumber, "error", err)
	if serr := t.setTerminal(ctx, jobstore.PageFailed, nil); serr != nil {
		p.logger.Error("failed to record page failure", "job_id", t.jobID, "page", t.pageNumber, "error", serr)
	}
}

func (t *PageTask) setTerminal(ctx context.Context, status jobstore.PageStatus, ref *jobstore.RecipeRef) error {
	if err := t.pipeline.store.SetChildTerminal(ctx, t.jobID, t.pageNumber, status, ref); err != nil {
		return fmt.Errorf("failed to record page %s: %w", status, err)
	}
	return nil
}
