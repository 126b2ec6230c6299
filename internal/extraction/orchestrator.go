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

// TypeDocument identifies the per-document fan-out task.
const TypeDocument = "document_fanout"

// DocumentTask fans one uploaded document out into page tasks. It runs at
// most once: a partially fanned-out job must never be re-run, since that
// would duplicate page rows.
type DocumentTask struct {
	pipeline *Pipeline
	jobID    string
	userID   string
	hints    extractor.Hints
}

var _ jobs.Task = (*DocumentTask)(nil)

func (p *Pipeline) newDocumentTask(jobID, userID string, hints extractor.Hints) *DocumentTask {
	return &DocumentTask{pipeline: p, jobID: jobID, userID: userID, hints: hints}
}

func (t *DocumentTask) Type() string           { return TypeDocument }
func (t *DocumentTask) JobID() string          { return t.jobID }
func (t *DocumentTask) MaxAttempts() int       { return 1 }
func (t *DocumentTask) Timeout() time.Duration { return t.pipeline.documentTimeout }

// Execute inspects the stored document, renders every page and schedules one
// page task per page, creating each page row before the task is queued.
// Pages are fanned out in page-number order so a poll never sees page 5
// before page 3 exists.
func (t *DocumentTask) Execute(ctx context.Context) error {
	p := t.pipeline

	if err := p.store.SetParentStatus(ctx, t.jobID, jobstore.ParentProcessing, ""); err != nil {
		// Cancelled (or otherwise finished) while queued; nothing to fan out.
		if errors.Is(err, jobstore.ErrTerminal) {
			p.logger.Info("job already terminal, skipping fan-out", "job_id", t.jobID)
			return nil
		}
		return fmt.Errorf("failed to mark job processing: %w", err)
	}

	pdfPath := p.home.OriginalPath(t.jobID)
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return fmt.Errorf("failed to read stored document: %w", err)
	}

	info, err := p.inspect(data, p.limits)
	if err != nil {
		return fmt.Errorf("document inspection failed: %w", err)
	}

	if err := p.store.SetParentPageCount(ctx, t.jobID, info.PageCount); err != nil {
		return fmt.Errorf("failed to record page count: %w", err)
	}

	p.logger.Info("fanning out document", "job_id", t.jobID, "pages", info.PageCount)

	if info.PageCount > 0 {
		if err := p.home.EnsurePagesDir(t.jobID); err != nil {
			return fmt.Errorf("failed to prepare page directory: %w", err)
		}
	}

	for page := 1; page <= info.PageCount; page++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("fan-out interrupted at page %d: %w", page, err)
		}

		image, err := p.renderPage(pdfPath, page, p.renderOpts)
		if err != nil {
			return fmt.Errorf("failed to render page %d: %w", page, err)
		}
		if err := os.WriteFile(p.home.PageImagePath(t.jobID, page), image, 0o644); err != nil {
			return fmt.Errorf("failed to store page %d image: %w", page, err)
		}

		child := &jobstore.PageJob{
			JobID:      t.jobID,
			PageNumber: page,
			Status:     jobstore.PagePending,
		}
		if err := p.store.CreateChild(ctx, child); err != nil {
			return fmt.Errorf("failed to create page %d row: %w", page, err)
		}

		if err := p.scheduler.Submit(jobs.LaneExtraction, p.newPageTask(t.jobID, t.userID, page, t.hints)); err != nil {
			return fmt.Errorf("failed to queue page %d: %w", page, err)
		}
	}

	if err := p.store.SetParentStatus(ctx, t.jobID, jobstore.ParentPagesQueued, ""); err != nil {
		// Cancelled mid-fan-out; the queued page tasks stand down on their own.
		if errors.Is(err, jobstore.ErrTerminal) {
			p.logger.Info("job cancelled during fan-out", "job_id", t.jobID)
			return nil
		}
		return fmt.Errorf("failed to mark job pages queued: %w", err)
	}

	p.logger.Info("fan-out complete", "job_id", t.jobID, "pages", info.PageCount)
	return nil
}

// OnFailure records the job as failed. Already-scheduled page tasks still run
// to their own terminal states; the aggregate status reports failed either way.
func (t *DocumentTask) OnFailure(ctx context.Context, err error) {
	p := t.pipeline
	p.logger.Error("document fan-out failed", "job_id", t.jobID, "error", err)
	if serr := p.store.SetParentStatus(ctx, t.jobID, jobstore.ParentFailed, err.Error()); serr != nil && !errors.Is(serr, jobstore.ErrTerminal) {
		p.logger.Error("failed to record job failure", "job_id", t.jobID, "error", serr)
	}
	if rerr := p.home.RemoveJobFiles(t.jobID); rerr != nil {
		p.logger.Warn("failed to remove job files", "job_id", t.jobID, "error", rerr)
	}
}
