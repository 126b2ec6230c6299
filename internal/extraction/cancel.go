package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/larderhq/larder/internal/jobstore"
)

// ErrAlreadyTerminal is returned when cancelling a job that already finished.
var ErrAlreadyTerminal = fmt.Errorf("job already finished")

// Cancel marks the job cancelled and transitions every pending or running
// page to cancelled. Best-effort: a page task already past its cancellation
// checkpoint runs to completion and keeps its own terminal state.
//
// Returns jobstore.ErrNotFound for missing and foreign jobs alike, and
// ErrAlreadyTerminal when the job has already reached a terminal state.
func (p *Pipeline) Cancel(ctx context.Context, jobID, userID string) error {
	parent, err := p.store.GetParent(ctx, jobID, userID)
	if err != nil {
		return err
	}
	if parent.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrAlreadyTerminal, parent.Status)
	}

	if err := p.store.SetParentStatus(ctx, jobID, jobstore.ParentCancelled, ""); err != nil {
		// Lost a race with the job finishing between the read and the write.
		if errors.Is(err, jobstore.ErrTerminal) {
			return fmt.Errorf("%w: %s", ErrAlreadyTerminal, parent.Status)
		}
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	n, err := p.store.CancelRemaining(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to cancel remaining pages: %w", err)
	}

	// A page task past its checkpoint may lose its image here and record
	// failed instead; the parent's cancelled state wins in aggregation.
	if err := p.home.RemoveJobFiles(jobID); err != nil {
		p.logger.Warn("failed to remove job files", "job_id", jobID, "error", err)
	}

	p.logger.Info("job cancelled", "job_id", jobID, "pages_cancelled", n)
	return nil
}
