package extraction

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/larderhq/larder/internal/jobstore"
)

// Progress counts terminal pages against the document total.
type Progress struct {
	CurrentPage      int `json:"currentPage"`
	TotalPages       int `json:"totalPages"`
	RecipesExtracted int `json:"recipesExtracted"`
}

// Result is the aggregate view of one job, as reported to a polling client.
type Result struct {
	JobID        string                `json:"jobId"`
	Status       jobstore.ParentStatus `json:"status"`
	Progress     Progress              `json:"progress"`
	Recipes      []jobstore.RecipeRef  `json:"recipes"`
	SkippedPages []int                 `json:"skippedPages"`
	Error        string                `json:"error,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	CompletedAt  *time.Time            `json:"completedAt,omitempty"`
}

// Aggregate folds the parent row and its page rows into one reported status.
// Pure: reads its arguments, touches nothing else.
//
// Page rows may arrive out of completion order; recipes and skipped pages are
// sorted by page number before reporting.
func Aggregate(parent *jobstore.DocumentJob, children []jobstore.PageJob) Result {
	res := Result{
		JobID:        parent.ID,
		Progress:     Progress{TotalPages: parent.TotalPages},
		Recipes:      []jobstore.RecipeRef{},
		SkippedPages: []int{},
		CreatedAt:    parent.CreatedAt,
		CompletedAt:  parent.CompletedAt,
	}

	anyFailed := false
	allTerminal := true
	for _, c := range children {
		if c.Status.Terminal() {
			res.Progress.CurrentPage++
		} else {
			allTerminal = false
		}
		switch c.Status {
		case jobstore.PageCompleted:
			res.Recipes = append(res.Recipes, jobstore.RecipeRef{
				PageNumber: c.PageNumber,
				RecipeID:   c.RecipeID,
				Title:      c.RecipeTitle,
			})
		case jobstore.PageSkipped:
			res.SkippedPages = append(res.SkippedPages, c.PageNumber)
		case jobstore.PageFailed:
			anyFailed = true
		}
	}

	sort.Slice(res.Recipes, func(i, j int) bool { return res.Recipes[i].PageNumber < res.Recipes[j].PageNumber })
	sort.Ints(res.SkippedPages)
	res.Progress.RecipesExtracted = len(res.Recipes)

	switch parent.Status {
	case jobstore.ParentFailed:
		res.Status = jobstore.ParentFailed
		res.Error = parent.Error
	case jobstore.ParentCancelled:
		res.Status = jobstore.ParentCancelled
	case jobstore.ParentPending:
		res.Status = jobstore.ParentPending
	case jobstore.ParentProcessing:
		res.Status = jobstore.ParentProcessing
	default: // pages_queued or completed: fan-out finished
		switch {
		case parent.TotalPages == 0:
			// Nothing to wait for.
			res.Status = jobstore.ParentCompleted
		case anyFailed:
			res.Status = jobstore.ParentFailed
			res.Error = "one or more pages failed"
		case allTerminal && len(children) > 0:
			res.Status = jobstore.ParentCompleted
		default:
			res.Status = jobstore.ParentPagesQueued
		}
	}

	return res
}

// Status reads the parent and page rows for (jobID, userID) and aggregates
// them. Returns jobstore.ErrNotFound for missing and foreign jobs alike.
func (p *Pipeline) Status(ctx context.Context, jobID, userID string) (Result, error) {
	parent, err := p.store.GetParent(ctx, jobID, userID)
	if err != nil {
		return Result{}, err
	}
	children, err := p.store.ListChildren(ctx, jobID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list page jobs: %w", err)
	}
	return Aggregate(parent, children), nil
}
