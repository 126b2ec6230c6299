package extraction

import (
	"reflect"
	"testing"
	"time"

	"github.com/larderhq/larder/internal/jobstore"
)

func parentRow(status jobstore.ParentStatus, totalPages int) *jobstore.DocumentJob {
	return &jobstore.DocumentJob{
		ID:         "job-1",
		UserID:     "user-1",
		Status:     status,
		TotalPages: totalPages,
		CreatedAt:  time.Now().UTC(),
	}
}

func pageRow(page int, status jobstore.PageStatus) jobstore.PageJob {
	p := jobstore.PageJob{JobID: "job-1", PageNumber: page, Status: status}
	if status == jobstore.PageCompleted {
		p.RecipeID = "recipe-" + string(rune('0'+page))
		p.RecipeTitle = "Recipe"
	}
	return p
}

func TestAggregateAllPagesCompleted(t *testing.T) {
	children := []jobstore.PageJob{
		pageRow(1, jobstore.PageCompleted),
		pageRow(2, jobstore.PageCompleted),
		pageRow(3, jobstore.PageCompleted),
	}

	res := Aggregate(parentRow(jobstore.ParentPagesQueued, 3), children)

	if res.Status != jobstore.ParentCompleted {
		t.Errorf("status = %s, want completed", res.Status)
	}
	if res.Progress.CurrentPage != 3 || res.Progress.TotalPages != 3 {
		t.Errorf("progress = %+v, want 3/3", res.Progress)
	}
	if len(res.Recipes) != 3 || res.Progress.RecipesExtracted != 3 {
		t.Errorf("expected 3 recipes, got %d", len(res.Recipes))
	}
	if len(res.SkippedPages) != 0 {
		t.Errorf("expected no skipped pages, got %v", res.SkippedPages)
	}
}

func TestAggregateZeroPagesCompletesImmediately(t *testing.T) {
	res := Aggregate(parentRow(jobstore.ParentPagesQueued, 0), nil)

	if res.Status != jobstore.ParentCompleted {
		t.Errorf("status = %s, want completed", res.Status)
	}
	if res.Progress.TotalPages != 0 {
		t.Errorf("total pages = %d, want 0", res.Progress.TotalPages)
	}
	if res.Recipes == nil || res.SkippedPages == nil {
		t.Error("recipes and skippedPages must be empty slices, not nil")
	}
}

func TestAggregateFailedPageFlipsJobButKeepsPartialResults(t *testing.T) {
	children := []jobstore.PageJob{
		pageRow(1, jobstore.PageCompleted),
		pageRow(2, jobstore.PageFailed),
		pageRow(3, jobstore.PageCompleted),
	}

	res := Aggregate(parentRow(jobstore.ParentPagesQueued, 3), children)

	if res.Status != jobstore.ParentFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
	if res.Error == "" {
		t.Error("expected a generic failure message")
	}
	if len(res.Recipes) != 2 {
		t.Errorf("partial recipes must survive failure, got %d", len(res.Recipes))
	}
}

func TestAggregateSkippedPagesAreNotFailures(t *testing.T) {
	children := []jobstore.PageJob{
		pageRow(1, jobstore.PageSkipped),
		pageRow(2, jobstore.PageCompleted),
		pageRow(3, jobstore.PageSkipped),
	}

	res := Aggregate(parentRow(jobstore.ParentPagesQueued, 3), children)

	if res.Status != jobstore.ParentCompleted {
		t.Errorf("status = %s, want completed", res.Status)
	}
	if !reflect.DeepEqual(res.SkippedPages, []int{1, 3}) {
		t.Errorf("skipped pages = %v, want [1 3]", res.SkippedPages)
	}
	if len(res.Recipes) != 1 {
		t.Errorf("expected 1 recipe, got %d", len(res.Recipes))
	}
}

func TestAggregateStillWaitingOnPages(t *testing.T) {
	children := []jobstore.PageJob{
		pageRow(1, jobstore.PageCompleted),
		pageRow(2, jobstore.PageRunning),
		pageRow(3, jobstore.PagePending),
	}

	res := Aggregate(parentRow(jobstore.ParentPagesQueued, 3), children)

	if res.Status != jobstore.ParentPagesQueued {
		t.Errorf("status = %s, want pages_queued", res.Status)
	}
	if res.Progress.CurrentPage != 1 {
		t.Errorf("current page = %d, want 1", res.Progress.CurrentPage)
	}
}

func TestAggregateParentStatePrecedence(t *testing.T) {
	// A failed page exists in every case; the parent's own state wins until
	// fan-out has finished.
	children := []jobstore.PageJob{pageRow(1, jobstore.PageFailed)}

	tests := []struct {
		parent    jobstore.ParentStatus
		want      jobstore.ParentStatus
		wantError bool
	}{
		{jobstore.ParentFailed, jobstore.ParentFailed, true},
		{jobstore.ParentCancelled, jobstore.ParentCancelled, false},
		{jobstore.ParentPending, jobstore.ParentPending, false},
		{jobstore.ParentProcessing, jobstore.ParentProcessing, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.parent), func(t *testing.T) {
			p := parentRow(tt.parent, 3)
			p.Error = "inspection failed"
			res := Aggregate(p, children)
			if res.Status != tt.want {
				t.Errorf("status = %s, want %s", res.Status, tt.want)
			}
			if tt.wantError && res.Error != "inspection failed" {
				t.Errorf("error = %q, want parent's stored message", res.Error)
			}
		})
	}
}

func TestAggregateSortsByPageNumber(t *testing.T) {
	// Completion order is non-deterministic; rows arrive shuffled.
	children := []jobstore.PageJob{
		pageRow(4, jobstore.PageSkipped),
		pageRow(2, jobstore.PageCompleted),
		pageRow(1, jobstore.PageSkipped),
		pageRow(3, jobstore.PageCompleted),
	}

	res := Aggregate(parentRow(jobstore.ParentPagesQueued, 4), children)

	if res.Recipes[0].PageNumber != 2 || res.Recipes[1].PageNumber != 3 {
		t.Errorf("recipes not sorted: %+v", res.Recipes)
	}
	if !reflect.DeepEqual(res.SkippedPages, []int{1, 4}) {
		t.Errorf("skipped pages not sorted: %v", res.SkippedPages)
	}
}

func TestAggregateCancelledPagesCountAsTerminal(t *testing.T) {
	children := []jobstore.PageJob{
		pageRow(1, jobstore.PageCompleted),
		pageRow(2, jobstore.PageCancelled),
		pageRow(3, jobstore.PageCancelled),
	}

	res := Aggregate(parentRow(jobstore.ParentCancelled, 3), children)

	if res.Status != jobstore.ParentCancelled {
		t.Errorf("status = %s, want cancelled", res.Status)
	}
	if res.Progress.CurrentPage != 3 {
		t.Errorf("current page = %d, want 3", res.Progress.CurrentPage)
	}
}
