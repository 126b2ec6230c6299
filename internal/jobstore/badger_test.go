package jobstore

import (
	"context"
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestParentLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := &DocumentJob{ID: "job-1", UserID: "alice"}
	if err := store.CreateParent(ctx, job); err != nil {
		t.Fatalf("CreateParent: %v", err)
	}

	got, err := store.GetParent(ctx, "job-1", "alice")
	if err != nil {
		t.Fatalf("GetParent: %v", err)
	}
	if got.Status != ParentPending {
		t.Errorf("new parent status = %s, want pending", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be stamped")
	}

	if err := store.SetParentStatus(ctx, "job-1", ParentProcessing, ""); err != nil {
		t.Fatalf("SetParentStatus: %v", err)
	}
	if err := store.SetParentPageCount(ctx, "job-1", 3); err != nil {
		t.Fatalf("SetParentPageCount: %v", err)
	}

	got, _ = store.GetParent(ctx, "job-1", "alice")
	if got.Status != ParentProcessing || got.TotalPages != 3 {
		t.Errorf("parent = %s/%d pages, want processing/3", got.Status, got.TotalPages)
	}
	if got.CompletedAt != nil {
		t.Error("non-terminal parent should not have CompletedAt")
	}

	if err := store.SetParentStatus(ctx, "job-1", ParentFailed, "render exploded"); err != nil {
		t.Fatalf("SetParentStatus failed: %v", err)
	}
	got, _ = store.GetParent(ctx, "job-1", "alice")
	if got.Error != "render exploded" {
		t.Errorf("parent error = %q", got.Error)
	}
	if got.CompletedAt == nil {
		t.Error("terminal parent should have CompletedAt stamped")
	}
}

func TestSetParentStatus_TerminalIsFinal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateParent(ctx, &DocumentJob{ID: "job-1", UserID: "alice"}); err != nil {
		t.Fatalf("CreateParent: %v", err)
	}
	if err := store.SetParentStatus(ctx, "job-1", ParentCancelled, ""); err != nil {
		t.Fatalf("SetParentStatus cancelled: %v", err)
	}

	// Terminal states must not be overwritten, not even by other terminal ones.
	for _, status := range []ParentStatus{ParentProcessing, ParentPagesQueued, ParentFailed, ParentCompleted} {
		if err := store.SetParentStatus(ctx, "job-1", status, "late task"); !errors.Is(err, ErrTerminal) {
			t.Errorf("SetParentStatus(%s) error = %v, want ErrTerminal", status, err)
		}
	}

	got, err := store.GetParent(ctx, "job-1", "alice")
	if err != nil {
		t.Fatalf("GetParent: %v", err)
	}
	if got.Status != ParentCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if got.Error != "" {
		t.Errorf("error = %q, want empty after refused transitions", got.Error)
	}
}

func TestGetParent_OwnershipHiding(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateParent(ctx, &DocumentJob{ID: "job-1", UserID: "alice"}); err != nil {
		t.Fatalf("CreateParent: %v", err)
	}

	// A foreign job and a missing job must read identically.
	_, errForeign := store.GetParent(ctx, "job-1", "mallory")
	_, errMissing := store.GetParent(ctx, "no-such-job", "mallory")

	if !errors.Is(errForeign, ErrNotFound) {
		t.Errorf("foreign job error = %v, want ErrNotFound", errForeign)
	}
	if !errors.Is(errMissing, ErrNotFound) {
		t.Errorf("missing job error = %v, want ErrNotFound", errMissing)
	}
	if errForeign.Error() != errMissing.Error() {
		t.Errorf("ownership must not be distinguishable: %q vs %q", errForeign, errMissing)
	}
}

func TestChildLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateParent(ctx, &DocumentJob{ID: "job-1", UserID: "alice"}); err != nil {
		t.Fatalf("CreateParent: %v", err)
	}

	// Create out of order to verify ListChildren sorts.
	for _, page := range []int{2, 1, 3} {
		if err := store.CreateChild(ctx, &PageJob{JobID: "job-1", PageNumber: page}); err != nil {
			t.Fatalf("CreateChild(%d): %v", page, err)
		}
	}

	if err := store.SetChildRunning(ctx, "job-1", 1); err != nil {
		t.Fatalf("SetChildRunning: %v", err)
	}
	ref := &RecipeRef{PageNumber: 1, RecipeID: "r-1", Title: "Minestrone"}
	if err := store.SetChildTerminal(ctx, "job-1", 1, PageCompleted, ref); err != nil {
		t.Fatalf("SetChildTerminal: %v", err)
	}
	if err := store.SetChildTerminal(ctx, "job-1", 2, PageSkipped, nil); err != nil {
		t.Fatalf("SetChildTerminal skipped: %v", err)
	}

	pages, err := store.ListChildren(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("len(pages) = %d, want 3", len(pages))
	}
	for i, p := range pages {
		if p.PageNumber != i+1 {
			t.Errorf("pages[%d].PageNumber = %d, want %d", i, p.PageNumber, i+1)
		}
	}
	if pages[0].Status != PageCompleted || pages[0].RecipeTitle != "Minestrone" {
		t.Errorf("page 1 = %s/%q", pages[0].Status, pages[0].RecipeTitle)
	}
	if pages[1].Status != PageSkipped {
		t.Errorf("page 2 status = %s, want skipped", pages[1].Status)
	}
	if pages[2].Status != PagePending {
		t.Errorf("page 3 status = %s, want pending", pages[2].Status)
	}
}

func TestSetChildTerminal_RejectsNonTerminal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.CreateParent(ctx, &DocumentJob{ID: "job-1", UserID: "alice"})
	store.CreateChild(ctx, &PageJob{JobID: "job-1", PageNumber: 1})

	if err := store.SetChildTerminal(ctx, "job-1", 1, PageRunning, nil); err == nil {
		t.Error("expected error for non-terminal status")
	}
}

func TestCancelRemaining(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.CreateParent(ctx, &DocumentJob{ID: "job-1", UserID: "alice"})
	store.CreateChild(ctx, &PageJob{JobID: "job-1", PageNumber: 1})
	store.CreateChild(ctx, &PageJob{JobID: "job-1", PageNumber: 2})
	store.CreateChild(ctx, &PageJob{JobID: "job-1", PageNumber: 3})

	// Page 1 already completed, page 2 running, page 3 pending.
	store.SetChildTerminal(ctx, "job-1", 1, PageCompleted, nil)
	store.SetChildRunning(ctx, "job-1", 2)

	n, err := store.CancelRemaining(ctx, "job-1")
	if err != nil {
		t.Fatalf("CancelRemaining: %v", err)
	}
	if n != 2 {
		t.Errorf("cancelled = %d, want 2", n)
	}

	pages, _ := store.ListChildren(ctx, "job-1")
	if pages[0].Status != PageCompleted {
		t.Errorf("terminal child must be untouched, got %s", pages[0].Status)
	}
	if pages[1].Status != PageCancelled || pages[2].Status != PageCancelled {
		t.Errorf("remaining children = %s/%s, want cancelled/cancelled", pages[1].Status, pages[2].Status)
	}
}

func TestCreateChild_Validation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateChild(ctx, &PageJob{JobID: "", PageNumber: 1}); err == nil {
		t.Error("expected error for missing job ID")
	}
	if err := store.CreateChild(ctx, &PageJob{JobID: "job-1", PageNumber: 0}); err == nil {
		t.Error("expected error for 0-based page number")
	}
}
