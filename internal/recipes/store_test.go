package recipes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/larderhq/larder/internal/extractor"
	"github.com/larderhq/larder/internal/jobstore"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	js, err := jobstore.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { js.Close() })
	return NewStore(js.DB(), nil)
}

func TestPersistAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	data := &extractor.RecipeData{
		Title: "Shakshuka",
		Raw:   json.RawMessage(`{"found":true,"title":"Shakshuka"}`),
	}

	ref, err := store.Persist(ctx, "job-1", "user-1", 3, data)
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if ref.PageNumber != 3 || ref.Title != "Shakshuka" || ref.RecipeID == "" {
		t.Errorf("unexpected ref: %+v", ref)
	}

	rec, err := store.Get(ctx, "job-1", 3)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.ID != ref.RecipeID || rec.UserID != "user-1" || rec.JobID != "job-1" {
		t.Errorf("unexpected recipe: %+v", rec)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}
}

func TestPersistIdempotentAcrossRetries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Persist(ctx, "job-1", "user-1", 5, &extractor.RecipeData{Title: "Pho"})
	if err != nil {
		t.Fatalf("first Persist() error = %v", err)
	}
	second, err := store.Persist(ctx, "job-1", "user-1", 5, &extractor.RecipeData{Title: "Pho Bo"})
	if err != nil {
		t.Fatalf("second Persist() error = %v", err)
	}

	if second.RecipeID != first.RecipeID {
		t.Errorf("retry produced a new identifier: %s vs %s", second.RecipeID, first.RecipeID)
	}
	if second.Title != "Pho Bo" {
		t.Errorf("retry should overwrite the payload, got title %q", second.Title)
	}

	recs, err := store.ListByJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListByJob() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recipe after retry, got %d", len(recs))
	}
}

func TestPersistValidation(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Persist(context.Background(), "job-1", "user-1", 1, nil); err == nil {
		t.Error("expected error for nil data")
	}
	if _, err := store.Persist(context.Background(), "job-1", "user-1", 1, &extractor.RecipeData{}); err == nil {
		t.Error("expected error for empty title")
	}
}

func TestGetNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "job-x", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListByJobScopesToJob(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for page := 1; page <= 3; page++ {
		if _, err := store.Persist(ctx, "job-a", "user-1", page, &extractor.RecipeData{Title: "A"}); err != nil {
			t.Fatalf("Persist() error = %v", err)
		}
	}
	if _, err := store.Persist(ctx, "job-b", "user-1", 1, &extractor.RecipeData{Title: "B"}); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	recs, err := store.ListByJob(ctx, "job-a")
	if err != nil {
		t.Fatalf("ListByJob() error = %v", err)
	}
	if len(recs) != 3 {
		t.Errorf("expected 3 recipes for job-a, got %d", len(recs))
	}
}
