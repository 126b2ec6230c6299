// Package recipes persists extracted recipe payloads and hands back the
// lightweight references the job results report.
package recipes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/larderhq/larder/internal/extractor"
	"github.com/larderhq/larder/internal/jobstore"
)

// ErrNotFound is returned when no recipe exists for the given key.
var ErrNotFound = errors.New("recipe not found")

// Recipe is one persisted extraction result.
type Recipe struct {
	Key        string `badgerhold:"key"` // jobID/NNNN
	ID         string // Stable public identifier
	JobID      string `badgerholdIndex:"JobID"`
	UserID     string
	PageNumber int
	Title      string
	Data       json.RawMessage
	CreatedAt  time.Time
}

// Store writes and reads extracted recipes.
type Store struct {
	db     *badgerhold.Store
	logger *slog.Logger
}

// NewStore creates a recipe store over an existing badgerhold database.
func NewStore(db *badgerhold.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("component", "recipes")}
}

func recipeKey(jobID string, pageNumber int) string {
	return fmt.Sprintf("%s/%04d", jobID, pageNumber)
}

// Persist stores the extraction result for one page. Re-running the same page
// overwrites the previous record but keeps its identifier, so a retried page
// never produces a duplicate recipe.
func (s *Store) Persist(ctx context.Context, jobID, userID string, pageNumber int, data *extractor.RecipeData) (jobstore.RecipeRef, error) {
	if data == nil || data.Title == "" {
		return jobstore.RecipeRef{}, errors.New("recipe data with a title is required")
	}

	key := recipeKey(jobID, pageNumber)

	rec := Recipe{
		Key:        key,
		ID:         uuid.New().String(),
		JobID:      jobID,
		UserID:     userID,
		PageNumber: pageNumber,
		Title:      data.Title,
		Data:       data.Raw,
		CreatedAt:  time.Now().UTC(),
	}

	var existing Recipe
	switch err := s.db.Get(key, &existing); {
	case err == nil:
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	case errors.Is(err, badgerhold.ErrNotFound):
		// First write for this page.
	default:
		return jobstore.RecipeRef{}, fmt.Errorf("failed to check existing recipe: %w", err)
	}

	if err := s.db.Upsert(key, &rec); err != nil {
		return jobstore.RecipeRef{}, fmt.Errorf("failed to persist recipe: %w", err)
	}

	s.logger.Debug("recipe persisted", "job_id", jobID, "page", pageNumber, "recipe_id", rec.ID, "title", rec.Title)
	return jobstore.RecipeRef{
		PageNumber: pageNumber,
		RecipeID:   rec.ID,
		Title:      rec.Title,
	}, nil
}

// Get returns the recipe persisted for one page of a job.
func (s *Store) Get(ctx context.Context, jobID string, pageNumber int) (*Recipe, error) {
	var rec Recipe
	if err := s.db.Get(recipeKey(jobID, pageNumber), &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return &rec, nil
}

// ListByJob returns all recipes persisted for a job.
func (s *Store) ListByJob(ctx context.Context, jobID string) ([]Recipe, error) {
	var recs []Recipe
	if err := s.db.Find(&recs, badgerhold.Where("JobID").Eq(jobID).Index("JobID")); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	return recs, nil
}
