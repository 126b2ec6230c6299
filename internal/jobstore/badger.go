package jobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerStore implements Store on an embedded badgerhold database.
type BadgerStore struct {
	store  *badgerhold.Store
	logger *slog.Logger
}

var _ Store = (*BadgerStore)(nil)

// Open opens (or creates) the job store at the given directory.
func Open(path string, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create job store directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // badger's own logger is noisy; slog covers this layer

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}

	logger.Debug("job store opened", "path", path)
	return &BadgerStore{store: store, logger: logger.With("component", "jobstore")}, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.store.Close()
}

// DB exposes the underlying badgerhold store so other record types (recipes)
// can live in the same database.
func (s *BadgerStore) DB() *badgerhold.Store {
	return s.store
}

// RunGC performs one round of value-log garbage collection. Badger reports
// ErrNoRewrite when there was nothing to collect; that is not a failure.
func (s *BadgerStore) RunGC() error {
	err := s.store.Badger().RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return fmt.Errorf("value log GC failed: %w", err)
	}
	return nil
}

func pageKey(jobID string, pageNumber int) string {
	return fmt.Sprintf("%s/%04d", jobID, pageNumber)
}

// CreateParent inserts a new DocumentJob row.
func (s *BadgerStore) CreateParent(ctx context.Context, job *DocumentJob) error {
	if job.ID == "" {
		return errors.New("job ID is required")
	}
	if job.Status == "" {
		job.Status = ParentPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if err := s.store.Insert(job.ID, job); err != nil {
		return fmt.Errorf("failed to create parent job: %w", err)
	}
	s.logger.Debug("parent job created", "job_id", job.ID, "user_id", job.UserID)
	return nil
}

// GetParent returns the DocumentJob scoped by (jobID, userID).
func (s *BadgerStore) GetParent(ctx context.Context, jobID, userID string) (*DocumentJob, error) {
	var job DocumentJob
	if err := s.store.Get(jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get parent job: %w", err)
	}
	// Ownership mismatch must be indistinguishable from non-existence.
	if job.UserID != userID {
		return nil, ErrNotFound
	}
	return &job, nil
}

// SetParentStatus transitions the parent job state. Transitions out of a
// terminal state are refused with ErrTerminal so a queued fan-out task cannot
// resurrect a job that was cancelled before it ran.
func (s *BadgerStore) SetParentStatus(ctx context.Context, jobID string, status ParentStatus, errMsg string) error {
	var job DocumentJob
	if err := s.store.Get(jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load parent job: %w", err)
	}

	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, job.Status)
	}

	job.Status = status
	if errMsg != "" {
		job.Error = errMsg
	}
	if status.Terminal() && job.CompletedAt == nil {
		now := time.Now().UTC()
		job.CompletedAt = &now
	}

	if err := s.store.Update(jobID, &job); err != nil {
		return fmt.Errorf("failed to update parent job: %w", err)
	}
	s.logger.Debug("parent status updated", "job_id", jobID, "status", status)
	return nil
}

// SetParentPageCount records the resolved page count.
func (s *BadgerStore) SetParentPageCount(ctx context.Context, jobID string, totalPages int) error {
	var job DocumentJob
	if err := s.store.Get(jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load parent job: %w", err)
	}

	job.TotalPages = totalPages
	if err := s.store.Update(jobID, &job); err != nil {
		return fmt.Errorf("failed to update parent job: %w", err)
	}
	return nil
}

// CreateChild inserts a new PageJob row.
func (s *BadgerStore) CreateChild(ctx context.Context, page *PageJob) error {
	if page.JobID == "" || page.PageNumber < 1 {
		return errors.New("page job requires a parent job ID and 1-based page number")
	}
	if page.Status == "" {
		page.Status = PagePending
	}
	page.Key = pageKey(page.JobID, page.PageNumber)
	if err := s.store.Insert(page.Key, page); err != nil {
		return fmt.Errorf("failed to create page job: %w", err)
	}
	return nil
}

// SetChildRunning marks a page job as running.
func (s *BadgerStore) SetChildRunning(ctx context.Context, jobID string, pageNumber int) error {
	return s.updateChild(jobID, pageNumber, func(p *PageJob) {
		p.Status = PageRunning
	})
}

// SetChildTerminal writes a page job's terminal state and optional recipe ref.
func (s *BadgerStore) SetChildTerminal(ctx context.Context, jobID string, pageNumber int, status PageStatus, ref *RecipeRef) error {
	if !status.Terminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	return s.updateChild(jobID, pageNumber, func(p *PageJob) {
		p.Status = status
		if ref != nil {
			p.RecipeID = ref.RecipeID
			p.RecipeTitle = ref.Title
		}
	})
}

func (s *BadgerStore) updateChild(jobID string, pageNumber int, mutate func(*PageJob)) error {
	key := pageKey(jobID, pageNumber)
	var page PageJob
	if err := s.store.Get(key, &page); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load page job: %w", err)
	}

	mutate(&page)
	if err := s.store.Update(key, &page); err != nil {
		return fmt.Errorf("failed to update page job: %w", err)
	}
	return nil
}

// ListChildren returns all page rows for a job, page-number ascending.
func (s *BadgerStore) ListChildren(ctx context.Context, jobID string) ([]PageJob, error) {
	var pages []PageJob
	if err := s.store.Find(&pages, badgerhold.Where("JobID").Eq(jobID).Index("JobID")); err != nil {
		return nil, fmt.Errorf("failed to list page jobs: %w", err)
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})
	return pages, nil
}

// CancelRemaining moves every pending/running child of a job to cancelled.
func (s *BadgerStore) CancelRemaining(ctx context.Context, jobID string) (int, error) {
	pages, err := s.ListChildren(ctx, jobID)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for i := range pages {
		if pages[i].Status.Terminal() {
			continue
		}
		pages[i].Status = PageCancelled
		if err := s.store.Update(pages[i].Key, &pages[i]); err != nil {
			return cancelled, fmt.Errorf("failed to cancel page %d: %w", pages[i].PageNumber, err)
		}
		cancelled++
	}

	if cancelled > 0 {
		s.logger.Debug("cancelled remaining pages", "job_id", jobID, "count", cancelled)
	}
	return cancelled, nil
}
