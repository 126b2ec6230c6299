// Package jobstore is the durable record of document extraction jobs.
//
// One DocumentJob row per uploaded document, one PageJob row per page.
// Rows are the single source of truth for status aggregation: tasks write
// single-row updates and the read path derives everything else.
package jobstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a job does not exist or is not owned by the
// requesting user. The two cases are deliberately indistinguishable so job
// IDs cannot be enumerated across users.
var ErrNotFound = errors.New("job not found")

// ErrTerminal is returned when a status transition targets a job that has
// already reached a terminal state. Terminal states are final: a cancelled
// job must stay cancelled even if its fan-out task was still queued when the
// cancellation landed.
var ErrTerminal = errors.New("job is in a terminal state")

// ParentStatus is the state of a DocumentJob.
type ParentStatus string

const (
	ParentPending     ParentStatus = "pending"
	ParentProcessing  ParentStatus = "processing"
	ParentPagesQueued ParentStatus = "pages_queued"
	ParentCompleted   ParentStatus = "completed"
	ParentFailed      ParentStatus = "failed"
	ParentCancelled   ParentStatus = "cancelled"
)

// Terminal reports whether no further transition occurs from this state.
func (s ParentStatus) Terminal() bool {
	switch s {
	case ParentCompleted, ParentFailed, ParentCancelled:
		return true
	}
	return false
}

// PageStatus is the state of a PageJob.
type PageStatus string

const (
	PagePending   PageStatus = "pending"
	PageRunning   PageStatus = "running"
	PageCompleted PageStatus = "completed"
	PageSkipped   PageStatus = "skipped"
	PageFailed    PageStatus = "failed"
	PageCancelled PageStatus = "cancelled"
)

// Terminal reports whether no further transition occurs from this state.
func (s PageStatus) Terminal() bool {
	switch s {
	case PageCompleted, PageSkipped, PageFailed, PageCancelled:
		return true
	}
	return false
}

// DocumentJob is the parent job row for one uploaded document.
type DocumentJob struct {
	ID          string `badgerholdKey:"ID"`
	UserID      string `badgerholdIndex:"UserID"`
	Status      ParentStatus
	TotalPages  int // Known after inspection; 0 until then and for empty documents
	Locale      string
	Region      string
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// PageJob is the child job row for one page of a document.
// Created by the orchestrator immediately before the page task is scheduled,
// so a poll never has to distinguish "not yet scheduled" from "lost".
type PageJob struct {
	Key        string `badgerholdKey:"Key"` // jobID/NNNN
	JobID      string `badgerholdIndex:"JobID"`
	PageNumber int
	Status     PageStatus
	// Set only when Status is completed.
	RecipeID    string
	RecipeTitle string
}

// RecipeRef points at an extracted recipe. Immutable once written.
type RecipeRef struct {
	PageNumber int    `json:"pageNumber"`
	RecipeID   string `json:"identifier"`
	Title      string `json:"title"`
}

// Store is the durable job record interface.
//
// Either a relational schema or an embedded document store satisfies this;
// correctness only requires that each method's mutation is a single-row
// atomic update.
type Store interface {
	CreateParent(ctx context.Context, job *DocumentJob) error
	// GetParent is scoped by (jobID, userID); a foreign job reads as ErrNotFound.
	GetParent(ctx context.Context, jobID, userID string) (*DocumentJob, error)
	// SetParentStatus transitions the parent and stamps CompletedAt when the
	// new status is terminal. errMsg is recorded for failed parents. Returns
	// ErrTerminal when the job is already in a terminal state.
	SetParentStatus(ctx context.Context, jobID string, status ParentStatus, errMsg string) error
	SetParentPageCount(ctx context.Context, jobID string, totalPages int) error

	CreateChild(ctx context.Context, page *PageJob) error
	SetChildRunning(ctx context.Context, jobID string, pageNumber int) error
	SetChildTerminal(ctx context.Context, jobID string, pageNumber int, status PageStatus, ref *RecipeRef) error
	// ListChildren returns all page rows sorted by page number ascending.
	ListChildren(ctx context.Context, jobID string) ([]PageJob, error)
	// CancelRemaining transitions every pending/running child to cancelled
	// and returns how many rows changed. Terminal children are untouched.
	CancelRemaining(ctx context.Context, jobID string) (int, error)

	Close() error
}
