package jobs

import (
	"context"
	"time"
)

// Repo persists jobs. Status transitions are monotonic: implementations must
// reject updates that would move a terminal job back to an earlier state.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	// GetByShareToken resolves a job by its share token.
	GetByShareToken(ctx context.Context, token string) (Job, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error)
	ListAll(ctx context.Context, limit, offset int) ([]Job, error)

	// MarkRunning moves a pending job to running. Returns ErrTerminal when the
	// job already settled and ErrNotFound when it does not exist.
	MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error
	// Complete settles the job with its tailored output and coverage report.
	Complete(ctx context.Context, jobID, jsonKey string, report ValidationReport, completedAt time.Time) error
	// Fail settles the job with a classified error.
	Fail(ctx context.Context, jobID, errorCode, errorMessage string, completedAt time.Time) error
	// SetRender attaches render artifacts to a completed job.
	SetRender(ctx context.Context, jobID string, render Render) error
}
