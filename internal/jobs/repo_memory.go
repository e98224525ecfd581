package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Job
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Job)}
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = job
	return nil
}

// GetByID returns a job by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// GetByShareToken returns the job carrying the share token.
func (r *MemoryRepo) GetByShareToken(ctx context.Context, token string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	if token == "" {
		return Job{}, ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, job := range r.byID {
		if job.ShareToken == token {
			return job, nil
		}
	}
	return Job{}, ErrNotFound
}

// ListByUser returns a user's jobs, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error) {
	return r.list(ctx, userID, limit, offset)
}

// ListAll returns every job, newest first.
func (r *MemoryRepo) ListAll(ctx context.Context, limit, offset int) ([]Job, error) {
	return r.list(ctx, "", limit, offset)
}

func (r *MemoryRepo) list(ctx context.Context, userID string, limit, offset int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Same page defaults as the SQL repo so listings behave identically
	// across backends.
	limit, offset = clampPage(limit, offset)

	r.mu.RLock()
	all := make([]Job, 0, len(r.byID))
	for _, job := range r.byID {
		if userID != "" && job.UserID != userID {
			continue
		}
		all = append(all, job)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []Job{}, nil
	}
	end := len(all)
	if offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

// MarkRunning moves a pending job to running.
func (r *MemoryRepo) MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Terminal() {
		return ErrTerminal
	}
	if job.Status == StatusRunning {
		return nil
	}
	job.Status = StatusRunning
	job.StartedAt = &startedAt
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

// Complete settles the job with its output.
func (r *MemoryRepo) Complete(ctx context.Context, jobID, jsonKey string, report ValidationReport, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Terminal() {
		return ErrTerminal
	}
	job.Status = StatusComplete
	job.JSONKey = jsonKey
	job.ValidationReport = &report
	job.CompletedAt = &completedAt
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

// Fail settles the job with a classified error.
func (r *MemoryRepo) Fail(ctx context.Context, jobID, errorCode, errorMessage string, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Terminal() {
		return ErrTerminal
	}
	job.Status = StatusFailed
	job.ErrorCode = errorCode
	job.Error = errorMessage
	job.CompletedAt = &completedAt
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

// SetRender attaches render artifacts to a completed job.
func (r *MemoryRepo) SetRender(ctx context.Context, jobID string, render Render) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusComplete {
		return ErrPrecondition
	}
	job.Render = render
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
