package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const jobColumns = `id, user_id, provider, model, status, resume_key, job_desc_key, template_key,
       json_key, render_docx_key, render_pdf_key, render_template, rendered_at,
       validation_report, error_code, error_message, share_token,
       created_at, started_at, completed_at, updated_at`

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO jobs (
	id, user_id, provider, model, status, resume_key, job_desc_key, template_key,
	share_token, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`
	_, err := r.DB.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.Provider,
		job.Model,
		job.Status,
		nullable(job.ResumeKey),
		nullable(job.JobDescKey),
		nullable(job.TemplateKey),
		nullable(job.ShareToken),
		job.CreatedAt,
	)
	return err
}

// GetByID returns a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 LIMIT 1`
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

// GetByShareToken returns the job carrying the share token.
func (r *PGRepo) GetByShareToken(ctx context.Context, token string) (Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE share_token = $1 LIMIT 1`
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

// ListByUser lists a user's jobs ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error) {
	limit, offset = clampPage(limit, offset)
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListAll lists every job ordered newest-first.
func (r *PGRepo) ListAll(ctx context.Context, limit, offset int) ([]Job, error) {
	limit, offset = clampPage(limit, offset)
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// MarkRunning moves a pending job to running. The status guard keeps
// transitions monotonic under concurrent workers.
func (r *PGRepo) MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error {
	const query = `
UPDATE jobs
SET status = $1,
    started_at = COALESCE(started_at, $2),
    updated_at = now()
WHERE id = $3 AND status IN ($4, $1)`
	res, err := r.DB.ExecContext(ctx, query, StatusRunning, startedAt, jobID, StatusPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.transitionRejected(ctx, jobID)
	}
	return nil
}

// Complete settles the job with its tailored output and coverage report.
func (r *PGRepo) Complete(ctx context.Context, jobID, jsonKey string, report ValidationReport, completedAt time.Time) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	const query = `
UPDATE jobs
SET status = $1,
    json_key = $2,
    validation_report = $3::jsonb,
    completed_at = $4,
    updated_at = now()
WHERE id = $5 AND status NOT IN ($6, $7)`
	res, err := r.DB.ExecContext(ctx, query, StatusComplete, jsonKey, payload, completedAt, jobID, StatusComplete, StatusFailed)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.transitionRejected(ctx, jobID)
	}
	return nil
}

// Fail settles the job with a classified error.
func (r *PGRepo) Fail(ctx context.Context, jobID, errorCode, errorMessage string, completedAt time.Time) error {
	const query = `
UPDATE jobs
SET status = $1,
    error_code = $2,
    error_message = $3,
    completed_at = $4,
    updated_at = now()
WHERE id = $5 AND status NOT IN ($6, $1)`
	res, err := r.DB.ExecContext(ctx, query, StatusFailed, errorCode, errorMessage, completedAt, jobID, StatusComplete)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.transitionRejected(ctx, jobID)
	}
	return nil
}

// SetRender attaches render artifacts; only completed jobs accept them.
func (r *PGRepo) SetRender(ctx context.Context, jobID string, render Render) error {
	const query = `
UPDATE jobs
SET render_docx_key = $1,
    render_pdf_key = $2,
    render_template = $3,
    rendered_at = $4,
    updated_at = now()
WHERE id = $5 AND status = $6`
	res, err := r.DB.ExecContext(ctx, query,
		nullable(render.DocxKey),
		nullable(render.PdfKey),
		nullable(render.TemplateKey),
		render.RenderedAt,
		jobID,
		StatusComplete,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var status string
		err := r.DB.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1`, jobID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrPrecondition
	}
	return nil
}

// transitionRejected distinguishes a missing job from a terminal one after a
// guarded update touched zero rows.
func (r *PGRepo) transitionRejected(ctx context.Context, jobID string) error {
	var status string
	err := r.DB.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1`, jobID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrTerminal
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var resumeKey, jobDescKey, templateKey sql.NullString
	var jsonKey, docxKey, pdfKey, renderTemplate sql.NullString
	var renderedAt sql.NullTime
	var report sql.NullString
	var errorCode, errorMessage, shareToken sql.NullString
	var startedAt, completedAt sql.NullTime

	if err := row.Scan(
		&j.ID,
		&j.UserID,
		&j.Provider,
		&j.Model,
		&j.Status,
		&resumeKey,
		&jobDescKey,
		&templateKey,
		&jsonKey,
		&docxKey,
		&pdfKey,
		&renderTemplate,
		&renderedAt,
		&report,
		&errorCode,
		&errorMessage,
		&shareToken,
		&j.CreatedAt,
		&startedAt,
		&completedAt,
		&j.UpdatedAt,
	); err != nil {
		return Job{}, err
	}

	j.ResumeKey = resumeKey.String
	j.JobDescKey = jobDescKey.String
	j.TemplateKey = templateKey.String
	j.JSONKey = jsonKey.String
	j.Render.DocxKey = docxKey.String
	j.Render.PdfKey = pdfKey.String
	j.Render.TemplateKey = renderTemplate.String
	if renderedAt.Valid {
		j.Render.RenderedAt = &renderedAt.Time
	}
	if report.Valid {
		var parsed ValidationReport
		if err := json.Unmarshal([]byte(report.String), &parsed); err == nil {
			j.ValidationReport = &parsed
		}
	}
	j.ErrorCode = errorCode.String
	j.Error = errorMessage.String
	j.ShareToken = shareToken.String
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return j, nil
}

func collectJobs(rows *sql.Rows) ([]Job, error) {
	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
