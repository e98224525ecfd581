package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"tailor-backend/internal/extract"
	"tailor-backend/internal/llm"
	"tailor-backend/internal/queue"
	"tailor-backend/internal/shared/metrics"
	"tailor-backend/internal/shared/storage/object"
	"tailor-backend/internal/shared/telemetry"
	"tailor-backend/internal/shared/util"
	"tailor-backend/internal/uploads"
	"tailor-backend/resume/model"
	"tailor-backend/resume/render"
)

const (
	jobsKeyPrefix     = "resume-jobs"
	inputResumeName   = "reference-resume.txt"
	inputJobDescName  = "jd.txt"
	outputJSONName    = "tailored.json"
	outputDocxName    = "tailored.docx"
	outputPdfName     = "tailored.pdf"
	maxDownloadExpiry = 7 * 24 * time.Hour
)

// Service contains business logic for tailoring jobs.
type Service struct {
	Repo        Repo
	Uploads     uploads.Repo
	Store       object.ObjectStore
	Signer      object.LinkSigner
	Queue       queue.Client
	LLM         llm.Client
	Clients     map[string]llm.Client
	Catalog     *llm.Catalog
	Provider    string
	Model       string
	DownloadTTL time.Duration
	Now         func() time.Time
}

// clientFor returns the LLM client serving provider, or nil when the
// deployment has none for it. LLM serves the default provider; Clients
// adds per-provider overrides.
func (s *Service) clientFor(provider string) llm.Client {
	if client, ok := s.Clients[provider]; ok && client != nil {
		return client
	}
	if provider == "" || provider == s.Provider {
		return s.LLM
	}
	return nil
}

// defaultModel picks the model used when a submission names a provider
// but no model.
func (s *Service) defaultModel(provider string) string {
	if provider == "" || provider == s.Provider {
		return s.Model
	}
	if s.Catalog != nil {
		if models, err := s.Catalog.ModelsFor(provider); err == nil && len(models) > 0 {
			return models[0]
		}
	}
	return s.Model
}

// SubmitInput captures a tailoring request. The resume comes either inline or
// as an approved upload key; the job description likewise. JobID lets the
// caller pin the identifier for idempotent resubmission.
type SubmitInput struct {
	JobID          string
	ResumeText     string
	JobDescription string
	ResumeKey      string
	JobDescKey     string
	TemplateKey    string
	Provider       string
	Model          string
}

// Submit validates the request, snapshots its inputs and enqueues asynchronous
// processing. The returned job is still pending.
func (s *Service) Submit(ctx context.Context, userID string, input SubmitInput) (Job, error) {
	job, err := s.prepare(ctx, userID, input)
	if err != nil {
		return Job{}, err
	}
	if job.Terminal() {
		// Pinned job id resolved to an already-settled job.
		return job, nil
	}

	if s.Queue != nil {
		msg := queue.Message{
			JobID:      job.ID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: s.now().Format(time.RFC3339),
			Version:    1,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			s.failJob(ctx, job.ID, job.UserID, fmt.Errorf("enqueue job: %w", err), nil)
			return Job{}, fmt.Errorf("enqueue job: %w", err)
		}
	} else {
		go s.processAsync(backgroundWithRequestID(ctx), job.ID)
	}
	return job, nil
}

// SubmitSync runs the full tailoring pipeline inline and returns the settled
// job.
func (s *Service) SubmitSync(ctx context.Context, userID string, input SubmitInput) (Job, error) {
	job, err := s.prepare(ctx, userID, input)
	if err != nil {
		return Job{}, err
	}
	if job.Terminal() {
		return job, nil
	}
	if err := s.Process(ctx, job.ID); err != nil {
		return Job{}, err
	}
	return s.Repo.GetByID(ctx, job.ID)
}

// prepare validates the submission, resolves upload references, snapshots the
// inputs under the job prefix and records the pending job.
func (s *Service) prepare(ctx context.Context, userID string, input SubmitInput) (Job, error) {
	if userID == "" {
		return Job{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	provider := strings.TrimSpace(strings.ToLower(input.Provider))
	if provider == "" {
		provider = s.Provider
	}
	jobModel := strings.TrimSpace(input.Model)
	if s.Catalog != nil {
		if err := s.Catalog.ValidateSelection(provider, jobModel); err != nil {
			return Job{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
		}
	}
	if jobModel == "" {
		jobModel = s.defaultModel(provider)
	}
	if s.clientFor(provider) == nil {
		return Job{}, fmt.Errorf("%w: provider %s is not configured on this server", ErrInvalidInput, provider)
	}

	resumeText, err := s.resolveResume(ctx, userID, input)
	if err != nil {
		return Job{}, err
	}
	jobDesc, err := s.resolveJobDescription(ctx, userID, input)
	if err != nil {
		return Job{}, err
	}
	templateKey := strings.TrimSpace(input.TemplateKey)
	if templateKey != "" {
		if _, err := s.Uploads.GetByKey(ctx, userID, templateKey); err != nil {
			if errors.Is(err, uploads.ErrNotFound) {
				return Job{}, fmt.Errorf("%w: template upload not found", ErrInvalidInput)
			}
			return Job{}, err
		}
	}

	jobID := strings.TrimSpace(input.JobID)
	if jobID == "" {
		jobID = uuid.NewString()
	} else if existing, err := s.Repo.GetByID(ctx, jobID); err == nil {
		if existing.UserID != userID {
			return Job{}, fmt.Errorf("%w: job id already in use", ErrInvalidInput)
		}
		// Idempotent resubmission: hand back the existing job untouched.
		return existing, nil
	}
	prefix := jobPrefix(userID, jobID)

	if _, err := s.Store.SaveWithKey(ctx, path.Join(prefix, "inputs", inputResumeName), "text/plain", strings.NewReader(resumeText)); err != nil {
		return Job{}, fmt.Errorf("snapshot resume input: %w", err)
	}
	if _, err := s.Store.SaveWithKey(ctx, path.Join(prefix, "inputs", inputJobDescName), "text/plain", strings.NewReader(jobDesc)); err != nil {
		return Job{}, fmt.Errorf("snapshot job description input: %w", err)
	}

	job := Job{
		ID:          jobID,
		UserID:      userID,
		Provider:    provider,
		Model:       jobModel,
		Status:      StatusPending,
		ResumeKey:   strings.TrimSpace(input.ResumeKey),
		JobDescKey:  strings.TrimSpace(input.JobDescKey),
		TemplateKey: templateKey,
		ShareToken:  util.RandomID(),
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		return Job{}, fmt.Errorf("record job: %w", err)
	}
	return job, nil
}

func (s *Service) resolveResume(ctx context.Context, userID string, input SubmitInput) (string, error) {
	if text := strings.TrimSpace(input.ResumeText); text != "" {
		return text, nil
	}
	key := strings.TrimSpace(input.ResumeKey)
	if key == "" {
		return "", fmt.Errorf("%w: resume text or an approved resume key is required", ErrInvalidInput)
	}
	upload, err := s.Uploads.GetByKey(ctx, userID, key)
	if err != nil {
		if errors.Is(err, uploads.ErrNotFound) {
			return "", fmt.Errorf("%w: resume upload not found", ErrInvalidInput)
		}
		return "", err
	}
	text, err := extract.Text(ctx, s.Store, upload.Key, upload.ContentType, upload.FileName)
	if err != nil {
		return "", fmt.Errorf("extract resume text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: resume upload has no extractable text", ErrInvalidInput)
	}
	return text, nil
}

func (s *Service) resolveJobDescription(ctx context.Context, userID string, input SubmitInput) (string, error) {
	if text := strings.TrimSpace(input.JobDescription); text != "" {
		return text, nil
	}
	key := strings.TrimSpace(input.JobDescKey)
	if key == "" {
		return "", fmt.Errorf("%w: job description text or a stored key is required", ErrInvalidInput)
	}
	upload, err := s.Uploads.GetByKey(ctx, userID, key)
	if err != nil {
		if errors.Is(err, uploads.ErrNotFound) {
			return "", fmt.Errorf("%w: job description upload not found", ErrInvalidInput)
		}
		return "", err
	}
	text, err := extract.Text(ctx, s.Store, upload.Key, upload.ContentType, upload.FileName)
	if err != nil {
		return "", fmt.Errorf("extract job description text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: job description upload has no extractable text", ErrInvalidInput)
	}
	return text, nil
}

func (s *Service) processAsync(ctx context.Context, jobID string) {
	if err := s.Process(ctx, jobID); err != nil {
		telemetry.Error("job.process.failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"job_id":     jobID,
			"err":        err.Error(),
		})
	}
}

// Process runs the tailoring pipeline for a pending job. Redeliveries of
// already-settled jobs are ignored.
func (s *Service) Process(ctx context.Context, jobID string) error {
	defer func() {
		if r := recover(); r != nil {
			s.failJob(ctx, jobID, "", fmt.Errorf("panic: %v", r), nil)
		}
	}()

	startedAt := s.now()
	if err := s.Repo.MarkRunning(ctx, jobID, startedAt); err != nil {
		if errors.Is(err, ErrTerminal) {
			telemetry.Info("job.redelivery.skipped", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"job_id":     jobID,
			})
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}
		s.failJob(ctx, jobID, "", fmt.Errorf("set running failed: %w", err), &startedAt)
		return err
	}

	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		s.failJob(ctx, jobID, "", fmt.Errorf("job lookup: %w", err), &startedAt)
		return err
	}
	metrics.IncJobStarted()
	s.logStatus(ctx, job, StatusRunning, "pending->running", 0)

	// Each job carries the provider it was submitted with; dispatch to
	// that provider's client rather than the server default.
	client := s.clientFor(job.Provider)
	if client == nil {
		err := fmt.Errorf("no llm client for provider %s", job.Provider)
		s.failJob(ctx, jobID, job.UserID, err, &startedAt)
		return err
	}

	prefix := jobPrefix(job.UserID, job.ID)
	resumeText, err := s.loadText(ctx, path.Join(prefix, "inputs", inputResumeName))
	if err != nil {
		err = fmt.Errorf("load resume input: %w", err)
		s.failJob(ctx, jobID, job.UserID, err, &startedAt)
		return err
	}
	jobDesc, err := s.loadText(ctx, path.Join(prefix, "inputs", inputJobDescName))
	if err != nil {
		err = fmt.Errorf("load job description input: %w", err)
		s.failJob(ctx, jobID, job.UserID, err, &startedAt)
		return err
	}

	input := llm.TailorInput{
		ResumeText:     resumeText,
		JobDescription: jobDesc,
		Model:          job.Model,
	}
	raw, err := client.Tailor(ctx, input)
	if err != nil {
		err = fmt.Errorf("llm tailor: %w", err)
		s.failJob(ctx, jobID, job.UserID, err, &startedAt)
		return err
	}

	content, err := model.Decode(raw)
	if err != nil {
		rawRetry, retryErr := client.Tailor(llm.WithFixJSON(ctx, string(raw)), input)
		if retryErr != nil {
			retryErr = fmt.Errorf("llm tailor retry: %w", retryErr)
			s.failJob(ctx, jobID, job.UserID, retryErr, &startedAt)
			return retryErr
		}
		content, err = model.Decode(rawRetry)
		if err != nil {
			err = fmt.Errorf("llm output invalid: %w", err)
			s.failJob(ctx, jobID, job.UserID, err, &startedAt)
			return err
		}
		raw = rawRetry
	}

	report := Validate(content, jobDesc)

	jsonKey := path.Join(prefix, "outputs", outputJSONName)
	if _, err := s.Store.SaveWithKey(ctx, jsonKey, "application/json", strings.NewReader(string(raw))); err != nil {
		err = fmt.Errorf("store tailored output: %w", err)
		s.failJob(ctx, jobID, job.UserID, err, &startedAt)
		return err
	}

	completedAt := s.now()
	if err := s.Repo.Complete(ctx, jobID, jsonKey, report, completedAt); err != nil {
		if errors.Is(err, ErrTerminal) {
			return nil
		}
		err = fmt.Errorf("set job complete failed: %w", err)
		s.failJob(ctx, jobID, job.UserID, err, &startedAt)
		return err
	}
	duration := metrics.DurationMs(startedAt, completedAt)
	metrics.IncJobCompleted()
	metrics.ObserveTailorDurationMs(duration)
	s.logStatus(ctx, job, StatusComplete, "running->complete", duration)
	return nil
}

// TailoredJSON loads the stored tailored content for a job. Jobs without
// output yet return nil.
func (s *Service) TailoredJSON(ctx context.Context, job Job) (json.RawMessage, error) {
	if job.JSONKey == "" {
		return nil, nil
	}
	raw, err := s.loadText(ctx, job.JSONKey)
	if err != nil {
		return nil, fmt.Errorf("load tailored output: %w", err)
	}
	return json.RawMessage(raw), nil
}

// SharedJob resolves a job by its share token. The token is the only
// credential; callers get the job without owner identity checks, so
// responses built from it must not leak the owner.
func (s *Service) SharedJob(ctx context.Context, token string) (Job, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Job{}, fmt.Errorf("%w: share token is required", ErrInvalidInput)
	}
	return s.Repo.GetByShareToken(ctx, token)
}

// RenderInput selects how a completed job is rendered. Format is "docx",
// "pdf", or "both"; empty means both.
type RenderInput struct {
	JobID       string
	TemplateKey string
	Format      string
}

// Render produces DOCX and PDF artifacts for a completed job. Jobs that have
// not completed, including failed ones, are rejected with ErrPrecondition.
// Only the owner may render: privileged viewers get ErrForbidden, everyone
// else learns nothing.
func (s *Service) Render(ctx context.Context, userID string, privileged bool, input RenderInput) (Job, error) {
	job, err := s.Repo.GetByID(ctx, input.JobID)
	if err != nil {
		return Job{}, err
	}
	if job.UserID != userID {
		if privileged {
			return Job{}, ErrForbidden
		}
		return Job{}, ErrNotFound
	}
	if job.Status != StatusComplete {
		return Job{}, fmt.Errorf("%w: job status is %s", ErrPrecondition, job.Status)
	}

	format := strings.TrimSpace(strings.ToLower(input.Format))
	switch format {
	case "", "both":
		format = "both"
	case "docx", "pdf":
	default:
		return Job{}, fmt.Errorf("%w: format must be docx, pdf, or both", ErrInvalidInput)
	}

	raw, err := s.loadText(ctx, job.JSONKey)
	if err != nil {
		return Job{}, fmt.Errorf("load tailored output: %w", err)
	}
	content, err := model.Decode(json.RawMessage(raw))
	if err != nil {
		return Job{}, fmt.Errorf("decode tailored output: %w", err)
	}

	templateKey := strings.TrimSpace(input.TemplateKey)
	if templateKey == "" {
		templateKey = job.TemplateKey
	}
	var templateBytes []byte
	if templateKey != "" {
		upload, err := s.Uploads.GetByKey(ctx, userID, templateKey)
		if err != nil {
			if errors.Is(err, uploads.ErrNotFound) {
				return Job{}, fmt.Errorf("%w: template upload not found", ErrInvalidInput)
			}
			return Job{}, err
		}
		templateBytes, err = s.loadBytes(ctx, upload.Key)
		if err != nil {
			return Job{}, fmt.Errorf("load template: %w", err)
		}
	}

	prefix := jobPrefix(job.UserID, job.ID)
	// Partial formats merge into the existing render state so a pdf-only
	// re-render keeps an earlier docx artifact.
	renderState := job.Render
	if format != "pdf" {
		docxBytes, err := render.DOCX(templateBytes, content)
		if err != nil {
			return Job{}, fmt.Errorf("render docx: %w", err)
		}
		docxKey := path.Join(prefix, "outputs", outputDocxName)
		if _, err := s.Store.SaveWithKey(ctx, docxKey, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", strings.NewReader(string(docxBytes))); err != nil {
			return Job{}, fmt.Errorf("store docx artifact: %w", err)
		}
		renderState.DocxKey = docxKey
	}
	if format != "docx" {
		pdfBytes := render.PDF(content.PlainText())
		pdfKey := path.Join(prefix, "outputs", outputPdfName)
		if _, err := s.Store.SaveWithKey(ctx, pdfKey, "application/pdf", strings.NewReader(string(pdfBytes))); err != nil {
			return Job{}, fmt.Errorf("store pdf artifact: %w", err)
		}
		renderState.PdfKey = pdfKey
	}

	renderedAt := s.now()
	renderState.TemplateKey = templateKey
	renderState.RenderedAt = &renderedAt
	if err := s.Repo.SetRender(ctx, job.ID, renderState); err != nil {
		return Job{}, err
	}
	metrics.IncRender()
	telemetry.Info("job.rendered", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"user_id":    job.UserID,
		"job_id":     job.ID,
		"docx_key":   renderState.DocxKey,
		"pdf_key":    renderState.PdfKey,
	})
	return s.Repo.GetByID(ctx, job.ID)
}

// DownloadLink signs a time-limited URL for an artifact the viewer may access.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SignDownload returns a presigned URL for a storage key the viewer owns.
// Privileged viewers may sign any key.
func (s *Service) SignDownload(ctx context.Context, userID string, privileged bool, key string, expiresIn time.Duration) (DownloadLink, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return DownloadLink{}, fmt.Errorf("%w: key is required", ErrInvalidInput)
	}
	if !privileged && !s.ownsKey(ctx, userID, key) {
		return DownloadLink{}, ErrNotFound
	}

	if expiresIn <= 0 {
		expiresIn = s.DownloadTTL
	}
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	if expiresIn > maxDownloadExpiry {
		expiresIn = maxDownloadExpiry
	}

	url, expiresAt, err := s.Signer.SignDownload(ctx, key, expiresIn)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return DownloadLink{}, ErrNotFound
		}
		return DownloadLink{}, fmt.Errorf("sign download: %w", err)
	}
	return DownloadLink{URL: url, ExpiresAt: expiresAt}, nil
}

func (s *Service) ownsKey(ctx context.Context, userID, key string) bool {
	if strings.HasPrefix(key, jobsKeyPrefix+"/"+util.HashUserKey(userID)+"/") {
		return true
	}
	if s.Uploads == nil {
		return false
	}
	_, err := s.Uploads.GetByKey(ctx, userID, key)
	return err == nil
}

// Get returns a job visible to the viewer.
func (s *Service) Get(ctx context.Context, userID string, privileged bool, jobID string) (Job, error) {
	if jobID == "" {
		return Job{}, fmt.Errorf("%w: job id is required", ErrInvalidInput)
	}
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if !privileged && job.UserID != userID {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// List returns jobs newest-first. Privileged viewers see every user's jobs.
func (s *Service) List(ctx context.Context, userID string, privileged bool, limit, offset int) ([]Job, error) {
	if privileged {
		return s.Repo.ListAll(ctx, limit, offset)
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

const (
	probeResume = "Experienced backend engineer. Built Go services on AWS with Postgres. " +
		"Led migrations, on-call rotations and performance work."
	probeJobDescription = "We are hiring a backend engineer to build Go services. " +
		"Experience with Postgres, AWS and distributed systems required. Backend engineer mindset, Go expertise."
)

// Probe runs a canned tailoring request synchronously. Used by the smoke-test
// endpoint to verify provider wiring end to end. Provider and model are
// optional overrides.
func (s *Service) Probe(ctx context.Context, userID, provider, model string) (Job, error) {
	return s.SubmitSync(ctx, userID, SubmitInput{
		ResumeText:     probeResume,
		JobDescription: probeJobDescription,
		Provider:       provider,
		Model:          model,
	})
}

func (s *Service) failJob(ctx context.Context, jobID, userID string, cause error, startedAt *time.Time) {
	code := classifyFailure(cause)
	msg := util.SanitizeErrorMessage(cause)
	completedAt := s.now()
	if err := s.Repo.Fail(context.Background(), jobID, code, msg, completedAt); err != nil && !errors.Is(err, ErrTerminal) {
		telemetry.Error("job.fail.update", map[string]any{
			"job_id": jobID,
			"err":    err.Error(),
			"cause":  msg,
		})
	}
	metrics.IncJobFailed()
	var duration float64
	if startedAt != nil {
		duration = metrics.DurationMs(*startedAt, completedAt)
		metrics.ObserveTailorDurationMs(duration)
	}
	telemetry.Info("job.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           userID,
		"job_id":            jobID,
		"status":            StatusFailed,
		"status_transition": "running->failed",
		"error_code":        code,
		"duration_ms":       duration,
	})
}

func (s *Service) logStatus(ctx context.Context, job Job, status, transition string, durationMs float64) {
	telemetry.Info("job.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           job.UserID,
		"job_id":            job.ID,
		"status":            status,
		"status_transition": transition,
		"duration_ms":       durationMs,
	})
}

func classifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeLLMTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "request timeout"):
		return ErrorCodeLLMTimeout
	case strings.Contains(msg, "timeout") && strings.Contains(msg, "llm"):
		return ErrorCodeLLMTimeout
	case strings.Contains(msg, "schema"),
		strings.Contains(msg, "llm output invalid"),
		strings.Contains(msg, "decode tailored"),
		strings.Contains(msg, "tailored content is empty"),
		strings.Contains(msg, "invalid json"):
		return ErrorCodeLLMSchemaMismatch
	case strings.Contains(msg, "validation") && !strings.Contains(msg, "llm"):
		return ErrorCodeValidation
	case strings.Contains(msg, "load resume input"),
		strings.Contains(msg, "load job description input"),
		strings.Contains(msg, "store tailored"),
		strings.Contains(msg, "snapshot"),
		strings.Contains(msg, "storage"),
		strings.Contains(msg, "set running"),
		strings.Contains(msg, "set job complete"):
		return ErrorCodeStorage
	default:
		return ErrorCodeInternal
	}
}

func (s *Service) loadText(ctx context.Context, key string) (string, error) {
	data, err := s.loadBytes(ctx, key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Service) loadBytes(ctx context.Context, key string) ([]byte, error) {
	body, err := s.Store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func jobPrefix(userID, jobID string) string {
	return path.Join(jobsKeyPrefix, util.HashUserKey(userID), jobID)
}
