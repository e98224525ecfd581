package dashboard

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Session is the dashboard view-model: selected input assets, the
// in-memory job list, and the download-link cache. All state is local
// to the session; nothing here is persisted.
type Session struct {
	client *Client

	mu             sync.Mutex
	resume         *Upload
	template       *Upload
	jobsUpload     *Upload
	resumeText     string
	jobDescription string
	jobs           map[string]Job

	links  linkCache
	poller *Poller
}

// NewSession constructs a session bound to an API client.
func NewSession(client *Client) *Session {
	return &Session{
		client: client,
		jobs:   make(map[string]Job),
		links:  linkCache{entries: make(map[string]Link)},
	}
}

// Close stops any running poller. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	poller := s.poller
	s.poller = nil
	s.mu.Unlock()
	if poller != nil {
		poller.Stop()
	}
}

// SelectResume records the resume upload to tailor.
func (s *Session) SelectResume(u Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resume = &u
}

// SelectTemplate records the DOCX template upload to render with.
func (s *Session) SelectTemplate(u Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.template = &u
}

// SelectJobsUpload records the job-description upload to tailor against.
func (s *Session) SelectJobsUpload(u Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobsUpload = &u
}

// SetResumeText sets inline resume text, overriding any selection.
func (s *Session) SetResumeText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumeText = text
}

// SetJobDescription sets inline job-description text.
func (s *Session) SetJobDescription(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobDescription = text
}

// Submit validates the current selection and submits a tailoring job.
// Invalid selections fail with ValidationError before any network call.
func (s *Session) Submit(ctx context.Context) (Job, error) {
	input, err := s.buildSubmitInput()
	if err != nil {
		return Job{}, err
	}
	job, err := s.client.Submit(ctx, input)
	if err != nil {
		return Job{}, err
	}
	s.applyJob(job)
	return job, nil
}

// SubmitSync behaves like Submit but blocks until the job is terminal.
func (s *Session) SubmitSync(ctx context.Context) (Job, error) {
	input, err := s.buildSubmitInput()
	if err != nil {
		return Job{}, err
	}
	job, err := s.client.SubmitSync(ctx, input)
	if err != nil {
		return Job{}, err
	}
	s.applyJob(job)
	return job, nil
}

func (s *Session) buildSubmitInput() (SubmitInput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resumeText := strings.TrimSpace(s.resumeText)
	jdText := strings.TrimSpace(s.jobDescription)

	// Either both texts inline, or a resume+template selection with a
	// job description from text or a selected upload.
	inlineOK := resumeText != "" && jdText != ""
	selectionOK := s.resume != nil && s.template != nil && (jdText != "" || s.jobsUpload != nil)
	if !inlineOK && !selectionOK {
		return SubmitInput{}, ValidationError{Message: "select a resume and template, or provide resume and job description text"}
	}

	input := SubmitInput{
		ResumeText:     resumeText,
		JobDescription: jdText,
	}
	if !inlineOK {
		input.ResumeText = ""
		input.ResumeKey = s.resume.Key
		input.TemplateKey = s.template.Key
		if jdText == "" {
			input.JobDescription = ""
			input.JobDescKey = s.jobsUpload.Key
		}
	}
	return input, nil
}

// Render asks the server to produce artifacts for a job. Format is
// "docx", "pdf" or "both"; empty means both. The selected template, if
// any, is sent along.
func (s *Session) Render(ctx context.Context, jobID, format string) (Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return Job{}, ValidationError{Message: "job id is required"}
	}
	s.mu.Lock()
	templateKey := ""
	if s.template != nil {
		templateKey = s.template.Key
	}
	s.mu.Unlock()

	job, err := s.client.Render(ctx, jobID, templateKey, format)
	if err != nil {
		return Job{}, err
	}
	s.applyJob(job)
	return job, nil
}

// RefreshJobs pulls the caller's job list and reconciles local state.
func (s *Session) RefreshJobs(ctx context.Context) ([]Job, error) {
	items, err := s.client.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	for _, job := range items {
		s.applyJob(job)
	}
	return s.Jobs(), nil
}

// Jobs returns a snapshot of known jobs, newest first.
func (s *Session) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Job returns the locally known job state, if any.
func (s *Session) Job(jobID string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	return job, ok
}

// applyJob reconciles a server snapshot. Last write wins per job id,
// except that a terminal local status is never regressed by a stale
// non-terminal snapshot.
func (s *Session) applyJob(job Job) {
	if job.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[job.ID]
	if ok && existing.Terminal() && !job.Terminal() {
		return
	}
	s.jobs[job.ID] = job
}

// activeJobIDs lists jobs still in pending or running state.
func (s *Session) activeJobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, job := range s.jobs {
		if !job.Terminal() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
