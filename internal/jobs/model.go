package jobs

import "time"

// Job lifecycle statuses. A job is terminal once complete or failed.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Job is one tailoring run: inputs snapshotted under the job's storage
// prefix, the tailored JSON written on completion and render artifacts
// attached afterwards.
type Job struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Status   string `json:"status"`

	ResumeKey   string `json:"resumeKey,omitempty"`
	JobDescKey  string `json:"jobDescKey,omitempty"`
	TemplateKey string `json:"templateKey,omitempty"`

	JSONKey          string            `json:"jsonKey,omitempty"`
	ValidationReport *ValidationReport `json:"validationReport,omitempty"`

	Render Render `json:"render"`

	ErrorCode  string `json:"errorCode,omitempty"`
	Error      string `json:"error,omitempty"`
	ShareToken string `json:"-"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Render holds the artifacts of the render sub-stage.
type Render struct {
	DocxKey     string     `json:"docxKey,omitempty"`
	PdfKey      string     `json:"pdfKey,omitempty"`
	TemplateKey string     `json:"templateKey,omitempty"`
	RenderedAt  *time.Time `json:"renderedAt,omitempty"`
}

// Terminal reports whether the job status allows no further transitions.
func (j Job) Terminal() bool {
	return j.Status == StatusComplete || j.Status == StatusFailed
}

// Rendered reports whether the render sub-stage has produced artifacts.
func (j Job) Rendered() bool {
	return j.Render.DocxKey != "" || j.Render.PdfKey != ""
}
