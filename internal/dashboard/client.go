package dashboard

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a thin JSON client for the tailoring API, used by dashboard
// frontends. Identity travels as headers; there is no retry logic here,
// callers retry explicitly.
type Client struct {
	baseURL    string
	userID     string
	adminKey   string
	httpClient *http.Client
}

// NewClient constructs a client for baseURL acting as userID. adminKey
// may be empty; when set it marks the caller as a privileged viewer.
func NewClient(baseURL, userID, adminKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		userID:     userID,
		adminKey:   adminKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload mirrors the server's upload record.
type Upload struct {
	Key         string    `json:"key"`
	Category    string    `json:"category"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Job mirrors the server's job record.
type Job struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Status   string `json:"status"`

	JSONKey string    `json:"jsonKey,omitempty"`
	Render  JobRender `json:"render"`

	ErrorCode string `json:"errorCode,omitempty"`
	Error     string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// JobRender mirrors the server's render artifacts.
type JobRender struct {
	DocxKey     string     `json:"docxKey,omitempty"`
	PdfKey      string     `json:"pdfKey,omitempty"`
	TemplateKey string     `json:"templateKey,omitempty"`
	RenderedAt  *time.Time `json:"renderedAt,omitempty"`
}

// Terminal reports whether the job can no longer change primary status.
func (j Job) Terminal() bool {
	return j.Status == "complete" || j.Status == "failed"
}

// Link is a time-limited download URL.
type Link struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SubmitInput is the tailoring request body.
type SubmitInput struct {
	ResumeText     string `json:"resumeText,omitempty"`
	JobDescription string `json:"jobDescription,omitempty"`
	ResumeKey      string `json:"resumeKey,omitempty"`
	JobDescKey     string `json:"jobDescKey,omitempty"`
	TemplateKey    string `json:"templateKey,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
}

// UploadInput is the upload request; Content is raw bytes, encoded on
// the wire as base64.
type UploadInput struct {
	Category    string
	FileName    string
	ContentType string
	Content     []byte
}

// Upload stores a file and returns its record.
func (c *Client) Upload(ctx context.Context, input UploadInput) (Upload, error) {
	var out Upload
	err := c.post(ctx, "/api/v1/upload", map[string]string{
		"category": input.Category,
		"fileName": input.FileName,
		"fileType": input.ContentType,
		"content":  base64.StdEncoding.EncodeToString(input.Content),
	}, &out)
	return out, err
}

// ListUploads lists the caller's uploads, optionally filtered by category.
func (c *Client) ListUploads(ctx context.Context, category string) ([]Upload, error) {
	path := "/api/v1/uploads"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var out struct {
		Items []Upload `json:"items"`
	}
	err := c.get(ctx, path, &out)
	return out.Items, err
}

// Submit enqueues a tailoring job and returns it in pending state.
func (c *Client) Submit(ctx context.Context, input SubmitInput) (Job, error) {
	var out Job
	err := c.post(ctx, "/api/v1/tailor", input, &out)
	return out, err
}

// SubmitSync runs a tailoring job inline and returns the terminal job.
func (c *Client) SubmitSync(ctx context.Context, input SubmitInput) (Job, error) {
	var out Job
	err := c.post(ctx, "/api/v1/tailor/sync", input, &out)
	return out, err
}

// Job fetches a single job by id.
func (c *Client) Job(ctx context.Context, jobID string) (Job, error) {
	var out Job
	err := c.get(ctx, "/api/v1/jobs/"+url.PathEscape(jobID), &out)
	return out, err
}

// ListJobs lists the caller's jobs, newest first.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var out struct {
		Items []Job `json:"items"`
	}
	err := c.get(ctx, "/api/v1/jobs", &out)
	return out.Items, err
}

// Render produces artifacts for a completed job. Format is "docx", "pdf"
// or "both"; empty means both.
func (c *Client) Render(ctx context.Context, jobID, templateKey, format string) (Job, error) {
	var out Job
	err := c.post(ctx, "/api/v1/render", map[string]string{
		"jobId":       jobID,
		"templateKey": templateKey,
		"format":      format,
	}, &out)
	return out, err
}

// DownloadLink signs a time-limited URL for a stored object.
func (c *Client) DownloadLink(ctx context.Context, key string, expiresIn time.Duration) (Link, error) {
	path := "/api/v1/download?key=" + url.QueryEscape(key)
	if expiresIn > 0 {
		path += "&expiresIn=" + strconv.Itoa(int(expiresIn/time.Second))
	}
	var out Link
	err := c.get(ctx, path, &out)
	return out, err
}

// Models lists allowed model ids for a provider.
func (c *Client) Models(ctx context.Context, provider string) ([]string, error) {
	var out struct {
		Models []string `json:"models"`
	}
	err := c.get(ctx, "/api/v1/models?provider="+url.QueryEscape(provider), &out)
	return out.Models, err
}

// ProbeResult reports the outcome of the provider connectivity probe.
type ProbeResult struct {
	OK        bool   `json:"ok"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	LatencyMs int64  `json:"latencyMs"`
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
}

// ProbeProvider runs the canned connectivity probe end to end.
func (c *Client) ProbeProvider(ctx context.Context) (ProbeResult, error) {
	var out ProbeResult
	err := c.get(ctx, "/api/v1/tailor/test", &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-Id", c.userID)
	if c.adminKey != "" {
		req.Header.Set("X-Admin-Key", c.adminKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TransportError{Err: err}
	}
	return decodeJSON(resp, out)
}

func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeRemoteError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeRemoteError(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return RemoteError{Status: resp.StatusCode}
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		return RemoteError{Status: resp.StatusCode, Message: string(raw)}
	}
	return RemoteError{
		Status:  resp.StatusCode,
		Code:    envelope.Error.Code,
		Message: envelope.Error.Message,
	}
}
