package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/llm"
	"tailor-backend/internal/shared/storage/object/local"
	"tailor-backend/internal/uploads"
)

func newTestHandler(t *testing.T, client llm.Client) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := local.New(t.TempDir())
	svc := &Service{
		Repo:        NewMemoryRepo(),
		Uploads:     uploads.NewMemoryRepo(),
		Store:       store,
		Signer:      store,
		LLM:         client,
		Catalog:     llm.NewCatalog(nil, nil),
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		DownloadTTL: time.Hour,
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", c.GetHeader("X-User-Id"))
		c.Set("isPrivileged", c.GetHeader("X-Privileged") == "yes")
		c.Next()
	})
	h := NewHandler(svc)
	h.RegisterRoutes(r.Group("/api/v1"))
	h.RegisterPublicRoutes(r.Group("/api/v1"))
	return r, svc
}

func doJSON(t *testing.T, r *gin.Engine, method, path, userID string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", userID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitSyncEndpoint(t *testing.T) {
	r, _ := newTestHandler(t, &fakeLLM{replies: []string{tailoredJSON}})

	w := doJSON(t, r, http.MethodPost, "/api/v1/tailor/sync", "user-1", map[string]string{
		"resumeText":     "Backend engineer. Go, Postgres.",
		"jobDescription": "Backend engineer building Go services. Backend engineer.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Job
		JSON json.RawMessage `json:"json"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusComplete || resp.ValidationReport == nil {
		t.Fatalf("job = %+v", resp.Job)
	}

	// The tailored content rides along inline so synchronous callers
	// need no follow-up download.
	var content struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(resp.JSON, &content); err != nil {
		t.Fatalf("decode inline content: %v", err)
	}
	if content.Summary == "" {
		t.Fatalf("inline content = %s", resp.JSON)
	}
}

func TestSubmitEndpointAccepted(t *testing.T) {
	r, svc := newTestHandler(t, &fakeLLM{replies: []string{tailoredJSON}})
	svc.Queue = &fakeQueue{}

	w := doJSON(t, r, http.MethodPost, "/api/v1/tailor", "user-1", map[string]string{
		"resumeText":     "resume",
		"jobDescription": "jd",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var job Job
	json.Unmarshal(w.Body.Bytes(), &job)
	if job.Status != StatusPending {
		t.Fatalf("status = %q", job.Status)
	}
}

func TestSubmitEndpointValidation(t *testing.T) {
	r, _ := newTestHandler(t, &fakeLLM{replies: []string{tailoredJSON}})

	w := doJSON(t, r, http.MethodPost, "/api/v1/tailor", "user-1", map[string]string{
		"jobDescription": "jd only",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestRenderEndpointPrecondition(t *testing.T) {
	r, svc := newTestHandler(t, &fakeLLM{err: errors.New("provider down")})

	svc.SubmitSync(context.Background(), "user-1", submitInput())
	jobsList, _ := svc.Repo.ListByUser(context.Background(), "user-1", 0, 0)
	failed := jobsList[0]

	w := doJSON(t, r, http.MethodPost, "/api/v1/render", "user-1", map[string]string{"jobId": failed.ID})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "precondition_failed" {
		t.Fatalf("code = %q", resp.Error.Code)
	}
}

func TestRenderEndpointSuccess(t *testing.T) {
	r, svc := newTestHandler(t, &fakeLLM{replies: []string{tailoredJSON}})

	job, err := svc.SubmitSync(context.Background(), "user-1", submitInput())
	if err != nil {
		t.Fatalf("submit sync: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/render", "user-1", map[string]string{"jobId": job.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var rendered Job
	json.Unmarshal(w.Body.Bytes(), &rendered)
	if rendered.Render.DocxKey == "" || rendered.Render.PdfKey == "" {
		t.Fatalf("render = %+v", rendered.Render)
	}
}

func TestDownloadEndpoint(t *testing.T) {
	r, svc := newTestHandler(t, &fakeLLM{replies: []string{tailoredJSON}})

	job, err := svc.SubmitSync(context.Background(), "user-1", submitInput())
	if err != nil {
		t.Fatalf("submit sync: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/download?key="+job.JSONKey+"&expiresIn=600", "user-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var link DownloadLink
	if err := json.Unmarshal(w.Body.Bytes(), &link); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if link.URL == "" || link.ExpiresAt.IsZero() {
		t.Fatalf("link = %+v", link)
	}

	// Foreign keys look like missing keys.
	w = doJSON(t, r, http.MethodGet, "/api/v1/download?key="+job.JSONKey, "intruder", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/download?key="+job.JSONKey+"&expiresIn=zero", "user-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestJobsVisibilityEndpoints(t *testing.T) {
	r, svc := newTestHandler(t, &fakeLLM{replies: []string{tailoredJSON}})

	jobA, err := svc.SubmitSync(context.Background(), "alpha", submitInput())
	if err != nil {
		t.Fatalf("submit sync: %v", err)
	}
	if _, err := svc.SubmitSync(context.Background(), "beta", submitInput()); err != nil {
		t.Fatalf("submit sync: %v", err)
	}

	// Owner sees it, strangers get 404.
	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs/"+jobA.ID, "alpha", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/jobs/"+jobA.ID, "beta", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}

	// Privileged viewers list everything.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("X-User-Id", "admin")
	req.Header.Set("X-Privileged", "yes")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Items []Job `json:"items"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d", len(resp.Items))
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/jobs", "alpha", nil)
	resp.Items = nil
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Items) != 1 {
		t.Fatalf("items = %d", len(resp.Items))
	}

	// Privileged viewers can narrow to one user; non-privileged callers
	// cannot widen past their own jobs with the same param.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs?userId=alpha", nil)
	req.Header.Set("X-User-Id", "admin")
	req.Header.Set("X-Privileged", "yes")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	resp.Items = nil
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Items) != 1 || resp.Items[0].ID != jobA.ID {
		t.Fatalf("items = %+v", resp.Items)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/jobs?userId=alpha", "beta", nil)
	resp.Items = nil
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Items) != 1 || resp.Items[0].ID == jobA.ID {
		t.Fatalf("items = %+v", resp.Items)
	}
}

func TestShareEndpoint(t *testing.T) {
	r, svc := newTestHandler(t, &fakeLLM{replies: []string{tailoredJSON}})

	job, err := svc.SubmitSync(context.Background(), "alpha", submitInput())
	if err != nil {
		t.Fatalf("submit sync: %v", err)
	}
	stored, err := svc.Repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// No identity headers: the token is the credential.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/share/"+stored.ShareToken, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["id"] != job.ID || resp["status"] != StatusComplete {
		t.Fatalf("resp = %+v", resp)
	}
	for _, field := range []string{"userId", "jsonKey", "resumeKey"} {
		if _, ok := resp[field]; ok {
			t.Fatalf("shared view leaks %q: %+v", field, resp)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/share/no-such-token", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestModelsEndpoint(t *testing.T) {
	r, _ := newTestHandler(t, &fakeLLM{replies: []string{tailoredJSON}})

	w := doJSON(t, r, http.MethodGet, "/api/v1/models?provider=openai", "user-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Provider string   `json:"provider"`
		Models   []string `json:"models"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Provider != "openai" || len(resp.Models) == 0 {
		t.Fatalf("resp = %+v", resp)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/models?provider=azure", "user-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestProbeEndpoint(t *testing.T) {
	r, _ := newTestHandler(t, &fakeLLM{replies: []string{tailoredJSON}})

	w := doJSON(t, r, http.MethodGet, "/api/v1/tailor/test", "user-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		OK       bool   `json:"ok"`
		Provider string `json:"provider"`
		Model    string `json:"model"`
		JobID    string `json:"jobId"`
		Status   string `json:"status"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.OK || resp.Provider != "openai" || resp.Status != StatusComplete || resp.JobID == "" {
		t.Fatalf("resp = %+v", resp)
	}
}
