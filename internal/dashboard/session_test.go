package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// countingServer records how many requests reached the backend.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestSessionSubmitValidationNoNetwork(t *testing.T) {
	srv, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})

	s := NewSession(NewClient(srv.URL, "user-1", ""))
	defer s.Close()

	cases := []func(){
		func() {}, // nothing selected
		func() { s.SetResumeText("resume only") },
		func() { s.SelectResume(Upload{Key: "approved/u/r.pdf"}) }, // no template, no jd
	}
	for i, setup := range cases {
		setup()
		_, err := s.Submit(context.Background())
		var vErr ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("network calls = %d", calls.Load())
	}
}

func TestSessionSubmitInlineText(t *testing.T) {
	var body SubmitInput
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(Job{ID: "job-1", Status: "pending", CreatedAt: time.Now().UTC()})
	})

	s := NewSession(NewClient(srv.URL, "user-1", ""))
	defer s.Close()
	s.SetResumeText("Backend engineer. Go, Postgres.")
	s.SetJobDescription("Backend engineer building Go services.")

	job, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != "pending" {
		t.Fatalf("job = %+v", job)
	}
	if body.ResumeText == "" || body.JobDescription == "" || body.ResumeKey != "" {
		t.Fatalf("body = %+v", body)
	}

	if got, ok := s.Job("job-1"); !ok || got.Status != "pending" {
		t.Fatalf("session job = %+v ok=%v", got, ok)
	}
}

func TestSessionSubmitFromSelections(t *testing.T) {
	var body SubmitInput
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Fresh value per request so omitted fields do not carry over.
		body = SubmitInput{}
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(Job{ID: "job-2", Status: "pending", CreatedAt: time.Now().UTC()})
	})

	s := NewSession(NewClient(srv.URL, "user-1", ""))
	defer s.Close()
	s.SelectResume(Upload{Key: "approved/u/r.pdf"})
	s.SelectTemplate(Upload{Key: "template/u/t.docx"})
	s.SelectJobsUpload(Upload{Key: "jobs/u/jd.txt"})

	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if body.ResumeKey != "approved/u/r.pdf" || body.TemplateKey != "template/u/t.docx" || body.JobDescKey != "jobs/u/jd.txt" {
		t.Fatalf("body = %+v", body)
	}
	if body.ResumeText != "" || body.JobDescription != "" {
		t.Fatalf("body = %+v", body)
	}

	// Inline JD text wins over the jobs selection.
	s.SetJobDescription("Backend engineer wanted.")
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if body.JobDescription != "Backend engineer wanted." || body.JobDescKey != "" {
		t.Fatalf("body = %+v", body)
	}
}

func TestSessionRenderSendsFormat(t *testing.T) {
	var body map[string]string
	srv, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		body = map[string]string{}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(Job{
			ID: "job-3", Status: "complete", CreatedAt: time.Now().UTC(),
			Render: JobRender{PdfKey: "p.pdf"},
		})
	})

	s := NewSession(NewClient(srv.URL, "user-1", ""))
	defer s.Close()
	s.SelectTemplate(Upload{Key: "template/u/t.docx"})

	var vErr ValidationError
	if _, err := s.Render(context.Background(), "  ", "pdf"); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("network calls = %d", calls.Load())
	}

	job, err := s.Render(context.Background(), "job-3", "pdf")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if body["jobId"] != "job-3" || body["templateKey"] != "template/u/t.docx" || body["format"] != "pdf" {
		t.Fatalf("body = %+v", body)
	}
	if job.Render.PdfKey != "p.pdf" {
		t.Fatalf("job = %+v", job)
	}
	if got, ok := s.Job("job-3"); !ok || got.Render.PdfKey != "p.pdf" {
		t.Fatalf("session job = %+v ok=%v", got, ok)
	}
}

func TestSessionApplyJobNoTerminalRegression(t *testing.T) {
	s := NewSession(NewClient("http://unused", "user-1", ""))
	defer s.Close()

	created := time.Now().UTC()
	s.applyJob(Job{ID: "job-1", Status: "complete", CreatedAt: created})
	// Stale snapshot from an earlier poll must not regress the status.
	s.applyJob(Job{ID: "job-1", Status: "running", CreatedAt: created})

	job, ok := s.Job("job-1")
	if !ok || job.Status != "complete" {
		t.Fatalf("job = %+v ok=%v", job, ok)
	}

	// Terminal-to-terminal updates still apply (render keys attach later).
	s.applyJob(Job{ID: "job-1", Status: "complete", CreatedAt: created, Render: JobRender{DocxKey: "d.docx"}})
	job, _ = s.Job("job-1")
	if job.Render.DocxKey != "d.docx" {
		t.Fatalf("job = %+v", job)
	}
}

func TestSessionJobsNewestFirst(t *testing.T) {
	s := NewSession(NewClient("http://unused", "user-1", ""))
	defer s.Close()

	base := time.Now().UTC()
	s.applyJob(Job{ID: "old", Status: "complete", CreatedAt: base.Add(-time.Hour)})
	s.applyJob(Job{ID: "new", Status: "pending", CreatedAt: base})

	jobs := s.Jobs()
	if len(jobs) != 2 || jobs[0].ID != "new" || jobs[1].ID != "old" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestSessionRefreshJobs(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"items": []Job{
			{ID: "job-1", Status: "running", CreatedAt: time.Now().UTC()},
			{ID: "job-2", Status: "complete", CreatedAt: time.Now().UTC()},
		}})
	})

	s := NewSession(NewClient(srv.URL, "user-1", ""))
	defer s.Close()

	jobs, err := s.RefreshJobs(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %+v", jobs)
	}
	if ids := s.activeJobIDs(); len(ids) != 1 || ids[0] != "job-1" {
		t.Fatalf("active = %v", ids)
	}
}
