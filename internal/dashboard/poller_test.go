package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func TestPollerRefreshesUntilTerminal(t *testing.T) {
	var polls atomic.Int64
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		status := "running"
		if polls.Add(1) >= 3 {
			status = "complete"
		}
		json.NewEncoder(w).Encode(Job{ID: "job-1", Status: status, CreatedAt: time.Now().UTC()})
	})

	s := NewSession(NewClient(srv.URL, "user-1", ""))
	defer s.Close()
	s.applyJob(Job{ID: "job-1", Status: "pending", CreatedAt: time.Now().UTC()})

	p := s.StartPolling(context.Background(), 5*time.Millisecond)

	deadline := time.After(5 * time.Second)
	for {
		if job, _ := s.Job("job-1"); job.Terminal() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never became terminal")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Once everything is terminal the poller winds itself down; Stop
	// afterwards is a no-op and must not hang or panic.
	p.Stop()
	p.Stop()

	job, _ := s.Job("job-1")
	if job.Status != "complete" {
		t.Fatalf("status = %q", job.Status)
	}
}

func TestPollerStopsWhenNoActiveJobs(t *testing.T) {
	srv, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})

	s := NewSession(NewClient(srv.URL, "user-1", ""))
	defer s.Close()
	s.applyJob(Job{ID: "job-1", Status: "complete", CreatedAt: time.Now().UTC()})

	p := s.StartPolling(context.Background(), time.Millisecond)
	p.Stop()

	if calls.Load() != 0 {
		t.Fatalf("network calls = %d", calls.Load())
	}
}

func TestPollerStopIsIdempotentAndCloseStops(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Job{ID: "job-1", Status: "running", CreatedAt: time.Now().UTC()})
	})

	s := NewSession(NewClient(srv.URL, "user-1", ""))
	s.applyJob(Job{ID: "job-1", Status: "running", CreatedAt: time.Now().UTC()})

	s.StartPolling(context.Background(), time.Millisecond)
	s.Close()
	s.Close()
}

func TestPollerContextCancelStopsLoop(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Job{ID: "job-1", Status: "running", CreatedAt: time.Now().UTC()})
	})

	s := NewSession(NewClient(srv.URL, "user-1", ""))
	defer s.Close()
	s.applyJob(Job{ID: "job-1", Status: "running", CreatedAt: time.Now().UTC()})

	ctx, cancel := context.WithCancel(context.Background())
	p := s.StartPolling(ctx, time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after context cancel")
	}
}
