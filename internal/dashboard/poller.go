package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultPollInterval is how often the dashboard refreshes active jobs.
const DefaultPollInterval = 8 * time.Second

// Poller periodically refreshes pending/running jobs until stopped or
// until no active jobs remain.
type Poller struct {
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// StartPolling begins refreshing active jobs every interval (default 8s
// when interval <= 0). The poller stops itself once every known job is
// terminal. Starting a second poller stops the previous one.
func (s *Session) StartPolling(ctx context.Context, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	previous := s.poller
	s.poller = p
	s.mu.Unlock()
	if previous != nil {
		previous.Stop()
	}

	go s.pollLoop(ctx, p, interval)
	return p
}

// Stop halts the poller and waits for the loop to exit. Idempotent.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (s *Session) pollLoop(ctx context.Context, p *Poller, interval time.Duration) {
	defer close(p.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			if !s.pollOnce(ctx) {
				return
			}
		}
	}
}

// pollOnce refreshes every active job; returns false when nothing is
// left to poll.
func (s *Session) pollOnce(ctx context.Context) bool {
	ids := s.activeJobIDs()
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		job, err := s.client.Job(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return false
			}
			// Transient failures are skipped; the next tick retries.
			continue
		}
		s.applyJob(job)
	}
	return len(s.activeJobIDs()) > 0
}
