package dashboard

import (
	"context"
	"sync"
	"time"
)

// linkExpirySkew keeps a cached link from being handed out right before
// it expires.
const linkExpirySkew = 30 * time.Second

type linkCache struct {
	mu      sync.Mutex
	entries map[string]Link
}

func (c *linkCache) get(key string, now time.Time) (Link, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	link, ok := c.entries[key]
	if !ok {
		return Link{}, false
	}
	if !link.ExpiresAt.IsZero() && now.After(link.ExpiresAt.Add(-linkExpirySkew)) {
		delete(c.entries, key)
		return Link{}, false
	}
	return link, true
}

func (c *linkCache) put(key string, link Link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = link
}

// ArtifactLinks holds the per-artifact outcome of a link fetch.
// Partial is set when at least one artifact is missing or failed while
// another succeeded.
type ArtifactLinks struct {
	Docx    *Link
	Pdf     *Link
	Partial bool
	DocxErr error
	PdfErr  error
}

// DownloadLink signs a link for one key, serving from the cache when a
// still-valid entry exists.
func (s *Session) DownloadLink(ctx context.Context, key string, expiresIn time.Duration) (Link, error) {
	if key == "" {
		return Link{}, ValidationError{Message: "storage key is required"}
	}
	if link, ok := s.links.get(key, time.Now()); ok {
		return link, nil
	}
	link, err := s.client.DownloadLink(ctx, key, expiresIn)
	if err != nil {
		return Link{}, err
	}
	s.links.put(key, link)
	return link, nil
}

// ArtifactLinks fetches download links for a job's rendered DOCX and
// PDF concurrently. Each fetch settles on its own; one failure never
// blocks or voids the other.
func (s *Session) ArtifactLinks(ctx context.Context, jobID string, expiresIn time.Duration) (ArtifactLinks, error) {
	job, ok := s.Job(jobID)
	if !ok {
		var err error
		job, err = s.client.Job(ctx, jobID)
		if err != nil {
			return ArtifactLinks{}, err
		}
		s.applyJob(job)
	}

	out := ArtifactLinks{}
	if job.Render.DocxKey == "" && job.Render.PdfKey == "" {
		return out, ErrPrecondition
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	fetch := func(key string, assign func(*Link, error)) {
		defer wg.Done()
		link, err := s.DownloadLink(ctx, key, expiresIn)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			assign(nil, err)
			return
		}
		assign(&link, nil)
	}

	if job.Render.DocxKey != "" {
		wg.Add(1)
		go fetch(job.Render.DocxKey, func(l *Link, err error) { out.Docx, out.DocxErr = l, err })
	}
	if job.Render.PdfKey != "" {
		wg.Add(1)
		go fetch(job.Render.PdfKey, func(l *Link, err error) { out.Pdf, out.PdfErr = l, err })
	}
	wg.Wait()

	docxMissing := job.Render.DocxKey == "" || out.DocxErr != nil
	pdfMissing := job.Render.PdfKey == "" || out.PdfErr != nil
	if docxMissing && pdfMissing {
		if out.DocxErr != nil {
			return out, out.DocxErr
		}
		return out, out.PdfErr
	}
	out.Partial = docxMissing || pdfMissing
	return out, nil
}
