package uploads

import (
	"fmt"
	"strings"
	"time"
)

// Categories an upload can be filed under. Approved resumes and templates
// feed tailoring jobs; job descriptions can be stored for reuse.
const (
	CategoryApproved = "approved"
	CategoryTemplate = "template"
	CategoryJobs     = "jobs"
)

// Upload is a stored document owned by a user.
type Upload struct {
	Key         string    `json:"key"`
	UserID      string    `json:"userId"`
	Category    string    `json:"category"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ParseCategory normalizes and validates an upload category.
func ParseCategory(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case CategoryApproved:
		return CategoryApproved, nil
	case CategoryTemplate:
		return CategoryTemplate, nil
	case CategoryJobs:
		return CategoryJobs, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, raw)
	}
}
