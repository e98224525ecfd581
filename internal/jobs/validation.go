package jobs

import (
	"math"
	"regexp"
	"strings"

	"tailor-backend/resume/model"
)

// Validation statuses for a completed job's coverage report.
const (
	ValidationOK     = "OK"
	ValidationReview = "REVIEW"
)

// ValidationReport scores how well the tailored content covers the job
// description's recurring keywords and whether the expected resume sections
// are present.
type ValidationReport struct {
	Score           float64  `json:"score"`
	Status          string   `json:"status"`
	MissingKeywords []string `json:"missingKeywords,omitempty"`
	MissingSections []string `json:"missingSections,omitempty"`
}

const reviewThreshold = 0.6

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// Validate builds a coverage report for tailored content against the job
// description it was produced for.
func Validate(content model.TailoredResume, jobDescription string) ValidationReport {
	required := requiredKeywords(jobDescription)

	contentTokens := make(map[string]struct{})
	for _, tok := range tokenize(content.PlainText()) {
		contentTokens[tok] = struct{}{}
	}

	covered := 0
	var missing []string
	for _, kw := range required {
		if _, ok := contentTokens[kw]; ok {
			covered++
		} else {
			missing = append(missing, kw)
		}
	}

	denom := len(required)
	if denom < 1 {
		denom = 1
	}
	score := math.Round(float64(covered)/float64(denom)*100) / 100

	present := make(map[string]bool)
	for _, section := range content.PresentSections() {
		present[section] = true
	}
	var missingSections []string
	for _, section := range model.RequiredSections() {
		if !present[section] {
			missingSections = append(missingSections, section)
		}
	}

	status := ValidationOK
	if score < reviewThreshold || len(missingSections) > 0 {
		status = ValidationReview
	}

	return ValidationReport{
		Score:           score,
		Status:          status,
		MissingKeywords: missing,
		MissingSections: missingSections,
	}
}

// requiredKeywords extracts the tokens a job description emphasizes: anything
// repeated, or long enough to be a meaningful term.
func requiredKeywords(jobDescription string) []string {
	counts := make(map[string]int)
	var order []string
	for _, tok := range tokenize(jobDescription) {
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	var required []string
	for _, tok := range order {
		if counts[tok] >= 2 || len(tok) > 6 {
			required = append(required, tok)
		}
	}
	return required
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.ToLower(tok)
		if len(tok) > 2 {
			out = append(out, tok)
		}
	}
	return out
}
