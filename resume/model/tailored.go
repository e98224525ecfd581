package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TailoredResume is the structured content produced by the tailoring step.
type TailoredResume struct {
	Header     Header         `json:"header"`
	Summary    string         `json:"summary"`
	Skills     []string       `json:"skills"`
	Experience []Experience   `json:"experience"`
	Education  []Education    `json:"education"`
	Extras     map[string]any `json:"extras,omitempty"`
}

// Header carries the contact block of the tailored resume.
type Header struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Contact string `json:"contact"`
}

// Experience is one employment entry.
type Experience struct {
	Company string   `json:"company"`
	Title   string   `json:"title"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Bullets []string `json:"bullets"`
}

// Education is one education entry.
type Education struct {
	School string `json:"school"`
	Degree string `json:"degree"`
	Year   string `json:"year"`
}

// ErrEmptyContent indicates a decoded resume with no usable sections.
var ErrEmptyContent = errors.New("tailored content is empty")

// Decode parses raw provider output into a TailoredResume.
func Decode(raw json.RawMessage) (TailoredResume, error) {
	var resume TailoredResume
	if err := json.Unmarshal(raw, &resume); err != nil {
		return TailoredResume{}, fmt.Errorf("decode tailored content: %w", err)
	}
	if resume.isEmpty() {
		return TailoredResume{}, ErrEmptyContent
	}
	return resume, nil
}

func (r TailoredResume) isEmpty() bool {
	return strings.TrimSpace(r.Summary) == "" &&
		len(r.Skills) == 0 &&
		len(r.Experience) == 0 &&
		len(r.Education) == 0
}

// SectionLines flattens the resume into display lines, section headings in
// upper case, list entries prefixed with a dash. Used by the DOCX renderer
// and the plain-text PDF body.
func (r TailoredResume) SectionLines() []string {
	var lines []string

	if r.Header.Name != "" || r.Header.Title != "" || r.Header.Contact != "" {
		lines = append(lines, "HEADER")
		for _, v := range []string{r.Header.Name, r.Header.Title, r.Header.Contact} {
			if strings.TrimSpace(v) != "" {
				lines = append(lines, v)
			}
		}
		lines = append(lines, "")
	}

	if strings.TrimSpace(r.Summary) != "" {
		lines = append(lines, "SUMMARY", r.Summary, "")
	}

	if len(r.Skills) > 0 {
		lines = append(lines, "SKILLS")
		for _, s := range r.Skills {
			lines = append(lines, "- "+s)
		}
		lines = append(lines, "")
	}

	if len(r.Experience) > 0 {
		lines = append(lines, "EXPERIENCE")
		for _, exp := range r.Experience {
			heading := strings.TrimSpace(strings.Join(nonEmpty(exp.Title, exp.Company), ", "))
			if span := strings.TrimSpace(strings.Join(nonEmpty(exp.Start, exp.End), " - ")); span != "" {
				heading = strings.TrimSpace(heading + " (" + span + ")")
			}
			if heading != "" {
				lines = append(lines, heading)
			}
			for _, b := range exp.Bullets {
				lines = append(lines, "- "+b)
			}
		}
		lines = append(lines, "")
	}

	if len(r.Education) > 0 {
		lines = append(lines, "EDUCATION")
		for _, edu := range r.Education {
			entry := strings.TrimSpace(strings.Join(nonEmpty(edu.Degree, edu.School, edu.Year), ", "))
			if entry != "" {
				lines = append(lines, "- "+entry)
			}
		}
		lines = append(lines, "")
	}

	// Trim the trailing blank separator.
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// PlainText renders the resume as newline-joined section lines.
func (r TailoredResume) PlainText() string {
	return strings.Join(r.SectionLines(), "\n")
}

// PresentSections lists the section names that carry content.
func (r TailoredResume) PresentSections() []string {
	var present []string
	if strings.TrimSpace(r.Summary) != "" {
		present = append(present, "Summary")
	}
	if len(r.Skills) > 0 {
		present = append(present, "Skills")
	}
	if len(r.Experience) > 0 {
		present = append(present, "Experience")
	}
	if len(r.Education) > 0 {
		present = append(present, "Education")
	}
	return present
}

// RequiredSections is the set a delivered resume must populate.
func RequiredSections() []string {
	return []string{"Summary", "Skills", "Experience", "Education"}
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
