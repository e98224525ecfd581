package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const sampleJSON = `{
	"header": {"name": "Ada Example", "title": "Backend Engineer", "contact": "ada@example.com"},
	"summary": "Engineer with 8 years of Go and distributed systems.",
	"skills": ["Go", "Postgres", "AWS"],
	"experience": [
		{"company": "Acme", "title": "Senior Engineer", "start": "2019", "end": "2024",
		 "bullets": ["Led migration to event-driven pipeline", "Cut p99 latency 40%"]}
	],
	"education": [{"school": "State University", "degree": "BSc Computer Science", "year": "2015"}]
}`

func TestDecode(t *testing.T) {
	resume, err := Decode(json.RawMessage(sampleJSON))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resume.Header.Name != "Ada Example" {
		t.Fatalf("unexpected header name %q", resume.Header.Name)
	}
	if len(resume.Skills) != 3 {
		t.Fatalf("expected 3 skills, got %d", len(resume.Skills))
	}
	if len(resume.Experience) != 1 || len(resume.Experience[0].Bullets) != 2 {
		t.Fatalf("unexpected experience shape: %+v", resume.Experience)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	if _, err := Decode(json.RawMessage(`{"summary": `)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestDecodeEmptyContent(t *testing.T) {
	_, err := Decode(json.RawMessage(`{"header":{"name":"x"},"summary":"","skills":[],"experience":[],"education":[]}`))
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestSectionLines(t *testing.T) {
	resume, err := Decode(json.RawMessage(sampleJSON))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	text := resume.PlainText()

	for _, want := range []string{"HEADER", "SUMMARY", "SKILLS", "EXPERIENCE", "EDUCATION"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected section %s in:\n%s", want, text)
		}
	}
	if !strings.Contains(text, "- Go") {
		t.Fatalf("expected dashed skill entry in:\n%s", text)
	}
	if !strings.Contains(text, "Senior Engineer, Acme (2019 - 2024)") {
		t.Fatalf("expected experience heading in:\n%s", text)
	}
	if strings.HasSuffix(text, "\n") {
		t.Fatal("expected no trailing blank line")
	}
}

func TestPresentSections(t *testing.T) {
	resume := TailoredResume{Summary: "x", Skills: []string{"Go"}}
	got := resume.PresentSections()
	if len(got) != 2 || got[0] != "Summary" || got[1] != "Skills" {
		t.Fatalf("unexpected present sections %v", got)
	}
}
