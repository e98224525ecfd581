package openai

import (
	"fmt"
	"strings"
)

// Message represents an OpenAI chat message.
type Message struct {
	Role    string
	Content string
}

const (
	systemPromptTailor  = "You are a resume tailoring assistant. Keep content truthful; align with the job description; prefer measurable impact; return ONLY a strict JSON object matching the requested schema."
	systemPromptFixJSON = "You are a JSON repair tool. Return only valid JSON that matches the schema exactly."

	schemaHint = "Return JSON with keys: header{name,title,contact}, summary, skills[], experience[{ company,title,start,end,bullets[] }], education[{ school,degree,year }], extras? (object). No markdown."
)

// BuildPrompt creates the chat messages for a tailoring request.
func BuildPrompt(resumeText, jobDescription string) []Message {
	return []Message{
		{Role: "system", Content: systemPromptTailor},
		{Role: "user", Content: buildUserPrompt(resumeText, jobDescription)},
	}
}

func buildFixPrompt(raw []byte) []Message {
	return []Message{
		{Role: "system", Content: systemPromptFixJSON},
		{Role: "user", Content: fixUserPrompt(raw)},
	}
}

func buildUserPrompt(resumeText, jobDescription string) string {
	jd := jobDescription
	if strings.TrimSpace(jd) == "" {
		jd = "N/A"
	}
	return fmt.Sprintf("Resume:\n%s\n\nJob Description:\n%s\n\n%s", resumeText, jd, schemaHint)
}

func fixUserPrompt(raw []byte) string {
	return fmt.Sprintf("Fix this JSON to match the schema exactly. Output JSON only:\n%s", string(raw))
}
