package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"tailor-backend/internal/llm"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	maxTokens        = 1500
	temperature      = 0.4
)

type invokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client implements llm.Client using Amazon Bedrock's Anthropic messages API.
type Client struct {
	api   invokeAPI
	model string
}

// NewClient constructs a Bedrock client in the given region. model is the
// default model ID used when a request carries no selection of its own.
func NewClient(ctx context.Context, region, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("MODEL_ID is required for Bedrock")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if strings.TrimSpace(region) != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Client{
		api:   bedrockruntime.NewFromConfig(cfg),
		model: model,
	}, nil
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
}

// Tailor runs one tailoring call, retrying once through the fix-JSON prompt
// when the model returns malformed JSON.
func (c *Client) Tailor(ctx context.Context, input llm.TailorInput) (json.RawMessage, error) {
	model := strings.TrimSpace(input.Model)
	if model == "" {
		model = c.model
	}

	if rawFix, hasFix := llm.FixJSONFromContext(ctx); hasFix {
		raw, err := c.invoke(ctx, model, systemPromptFixJSON, fixUserPrompt(rawFix))
		if err != nil {
			return nil, err
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("invalid JSON from Bedrock")
		}
		return raw, nil
	}

	raw, err := c.invoke(ctx, model, systemPromptTailor, buildUserPrompt(input.ResumeText, input.JobDescription))
	if err != nil {
		return nil, err
	}
	if json.Valid(raw) {
		return raw, nil
	}

	raw, err = c.invoke(ctx, model, systemPromptFixJSON, fixUserPrompt(string(raw)))
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON from Bedrock")
	}
	return raw, nil
}

func (c *Client) invoke(ctx context.Context, model, system, user string) (json.RawMessage, error) {
	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		System:           system,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicBlock{{Type: "text", Text: user}}},
		},
	})
	if err != nil {
		return nil, err
	}

	contentType := "application/json"
	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &model,
		ContentType: &contentType,
		Accept:      &contentType,
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke model=%s: %w", model, err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return nil, fmt.Errorf("bedrock response parse: %w", err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return nil, fmt.Errorf("bedrock response empty content")
	}
	return json.RawMessage(content), nil
}

const (
	systemPromptTailor  = "You are a resume tailoring assistant. Keep content truthful; align with the job description; prefer measurable impact; return ONLY a strict JSON object matching the requested schema."
	systemPromptFixJSON = "You are a JSON repair tool. Return only valid JSON that matches the schema exactly."

	schemaHint = "Return JSON with keys: header{name,title,contact}, summary, skills[], experience[{ company,title,start,end,bullets[] }], education[{ school,degree,year }], extras? (object). No markdown."
)

func buildUserPrompt(resumeText, jobDescription string) string {
	jd := jobDescription
	if strings.TrimSpace(jd) == "" {
		jd = "N/A"
	}
	return fmt.Sprintf("Resume:\n%s\n\nJob Description:\n%s\n\n%s", resumeText, jd, schemaHint)
}

func fixUserPrompt(raw string) string {
	return fmt.Sprintf("Fix this JSON to match the schema exactly. Output JSON only:\n%s", raw)
}

var _ llm.Client = (*Client)(nil)
