package llm

import (
	"fmt"
	"strings"
)

// Providers the API accepts for model selection.
const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
)

var defaultAllowed = map[string][]string{
	ProviderOpenAI:  {"gpt-4o-mini", "gpt-4o", "o4-mini"},
	ProviderBedrock: {"anthropic.claude-3-5-sonnet-2024-06-20"},
}

// Catalog holds the per-provider model allowlists.
type Catalog struct {
	allowed map[string][]string
}

// NewCatalog builds a catalog, falling back to the built-in allowlist for any
// provider whose override slice is empty.
func NewCatalog(openAIModels, bedrockModels []string) *Catalog {
	allowed := map[string][]string{
		ProviderOpenAI:  normalizeList(openAIModels, defaultAllowed[ProviderOpenAI]),
		ProviderBedrock: normalizeList(bedrockModels, defaultAllowed[ProviderBedrock]),
	}
	return &Catalog{allowed: allowed}
}

// Providers returns the known provider names in a stable order.
func (c *Catalog) Providers() []string {
	return []string{ProviderOpenAI, ProviderBedrock}
}

// ModelsFor returns the allowed model IDs for a provider.
func (c *Catalog) ModelsFor(provider string) ([]string, error) {
	models, ok := c.allowed[normalizeProvider(provider)]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	out := make([]string, len(models))
	copy(out, models)
	return out, nil
}

// ValidateSelection checks that the model is on the provider's allowlist.
// An empty model is allowed; the caller substitutes the configured default.
func (c *Catalog) ValidateSelection(provider, model string) error {
	models, ok := c.allowed[normalizeProvider(provider)]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	if strings.TrimSpace(model) == "" {
		return nil
	}
	for _, m := range models {
		if m == strings.TrimSpace(model) {
			return nil
		}
	}
	return fmt.Errorf("model %q is not allowed for provider %q", model, provider)
}

func normalizeList(override, fallback []string) []string {
	out := make([]string, 0, len(override))
	for _, m := range override {
		if trimmed := strings.TrimSpace(m); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
