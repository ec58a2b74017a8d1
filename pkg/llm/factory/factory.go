package factory

import (
	"fmt"

	"github.com/philippzach/growth-gpt-sub000/pkg/llm"
)

// NewProvider creates a completion provider based on configuration.
func NewProvider(provider, model, openAIKey, anthropicKey string) (llm.Provider, error) {
	switch provider {
	case "openai":
		return llm.NewOpenAIProvider(openAIKey, model)
	case "anthropic":
		return llm.NewAnthropicProvider(anthropicKey, model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}
