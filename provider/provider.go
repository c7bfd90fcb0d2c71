package provider

import (
	"context"
	"errors"

	"github.com/safar-labs/safar/config"
	openai_provider "github.com/safar-labs/safar/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Provider is the interface that all generative implementations must satisfy.
// The caller imposes all output structure; the provider is opaque text in,
// text out.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, cfg config.OpenAIConfig) (Provider, error) {
	switch client {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("openai api key not configured")
		}
		return openai_provider.NewClient(cfg.APIKey, cfg.CompletionModel, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
