// Package llm drafts text with a configured language model: finding triage,
// self-debug suggestions and commit messages.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/musharrafhamraz/afterburner/internal/config"
)

// ErrDisabled is returned by New when no model is configured.
var ErrDisabled = errors.New("llm disabled")

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client wraps a langchaingo model.
type Client struct {
	model       llms.Model
	temperature float64
}

// New builds a client for cfg's provider. It returns ErrDisabled when the
// provider is "none" or a hosted provider has no API key.
func New(ctx context.Context, cfg config.Config) (*Client, error) {
	provider := strings.ToLower(cfg.LLMProvider)
	if provider == "" || provider == "none" {
		return nil, ErrDisabled
	}
	if provider != "ollama" && cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("%w: %s requires llm_api_key", ErrDisabled, provider)
	}

	var (
		model llms.Model
		err   error
	)
	switch provider {
	case "gemini":
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.LLMAPIKey),
			googleai.WithDefaultModel(cfg.LLMModel),
		)
	case "openai":
		opts := []openai.Option{openai.WithToken(cfg.LLMAPIKey), openai.WithModel(cfg.LLMModel)}
		if cfg.LLMBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLMBaseURL))
		}
		model, err = openai.New(opts...)
	case "anthropic":
		model, err = anthropic.New(anthropic.WithToken(cfg.LLMAPIKey), anthropic.WithModel(cfg.LLMModel))
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.LLMModel)}
		if cfg.LLMBaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.LLMBaseURL))
		}
		model, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", provider, err)
	}
	return &Client{model: model, temperature: 0.2}, nil
}

// NewWithModel wraps an existing model.
func NewWithModel(model llms.Model, temperature float64) *Client {
	return &Client{model: model, temperature: temperature}
}

// Generate sends prompt as a single human message.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return out, nil
}

// stripFences removes a surrounding Markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
