package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openrouter"
)

type FantasyConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

var (
	_ Generator    = (*FantasyGenerator)(nil)
	_ ModelChecker = (*FantasyGenerator)(nil)
)

// FantasyGenerator completes prompts through a hosted provider.
type FantasyGenerator struct {
	model fantasy.LanguageModel
	name  string
	id    string
}

// NewFantasyGenerator binds cfg.Model on the provider. Binding makes no
// request; EnsureModel confirms the model with the backend.
func NewFantasyGenerator(ctx context.Context, cfg FantasyConfig) (*FantasyGenerator, error) {
	var provider fantasy.Provider
	var err error

	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		provider, err = openai.New(opts...)

	case "anthropic":
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		provider, err = anthropic.New(opts...)

	case "openrouter":
		opts := []openrouter.Option{openrouter.WithAPIKey(cfg.APIKey)}
		provider, err = openrouter.New(opts...)

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %w", ErrModelNotFound, cfg.Provider, cfg.Model, err)
	}

	return &FantasyGenerator{
		model: model,
		name:  cfg.Provider,
		id:    cfg.Model,
	}, nil
}

func (g *FantasyGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	agent := fantasy.NewAgent(g.model, fantasy.WithSystemPrompt(systemPrompt))

	result, err := agent.Generate(ctx, fantasy.AgentCall{
		Prompt: userPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	return result.Response.Content.Text(), nil
}

// EnsureModel asks the provider for a one-token completion. A client error
// from the backend (unknown model, no access) is reported as ErrModelNotFound.
func (g *FantasyGenerator) EnsureModel(ctx context.Context) error {
	maxTokens := int64(1)
	_, err := g.model.Generate(ctx, fantasy.Call{
		Prompt:          fantasy.Prompt{fantasy.NewUserMessage("ping")},
		MaxOutputTokens: &maxTokens,
	})
	if err == nil {
		return nil
	}

	var perr *fantasy.ProviderError
	if errors.As(err, &perr) && perr.StatusCode >= 400 && perr.StatusCode < 500 &&
		perr.StatusCode != http.StatusTooManyRequests && perr.StatusCode != http.StatusRequestTimeout {
		return fmt.Errorf("%w: %s/%s: %w", ErrModelNotFound, g.name, g.id, err)
	}
	return fmt.Errorf("check model %s/%s: %w", g.name, g.id, err)
}
