package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const DefaultOllamaURL = "http://localhost:11434"

// NewOllamaClient builds an API client for baseURL. An empty baseURL means
// the local default.
func NewOllamaClient(baseURL string, timeout time.Duration) (*api.Client, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	return api.NewClient(u, &http.Client{Timeout: timeout}), nil
}

var (
	_ Embedder     = (*OllamaEmbedder)(nil)
	_ ModelChecker = (*OllamaEmbedder)(nil)
)

type OllamaEmbedder struct {
	client    *api.Client
	model     string
	dimension int
}

// NewOllamaEmbedder probes model once to learn its output size. A non-zero
// dimension must match what the model produces.
func NewOllamaEmbedder(ctx context.Context, client *api.Client, model string, dimension int) (*OllamaEmbedder, error) {
	e := &OllamaEmbedder{client: client, model: model}

	probe, err := e.embed(ctx, "dimension probe")
	if err != nil {
		return nil, fmt.Errorf("probe embedding model %s: %w", model, err)
	}

	actualDim := len(probe)
	if dimension > 0 && dimension != actualDim {
		return nil, fmt.Errorf("%w: model %s has %d, configured %d", ErrDimensionMismatch, model, actualDim, dimension)
	}
	e.dimension = actualDim

	return e, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, ErrEmptyInput)
	}

	vec, err := e.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := checkDimension(vec, e.dimension); err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrEmbedding)
	}
	return l2Normalize(resp.Embeddings[0]), nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatch(ctx, e, texts)
}

func (e *OllamaEmbedder) EnsureModel(ctx context.Context) error {
	return ensureOllamaModel(ctx, e.client, e.model)
}

func (e *OllamaEmbedder) Dimension() int { return e.dimension }

func (e *OllamaEmbedder) Model() string { return e.model }

func (e *OllamaEmbedder) Close() error { return nil }

var (
	_ Generator    = (*OllamaGenerator)(nil)
	_ ModelChecker = (*OllamaGenerator)(nil)
)

type OllamaGenerator struct {
	client      *api.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOllamaGenerator(client *api.Client, model string, temperature float32, maxTokens int) *OllamaGenerator {
	return &OllamaGenerator{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (g *OllamaGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	stream := false
	options := map[string]any{"temperature": g.temperature}
	if g.maxTokens > 0 {
		options["num_predict"] = g.maxTokens
	}

	req := &api.ChatRequest{
		Model: g.model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream:  &stream,
		Options: options,
	}

	var sb strings.Builder
	err := g.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	return sb.String(), nil
}

func (g *OllamaGenerator) EnsureModel(ctx context.Context) error {
	return ensureOllamaModel(ctx, g.client, g.model)
}

func ensureOllamaModel(ctx context.Context, client *api.Client, model string) error {
	resp, err := client.List(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	for _, m := range resp.Models {
		if modelMatches(model, m.Name) || modelMatches(model, m.Model) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrModelNotFound, model)
}

// modelMatches compares model references, treating a missing tag as ":latest".
func modelMatches(want, have string) bool {
	return normalizeModel(want) == normalizeModel(have)
}

func normalizeModel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if !strings.Contains(name, ":") {
		name += ":latest"
	}
	return name
}

// PullProgress reports a model download step.
type PullProgress struct {
	Status    string
	Completed int64
	Total     int64
}

// PullModel downloads model onto the ollama backend unless it is already
// present.
func PullModel(ctx context.Context, client *api.Client, model string, onProgress func(PullProgress)) error {
	err := ensureOllamaModel(ctx, client, model)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrModelNotFound) {
		return err
	}

	err = client.Pull(ctx, &api.PullRequest{Model: model}, func(p api.ProgressResponse) error {
		if onProgress != nil {
			onProgress(PullProgress{Status: p.Status, Completed: p.Completed, Total: p.Total})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pull %s: %w", model, err)
	}
	return nil
}
