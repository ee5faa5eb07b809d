package internal

import "context"

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
	Close() error
}

// Generator is a text-completion backend. Implementations return the raw
// model output; sanitizing is the caller's job.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ModelChecker confirms that a configured model is served by its backend.
type ModelChecker interface {
	EnsureModel(ctx context.Context) error
}

func embedBatch(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = emb
	}

	return results, nil
}
