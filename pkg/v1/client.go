package v1

import (
	"context"
	"errors"
	"fmt"

	"github.com/4thel00z/coursebot/internal"
)

// Client answers course questions from a local document index.
type Client struct {
	pipeline  *internal.Pipeline
	index     VectorIndex
	ownsIndex bool
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		dimension: 256,
		topK:      internal.DefaultTopK,
		timeout:   internal.DefaultGenerationTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.generator == nil {
		return nil, errors.New("a generator is required")
	}

	embedder := cfg.embedder
	if embedder == nil {
		embedder = internal.NewHashEmbedder(cfg.dimension)
	}

	index := cfg.index
	ownsIndex := false
	if index == nil {
		path := cfg.indexPath
		if path == "" {
			path = internal.NewScopeResolver().Resolve(cfg.scope).IndexPath()
		}
		bolt, err := internal.OpenBoltIndex(path, embedder.Dimension())
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		index, ownsIndex = bolt, true
	}

	gen := internal.NewGenerationClient(cfg.generator,
		internal.WithTimeout(cfg.timeout),
		internal.WithGenerationLogger(cfg.logger),
	)

	pipeline := internal.NewPipeline(
		embedder,
		index,
		internal.NewGuardrail(cfg.forbiddenTerms...),
		internal.NewContextAssembler(cfg.maxContextChars),
		gen,
		internal.NewSanitizer(),
		cfg.topK,
		cfg.logger,
	)

	return &Client{
		pipeline:  pipeline,
		index:     index,
		ownsIndex: ownsIndex,
	}, nil
}

// Ingest embeds text and stores it under id. An existing id is rejected
// with ErrDuplicateID.
func (c *Client) Ingest(ctx context.Context, id, text string) error {
	if _, err := c.pipeline.Ingest(ctx, id, text); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	return nil
}

// Ask answers question from the indexed documents. Questions refused by the
// academic integrity guardrail return ErrBlocked.
func (c *Client) Ask(ctx context.Context, question string) (*Answer, error) {
	ans, err := c.pipeline.Answer(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("ask: %w", err)
	}
	return &Answer{
		Query:   ans.Query,
		Answer:  ans.Answer,
		Sources: ans.Sources,
	}, nil
}

// Status reports the size and shape of the index.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	st, err := c.pipeline.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Documents: st.Documents,
		Dimension: st.Dimension,
		Backend:   st.Backend,
		Embedder:  st.Embedder,
	}, nil
}

// Stage returns the pipeline stage an error from Ingest or Ask came from.
func Stage(err error) (string, bool) {
	s, ok := internal.FailedStage(err)
	return string(s), ok
}

// Close releases the index if the client opened it.
func (c *Client) Close() error {
	if c.ownsIndex {
		return c.index.Close()
	}
	return nil
}
