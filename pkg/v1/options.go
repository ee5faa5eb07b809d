package v1

import (
	"log/slog"
	"time"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	embedder        Embedder
	index           VectorIndex
	generator       Generator
	indexPath       string
	scope           string
	dimension       int
	topK            int
	maxContextChars int
	forbiddenTerms  []string
	timeout         time.Duration
	logger          *slog.Logger
}

// WithEmbedder sets the embedder. The default is an offline hashing
// embedder of WithDimension size.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithIndex supplies an open index. The client does not close it.
func WithIndex(idx VectorIndex) Option {
	return func(c *clientConfig) {
		c.index = idx
	}
}

// WithIndexPath opens a bolt index file at path instead of the scope's.
func WithIndexPath(path string) Option {
	return func(c *clientConfig) {
		c.indexPath = path
	}
}

// WithGenerator sets the language-model backend. Required.
func WithGenerator(g Generator) Option {
	return func(c *clientConfig) {
		c.generator = g
	}
}

// WithScope forces a specific scope (global or project).
func WithScope(scope string) Option {
	return func(c *clientConfig) {
		c.scope = scope
	}
}

// WithDimension sets the size of the default embedder.
func WithDimension(dim int) Option {
	return func(c *clientConfig) {
		c.dimension = dim
	}
}

// WithTopK sets how many passages are retrieved per question.
func WithTopK(k int) Option {
	return func(c *clientConfig) {
		c.topK = k
	}
}

// WithMaxContextChars caps the context block handed to the generator.
func WithMaxContextChars(n int) Option {
	return func(c *clientConfig) {
		c.maxContextChars = n
	}
}

// WithForbiddenTerms replaces the guardrail's default denylist.
func WithForbiddenTerms(terms ...string) Option {
	return func(c *clientConfig) {
		c.forbiddenTerms = terms
	}
}

// WithTimeout bounds each generation attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
