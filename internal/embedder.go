package internal

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

var _ Embedder = (*HashEmbedder)(nil)

// HashEmbedder maps text to a bag of hashed word features. It needs no
// model server and shares vocabulary-overlap semantics with real embedders
// closely enough for development and tests.
type HashEmbedder struct {
	dimension int
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{dimension: dimension}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	words := tokenize(text)
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, ErrEmptyInput)
	}

	vec := make([]float32, e.dimension)
	for _, w := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()

		bucket := int(sum % uint64(e.dimension))
		if sum&(1<<63) != 0 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}

	return l2Normalize(vec), nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatch(ctx, e, texts)
}

func (e *HashEmbedder) Dimension() int { return e.dimension }

func (e *HashEmbedder) Model() string { return "hash" }

func (e *HashEmbedder) Close() error { return nil }

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "what": {}, "with": {}, "does": {}, "do": {}, "about": {},
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	words := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		words = append(words, f)
	}
	return words
}

var _ Embedder = (*CachedEmbedder)(nil)

// CachedEmbedder keeps the most recent embeddings of an inner Embedder in an
// LRU keyed by model and text.
type CachedEmbedder struct {
	inner   Embedder
	mu      sync.Mutex
	maxSize int
	order   *list.List
	entries map[string]*list.Element
}

type cacheEntry struct {
	key string
	vec []float32
}

func NewCachedEmbedder(inner Embedder, maxSize int) *CachedEmbedder {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &CachedEmbedder{
		inner:   inner,
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.inner.Model(), text)

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		vec := el.Value.(*cacheEntry).vec
		c.mu.Unlock()
		return vec, nil
	}
	c.mu.Unlock()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return vec, nil
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, vec: vec})
	if c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	return vec, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatch(ctx, c, texts)
}

func (c *CachedEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *CachedEmbedder) Model() string { return c.inner.Model() }

func (c *CachedEmbedder) Close() error { return c.inner.Close() }

func (c *CachedEmbedder) EnsureModel(ctx context.Context) error {
	if mc, ok := c.inner.(ModelChecker); ok {
		return mc.EnsureModel(ctx)
	}
	return nil
}

func cacheKey(model, text string) string {
	h := sha256.Sum256([]byte(model + ":" + text))
	return hex.EncodeToString(h[:16])
}
