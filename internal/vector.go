package internal

import (
	"context"
	"fmt"
	"math"
	"sort"
)

type SearchResult struct {
	ID    DocumentID `json:"id"`
	Text  string     `json:"text"`
	Score float32    `json:"score"` // cosine similarity, higher is better
}

type VectorIndex interface {
	Insert(ctx context.Context, doc Document) error
	Query(ctx context.Context, vector []float32, k int) ([]SearchResult, error)
	Contains(ctx context.Context, id DocumentID) (bool, error)
	Count(ctx context.Context) (int, error)
	Dimension() int
	Close() error
}

func checkDimension(vec []float32, dimension int) error {
	if len(vec) != dimension {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dimension, len(vec))
	}
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// rankDocuments scores docs against query and returns the best k. docs must
// be in insertion order so that equal scores keep that order.
func rankDocuments(docs []Document, query []float32, k int) []SearchResult {
	results := make([]SearchResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, SearchResult{
			ID:    d.ID,
			Text:  d.Text,
			Score: cosine(query, d.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results
}

func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}

	result := make([]float32, len(vec))
	for i, v := range vec {
		result[i] = float32(float64(v) / norm)
	}

	return result
}
