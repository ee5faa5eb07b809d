package v1

import "github.com/4thel00z/coursebot/internal"

// Embedder maps text to a fixed-size vector.
type Embedder = internal.Embedder

// Generator completes a system and user prompt pair.
type Generator = internal.Generator

// VectorIndex stores documents and answers nearest-neighbour queries.
type VectorIndex = internal.VectorIndex

// Answer is a generated answer with the passages it was based on.
type Answer struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Status describes the client's index.
type Status struct {
	Documents int    `json:"documents"`
	Dimension int    `json:"dimension"`
	Backend   string `json:"backend"`
	Embedder  string `json:"embedder"`
}

var (
	ErrBlocked           = internal.ErrBlocked
	ErrDuplicateID       = internal.ErrDuplicateID
	ErrEmptyInput        = internal.ErrEmptyInput
	ErrInvalidID         = internal.ErrInvalidID
	ErrEmbedding         = internal.ErrEmbedding
	ErrGeneration        = internal.ErrGeneration
	ErrGenerationTimeout = internal.ErrGenerationTimeout
)
