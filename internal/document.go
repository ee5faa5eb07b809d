package internal

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrEmptyInput        = errors.New("empty input")
	ErrInvalidID         = errors.New("invalid document id")
	ErrDuplicateID       = errors.New("document id already exists")
	ErrBlocked           = errors.New("query blocked by academic integrity policy")
	ErrEmbedding         = errors.New("embedding failed")
	ErrGeneration        = errors.New("generation failed")
	ErrGenerationTimeout = errors.New("generation timed out")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidK          = errors.New("k must be positive")
	ErrModelNotFound     = errors.New("model not found on backend")
	ErrIndexClosed       = errors.New("index closed")
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/:#-]*$`)

type DocumentID string

func NewDocumentID(s string) (DocumentID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: id is empty", ErrInvalidID)
	}
	if !idPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return DocumentID(s), nil
}

func (id DocumentID) String() string {
	return string(id)
}

// Document is an immutable indexed passage. Seq is assigned by the index on
// insert and orders documents that score equally.
type Document struct {
	ID        DocumentID `json:"id"`
	Text      string     `json:"text"`
	Embedding []float32  `json:"embedding"`
	Seq       uint64     `json:"seq"`
	CreatedAt time.Time  `json:"created_at"`
}

func NewDocument(id DocumentID, text string, embedding []float32) Document {
	return Document{
		ID:        id,
		Text:      text,
		Embedding: embedding,
		CreatedAt: time.Now().UTC(),
	}
}

// Answer is the sanitized model response together with the passages it was
// conditioned on, in rank order.
type Answer struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}
