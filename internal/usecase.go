package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RefusalMessage is shown instead of an answer when the guardrail trips.
const RefusalMessage = "I can help you understand the course material, but I can't provide answers to graded work. Try asking about the concept behind the question instead."

// Use case input/output DTOs

type IngestDocumentInput struct {
	ID   string
	Text string
}

type IngestDocumentOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type AnswerQueryInput struct {
	Question string
}

// AnswerQueryOutput carries exactly one of an answer, a refusal (Blocked) or
// a failure (Error and Stage).
type AnswerQueryOutput struct {
	Query   string   `json:"query,omitempty"`
	Answer  string   `json:"answer,omitempty"`
	Sources []string `json:"sources,omitempty"`
	Blocked bool     `json:"blocked,omitempty"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Stage   Stage    `json:"stage,omitempty"`
}

// MarshalJSON always emits sources for an answer, as an empty list when
// nothing was retrieved.
func (o AnswerQueryOutput) MarshalJSON() ([]byte, error) {
	type plain AnswerQueryOutput
	if o.Blocked || o.Error != "" {
		return json.Marshal(plain(o))
	}

	sources := o.Sources
	if sources == nil {
		sources = []string{}
	}
	return json.Marshal(struct {
		Query   string   `json:"query"`
		Answer  string   `json:"answer"`
		Sources []string `json:"sources"`
	}{o.Query, o.Answer, sources})
}

type IngestDirectoryInput struct {
	Dir          string
	Prefix       string // prepended to every derived document id
	ChunkSize    int
	ChunkOverlap int
	Workers      int
}

type IngestDirectoryOutput struct {
	Files    int      `json:"files"`
	Ingested int      `json:"ingested"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

type IndexStatusOutput struct {
	IndexStatus
}

// Use cases

type IngestDocumentUseCase struct {
	pipeline *Pipeline
}

func NewIngestDocumentUseCase(pipeline *Pipeline) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{pipeline: pipeline}
}

func (uc *IngestDocumentUseCase) Execute(ctx context.Context, input IngestDocumentInput) (*IngestDocumentOutput, error) {
	doc, err := uc.pipeline.Ingest(ctx, input.ID, input.Text)
	if err != nil {
		return &IngestDocumentOutput{Success: false, Message: ingestFailureMessage(err)}, err
	}

	return &IngestDocumentOutput{
		Success: true,
		Message: fmt.Sprintf("document %q ingested", doc.ID),
	}, nil
}

func ingestFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateID):
		return "a document with this id already exists"
	case errors.Is(err, ErrInvalidID):
		return "document id is missing or invalid"
	case errors.Is(err, ErrEmptyInput):
		return "document text is empty"
	default:
		return err.Error()
	}
}

type AnswerQueryUseCase struct {
	pipeline *Pipeline
}

func NewAnswerQueryUseCase(pipeline *Pipeline) *AnswerQueryUseCase {
	return &AnswerQueryUseCase{pipeline: pipeline}
}

// Execute returns a nil error for a refusal; Blocked marks that outcome.
func (uc *AnswerQueryUseCase) Execute(ctx context.Context, input AnswerQueryInput) (*AnswerQueryOutput, error) {
	ans, err := uc.pipeline.Answer(ctx, input.Question)
	if IsBlocked(err) {
		return &AnswerQueryOutput{Blocked: true, Message: RefusalMessage}, nil
	}
	if err != nil {
		stage, _ := FailedStage(err)
		return &AnswerQueryOutput{Error: err.Error(), Stage: stage}, err
	}

	sources := ans.Sources
	if sources == nil {
		sources = []string{}
	}
	return &AnswerQueryOutput{
		Query:   ans.Query,
		Answer:  ans.Answer,
		Sources: sources,
	}, nil
}

type IngestDirectoryUseCase struct {
	pipeline *Pipeline
	logger   *slog.Logger
}

func NewIngestDirectoryUseCase(pipeline *Pipeline, logger *slog.Logger) *IngestDirectoryUseCase {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &IngestDirectoryUseCase{pipeline: pipeline, logger: logger}
}

// Execute ingests every supported file under input.Dir not excluded by its
// .ingestignore. Chunks already indexed count as skipped, so re-running over
// the same tree is safe.
func (uc *IngestDirectoryUseCase) Execute(ctx context.Context, input IngestDirectoryInput) (*IngestDirectoryOutput, error) {
	matcher, err := NewIgnoreMatcher(input.Dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", IgnoreFilename, err)
	}

	files, err := WalkDocuments(input.Dir, matcher)
	if err != nil {
		return nil, err
	}

	out := &IngestDirectoryOutput{Files: len(files)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(input.Workers, 1))

	for _, path := range files {
		g.Go(func() error {
			res, err := uc.ingestFile(gctx, input, path)

			mu.Lock()
			defer mu.Unlock()
			out.Ingested += res.ingested
			out.Skipped += res.skipped
			out.Failed += res.failed
			if err != nil {
				out.Errors = append(out.Errors, err.Error())
			}

			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

type fileResult struct {
	ingested, skipped, failed int
}

func (uc *IngestDirectoryUseCase) ingestFile(ctx context.Context, input IngestDirectoryInput, path string) (fileResult, error) {
	var res fileResult

	rel, err := filepath.Rel(input.Dir, path)
	if err != nil {
		res.failed++
		return res, err
	}
	base := DocumentIDForPath(rel)
	if input.Prefix != "" {
		base = input.Prefix + "/" + base
	}

	text, err := LoadFile(path)
	if err != nil {
		res.failed++
		uc.logger.Warn("load failed", "path", path, "err", err)
		return res, err
	}

	var errs []error
	for i, chunk := range ChunkText(text, input.ChunkSize, input.ChunkOverlap) {
		_, err := uc.pipeline.Ingest(ctx, ChunkID(base, i), chunk)
		switch {
		case err == nil:
			res.ingested++
		case errors.Is(err, ErrDuplicateID):
			res.skipped++
		default:
			res.failed++
			errs = append(errs, fmt.Errorf("%s: %w", rel, err))
			if ctx.Err() != nil {
				return res, errors.Join(errs...)
			}
		}
	}

	return res, errors.Join(errs...)
}

type IndexStatusUseCase struct {
	pipeline *Pipeline
}

func NewIndexStatusUseCase(pipeline *Pipeline) *IndexStatusUseCase {
	return &IndexStatusUseCase{pipeline: pipeline}
}

func (uc *IndexStatusUseCase) Execute(ctx context.Context) (*IndexStatusOutput, error) {
	st, err := uc.pipeline.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &IndexStatusOutput{IndexStatus: *st}, nil
}
