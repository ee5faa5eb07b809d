package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const DefaultTopK = 3

// Pipeline runs the ingest and query flows. Every collaborator is passed in
// at construction; a Pipeline holds no per-request state and is safe for
// concurrent use as long as its index is.
type Pipeline struct {
	embedder  Embedder
	index     VectorIndex
	guardrail *Guardrail
	assembler *ContextAssembler
	generator *GenerationClient
	sanitizer *Sanitizer
	topK      int
	logger    *slog.Logger
}

func NewPipeline(
	embedder Embedder,
	index VectorIndex,
	guardrail *Guardrail,
	assembler *ContextAssembler,
	generator *GenerationClient,
	sanitizer *Sanitizer,
	topK int,
	logger *slog.Logger,
) *Pipeline {
	if guardrail == nil {
		guardrail = NewGuardrail()
	}
	if assembler == nil {
		assembler = NewContextAssembler(0)
	}
	if sanitizer == nil {
		sanitizer = NewSanitizer()
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		embedder:  embedder,
		index:     index,
		guardrail: guardrail,
		assembler: assembler,
		generator: generator,
		sanitizer: sanitizer,
		topK:      topK,
		logger:    logger,
	}
}

// Ingest embeds text and stores it under id. Duplicates are rejected with
// ErrDuplicateID and the stored record is left untouched.
func (p *Pipeline) Ingest(ctx context.Context, idStr, text string) (*Document, error) {
	id, err := NewDocumentID(idStr)
	if err != nil {
		return nil, stageErr(StageReceived, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, stageErr(StageReceived, fmt.Errorf("%w: document text", ErrEmptyInput))
	}

	log := p.logger.With("id", id)

	// Skip the embed call for ids already present. Insert still decides.
	exists, err := p.index.Contains(ctx, id)
	if err != nil {
		return nil, stageErr(StageStored, fmt.Errorf("check index: %w", err))
	}
	if exists {
		log.Debug("ingest rejected", "reason", "duplicate")
		return nil, stageErr(StageStored, fmt.Errorf("%w: %s", ErrDuplicateID, id))
	}

	start := time.Now()
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, stageErr(StageEmbedded, err)
	}
	if err := checkDimension(vec, p.index.Dimension()); err != nil {
		return nil, stageErr(StageEmbedded, err)
	}
	log.Debug("embedded", "took", time.Since(start))

	doc := NewDocument(id, text, vec)
	if err := p.index.Insert(ctx, doc); err != nil {
		return nil, stageErr(StageStored, err)
	}

	log.Info("document ingested", "chars", len(text))
	return &doc, nil
}

// Answer runs the query flow. A query tripping the guardrail fails at
// StageGuardrail with ErrBlocked and never reaches the generator.
func (p *Pipeline) Answer(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, stageErr(StageReceived, fmt.Errorf("%w: question", ErrEmptyInput))
	}

	if res := p.guardrail.Check(ctx, question); !res.Passed {
		p.logger.Info("query blocked", "reason", res.Reason)
		return nil, stageErr(StageGuardrail, fmt.Errorf("%w: %s", ErrBlocked, res.Reason))
	}

	start := time.Now()
	vec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return nil, stageErr(StageEmbedded, err)
	}
	if err := checkDimension(vec, p.index.Dimension()); err != nil {
		return nil, stageErr(StageEmbedded, err)
	}
	p.logger.Debug("query embedded", "took", time.Since(start))

	hits, err := p.index.Query(ctx, vec, p.topK)
	if err != nil {
		return nil, stageErr(StageRetrieved, err)
	}
	p.logger.Debug("retrieved", "hits", len(hits))

	assembled := p.assembler.Assemble(hits)
	if len(assembled.Used) < len(hits) {
		p.logger.Debug("context capped", "kept", len(assembled.Used), "retrieved", len(hits))
	}

	if p.generator == nil {
		return nil, stageErr(StageGenerated, fmt.Errorf("%w: no generator configured", ErrGeneration))
	}

	start = time.Now()
	raw, err := p.generator.Complete(ctx, "", BuildUserPrompt(assembled.Text, question))
	if err != nil {
		return nil, stageErr(StageGenerated, err)
	}
	p.logger.Debug("generated", "took", time.Since(start), "chars", len(raw))

	answer := p.sanitizer.Sanitize(raw)
	if strings.TrimSpace(answer) == "" {
		return nil, stageErr(StageSanitized, fmt.Errorf("%w: empty answer", ErrGeneration))
	}

	p.logger.Info("query answered", "sources", len(assembled.Used))
	return &Answer{
		Query:   question,
		Answer:  answer,
		Sources: assembled.Sources(),
	}, nil
}

// IndexStatus describes the index behind a pipeline.
type IndexStatus struct {
	Documents int    `json:"documents"`
	Dimension int    `json:"dimension"`
	Backend   string `json:"backend"`
	Embedder  string `json:"embedder"`
}

func (p *Pipeline) Status(ctx context.Context) (*IndexStatus, error) {
	n, err := p.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	return &IndexStatus{
		Documents: n,
		Dimension: p.index.Dimension(),
		Backend:   BackendName(p.index),
		Embedder:  p.embedder.Model(),
	}, nil
}

// EnsureModels confirms that the generation model, and the embedding model
// when its backend can tell, are served.
func (p *Pipeline) EnsureModels(ctx context.Context) error {
	if p.generator == nil {
		return fmt.Errorf("%w: no generator configured", ErrModelNotFound)
	}
	if err := p.generator.EnsureModel(ctx); err != nil {
		return fmt.Errorf("generation model: %w", err)
	}
	if mc, ok := p.embedder.(ModelChecker); ok {
		if err := mc.EnsureModel(ctx); err != nil {
			return fmt.Errorf("embedding model: %w", err)
		}
	}
	return nil
}

func BackendName(index VectorIndex) string {
	switch index.(type) {
	case *BoltIndex:
		return BackendBolt
	case *QdrantIndex:
		return BackendQdrant
	default:
		return "custom"
	}
}

// IsBlocked reports whether err is a guardrail refusal.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked)
}
