package internal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

const testDim = 1024

const (
	biologyText = "Mitosis is the process of cell division in which one cell divides into two identical daughter cells."
	historyText = "The French Revolution began in 1789 and overthrew the monarchy in France."
)

type pipelineFixture struct {
	pipeline *Pipeline
	index    *BoltIndex
	embedder *countingEmbedder
	gen      *fakeGenerator
}

func setupPipeline(t *testing.T, gen *fakeGenerator, opts ...GenerationOption) *pipelineFixture {
	t.Helper()

	index, _ := openTestIndex(t, testDim)
	embedder := &countingEmbedder{Embedder: NewHashEmbedder(testDim)}
	if gen == nil {
		gen = &fakeGenerator{reply: "<think>let me see</think>Here is an explanation."}
	}

	p := NewPipeline(
		embedder,
		index,
		NewGuardrail(),
		NewContextAssembler(0),
		NewGenerationClient(gen, opts...),
		NewSanitizer(),
		DefaultTopK,
		nil,
	)

	return &pipelineFixture{pipeline: p, index: index, embedder: embedder, gen: gen}
}

func assertStage(t *testing.T, err error, want Stage) {
	t.Helper()
	got, ok := FailedStage(err)
	if !ok {
		t.Fatalf("error %v carries no stage", err)
	}
	if got != want {
		t.Errorf("stage = %q, want %q", got, want)
	}
}

func TestPipelineIngestThenRetrieve(t *testing.T) {
	f := setupPipeline(t, nil)
	ctx := context.Background()

	if _, err := f.pipeline.Ingest(ctx, "bio101/mitosis", biologyText); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	ans, err := f.pipeline.Answer(ctx, biologyText)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if len(ans.Sources) == 0 || ans.Sources[0] != biologyText {
		t.Errorf("sources = %q, want %q first", ans.Sources, biologyText)
	}
}

func TestPipelineIngestDuplicateKeepsOriginal(t *testing.T) {
	f := setupPipeline(t, nil)
	ctx := context.Background()

	if _, err := f.pipeline.Ingest(ctx, "doc-1", "original text about cells"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	calls := f.embedder.Calls()

	_, err := f.pipeline.Ingest(ctx, "doc-1", "replacement text about wars")
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	assertStage(t, err, StageStored)

	if f.embedder.Calls() != calls {
		t.Error("duplicate should be rejected before embedding")
	}

	doc, err := f.index.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Text != "original text about cells" {
		t.Errorf("text = %q, want original", doc.Text)
	}

	n, _ := f.index.Count(ctx)
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestPipelineIngestRejectsBadInput(t *testing.T) {
	f := setupPipeline(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		id   string
		text string
		want error
	}{
		{"empty text", "doc", "", ErrEmptyInput},
		{"blank text", "doc", " \n\t", ErrEmptyInput},
		{"empty id", "", "text", ErrInvalidID},
		{"bad id", "-leading-dash", "text", ErrInvalidID},
		{"space in id", "two words", "text", ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.Ingest(ctx, tt.id, tt.text)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			assertStage(t, err, StageReceived)
			if !IsInputError(err) {
				t.Error("expected an input error")
			}
		})
	}

	if f.embedder.Calls() != 0 {
		t.Errorf("embedder called %d times for rejected input", f.embedder.Calls())
	}
}

func TestPipelineIngestEmbeddingFailure(t *testing.T) {
	index, _ := openTestIndex(t, 8)
	p := NewPipeline(&failingEmbedder{dim: 8}, index, nil, nil, NewGenerationClient(&fakeGenerator{}), nil, 0, nil)

	_, err := p.Ingest(context.Background(), "doc", "text")
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("err = %v, want ErrEmbedding", err)
	}
	assertStage(t, err, StageEmbedded)
}

func TestPipelineIngestDimensionMismatch(t *testing.T) {
	index, _ := openTestIndex(t, 16)
	p := NewPipeline(NewHashEmbedder(8), index, nil, nil, nil, nil, 0, nil)

	_, err := p.Ingest(context.Background(), "doc", "cells divide")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
	assertStage(t, err, StageEmbedded)
}

func TestPipelineAnswerEmptyIndex(t *testing.T) {
	f := setupPipeline(t, nil)

	ans, err := f.pipeline.Answer(context.Background(), "What is mitosis?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if ans.Sources == nil {
		t.Error("sources should be an empty list, not nil")
	}
	if len(ans.Sources) != 0 {
		t.Errorf("sources = %q, want none", ans.Sources)
	}
	if ans.Answer != "Here is an explanation." {
		t.Errorf("answer = %q", ans.Answer)
	}
	if ans.Query != "What is mitosis?" {
		t.Errorf("query = %q", ans.Query)
	}
}

func TestPipelineEndToEndTopicRanking(t *testing.T) {
	f := setupPipeline(t, nil)
	ctx := context.Background()

	if _, err := f.pipeline.Ingest(ctx, "bio101/mitosis", biologyText); err != nil {
		t.Fatalf("ingest biology: %v", err)
	}
	if _, err := f.pipeline.Ingest(ctx, "hist201/revolution", historyText); err != nil {
		t.Fatalf("ingest history: %v", err)
	}

	question := "Explain how cell division works in mitosis"
	if DetectCheating(question) {
		t.Fatal("neutral question should pass the guardrail")
	}

	ans, err := f.pipeline.Answer(ctx, question)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if len(ans.Sources) == 0 || ans.Sources[0] != biologyText {
		t.Errorf("top source = %q, want biology passage", ans.Sources)
	}
	if f.gen.Calls() != 1 {
		t.Errorf("generator calls = %d, want 1", f.gen.Calls())
	}
	if !strings.Contains(f.gen.LastUser(), biologyText) {
		t.Error("prompt should carry the retrieved context")
	}
	if !strings.Contains(f.gen.LastUser(), question) {
		t.Error("prompt should carry the question")
	}
}

func TestPipelineBlockedQueryNeverReachesGenerator(t *testing.T) {
	f := setupPipeline(t, nil)
	ctx := context.Background()

	if _, err := f.pipeline.Ingest(ctx, "bio101/mitosis", biologyText); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	embedCalls := f.embedder.Calls()

	_, err := f.pipeline.Answer(ctx, "Please solve this for me: homework 3")
	if !IsBlocked(err) {
		t.Fatalf("err = %v, want blocked", err)
	}
	assertStage(t, err, StageGuardrail)

	if f.gen.Calls() != 0 {
		t.Errorf("generator calls = %d, want 0", f.gen.Calls())
	}
	if f.embedder.Calls() != embedCalls {
		t.Error("blocked query should not be embedded")
	}
}

func TestPipelineAnswerEmptyQuestion(t *testing.T) {
	f := setupPipeline(t, nil)

	_, err := f.pipeline.Answer(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
	assertStage(t, err, StageReceived)
}

func TestPipelineAnswerGenerationTimeout(t *testing.T) {
	gen := &fakeGenerator{reply: "late", delays: []time.Duration{time.Second, time.Second}}
	f := setupPipeline(t, gen, WithTimeout(20*time.Millisecond))

	_, err := f.pipeline.Answer(context.Background(), "What is mitosis?")
	if !errors.Is(err, ErrGenerationTimeout) {
		t.Fatalf("err = %v, want ErrGenerationTimeout", err)
	}
	assertStage(t, err, StageGenerated)
	if gen.Calls() != 2 {
		t.Errorf("generator calls = %d, want 2", gen.Calls())
	}
}

func TestPipelineAnswerGenerationError(t *testing.T) {
	f := setupPipeline(t, &fakeGenerator{err: errBackendDown})

	_, err := f.pipeline.Answer(context.Background(), "What is mitosis?")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	assertStage(t, err, StageGenerated)
}

func TestPipelineAnswerOnlyReasoning(t *testing.T) {
	f := setupPipeline(t, &fakeGenerator{reply: "<think>no answer follows</think>"})

	_, err := f.pipeline.Answer(context.Background(), "What is mitosis?")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	assertStage(t, err, StageSanitized)
}

func TestPipelineStatusAndEnsureModels(t *testing.T) {
	f := setupPipeline(t, nil)
	ctx := context.Background()

	if _, err := f.pipeline.Ingest(ctx, "doc", "cells"); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	st, err := f.pipeline.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Documents != 1 || st.Dimension != testDim || st.Backend != BackendBolt || st.Embedder != "hash" {
		t.Errorf("status = %+v", st)
	}

	if err := f.pipeline.EnsureModels(ctx); err != nil {
		t.Errorf("ensure models: %v", err)
	}

	missing := setupPipeline(t, &fakeGenerator{missing: true})
	if err := missing.pipeline.EnsureModels(ctx); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("err = %v, want ErrModelNotFound", err)
	}
}
