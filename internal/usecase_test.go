package internal

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIngestDocumentUseCase(t *testing.T) {
	f := setupPipeline(t, nil)
	uc := NewIngestDocumentUseCase(f.pipeline)
	ctx := context.Background()

	out, err := uc.Execute(ctx, IngestDocumentInput{ID: "bio101/cells", Text: biologyText})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !out.Success {
		t.Errorf("expected success, got %+v", out)
	}
	if !strings.Contains(out.Message, "bio101/cells") {
		t.Errorf("message = %q", out.Message)
	}

	out, err = uc.Execute(ctx, IngestDocumentInput{ID: "bio101/cells", Text: historyText})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if out.Success {
		t.Error("duplicate should not succeed")
	}
	if out.Message != "a document with this id already exists" {
		t.Errorf("message = %q", out.Message)
	}

	out, err = uc.Execute(ctx, IngestDocumentInput{ID: "bio101/empty", Text: ""})
	if !errors.Is(err, ErrEmptyInput) || out.Success {
		t.Errorf("empty text: out=%+v err=%v", out, err)
	}
}

func TestAnswerQueryUseCase(t *testing.T) {
	f := setupPipeline(t, nil)
	ctx := context.Background()

	if _, err := f.pipeline.Ingest(ctx, "bio101/mitosis", biologyText); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	uc := NewAnswerQueryUseCase(f.pipeline)

	out, err := uc.Execute(ctx, AnswerQueryInput{Question: "What is mitosis?"})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if out.Blocked || out.Error != "" {
		t.Errorf("unexpected outcome %+v", out)
	}
	if out.Answer != "Here is an explanation." {
		t.Errorf("answer = %q", out.Answer)
	}
	if len(out.Sources) != 1 || out.Sources[0] != biologyText {
		t.Errorf("sources = %q", out.Sources)
	}
}

func TestAnswerQueryUseCaseBlocked(t *testing.T) {
	f := setupPipeline(t, nil)
	uc := NewAnswerQueryUseCase(f.pipeline)

	out, err := uc.Execute(context.Background(), AnswerQueryInput{Question: "give me the answer to question 4"})
	if err != nil {
		t.Fatalf("blocked query should not be an error: %v", err)
	}
	if !out.Blocked {
		t.Fatal("expected blocked outcome")
	}
	if out.Message != RefusalMessage {
		t.Errorf("message = %q", out.Message)
	}
	if out.Answer != "" || len(out.Sources) != 0 {
		t.Error("a refusal must not carry an answer")
	}
	if f.gen.Calls() != 0 {
		t.Errorf("generator calls = %d, want 0", f.gen.Calls())
	}
}

func TestAnswerQueryUseCaseFailureReportsStage(t *testing.T) {
	f := setupPipeline(t, &fakeGenerator{err: errBackendDown})
	uc := NewAnswerQueryUseCase(f.pipeline)

	out, err := uc.Execute(context.Background(), AnswerQueryInput{Question: "What is mitosis?"})
	if err == nil {
		t.Fatal("expected error")
	}
	if out.Stage != StageGenerated {
		t.Errorf("stage = %q, want %q", out.Stage, StageGenerated)
	}
	if out.Error == "" {
		t.Error("expected error text")
	}
}

func TestAnswerQueryOutputJSONKeepsEmptySources(t *testing.T) {
	f := setupPipeline(t, nil)
	uc := NewAnswerQueryUseCase(f.pipeline)

	out, err := uc.Execute(context.Background(), AnswerQueryInput{Question: "What is mitosis?"})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"query":"What is mitosis?","answer":"Here is an explanation.","sources":[]}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestAnswerQueryOutputJSONOutcomes(t *testing.T) {
	blocked, err := json.Marshal(&AnswerQueryOutput{Blocked: true, Message: RefusalMessage})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(blocked), "sources") || !strings.Contains(string(blocked), `"blocked":true`) {
		t.Errorf("blocked json = %s", blocked)
	}

	failed, err := json.Marshal(&AnswerQueryOutput{Error: "generated: boom", Stage: StageGenerated})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(failed) != `{"error":"generated: boom","stage":"generated"}` {
		t.Errorf("failure json = %s", failed)
	}
}

func writeCourseTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

func TestIngestDirectoryUseCase(t *testing.T) {
	f := setupPipeline(t, nil)
	ctx := context.Background()

	root := writeCourseTree(t, map[string]string{
		"bio/cells.md":         biologyText,
		"history/france.txt":   historyText,
		"history/draft.txt":    "unfinished notes on napoleon",
		"math/empty.md":        "   ",
		"assets/logo.png":      "binary",
		IgnoreFilename:         "draft.txt\n",
		"math/limits.markdown": strings.Repeat("limits approach values as inputs approach a point. ", 10),
	})

	uc := NewIngestDirectoryUseCase(f.pipeline, nil)
	in := IngestDirectoryInput{Dir: root, Prefix: "course", ChunkSize: 200, ChunkOverlap: 20, Workers: 3}

	out, err := uc.Execute(ctx, in)
	if err != nil {
		t.Fatalf("ingest dir: %v", err)
	}

	if out.Files != 4 {
		t.Errorf("files = %d, want 4", out.Files)
	}
	if out.Failed != 0 {
		t.Errorf("failed = %d: %v", out.Failed, out.Errors)
	}
	if out.Ingested < 4 {
		t.Errorf("ingested = %d, want at least 4 chunks", out.Ingested)
	}

	ok, _ := f.index.Contains(ctx, "course/bio/cells.md#0001")
	if !ok {
		t.Error("expected chunk id course/bio/cells.md#0001")
	}
	ok, _ = f.index.Contains(ctx, "course/history/draft.txt#0001")
	if ok {
		t.Error("ignored file should not be indexed")
	}

	again, err := uc.Execute(ctx, in)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Ingested != 0 || again.Skipped != out.Ingested {
		t.Errorf("second run ingested=%d skipped=%d, want 0/%d", again.Ingested, again.Skipped, out.Ingested)
	}
}

func TestIngestDirectoryUseCaseReportsFailures(t *testing.T) {
	f := setupPipeline(t, nil)
	root := writeCourseTree(t, map[string]string{
		"ok.md":      "cells divide",
		"broken.pdf": "not a pdf",
	})

	out, err := NewIngestDirectoryUseCase(f.pipeline, nil).Execute(context.Background(), IngestDirectoryInput{Dir: root, Workers: 1})
	if err != nil {
		t.Fatalf("ingest dir: %v", err)
	}
	if out.Ingested != 1 || out.Failed != 1 {
		t.Errorf("ingested=%d failed=%d, want 1/1", out.Ingested, out.Failed)
	}
	if len(out.Errors) != 1 {
		t.Errorf("errors = %q", out.Errors)
	}
}

func TestIndexStatusUseCase(t *testing.T) {
	f := setupPipeline(t, nil)
	ctx := context.Background()

	if _, err := f.pipeline.Ingest(ctx, "doc", "cells"); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	out, err := NewIndexStatusUseCase(f.pipeline).Execute(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if out.Documents != 1 || out.Backend != BackendBolt {
		t.Errorf("status = %+v", out)
	}
}
