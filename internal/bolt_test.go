package internal

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T, dim int) (*BoltIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), IndexFilename)

	idx, err := OpenBoltIndex(path, dim)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx, path
}

func TestBoltIndexInsertAndQuery(t *testing.T) {
	idx, _ := openTestIndex(t, 3)
	ctx := context.Background()

	if err := idx.Insert(ctx, NewDocument("doc/one", "first", []float32{1.0, 0.0, 0.0})); err != nil {
		t.Fatalf("insert one: %v", err)
	}
	if err := idx.Insert(ctx, NewDocument("doc/two", "second", []float32{0.0, 1.0, 0.0})); err != nil {
		t.Fatalf("insert two: %v", err)
	}

	results, err := idx.Query(ctx, []float32{1.0, 0.1, 0.0}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "doc/one" {
		t.Errorf("expected closest match to be 'doc/one', got %q", results[0].ID)
	}
	if results[0].Text != "first" {
		t.Errorf("expected text 'first', got %q", results[0].Text)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not ranked: %v", results)
	}
}

func TestBoltIndexQueryFewerThanK(t *testing.T) {
	idx, _ := openTestIndex(t, 2)
	ctx := context.Background()

	require.NoError(t, idx.Insert(ctx, NewDocument("a", "A", []float32{1, 0})))
	require.NoError(t, idx.Insert(ctx, NewDocument("b", "B", []float32{0, 1})))

	results, err := idx.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestBoltIndexQueryEmpty(t *testing.T) {
	idx, _ := openTestIndex(t, 3)

	results, err := idx.Query(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBoltIndexQueryInvalidK(t *testing.T) {
	idx, _ := openTestIndex(t, 3)

	_, err := idx.Query(context.Background(), []float32{1, 0, 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestBoltIndexTiesKeepInsertionOrder(t *testing.T) {
	idx, _ := openTestIndex(t, 2)
	ctx := context.Background()

	for _, id := range []DocumentID{"z-first", "a-second", "m-third"} {
		require.NoError(t, idx.Insert(ctx, NewDocument(id, string(id), []float32{1, 1})))
	}

	results, err := idx.Query(ctx, []float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, DocumentID("z-first"), results[0].ID)
	assert.Equal(t, DocumentID("a-second"), results[1].ID)
	assert.Equal(t, DocumentID("m-third"), results[2].ID)
}

func TestBoltIndexDuplicateRejected(t *testing.T) {
	idx, _ := openTestIndex(t, 3)
	ctx := context.Background()

	require.NoError(t, idx.Insert(ctx, NewDocument("dup", "original", []float32{1, 0, 0})))

	err := idx.Insert(ctx, NewDocument("dup", "replacement", []float32{0, 1, 0}))
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	doc, err := idx.Get(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "original", doc.Text)
	assert.Equal(t, []float32{1, 0, 0}, doc.Embedding)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBoltIndexConcurrentDuplicateFirstWriterWins(t *testing.T) {
	idx, _ := openTestIndex(t, 2)
	ctx := context.Background()

	const writers = 16
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = idx.Insert(ctx, NewDocument("same", "text", []float32{1, 0}))
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateID):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, dup)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBoltIndexDimensionMismatch(t *testing.T) {
	idx, _ := openTestIndex(t, 3)
	ctx := context.Background()

	err := idx.Insert(ctx, NewDocument("bad", "x", []float32{1.0, 0.0}))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch error on insert, got %v", err)
	}

	_, err = idx.Query(ctx, []float32{1.0, 0.0}, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch error on query, got %v", err)
	}
}

func TestBoltIndexPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), IndexFilename)

	idx1, err := OpenBoltIndex(path, 3)
	if err != nil {
		t.Fatalf("open 1: %v", err)
	}
	require.NoError(t, idx1.Insert(ctx, NewDocument("persist/a", "alpha", []float32{0.5, 0.5, 0.0})))
	require.NoError(t, idx1.Insert(ctx, NewDocument("persist/b", "beta", []float32{0.5, 0.5, 0.0})))
	require.NoError(t, idx1.Close())

	idx2, err := OpenBoltIndex(path, 3)
	if err != nil {
		t.Fatalf("open 2: %v", err)
	}
	defer idx2.Close()

	ok, err := idx2.Contains(ctx, "persist/a")
	require.NoError(t, err)
	assert.True(t, ok, "expected document to be present after reopen")

	results, err := idx2.Query(ctx, []float32{0.5, 0.5, 0.0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, DocumentID("persist/a"), results[0].ID, "insertion order must survive reopen")

	err = idx2.Insert(ctx, NewDocument("persist/a", "again", []float32{1, 0, 0}))
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestBoltIndexReopenWithOtherDimension(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexFilename)

	idx, err := OpenBoltIndex(path, 3)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = OpenBoltIndex(path, 4)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBoltIndexClosed(t *testing.T) {
	idx, _ := openTestIndex(t, 2)
	require.NoError(t, idx.Close())

	err := idx.Insert(context.Background(), NewDocument("x", "x", []float32{1, 0}))
	assert.ErrorIs(t, err, ErrIndexClosed)

	_, err = idx.Query(context.Background(), []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrIndexClosed)

	assert.NoError(t, idx.Close(), "second close is a no-op")
}
