package internal

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeGenerator records every call and replies from a script of outcomes.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	systems []string
	users   []string

	reply string
	err   error
	// delays[i] is how long call i blocks before replying or observing ctx.
	delays []time.Duration
	// missing makes EnsureModel fail.
	missing bool
}

func (f *fakeGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.systems = append(f.systems, systemPrompt)
	f.users = append(f.users, userPrompt)
	var delay time.Duration
	if call < len(f.delays) {
		delay = f.delays[call]
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeGenerator) EnsureModel(context.Context) error {
	if f.missing {
		return ErrModelNotFound
	}
	return nil
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGenerator) LastUser() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.users) == 0 {
		return ""
	}
	return f.users[len(f.users)-1]
}

var errBackendDown = errors.New("backend down")

// failingEmbedder fails every call, counting them.
type failingEmbedder struct {
	mu    sync.Mutex
	calls int
	dim   int
}

func (e *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return nil, errors.Join(ErrEmbedding, errBackendDown)
}

func (e *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatch(ctx, e, texts)
}

func (e *failingEmbedder) Dimension() int { return e.dim }
func (e *failingEmbedder) Model() string  { return "failing" }
func (e *failingEmbedder) Close() error   { return nil }

// countingEmbedder counts Embed calls on the wrapped embedder.
type countingEmbedder struct {
	Embedder
	mu    sync.Mutex
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.Embedder.Embed(ctx, text)
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatch(ctx, e, texts)
}

func (e *countingEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
