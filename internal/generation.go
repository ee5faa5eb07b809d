package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultInstruction is prepended to every system prompt sent to the model.
const DefaultInstruction = `You are a teaching assistant for a university course website.
Answer the student's question using only the given context, concisely, in at most a few short paragraphs.
If the context does not contain the answer, say that the course material does not cover it.
Explain concepts and reasoning; never hand out complete solutions to graded work.`

const (
	DefaultGenerationTimeout = 60 * time.Second
	maxGenerationRetries     = 1
)

// GenerationClient wraps a Generator with the fixed instruction, a timeout
// per attempt and at most one retry, taken only after a timeout.
type GenerationClient struct {
	gen         Generator
	instruction string
	timeout     time.Duration
	retries     int
	logger      *slog.Logger
}

type GenerationOption func(*GenerationClient)

func WithTimeout(d time.Duration) GenerationOption {
	return func(c *GenerationClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times a timed-out call is repeated. Values above
// one are clamped.
func WithRetries(n int) GenerationOption {
	return func(c *GenerationClient) {
		c.retries = min(max(n, 0), maxGenerationRetries)
	}
}

func WithInstruction(instruction string) GenerationOption {
	return func(c *GenerationClient) {
		if strings.TrimSpace(instruction) != "" {
			c.instruction = instruction
		}
	}
}

func WithGenerationLogger(l *slog.Logger) GenerationOption {
	return func(c *GenerationClient) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewGenerationClient(gen Generator, opts ...GenerationOption) *GenerationClient {
	c := &GenerationClient{
		gen:         gen,
		instruction: DefaultInstruction,
		timeout:     DefaultGenerationTimeout,
		retries:     maxGenerationRetries,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SystemPrompt returns the instruction combined with an optional caller
// supplied system prompt.
func (c *GenerationClient) SystemPrompt(extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return c.instruction
	}
	return c.instruction + "\n\n" + extra
}

func (c *GenerationClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	system := c.SystemPrompt(systemPrompt)

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		out, err := c.attempt(ctx, system, userPrompt)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !errors.Is(err, ErrGenerationTimeout) || ctx.Err() != nil {
			return "", err
		}
		c.logger.Warn("generation timed out", "attempt", attempt+1, "timeout", c.timeout)
	}
	return "", lastErr
}

func (c *GenerationClient) attempt(ctx context.Context, system, user string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.gen.Complete(attemptCtx, system, user)
	if err == nil {
		return out, nil
	}

	if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %s: %w", ErrGenerationTimeout, c.timeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: %w", ErrGenerationTimeout, err)
	}
	return "", fmt.Errorf("%w: %w", ErrGeneration, err)
}

// EnsureModel delegates to the wrapped generator when it can check its model.
func (c *GenerationClient) EnsureModel(ctx context.Context) error {
	if mc, ok := c.gen.(ModelChecker); ok {
		return mc.EnsureModel(ctx)
	}
	return nil
}

// BuildUserPrompt lays out the retrieved context and the question.
func BuildUserPrompt(contextBlock, question string) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	if strings.TrimSpace(contextBlock) == "" {
		sb.WriteString("(no course material matched this question)\n")
	} else {
		sb.WriteString(contextBlock)
		sb.WriteString("\n")
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}
