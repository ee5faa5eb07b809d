package internal

import (
	"context"
	"fmt"
	"strings"
)

// DefaultForbiddenTerms are phrases that ask for graded work to be done
// rather than explained.
var DefaultForbiddenTerms = []string{
	"solve this",
	"solve it for me",
	"give me the answer",
	"just the answer",
	"answer key",
	"full solution",
	"do my homework",
	"do my assignment",
	"complete this assignment",
	"write my essay",
}

// GuardrailResult is the outcome of a guardrail check.
type GuardrailResult struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Guardrail rejects queries containing any forbidden term. It is a literal,
// case-insensitive substring match.
type Guardrail struct {
	terms []string
}

// NewGuardrail builds a guardrail over terms, falling back to
// DefaultForbiddenTerms when none are given.
func NewGuardrail(terms ...string) *Guardrail {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultForbiddenTerms...)
	}
	return &Guardrail{terms: cleaned}
}

func (g *Guardrail) Terms() []string {
	out := make([]string, len(g.terms))
	copy(out, g.terms)
	return out
}

func (g *Guardrail) Check(_ context.Context, content string) GuardrailResult {
	if term, hit := g.match(content); hit {
		return GuardrailResult{Passed: false, Reason: fmt.Sprintf("blocked term: %q", term)}
	}
	return GuardrailResult{Passed: true}
}

func (g *Guardrail) DetectCheating(query string) bool {
	_, hit := g.match(query)
	return hit
}

func (g *Guardrail) match(content string) (string, bool) {
	lower := strings.ToLower(content)
	for _, term := range g.terms {
		if strings.Contains(lower, term) {
			return term, true
		}
	}
	return "", false
}

var defaultGuardrail = NewGuardrail()

// DetectCheating reports whether query trips the default denylist.
func DetectCheating(query string) bool {
	return defaultGuardrail.DetectCheating(query)
}
