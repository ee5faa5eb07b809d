package internal

import (
	"strings"
	"unicode/utf8"
)

// Assembled is the context block handed to the generator together with the
// results that went into it.
type Assembled struct {
	Text string
	Used []SearchResult
}

// Sources returns the passage texts of the used results in rank order. It is
// never nil.
func (a Assembled) Sources() []string {
	out := make([]string, 0, len(a.Used))
	for _, r := range a.Used {
		out = append(out, r.Text)
	}
	return out
}

// ContextAssembler joins retrieved passages with newlines. When MaxChars is
// positive the block is capped by dropping the lowest ranked passages first.
type ContextAssembler struct {
	MaxChars int
}

func NewContextAssembler(maxChars int) *ContextAssembler {
	return &ContextAssembler{MaxChars: max(maxChars, 0)}
}

func (a *ContextAssembler) Assemble(results []SearchResult) Assembled {
	if len(results) == 0 {
		return Assembled{Used: []SearchResult{}}
	}

	used := results
	if a.MaxChars > 0 {
		used = a.fit(results)
	}

	texts := make([]string, len(used))
	for i, r := range used {
		texts[i] = r.Text
	}

	return Assembled{Text: strings.Join(texts, "\n"), Used: used}
}

// fit keeps the longest rank-ordered prefix that fits in MaxChars. A top
// passage longer than the cap is cut on a rune boundary.
func (a *ContextAssembler) fit(results []SearchResult) []SearchResult {
	total := 0
	n := 0
	for i, r := range results {
		size := utf8.RuneCountInString(r.Text)
		if i > 0 {
			size++
		}
		if total+size > a.MaxChars {
			break
		}
		total += size
		n++
	}

	if n > 0 {
		return results[:n]
	}

	top := results[0]
	top.Text = truncateRunes(top.Text, a.MaxChars)
	return []SearchResult{top}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
