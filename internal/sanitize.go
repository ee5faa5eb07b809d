package internal

import "strings"

const (
	DefaultThinkOpen  = "<think>"
	DefaultThinkClose = "</think>"
)

// Sanitizer strips reasoning spans that some models emit before their answer.
type Sanitizer struct {
	Open  string
	Close string
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{Open: DefaultThinkOpen, Close: DefaultThinkClose}
}

// Sanitize removes every Open…Close span, markers included, and trims the
// result. Text without markers or with unbalanced markers is returned as is.
func (s *Sanitizer) Sanitize(raw string) string {
	if s.Open == "" || s.Close == "" {
		return raw
	}
	if !strings.Contains(raw, s.Open) && !strings.Contains(raw, s.Close) {
		return raw
	}

	var sb strings.Builder
	sb.Grow(len(raw))

	depth := 0
	rest := raw
	for len(rest) > 0 {
		switch {
		case strings.HasPrefix(rest, s.Open):
			depth++
			rest = rest[len(s.Open):]
		case strings.HasPrefix(rest, s.Close):
			if depth == 0 {
				return raw
			}
			depth--
			rest = rest[len(s.Close):]
		default:
			if depth == 0 {
				sb.WriteByte(rest[0])
			}
			rest = rest[1:]
		}
	}

	if depth != 0 {
		return raw
	}
	return strings.TrimSpace(sb.String())
}

// Sanitize applies the default <think> sanitizer.
func Sanitize(raw string) string {
	return NewSanitizer().Sanitize(raw)
}
