package internal

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 150
)

var supportedExtensions = []string{".txt", ".md", ".markdown", ".pdf"}

// Supported reports whether path has an extension LoadFile can read.
func Supported(path string) bool {
	return slices.Contains(supportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// LoadFile returns the plain text of a course document.
func LoadFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return loadPDF(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func loadPDF(path string) (string, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}
	return buf.String(), nil
}

// ChunkText splits text into windows of at most size runes that overlap by
// overlap runes, preferring to cut at whitespace. A size of zero or less
// returns the whole text as one chunk.
func ChunkText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}
	overlap = min(max(overlap, 0), size/2)

	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		if end < len(runes) {
			if cut := lastSpace(runes[start:end]); cut > size/2 {
				end = start + cut
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if unicode.IsSpace(rs[i]) {
			return i
		}
	}
	return -1
}

// ChunkID names chunk i (zero based) of the document base.
func ChunkID(base string, i int) string {
	return fmt.Sprintf("%s#%04d", base, i+1)
}

// DocumentIDForPath derives a document id from a slash separated relative
// path, replacing characters an id cannot hold.
func DocumentIDForPath(rel string) string {
	rel = filepath.ToSlash(rel)

	var sb strings.Builder
	for _, r := range rel {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
		case strings.ContainsRune("._/:-", r):
			sb.WriteRune(r)
		default:
			sb.WriteByte('-')
		}
	}

	return strings.TrimLeftFunc(sb.String(), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// WalkDocuments lists the supported files under root that the matcher does
// not exclude, in lexical order.
func WalkDocuments(root string, matcher *IgnoreMatcher) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && matcher != nil && matcher.MatchDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !Supported(path) {
			return nil
		}
		if matcher != nil && matcher.Match(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}
