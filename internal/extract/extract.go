// Package extract pulls the first JSON object out of free-form model output.
package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNotFound is returned when the text holds no parseable JSON object. Models
// produce unusable output routinely, so callers treat this as a normal result.
var ErrNotFound = errors.New("no JSON object found")

// fencePattern matches a triple-backtick fence and a language tag written
// directly after it.
var fencePattern = regexp.MustCompile("```(?:[A-Za-z][A-Za-z0-9_+-]*)?")

// StripFences removes code-fence markers and their language tags.
func StripFences(raw string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))
}

// Extract returns the first JSON object in raw.
//
// The scan starts at the first '{' and counts brace depth. Each '}' that
// brings the depth back to zero or below closes a candidate, which is parsed
// strictly; the first candidate that parses wins. Braces inside string
// literals therefore only cost an extra failed candidate.
func Extract(raw string) (map[string]any, error) {
	text := StripFences(raw)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, ErrNotFound
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth > 0 {
				continue
			}
			if obj, ok := parseObject(text[start : i+1]); ok {
				return obj, nil
			}
		}
	}

	return nil, ErrNotFound
}

func parseObject(candidate string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		return nil, false
	}
	return obj, true
}
