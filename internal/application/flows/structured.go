package flows

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOutput marks model output that does not match the declared shape
var ErrInvalidOutput = errors.New("invalid model output")

// outputValidator checks a decoded value before it is trusted
type outputValidator[T any] func(T) error

// decodeOutput pulls the JSON object out of raw model text and decodes it
// into T. Markdown fences and prose around the object are tolerated; a
// missing, truncated or mistyped object is not.
func decodeOutput[T any](raw string, validate outputValidator[T]) (T, error) {
	var zero T

	block := extractObject(stripFences(raw))
	if block == "" {
		return zero, fmt.Errorf("%w: no JSON object found in response", ErrInvalidOutput)
	}

	var out T
	dec := json.NewDecoder(bytes.NewReader([]byte(block)))
	if err := dec.Decode(&out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	if validate != nil {
		if err := validate(out); err != nil {
			return zero, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
	}
	return out, nil
}

// stripFences drops markdown code fence lines
func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// extractObject returns the first balanced {...} block, honouring string
// literals and escapes. It returns "" when the object never closes.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
