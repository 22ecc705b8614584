// Package extract coerces free-form model output into validated values.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoCandidate means no substring of a response decoded into a value that
// passed validation.
var ErrNoCandidate = errors.New("no valid JSON value found in response")

// Shape is the bracket pair delimiting the expected JSON value.
type Shape struct {
	Open  byte
	Close byte
}

// Shapes for JSON arrays and objects.
var (
	Array  = Shape{Open: '[', Close: ']'}
	Object = Shape{Open: '{', Close: '}'}
)

// Validator checks a decoded value.
type Validator[T any] func(T) error

// Scan returns every balanced span of text that starts at an opener, left to
// right by start position. Brackets inside JSON string literals are ignored.
// An opener with no matching closer yields nothing.
func Scan(text string, open, close byte) []string {
	var out []string
	for start := strings.IndexByte(text, open); start >= 0; {
		if end := matchClose(text, start, open, close); end > 0 {
			out = append(out, text[start:end])
		}
		next := strings.IndexByte(text[start+1:], open)
		if next < 0 {
			break
		}
		start += 1 + next
	}
	return out
}

// matchClose returns the index just past the closer that balances the opener
// at start, or -1.
func matchClose(s string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// Parse returns the first candidate in text that decodes as T and passes
// validate. A nil validate accepts any decoded value.
func Parse[T any](text string, shape Shape, validate Validator[T]) (T, error) {
	var zero T
	var lastErr error

	for _, cand := range Scan(text, shape.Open, shape.Close) {
		var v T
		if err := json.Unmarshal([]byte(cand), &v); err != nil {
			lastErr = fmt.Errorf("decode candidate: %w", err)
			continue
		}
		if validate != nil {
			if err := validate(v); err != nil {
				lastErr = err
				continue
			}
		}
		return v, nil
	}

	if lastErr != nil {
		return zero, fmt.Errorf("%w: %v", ErrNoCandidate, lastErr)
	}
	return zero, ErrNoCandidate
}
