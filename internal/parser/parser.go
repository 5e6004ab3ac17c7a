package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is the failure recorded when no object could be located in the reply.
var ErrNoJSON = errors.New("no JSON object found in model output")

// Narration models like to put in front of the payload. Matched case-insensitively
// at the start of the reply, longest first.
var leadingPhrases = []string{
	"here is the json response:",
	"here is the json output:",
	"here is the requested json:",
	"here's the json response:",
	"here is the json:",
	"here's the json:",
	"here is the result:",
	"here's the result:",
	"here are the tasks:",
	"here is the analysis:",
	"here is the summary:",
	"sure, here is the json:",
	"sure! here is the json:",
	"certainly! here is the json:",
	"json output:",
	"json:",
}

var fencePattern = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")

// ExtractJSON locates the JSON object inside a model reply. It strips known
// leading phrases and code fences, then slices from the first '{' to the last '}'.
func ExtractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)

	lower := strings.ToLower(s)
	for _, phrase := range leadingPhrases {
		if strings.HasPrefix(lower, phrase) {
			s = strings.TrimSpace(s[len(phrase):])
			break
		}
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	s = fencePattern.ReplaceAllString(s, "")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// Result is either a decoded value (Ok) or the reason parsing failed. It is a
// value, never an error path: callers degrade on !Ok().
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Schema is implemented by the pointer to each stage's response type.
type Schema[T any] interface {
	*T
	Validate() error
}

// Parse extracts, decodes, and validates a model reply into T.
func Parse[T any, PT Schema[T]](raw string) Result[T] {
	var zero T

	payload, ok := ExtractJSON(raw)
	if !ok {
		return Result[T]{Value: zero, Err: ErrNoJSON}
	}

	var v T
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return Result[T]{Value: zero, Err: fmt.Errorf("decode model output: %w", err)}
	}

	if err := PT(&v).Validate(); err != nil {
		return Result[T]{Value: zero, Err: fmt.Errorf("validate model output: %w", err)}
	}

	return Result[T]{Value: v}
}

// ParseValue decodes a reply into a generic JSON value. The second return is
// false when nothing usable was found.
func ParseValue(raw string) (any, bool) {
	payload, ok := ExtractJSON(raw)
	if !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, false
	}
	return v, true
}
