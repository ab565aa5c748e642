package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when no JSON object can be recovered from content.
var ErrParseFailed = errors.New("failed to parse response")

var jsonBlockRegex = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// ExtractJSON recovers a JSON document from model output. It accepts, in
// order: the content itself, the body of a markdown code fence, and the span
// between the first '{' and the last '}'. The returned text is valid JSON.
func ExtractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)

	if json.Valid([]byte(content)) {
		return content, nil
	}

	if matches := jsonBlockRegex.FindStringSubmatch(content); len(matches) >= 2 {
		cleaned := strings.TrimSpace(matches[1])
		if json.Valid([]byte(cleaned)) {
			return cleaned, nil
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start != -1 && end > start {
		inner := content[start : end+1]
		if json.Valid([]byte(inner)) {
			return inner, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrParseFailed, truncate(content, 512))
}

// Parse unmarshals the JSON recovered by ExtractJSON into T.
func Parse[T any](content string) (T, error) {
	var result T

	raw, err := ExtractJSON(content)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
