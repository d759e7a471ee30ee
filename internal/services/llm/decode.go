package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeLLMJSON unmarshals a model reply into target. Replies wrapped in a
// markdown fence or surrounded by prose are reduced to the outermost JSON
// object or array before a second attempt.
func DecodeLLMJSON(content string, target any) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(content), target)
	if err == nil {
		return nil
	}
	inner := extractJSON(content)
	if inner == "" || inner == content {
		return fmt.Errorf("%w (payload snippet: %s)", err, snippet(content))
	}
	if err := json.Unmarshal([]byte(inner), target); err != nil {
		return fmt.Errorf("%w (extracted payload snippet: %s)", err, snippet(inner))
	}
	return nil
}

func extractJSON(content string) string {
	content = unfence(content)
	open := strings.IndexAny(content, "{[")
	if open < 0 {
		return content
	}
	closer := "}"
	if content[open] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(content, closer)
	if end <= open {
		return content
	}
	return strings.TrimSpace(content[open : end+1])
}

// unfence strips a ``` or ```json fence.
func unfence(content string) string {
	body, ok := strings.CutPrefix(strings.TrimSpace(content), "```")
	if !ok {
		return strings.TrimSpace(content)
	}
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// snippet flattens s onto one line, truncated for error messages.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "<empty>"
	}
	if runes := []rune(s); len(runes) > maxErrorSnippet {
		return string(runes[:maxErrorSnippet]) + "..."
	}
	return s
}
