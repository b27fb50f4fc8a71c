package llm

import (
	"fmt"
	"strings"
)

// ExtractJSON recovers the first JSON object or array from free-form LLM
// output. Models wrap JSON in markdown fences, prepend prose, or leave
// trailing commas; every call site that expects structured output goes
// through this one helper.
func ExtractJSON(text string) (string, error) {
	text = stripFences(text)

	start := -1
	for i, ch := range text {
		if ch == '{' || ch == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	raw, err := balancedSlice(text[start:])
	if err != nil {
		return "", err
	}
	return removeTrailingCommas(raw), nil
}

// stripFences removes markdown code fences around the payload
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// balancedSlice returns the prefix of text covering one balanced JSON
// value, tracking strings and escapes so braces in values don't confuse it
func balancedSlice(text string) (string, error) {
	depth := 0
	inString := false
	escaped := false

	for i, ch := range text {
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
				if depth == 0 {
					return text[:i+1], nil
				}
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON in response")
}

// removeTrailingCommas drops commas that directly precede a closing
// bracket, a common LLM output defect that encoding/json rejects
func removeTrailingCommas(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	inString := false
	escaped := false

	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if escaped {
			b.WriteRune(ch)
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case ',':
			if !inString {
				j := i + 1
				for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t' || runes[j] == '\n' || runes[j] == '\r') {
					j++
				}
				if j < len(runes) && (runes[j] == '}' || runes[j] == ']') {
					continue // drop the comma
				}
			}
		}
		b.WriteRune(ch)
	}
	return b.String()
}
