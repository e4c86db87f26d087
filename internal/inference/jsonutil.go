package inference

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// fencedObjectPattern matches a JSON object inside a markdown code block.
	fencedObjectPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	objectPattern       = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON pulls the JSON object out of a model answer. Models sometimes wrap the object in
// a markdown fence or prose, and occasionally leave trailing commas behind. Commas are only
// stripped from a body that does not parse as-is, and never inside string values.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	raw := ""
	if m := fencedObjectPattern.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else if m := objectPattern.FindString(content); m != "" {
		raw = m
	}
	if raw == "" || json.Valid([]byte(raw)) {
		return raw
	}
	if repaired := stripTrailingCommas(raw); json.Valid([]byte(repaired)) {
		return repaired
	}
	return raw
}

// stripTrailingCommas drops commas that directly precede a closing bracket outside strings.
func stripTrailingCommas(raw string) string {
	var (
		b        strings.Builder
		inString bool
		escaped  bool
	)
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case inString:
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
		case c == '"':
			inString = true
		case c == ',':
			j := i + 1
			for j < len(raw) && strings.IndexByte(" \t\r\n", raw[j]) >= 0 {
				j++
			}
			if j < len(raw) && (raw[j] == '}' || raw[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
