package sqlgen

import (
	"regexp"
	"strings"
)

var (
	fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")
	labelPattern = regexp.MustCompile(`(?i)^\s*(corrected\s+)?sql(\s+query)?\s*:\s*`)
	startPattern = regexp.MustCompile(`(?i)\b(select|with|insert|update|delete|drop|create|alter)\b`)
)

// Clean extracts the SQL text from an oracle completion.
//
// A fenced code block wins if present. Otherwise leading labels such as
// "SQL Query:" are dropped, as is prose before the first SQL keyword when
// the text starts with a sentence.
func Clean(completion string) string {
	s := strings.TrimSpace(completion)

	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	// Unterminated fence.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```sql")
		s = strings.TrimPrefix(s, "```")
		return strings.TrimSpace(strings.ReplaceAll(s, "```", ""))
	}

	s = labelPattern.ReplaceAllString(s, "")

	if loc := startPattern.FindStringIndex(s); loc != nil && loc[0] > 0 && looksLikeProse(s[:loc[0]]) {
		s = s[loc[0]:]
	}
	return strings.TrimSpace(s)
}

// looksLikeProse reports whether the text before a keyword is a sentence
// rather than part of the statement, e.g. "Here is the query:".
func looksLikeProse(prefix string) bool {
	p := strings.TrimSpace(prefix)
	return p != "" && (strings.HasSuffix(p, ":") || strings.HasSuffix(p, "."))
}
