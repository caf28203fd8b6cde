package validator

import (
	"strings"
	"unicode"
)

// LeadingKeyword returns the first keyword of a statement, upper-cased.
// Leading whitespace, -- line comments and /* block comments */ are skipped.
func LeadingKeyword(sql string) string {
	i := skipTrivia(sql, 0)
	j := i
	for j < len(sql) {
		r := rune(sql[j])
		if !unicode.IsLetter(r) && r != '_' {
			break
		}
		j++
	}
	return strings.ToUpper(sql[i:j])
}

// skipTrivia returns the index of the first byte at or after i that is not
// whitespace or part of a comment.
func skipTrivia(s string, i int) int {
	for i < len(s) {
		switch {
		case unicode.IsSpace(rune(s[i])):
			i++
		case strings.HasPrefix(s[i:], "--"):
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				return len(s)
			}
			i += nl + 1
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return len(s)
			}
			i += end + 4
		default:
			return i
		}
	}
	return i
}

// lexer holds the quoting rules of one family of dialects.
type lexer struct {
	backslash bool // backslash escapes inside '...'
	escapeStr bool // E'...' strings with backslash escapes
	dollar    bool // $tag$...$tag$ strings
	backtick  bool // `...` identifiers
	brackets  bool // [...] identifiers
	nested    bool // /* */ comments nest
}

// lexers covers every dialect a target may speak. Text is one statement only
// if all of them agree.
var lexers = []lexer{
	{},
	{escapeStr: true, dollar: true, nested: true},
	{backslash: true},
	{backtick: true, brackets: true},
}

// HasMultipleStatements reports whether sql contains a statement separator
// followed by anything other than comments, whitespace or more separators.
// Semicolons inside string literals, quoted identifiers and comments are
// ignored. The text is checked under the quoting rules of each supported
// dialect, and any reading that finds a second statement counts.
func HasMultipleStatements(sql string) bool {
	for _, lx := range lexers {
		if lx.multiple(sql) {
			return true
		}
	}
	return false
}

func (lx lexer) multiple(sql string) bool {
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			i = skipQuoted(sql, i, c, lx.backslash && c == '\'')
		case c == '`' && lx.backtick:
			i = skipQuoted(sql, i, '`', false)
		case c == '[' && lx.brackets:
			i = skipBracket(sql, i)
		case c == '$' && lx.dollar:
			i = skipDollar(sql, i)
		case isIdentStart(c):
			j := i
			for j < len(sql) && isIdentPart(sql[j], lx.dollar) {
				j++
			}
			if lx.escapeStr && j == i+1 && (c == 'E' || c == 'e') && j < len(sql) && sql[j] == '\'' {
				j = skipQuoted(sql, j, '\'', true)
			}
			i = j
		case strings.HasPrefix(sql[i:], "/*") && lx.nested:
			i = skipNestedComment(sql, i)
		case strings.HasPrefix(sql[i:], "--"), strings.HasPrefix(sql[i:], "/*"):
			i = skipTrivia(sql, i)
		case c == ';':
			rest := i + 1
			for {
				rest = lx.skipTrivia(sql, rest)
				if rest < len(sql) && sql[rest] == ';' {
					rest++
					continue
				}
				break
			}
			return rest < len(sql)
		default:
			i++
		}
	}
	return false
}

func (lx lexer) skipTrivia(s string, i int) int {
	if !lx.nested {
		return skipTrivia(s, i)
	}
	for {
		i = skipTrivia(s, i)
		if !strings.HasPrefix(s[i:], "/*") {
			return i
		}
		i = skipNestedComment(s, i)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isIdentPart(c byte, dollar bool) bool {
	return isIdentStart(c) || c >= '0' && c <= '9' || dollar && c == '$'
}

// skipQuoted returns the index just past the literal opened at s[i].
// A doubled quote character is an escape, and so is a backslash when
// backslash is set.
func skipQuoted(s string, i int, quote byte, backslash bool) int {
	i++
	for i < len(s) {
		switch {
		case backslash && s[i] == '\\':
			i += 2
			continue
		case s[i] == quote:
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}

func skipBracket(s string, i int) int {
	end := strings.IndexByte(s[i+1:], ']')
	if end < 0 {
		return len(s)
	}
	return i + end + 2
}

// skipDollar returns the index past a $tag$...$tag$ string opened at s[i].
// A $ that does not open one, such as a $1 parameter, is skipped alone.
func skipDollar(s string, i int) int {
	j := i + 1
	if j < len(s) && isIdentStart(s[j]) {
		for j < len(s) && isIdentPart(s[j], false) {
			j++
		}
	}
	if j >= len(s) || s[j] != '$' {
		return i + 1
	}
	tag := s[i : j+1]
	end := strings.Index(s[j+1:], tag)
	if end < 0 {
		return len(s)
	}
	return j + 1 + end + len(tag)
}

func skipNestedComment(s string, i int) int {
	depth := 0
	for i < len(s) {
		switch {
		case strings.HasPrefix(s[i:], "/*"):
			depth++
			i += 2
		case strings.HasPrefix(s[i:], "*/"):
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return len(s)
}
