package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadingKeyword(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"plain", "SELECT 1", "SELECT"},
		{"lower case", "select * from customers", "SELECT"},
		{"leading whitespace", " \n\t  Select 1", "SELECT"},
		{"line comment", "-- count them\nSELECT COUNT(*) FROM customers", "SELECT"},
		{"block comment", "/* generated */ SELECT 1", "SELECT"},
		{"stacked comments", "/* a */\n-- b\n  /* c */DELETE FROM customers", "DELETE"},
		{"delete", "DELETE FROM customers", "DELETE"},
		{"cte", "WITH x AS (SELECT 1) SELECT * FROM x", "WITH"},
		{"parenthesised", "(SELECT 1)", ""},
		{"empty", "", ""},
		{"only comment", "-- nothing", ""},
		{"unterminated block", "/* SELECT 1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LeadingKeyword(tt.sql))
		})
	}
}

func TestHasMultipleStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{"single", "SELECT 1", false},
		{"trailing semicolon", "SELECT 1;", false},
		{"trailing semicolons and comment", "SELECT 1; ; -- done\n", false},
		{"two statements", "SELECT 1; DROP TABLE customers", true},
		{"semicolon in string", "SELECT ';' AS sep", false},
		{"escaped quote in string", "SELECT 'it''s; fine' AS s", false},
		{"semicolon in identifier", `SELECT 1 AS "a;b"`, false},
		{"semicolon in line comment", "SELECT 1 -- a; b\n", false},
		{"semicolon in block comment", "SELECT /* ; DROP */ 1", false},
		{"statement after comment", "SELECT 1; /* x */ DELETE FROM customers", true},
		{"dollar quoted string", "SELECT $$a b$$ AS s", false},
		{"semicolon quoted in one dialect only", "SELECT $$a;b$$ AS s", true},
		{"dollar quote hides quote", "SELECT $$'$$; DELETE FROM t; --'", true},
		{"positional parameter", "SELECT $1; DELETE FROM t", true},
		{"escape string", `SELECT E'a;b' AS s`, false},
		{"escape string hides quote", `SELECT E'\''; DELETE FROM t; --'`, true},
		{"backslash before close", `SELECT E'\'; DELETE FROM t; --'`, true},
		{"backtick identifier", "SELECT `ab` FROM t", false},
		{"backtick hides quote", "SELECT `'`; DELETE FROM t; --'", true},
		{"bracket hides quote", "SELECT [']; DELETE FROM t; --']", true},
		{"nested comment", "SELECT 1 /* a /* b */ ; c */", true},
		{"nested comment hides quote", "SELECT 1 /* /* */ ' */ ; DELETE FROM t; --'", true},
		{"identifier with dollar", "SELECT a$b$ FROM t", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasMultipleStatements(tt.sql))
		})
	}
}
