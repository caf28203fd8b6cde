package sqlgen

import (
	"bytes"
	"text/template"
)

var generateTmpl = template.Must(template.New("generate").Parse(`You are a SQL expert. Generate a {{.Dialect}} SQL query based on the user's question.

Database Schema:
{{.Schema}}

Rules:
1. Only use tables and columns from the schema
2. Use {{.Dialect}} SQL syntax
3. Return ONLY SQL (no explanation)
4. Ensure SQL is valid

User Question: {{.Question}}

SQL Query:`))

var correctTmpl = template.Must(template.New("correct").Parse(`The SQL query failed with this error:
{{.Error}}

Failed SQL:
{{.FailingSQL}}

Original question: {{.Question}}

Database Schema:
{{.Schema}}

This is attempt {{.Attempt}} of {{.MaxAttempts}}.

Return a corrected {{.Dialect}} SQL query.
Rules:
1. Use only schema tables/columns
2. Use valid {{.Dialect}} SQL
3. Return ONLY SQL
4. Must be SELECT

Corrected SQL Query:`))

type generateData struct {
	Dialect  string
	Schema   string
	Question string
}

type correctData struct {
	Correction
	Dialect string
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
