// Package sqlgen turns questions into SQL and repairs failing SQL by asking
// a text-generation oracle.
//
// Neither component retries. A failed oracle call, or a completion with no
// SQL in it, is returned as an error.
package sqlgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/askql/internal/oracle"
)

// ErrEmptyCompletion is returned when the cleaned completion is empty.
var ErrEmptyCompletion = errors.New("oracle completion contained no SQL")

// DefaultDialect names the SQL flavour in prompts when none is configured.
const DefaultDialect = "DuckDB"

// Config holds configuration shared by the generator and the corrector.
type Config struct {
	// Dialect is the SQL flavour named in prompts (e.g. "DuckDB", "PostgreSQL").
	Dialect string
	Logger  *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Dialect == "" {
		c.Dialect = DefaultDialect
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Generator maps (question, schema) to candidate SQL.
type Generator struct {
	oracle oracle.Oracle
	cfg    Config
}

// NewGenerator creates a generator backed by o.
func NewGenerator(o oracle.Oracle, cfg Config) *Generator {
	return &Generator{oracle: o, cfg: cfg.withDefaults()}
}

// Generate asks the oracle for SQL answering question over schema.
func (g *Generator) Generate(ctx context.Context, question, schema string) (string, error) {
	prompt, err := render(generateTmpl, generateData{
		Dialect:  g.cfg.Dialect,
		Schema:   schema,
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return complete(ctx, g.oracle, g.cfg.Logger, "SQL generation failed", prompt)
}

// Correction is everything the corrector knows about a failed execution.
type Correction struct {
	Question   string
	Schema     string
	FailingSQL string
	// Error is the engine message, exactly as reported.
	Error       string
	Attempt     int
	MaxAttempts int
}

// Corrector maps (question, failing SQL, error) to repaired SQL.
type Corrector struct {
	oracle oracle.Oracle
	cfg    Config
}

// NewCorrector creates a corrector backed by o.
func NewCorrector(o oracle.Oracle, cfg Config) *Corrector {
	return &Corrector{oracle: o, cfg: cfg.withDefaults()}
}

// Correct asks the oracle to repair c.FailingSQL.
func (r *Corrector) Correct(ctx context.Context, c Correction) (string, error) {
	prompt, err := render(correctTmpl, correctData{Correction: c, Dialect: r.cfg.Dialect})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return complete(ctx, r.oracle, r.cfg.Logger, "SQL correction failed", prompt)
}

func complete(ctx context.Context, o oracle.Oracle, logger *slog.Logger, op, prompt string) (string, error) {
	out, err := o.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	sql := Clean(out)
	if sql == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyCompletion)
	}
	logger.Debug("oracle produced sql", "op", op, "sql", sql)
	return sql, nil
}
