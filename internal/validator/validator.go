// Package validator implements the safety and syntax gate every SQL
// statement passes before it may be executed.
//
// Two checks run in order. The safety check is static: the statement must be
// a single SELECT. The syntax check asks the data store to plan the statement
// without running it. A statement that fails the safety check is never sent
// to the store.
package validator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Kind classifies a rejection.
type Kind string

// Rejection kinds.
const (
	KindEmpty  Kind = "empty"
	KindSafety Kind = "safety"
	KindSyntax Kind = "syntax"
)

// Rejection reasons produced by the static checks.
const (
	ReasonEmpty              = "No SQL generated"
	ReasonNotSelect          = "Only SELECT queries are allowed for safety"
	ReasonMultipleStatements = "Only a single SELECT statement is allowed"
)

// Outcome is the tagged result of validation: Valid or Invalid(kind, reason).
type Outcome struct {
	Valid  bool
	Kind   Kind
	Reason string
}

// Valid returns the accepting outcome.
func Valid() Outcome { return Outcome{Valid: true} }

// Invalid returns a rejecting outcome.
func Invalid(kind Kind, reason string) Outcome {
	return Outcome{Kind: kind, Reason: reason}
}

// Planner is the non-mutating plan check of a data store.
type Planner interface {
	Explain(ctx context.Context, sql string) error
}

// Config holds validator configuration.
type Config struct {
	// Timeout bounds the plan check. Zero means no timeout.
	Timeout time.Duration
	// Logger is optional; nil discards.
	Logger *slog.Logger
}

// Validator gates SQL on safety and syntax.
type Validator struct {
	planner Planner
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a validator backed by planner.
func New(planner Planner, cfg Config) *Validator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{planner: planner, timeout: cfg.Timeout, logger: logger}
}

// Validate checks sql. It never executes the statement.
func (v *Validator) Validate(ctx context.Context, sql string) Outcome {
	if out := CheckSafety(sql); !out.Valid {
		v.logger.Debug("sql rejected", "kind", out.Kind, "reason", out.Reason)
		return out
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	if err := v.planner.Explain(ctx, sql); err != nil {
		reason := err.Error()
		if v.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "plan check timed out after " + v.timeout.String()
		}
		v.logger.Debug("sql rejected", "kind", KindSyntax, "reason", reason)
		return Invalid(KindSyntax, reason)
	}
	return Valid()
}

// CheckSafety runs the static checks only.
func CheckSafety(sql string) Outcome {
	if strings.TrimSpace(sql) == "" {
		return Invalid(KindEmpty, ReasonEmpty)
	}
	if LeadingKeyword(sql) != "SELECT" {
		return Invalid(KindSafety, ReasonNotSelect)
	}
	if HasMultipleStatements(sql) {
		return Invalid(KindSafety, ReasonMultipleStatements)
	}
	return Valid()
}
