// Package workflow implements the query-correction state machine.
//
// A run generates SQL for a question, validates it, executes it and, when
// execution fails, asks for a correction and loops back to validation. The
// loop is bounded by MaxRetries corrections. Routing is driven entirely by
// the table in transitions.go.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/askql/internal/executor"
	"github.com/leapstack-labs/askql/internal/format"
	"github.com/leapstack-labs/askql/internal/sqlgen"
	"github.com/leapstack-labs/askql/internal/validator"
)

// DefaultMaxRetries bounds the number of corrections per run.
const DefaultMaxRetries = 3

// Generator produces the first SQL candidate.
type Generator interface {
	Generate(ctx context.Context, question, schema string) (string, error)
}

// Corrector repairs SQL that failed to execute.
type Corrector interface {
	Correct(ctx context.Context, c sqlgen.Correction) (string, error)
}

// Validator gates SQL before execution.
type Validator interface {
	Validate(ctx context.Context, sql string) validator.Outcome
}

// Executor runs validated SQL.
type Executor interface {
	Execute(ctx context.Context, sql string) executor.Outcome
}

// Formatter renders a successful result for display.
type Formatter interface {
	Format(rs *executor.ResultSet) string
}

// Deps are the components a controller drives.
type Deps struct {
	Generator Generator
	Corrector Corrector
	Validator Validator
	Executor  Executor
	// Formatter is optional; nil uses the default table formatter.
	Formatter Formatter
}

// Config holds controller configuration.
type Config struct {
	// Schema is the description of the data store passed to the oracle.
	Schema string
	// MaxRetries bounds corrections per run. Zero means DefaultMaxRetries.
	MaxRetries int
	// StopOnRepeatedSQL ends the run early when a correction returns SQL
	// that has already been executed in the same run.
	StopOnRepeatedSQL bool
	// Logger is optional; nil discards.
	Logger *slog.Logger
}

// Controller runs workflows. It is immutable after construction and safe for
// concurrent use.
type Controller struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// New creates a controller.
func New(cfg Config, deps Deps) (*Controller, error) {
	switch {
	case deps.Generator == nil:
		return nil, errors.New("workflow: generator is required")
	case deps.Corrector == nil:
		return nil, errors.New("workflow: corrector is required")
	case deps.Validator == nil:
		return nil, errors.New("workflow: validator is required")
	case deps.Executor == nil:
		return nil, errors.New("workflow: executor is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("workflow: max retries must not be negative, got %d", cfg.MaxRetries)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if deps.Formatter == nil {
		deps.Formatter = format.New(format.Config{})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{deps: deps, cfg: cfg, logger: logger}, nil
}

// Schema returns the schema description given to the oracle.
func (c *Controller) Schema() string {
	return c.cfg.Schema
}

// MaxRetries returns the effective correction bound.
func (c *Controller) MaxRetries() int {
	return c.cfg.MaxRetries
}

// Transition describes one edge taken by a run.
type Transition struct {
	RunID      string `json:"run_id"`
	From       Step   `json:"from"`
	Event      Event  `json:"event"`
	To         Step   `json:"to"`
	SQL        string `json:"sql,omitempty"`
	RetryCount int    `json:"retry_count"`
}

// Observer is told about every transition of a run, synchronously.
type Observer func(Transition)

// Run answers question. It always returns a result; failures are reported
// in the envelope, never as an error or a panic.
func (c *Controller) Run(ctx context.Context, question string) *Result {
	return c.run(ctx, question, nil).Final()
}

// RunObserved is Run with a callback for each transition.
func (c *Controller) RunObserved(ctx context.Context, question string, obs Observer) *Result {
	return c.run(ctx, question, obs).Final()
}

// RunState runs the workflow and returns the final state, for callers that
// want the trace.
func (c *Controller) RunState(ctx context.Context, question string) (*State, *Result) {
	st := c.run(ctx, question, nil)
	return st, st.Final()
}

func (c *Controller) run(ctx context.Context, question string, obs Observer) (st *State) {
	st = newState(question, c.cfg.Schema)
	logger := c.logger.With("run_id", st.RunID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("workflow panicked", "panic", r)
			st.setFinal(st.failure(StageFatal, fmt.Sprintf("internal error: %v", r)))
		}
	}()

	logger.Info("workflow started", "question", question)

	step, ev := StepStart, EventInvoked
	for {
		to, err := next(step, ev)
		if err != nil {
			st.fatal = err.Error()
		}
		logger.Debug("transition", "from", step, "event", ev, "to", to)
		if obs != nil {
			obs(Transition{RunID: st.RunID, From: step, Event: ev, To: to, SQL: st.SQL, RetryCount: st.RetryCount})
		}
		step = to
		st.Trace = append(st.Trace, step)

		if step.Terminal() {
			c.finish(st, step)
			break
		}
		if ctx.Err() != nil {
			st.fatal = ctx.Err().Error()
			ev = EventCancelled
			continue
		}
		ev = c.act(ctx, st, step)
	}

	final := st.Final()
	logger.Info("workflow finished",
		"success", final.Success,
		"stage", final.Stage,
		"retries", st.RetryCount)
	return st
}

// act performs the work of a non-terminal step and reports its outcome.
func (c *Controller) act(ctx context.Context, st *State, step Step) Event {
	switch step {
	case StepGenerating:
		sql, err := c.deps.Generator.Generate(ctx, st.Question, st.Schema)
		if err != nil {
			st.fatal = err.Error()
			return EventOracleError
		}
		st.SQL = sql
		return EventSQLProduced

	case StepValidating:
		st.Validation = c.deps.Validator.Validate(ctx, st.SQL)
		switch {
		case st.Validation.Valid:
			return EventValid
		case ctx.Err() != nil:
			st.fatal = ctx.Err().Error()
			return EventCancelled
		default:
			return EventInvalid
		}

	case StepExecuting:
		st.tried[st.SQL] = struct{}{}
		st.Execution = c.deps.Executor.Execute(ctx, st.SQL)
		switch {
		case st.Execution.OK:
			return EventSuccess
		case ctx.Err() != nil:
			// A failure caused by the caller giving up is not a query error.
			st.fatal = ctx.Err().Error()
			return EventCancelled
		case st.RetryCount < c.cfg.MaxRetries:
			return EventFailure
		default:
			return EventExhausted
		}

	case StepCorrecting:
		st.RetryCount++
		failed := st.SQL
		sql, err := c.deps.Corrector.Correct(ctx, sqlgen.Correction{
			Question:    st.Question,
			Schema:      st.Schema,
			FailingSQL:  failed,
			Error:       st.Execution.Error,
			Attempt:     st.RetryCount,
			MaxAttempts: c.cfg.MaxRetries,
		})
		st.Corrections = append(st.Corrections, Correction{
			Attempt:      st.RetryCount,
			Error:        st.Execution.Error,
			FailedSQL:    failed,
			CorrectedSQL: sql,
		})
		if err != nil {
			st.fatal = err.Error()
			return EventOracleError
		}
		if _, seen := st.tried[sql]; seen && c.cfg.StopOnRepeatedSQL {
			return EventNoProgress
		}
		st.SQL = sql
		return EventSQLProduced
	}

	st.fatal = fmt.Sprintf("step %s has no action", step)
	return EventCancelled
}

// finish builds the envelope for a terminal step.
func (c *Controller) finish(st *State, step Step) {
	switch step {
	case StepFormatting:
		st.setFinal(st.success(c.deps.Formatter.Format(st.Execution.Result)))
	case StepRejected:
		st.setFinal(st.failure(StageValidation, st.Validation.Reason))
	case StepMaxRetriesExceeded:
		st.setFinal(st.failure(StageMaxRetries, st.Execution.Error))
	default:
		st.setFinal(st.failure(StageFatal, st.fatal))
	}
}
