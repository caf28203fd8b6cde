package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leapstack-labs/askql/internal/executor"
	"github.com/leapstack-labs/askql/internal/sqlgen"
	"github.com/leapstack-labs/askql/internal/testutil"
	"github.com/leapstack-labs/askql/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	sql   string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(context.Context, string, string) (string, error) {
	f.calls++
	return f.sql, f.err
}

type fakeCorrector struct {
	replies []string
	err     error
	seen    []sqlgen.Correction
}

func (f *fakeCorrector) Correct(_ context.Context, c sqlgen.Correction) (string, error) {
	f.seen = append(f.seen, c)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.seen) - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i], nil
}

// fakeValidator applies the static checks and records what it saw.
type fakeValidator struct {
	syntaxErr map[string]string
	seen      []string
}

func (f *fakeValidator) Validate(_ context.Context, sql string) validator.Outcome {
	f.seen = append(f.seen, sql)
	if out := validator.CheckSafety(sql); !out.Valid {
		return out
	}
	if reason, ok := f.syntaxErr[sql]; ok {
		return validator.Invalid(validator.KindSyntax, reason)
	}
	return validator.Valid()
}

// fakeExecutor fails every statement listed in errs and succeeds otherwise.
type fakeExecutor struct {
	errs map[string]string
	seen []string
}

func (f *fakeExecutor) Execute(_ context.Context, sql string) executor.Outcome {
	f.seen = append(f.seen, sql)
	if msg, ok := f.errs[sql]; ok {
		return executor.Failure(msg)
	}
	return executor.Success(&executor.ResultSet{
		Columns: []string{"count"},
		Rows:    [][]any{{int64(50)}},
	})
}

type harness struct {
	gen  *fakeGenerator
	corr *fakeCorrector
	val  *fakeValidator
	exec *fakeExecutor
}

func newHarness() *harness {
	return &harness{
		gen:  &fakeGenerator{},
		corr: &fakeCorrector{},
		val:  &fakeValidator{syntaxErr: map[string]string{}},
		exec: &fakeExecutor{errs: map[string]string{}},
	}
}

func (h *harness) controller(t *testing.T, cfg Config) *Controller {
	t.Helper()
	cfg.Logger = testutil.NewTestLogger(t)
	c, err := New(cfg, Deps{
		Generator: h.gen,
		Corrector: h.corr,
		Validator: h.val,
		Executor:  h.exec,
	})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.ErrorContains(t, err, "generator is required")

	h := newHarness()
	_, err = New(Config{MaxRetries: -1}, Deps{
		Generator: h.gen, Corrector: h.corr, Validator: h.val, Executor: h.exec,
	})
	assert.ErrorContains(t, err, "must not be negative")

	c := h.controller(t, Config{})
	assert.Equal(t, DefaultMaxRetries, c.MaxRetries())
}

func TestRun_SuccessPath(t *testing.T) {
	h := newHarness()
	h.gen.sql = "SELECT COUNT(*) FROM customers"
	c := h.controller(t, Config{Schema: "Table: customers"})

	st, res := c.RunState(context.Background(), "How many customers are there?")

	require.True(t, res.Success)
	assert.Equal(t, "SELECT COUNT(*) FROM customers", res.SQL)
	assert.NotEmpty(t, res.Results)
	assert.Empty(t, res.Error)
	assert.Empty(t, res.Stage)
	assert.Equal(t, 0, res.RetryCount)
	assert.Equal(t, 1, res.RowCount)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, 1, h.gen.calls)
	assert.Len(t, h.val.seen, 1)
	assert.Len(t, h.exec.seen, 1)
	assert.Empty(t, h.corr.seen)
	assert.Equal(t, []Step{StepGenerating, StepValidating, StepExecuting, StepFormatting}, st.Trace)
}

func TestRun_SafetyRejection(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"delete", "DELETE FROM customers"},
		{"drop", "DROP TABLE customers"},
		{"lowercase update", "update customers set name = 'x'"},
		{"comment then insert", "-- hi\nINSERT INTO customers VALUES (1)"},
		{"stacked statements", "SELECT 1; DROP TABLE customers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.gen.sql = tt.sql
			c := h.controller(t, Config{})

			res := c.Run(context.Background(), "Delete all customers")

			assert.False(t, res.Success)
			assert.Equal(t, StageValidation, res.Stage)
			assert.NotEmpty(t, res.Error)
			assert.Empty(t, res.Results)
			assert.Empty(t, h.exec.seen, "executor must not run rejected SQL")
			assert.Empty(t, h.corr.seen)
		})
	}
}

func TestRun_SyntaxRejectionIsTerminal(t *testing.T) {
	h := newHarness()
	h.gen.sql = "SELECT FROM"
	h.val.syntaxErr["SELECT FROM"] = `Parser Error: syntax error at end of input`
	c := h.controller(t, Config{})

	res := c.Run(context.Background(), "q")

	assert.Equal(t, StageValidation, res.Stage)
	assert.Equal(t, `Parser Error: syntax error at end of input`, res.Error)
	assert.Empty(t, h.exec.seen)
	assert.Empty(t, h.corr.seen)
}

func TestRun_CorrectionSucceeds(t *testing.T) {
	h := newHarness()
	h.gen.sql = "SELECT email FROM customers"
	h.exec.errs["SELECT email FROM customers"] = "column email not found"
	h.corr.replies = []string{"SELECT name FROM customers"}
	c := h.controller(t, Config{})

	st, res := c.RunState(context.Background(), "List customer emails")

	require.True(t, res.Success)
	assert.Equal(t, 1, res.RetryCount)
	assert.Equal(t, "SELECT name FROM customers", res.SQL)

	require.Len(t, h.corr.seen, 1)
	assert.Equal(t, "column email not found", h.corr.seen[0].Error)
	assert.Equal(t, "SELECT email FROM customers", h.corr.seen[0].FailingSQL)
	assert.Equal(t, 1, h.corr.seen[0].Attempt)
	assert.Equal(t, 3, h.corr.seen[0].MaxAttempts)

	require.Len(t, res.Corrections, 1)
	assert.Equal(t, Correction{
		Attempt:      1,
		Error:        "column email not found",
		FailedSQL:    "SELECT email FROM customers",
		CorrectedSQL: "SELECT name FROM customers",
	}, res.Corrections[0])

	assert.Equal(t, []Step{
		StepGenerating, StepValidating, StepExecuting,
		StepCorrecting, StepValidating, StepExecuting, StepFormatting,
	}, st.Trace)
}

func TestRun_RetryBound(t *testing.T) {
	for _, maxRetries := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("max=%d", maxRetries), func(t *testing.T) {
			h := newHarness()
			h.gen.sql = "SELECT * FROM missing"
			h.exec.errs["SELECT * FROM missing"] = "Table missing does not exist"
			for i := 1; i <= maxRetries; i++ {
				sql := "SELECT * FROM missing" + strings.Repeat(" ", i)
				h.corr.replies = append(h.corr.replies, sql)
				h.exec.errs[sql] = fmt.Sprintf("Table missing does not exist (attempt %d)", i)
			}
			c := h.controller(t, Config{MaxRetries: maxRetries})

			res := c.Run(context.Background(), "q")

			assert.False(t, res.Success)
			assert.Equal(t, StageMaxRetries, res.Stage)
			assert.Len(t, h.corr.seen, maxRetries)
			assert.Len(t, h.exec.seen, maxRetries+1)
			assert.Equal(t, maxRetries, res.RetryCount)
			last := h.exec.seen[len(h.exec.seen)-1]
			assert.Equal(t, h.exec.errs[last], res.Error, "error must be the last engine message")
		})
	}
}

func TestRun_EveryExecutedStatementWasValidated(t *testing.T) {
	h := newHarness()
	h.gen.sql = "SELECT a FROM t"
	h.exec.errs["SELECT a FROM t"] = "boom"
	h.exec.errs["SELECT b FROM t"] = "boom again"
	h.corr.replies = []string{"SELECT b FROM t", "SELECT c FROM t"}
	c := h.controller(t, Config{})

	res := c.Run(context.Background(), "q")
	require.True(t, res.Success)

	validated := map[string]bool{}
	for _, s := range h.val.seen {
		validated[s] = true
	}
	for _, s := range h.exec.seen {
		assert.True(t, validated[s], "executed without validation: %s", s)
	}
	assert.Equal(t, []string{"SELECT a FROM t", "SELECT b FROM t", "SELECT c FROM t"}, h.val.seen)
}

func TestRun_UnsafeCorrectionIsRejected(t *testing.T) {
	h := newHarness()
	h.gen.sql = "SELECT * FROM orders"
	h.exec.errs["SELECT * FROM orders"] = "permission denied"
	h.corr.replies = []string{"DELETE FROM orders"}
	c := h.controller(t, Config{})

	res := c.Run(context.Background(), "q")

	assert.Equal(t, StageValidation, res.Stage)
	assert.Equal(t, validator.ReasonNotSelect, res.Error)
	assert.Equal(t, []string{"SELECT * FROM orders"}, h.exec.seen)
	assert.Len(t, h.corr.seen, 1)
}

func TestRun_OracleFailuresAreFatal(t *testing.T) {
	t.Run("generation", func(t *testing.T) {
		h := newHarness()
		h.gen.err = errors.New("SQL generation failed: rate limited")
		c := h.controller(t, Config{})

		res := c.Run(context.Background(), "q")

		assert.Equal(t, StageFatal, res.Stage)
		assert.Equal(t, "SQL generation failed: rate limited", res.Error)
		assert.Empty(t, h.val.seen)
		assert.Empty(t, h.exec.seen)
	})

	t.Run("correction", func(t *testing.T) {
		h := newHarness()
		h.gen.sql = "SELECT x FROM t"
		h.exec.errs["SELECT x FROM t"] = "no such column: x"
		h.corr.err = errors.New("SQL correction failed: timeout")
		c := h.controller(t, Config{})

		res := c.Run(context.Background(), "q")

		assert.Equal(t, StageFatal, res.Stage)
		assert.Equal(t, "SQL correction failed: timeout", res.Error)
		assert.Equal(t, 1, res.RetryCount)
		assert.Len(t, h.exec.seen, 1)
	})
}

func TestRun_RepeatedSQL(t *testing.T) {
	setup := func() *harness {
		h := newHarness()
		h.gen.sql = "SELECT x FROM t"
		h.exec.errs["SELECT x FROM t"] = "no such column: x"
		h.corr.replies = []string{"SELECT x FROM t"}
		return h
	}

	t.Run("disabled keeps retrying", func(t *testing.T) {
		h := setup()
		res := h.controller(t, Config{}).Run(context.Background(), "q")
		assert.Equal(t, StageMaxRetries, res.Stage)
		assert.Len(t, h.corr.seen, 3)
		assert.Len(t, h.exec.seen, 4)
	})

	t.Run("enabled stops early", func(t *testing.T) {
		h := setup()
		res := h.controller(t, Config{StopOnRepeatedSQL: true}).Run(context.Background(), "q")
		assert.Equal(t, StageMaxRetries, res.Stage)
		assert.Equal(t, "no such column: x", res.Error)
		assert.Len(t, h.corr.seen, 1)
		assert.Len(t, h.exec.seen, 1)
	})
}

func TestRun_Cancelled(t *testing.T) {
	h := newHarness()
	h.gen.sql = "SELECT 1"
	c := h.controller(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, res := c.RunState(ctx, "q")

	assert.Equal(t, StageFatal, res.Stage)
	assert.Equal(t, context.Canceled.Error(), res.Error)
	assert.Equal(t, 0, h.gen.calls)
	assert.Equal(t, []Step{StepGenerating, StepFatal}, st.Trace)
}

// cancellingExecutor fails every statement and cancels the run on call at.
type cancellingExecutor struct {
	cancel context.CancelFunc
	at     int
	calls  int
}

func (e *cancellingExecutor) Execute(ctx context.Context, _ string) executor.Outcome {
	e.calls++
	if e.calls == e.at {
		e.cancel()
		return executor.Failure(ctx.Err().Error())
	}
	return executor.Failure("no such column: x")
}

func TestRun_CancelledDuringExecution(t *testing.T) {
	tests := []struct {
		name        string
		at          int
		wantRetries int
	}{
		{name: "first execution", at: 1, wantRetries: 0},
		{name: "last permitted execution", at: 2, wantRetries: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			h := newHarness()
			h.gen.sql = "SELECT 1"
			h.corr.replies = []string{"SELECT 2"}
			exec := &cancellingExecutor{cancel: cancel, at: tt.at}
			c, err := New(Config{MaxRetries: 1, Logger: testutil.NewTestLogger(t)}, Deps{
				Generator: h.gen, Corrector: h.corr, Validator: h.val, Executor: exec,
			})
			require.NoError(t, err)

			st, res := c.RunState(ctx, "q")

			assert.False(t, res.Success)
			assert.Equal(t, StageFatal, res.Stage)
			assert.Equal(t, context.Canceled.Error(), res.Error)
			assert.Equal(t, tt.wantRetries, res.RetryCount)
			assert.Equal(t, tt.at, exec.calls)
			assert.Equal(t, []Step{StepExecuting, StepFatal}, st.Trace[len(st.Trace)-2:])
		})
	}
}

// cancellingValidator cancels the run and reports the plan check as failed.
type cancellingValidator struct {
	cancel context.CancelFunc
}

func (v cancellingValidator) Validate(ctx context.Context, _ string) validator.Outcome {
	v.cancel()
	return validator.Invalid(validator.KindSyntax, ctx.Err().Error())
}

func TestRun_CancelledDuringValidation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness()
	h.gen.sql = "SELECT 1"
	c, err := New(Config{Logger: testutil.NewTestLogger(t)}, Deps{
		Generator: h.gen, Corrector: h.corr, Validator: cancellingValidator{cancel: cancel}, Executor: h.exec,
	})
	require.NoError(t, err)

	st, res := c.RunState(ctx, "q")

	assert.Equal(t, StageFatal, res.Stage)
	assert.Equal(t, context.Canceled.Error(), res.Error)
	assert.Empty(t, h.exec.seen)
	assert.Equal(t, []Step{StepGenerating, StepValidating, StepFatal}, st.Trace)
}

type panickyExecutor struct{}

func (panickyExecutor) Execute(context.Context, string) executor.Outcome {
	panic("driver exploded")
}

func TestRun_PanicBecomesFatal(t *testing.T) {
	h := newHarness()
	h.gen.sql = "SELECT 1"
	c, err := New(Config{Logger: testutil.NewTestLogger(t)}, Deps{
		Generator: h.gen,
		Corrector: h.corr,
		Validator: h.val,
		Executor:  panickyExecutor{},
	})
	require.NoError(t, err)

	res := c.Run(context.Background(), "q")

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, StageFatal, res.Stage)
	assert.Contains(t, res.Error, "driver exploded")
}

func TestState_FinalSetOnce(t *testing.T) {
	st := newState("q", "")
	assert.Nil(t, st.Final())

	first := st.failure(StageFatal, "first")
	st.setFinal(first)
	st.setFinal(st.failure(StageFatal, "second"))

	assert.Same(t, first, st.Final())
}

func TestRun_ExactlyOneOfResultsOrError(t *testing.T) {
	h := newHarness()
	h.gen.sql = "SELECT 1"
	ok := h.controller(t, Config{}).Run(context.Background(), "q")
	assert.True(t, (ok.Results == "") != (ok.Error == ""))

	h = newHarness()
	h.gen.sql = "DROP TABLE t"
	bad := h.controller(t, Config{}).Run(context.Background(), "q")
	assert.True(t, (bad.Results == "") != (bad.Error == ""))
}

func TestRunObserved(t *testing.T) {
	h := newHarness()
	h.gen.sql = "SELECT a FROM t"
	h.exec.errs["SELECT a FROM t"] = "boom"
	h.corr.replies = []string{"SELECT b FROM t"}
	c := h.controller(t, Config{})

	var seen []Transition
	res := c.RunObserved(context.Background(), "q", func(tr Transition) {
		seen = append(seen, tr)
	})
	require.True(t, res.Success)

	require.Len(t, seen, 7)
	assert.Equal(t, Transition{RunID: res.RunID, From: StepStart, Event: EventInvoked, To: StepGenerating}, seen[0])
	assert.Equal(t, StepCorrecting, seen[3].To)
	assert.Equal(t, "SELECT a FROM t", seen[3].SQL)
	assert.Equal(t, Transition{
		RunID: res.RunID, From: StepExecuting, Event: EventSuccess, To: StepFormatting,
		SQL: "SELECT b FROM t", RetryCount: 1,
	}, seen[6])
}
