package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/askql/internal/cli/config"
	clitest "github.com/leapstack-labs/askql/internal/cli/testutil"
	"github.com/leapstack-labs/askql/internal/oracle"
	"github.com/leapstack-labs/askql/internal/testutil"
	"github.com/leapstack-labs/askql/internal/workflow"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useOracle replaces the oracle constructor for the duration of the test.
func useOracle(t *testing.T, o oracle.Oracle) {
	t.Helper()
	prev := newOracle
	newOracle = func(config.OracleConfig, *slog.Logger) (oracle.Oracle, error) { return o, nil }
	t.Cleanup(func() { newOracle = prev })
}

// execute runs cmd with cfg in its context and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(clitest.WithConfig(context.Background(), cfg))
	return out.String(), err
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewAskCommand(), "ask [question...]", []string{"input"}},
		{NewBatchCommand(), "batch [file]", []string{"demo", "concurrency", "fail-fast"}},
		{NewREPLCommand(), "repl", nil},
		{NewServeCommand(), "serve", []string{"addr", "watch"}},
		{NewSetupCommand(), "setup", []string{"seed", "force", "write-schema"}},
		{NewSchemaCommand(), "schema", []string{"csv"}},
		{NewInitCommand(), "init [directory]", []string{"type", "force"}},
		{NewGraphCommand(), "graph", []string{"format"}},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestReadQuestion(t *testing.T) {
	file := filepath.Join(t.TempDir(), "q.txt")
	require.NoError(t, os.WriteFile(file, []byte("  How many orders?\n"), 0o600))

	tests := []struct {
		name    string
		stdin   string
		args    []string
		input   string
		want    string
		wantErr bool
	}{
		{name: "args joined", args: []string{"How", "many", "customers?"}, want: "How many customers?"},
		{name: "file", input: file, want: "How many orders?"},
		{name: "stdin", stdin: "List products\n", want: "List products"},
		{name: "blank stdin", stdin: "  \n", wantErr: true},
		{name: "missing file", input: filepath.Join(t.TempDir(), "nope"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readQuestion(strings.NewReader(tt.stdin), tt.args, tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBatchQuestions(t *testing.T) {
	file := filepath.Join(t.TempDir(), "questions.txt")
	require.NoError(t, os.WriteFile(file, []byte("# demo\nHow many customers?\n\n  Top products  \n"), 0o600))
	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0o600))

	got, err := batchQuestions(nil, []string{file}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"How many customers?", "Top products"}, got)

	got, err = batchQuestions(strings.NewReader("a\nb\n"), []string{"-"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = batchQuestions(nil, nil, true)
	require.NoError(t, err)
	assert.Equal(t, DemoQuestions, got)

	_, err = batchQuestions(nil, []string{file}, true)
	assert.Error(t, err)
	_, err = batchQuestions(nil, nil, false)
	assert.Error(t, err)
	_, err = batchQuestions(nil, []string{empty}, false)
	assert.Error(t, err)
}

func TestAsk(t *testing.T) {
	p := clitest.SetupTestProject(t)

	t.Run("success", func(t *testing.T) {
		o := testutil.NewScriptedOracle("```sql\nSELECT COUNT(*) AS n FROM customers\n```")
		useOracle(t, o)

		out, err := execute(t, NewAskCommand(), p.Config(), "How", "many", "customers?")
		require.NoError(t, err)
		assert.Contains(t, out, "Question: How many customers?")
		assert.Contains(t, out, "SELECT COUNT(*) AS n FROM customers")
		assert.Contains(t, out, "50")
		clitest.AssertNoANSI(t, out)

		prompts := o.Prompts()
		require.Len(t, prompts, 1)
		assert.Contains(t, prompts[0], "Table: customers")
		assert.Contains(t, prompts[0], "SQLite")
	})

	t.Run("unsafe sql is rejected", func(t *testing.T) {
		useOracle(t, testutil.NewScriptedOracle("DELETE FROM customers"))

		out, err := execute(t, NewAskCommand(), p.Config(), "Remove everyone")
		var failed *errRunFailed
		require.ErrorAs(t, err, &failed)
		assert.Equal(t, workflow.StageValidation, failed.stage)
		assert.Contains(t, out, "Only SELECT queries are allowed for safety")
	})

	t.Run("json", func(t *testing.T) {
		useOracle(t, testutil.NewScriptedOracle("SELECT name FROM customers ORDER BY customer_id LIMIT 3"))
		cfg := p.Config()
		cfg.OutputFormat = "json"

		out, err := execute(t, NewAskCommand(), cfg, "First three customers")
		require.NoError(t, err)

		var res workflow.Result
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.True(t, res.Success)
		assert.Equal(t, 3, res.RowCount)
		assert.Equal(t, []string{"name"}, res.Columns)
		assert.Empty(t, res.Error)
	})

	t.Run("read only connection", func(t *testing.T) {
		useOracle(t, testutil.NewScriptedOracle("SELECT COUNT(*) FROM orders"))
		_, err := execute(t, NewAskCommand(), p.Config(), "How many orders?")
		require.NoError(t, err)
	})
}

func TestAsk_MissingDatabase(t *testing.T) {
	useOracle(t, testutil.NewScriptedOracle())
	cfg := clitest.SetupTestProject(t).Config()
	cfg.Target.Database = filepath.Join(t.TempDir(), "missing.sqlite")

	_, err := execute(t, NewAskCommand(), cfg, "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "askql setup")
}

func TestBatch_Demo(t *testing.T) {
	p := clitest.SetupTestProject(t)
	useOracle(t, oracle.Func(func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "New York") {
			return "SELECT name FROM customers WHERE city = 'New York'", nil
		}
		return "SELECT COUNT(*) FROM orders", nil
	}))
	cfg := p.Config()
	cfg.OutputFormat = "json"

	out, err := execute(t, NewBatchCommand(), cfg, "--demo", "--concurrency", "3")
	require.NoError(t, err)

	var summary BatchSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, len(DemoQuestions), summary.Total)
	assert.Equal(t, len(DemoQuestions), summary.Succeeded)
	require.Len(t, summary.Results, len(DemoQuestions))
	for i, res := range summary.Results {
		assert.Equal(t, DemoQuestions[i], res.Question)
	}
	assert.Contains(t, summary.Results[2].SQL, "New York")
}

func TestBatch_ReportsFailures(t *testing.T) {
	p := clitest.SetupTestProject(t)
	useOracle(t, oracle.Func(func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "drop") {
			return "DROP TABLE customers", nil
		}
		return "SELECT 1", nil
	}))
	file := filepath.Join(t.TempDir(), "q.txt")
	require.NoError(t, os.WriteFile(file, []byte("one\nplease drop it\n"), 0o600))

	out, err := execute(t, NewBatchCommand(), p.Config(), file, "-c", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 questions failed")
	assert.Contains(t, out, "1 succeeded")
	assert.Contains(t, out, "1 failed")
}

func TestBatch_FailFast(t *testing.T) {
	p := clitest.SetupTestProject(t)
	o := testutil.NewScriptedOracle("DROP TABLE customers", "SELECT 1", "SELECT 2")
	useOracle(t, o)
	file := filepath.Join(t.TempDir(), "q.txt")
	require.NoError(t, os.WriteFile(file, []byte("please drop it\none\ntwo\n"), 0o600))

	cfg := p.Config()
	cfg.OutputFormat = "json"
	out, err := execute(t, NewBatchCommand(), cfg, file, "-c", "1", "--fail-fast")

	var failed *errRunFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, workflow.StageValidation, failed.stage)

	var summary BatchSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Skipped)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "please drop it", summary.Results[0].Question)
	assert.Len(t, o.Prompts(), 1, "no question may start after the failure")
}

func TestBatch_FailFastText(t *testing.T) {
	p := clitest.SetupTestProject(t)
	useOracle(t, testutil.NewScriptedOracle("DROP TABLE customers"))
	file := filepath.Join(t.TempDir(), "q.txt")
	require.NoError(t, os.WriteFile(file, []byte("please drop it\none\n"), 0o600))

	out, err := execute(t, NewBatchCommand(), p.Config(), file, "-c", "1", "--fail-fast")
	require.Error(t, err)
	assert.Contains(t, out, "2 questions: 0 succeeded, 1 failed, 1 skipped\n")
}

func TestSchemaCommand(t *testing.T) {
	p := clitest.SetupTestProject(t)

	out, err := execute(t, NewSchemaCommand(), p.Config())
	require.NoError(t, err)
	assert.Contains(t, out, "Table: customers")
	assert.Contains(t, out, "  - price (DECIMAL(10,2))")

	out, err = execute(t, NewSchemaCommand(), p.Config(), "--csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "table_name,column_name,data_type,nullable,key\n"))

	cfg := p.Config()
	cfg.Schema = config.SchemaConfig{Discover: true}
	out, err = execute(t, NewSchemaCommand(), cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Table: orders")
}

func TestGraphCommand(t *testing.T) {
	cfg := clitest.SetupTestProject(t).Config()

	out, err := execute(t, NewGraphCommand(), cfg)
	require.NoError(t, err)
	assert.Equal(t, workflow.Mermaid(), out)

	out, err = execute(t, NewGraphCommand(), cfg, "--format", "dot")
	require.NoError(t, err)
	assert.Equal(t, workflow.DOT(), out)

	_, err = execute(t, NewGraphCommand(), cfg, "--format", "svg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown graph format "svg"`)

	cfg.OutputFormat = "json"
	out, err = execute(t, NewGraphCommand(), cfg)
	require.NoError(t, err)
	var edges []workflow.Edge
	require.NoError(t, json.Unmarshal([]byte(out), &edges))
	assert.Equal(t, workflow.Edges(), edges)
}

func TestSetupCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := (&clitest.Project{
		Dir:        dir,
		Database:   filepath.Join(dir, "data", "demo.sqlite"),
		SchemaFile: filepath.Join(dir, "schema.csv"),
	}).Config()

	out, err := execute(t, NewSetupCommand(), cfg, "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "customers: 50 rows")
	assert.Contains(t, out, "products: 30 rows")
	assert.Contains(t, out, "orders: 200 rows")
	assert.FileExists(t, cfg.Schema.File)

	_, err = execute(t, NewSetupCommand(), cfg)
	require.Error(t, err, "tables already exist")
	assert.Contains(t, err.Error(), "--force")

	out, err = execute(t, NewSetupCommand(), cfg, "--force")
	require.NoError(t, err)
	assert.NotContains(t, out, "Wrote schema")
}

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")
	cfg := clitest.SetupTestProject(t).Config()

	out, err := execute(t, NewInitCommand(), cfg, dir, "--type", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "askql.yaml")
	assert.FileExists(t, filepath.Join(dir, config.DefaultSchemaFile))

	body, err := os.ReadFile(filepath.Join(dir, config.DefaultConfigFile))
	require.NoError(t, err)
	assert.Contains(t, string(body), "type: sqlite")
	assert.Contains(t, string(body), "${OPENAI_API_KEY}")

	_, err = execute(t, NewInitCommand(), cfg, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, err = execute(t, NewInitCommand(), cfg, dir, "--force", "--type", "nope")
	assert.Error(t, err)
}

func TestREPLDotCommands(t *testing.T) {
	tr := clitest.NewTestRenderer("text")
	s := &replSession{
		cc:     &CommandContext{Renderer: tr.Renderer},
		schema: "Table: customers\nColumns:\n  - name (VARCHAR)",
		tables: []string{"customers", "orders"},
	}

	assert.False(t, s.dot(".tables"))
	assert.Equal(t, "customers\norders\n", tr.Output())

	tr.Out.Reset()
	assert.False(t, s.dot(".schema"))
	assert.Contains(t, tr.Output(), "Table: customers")

	tr.Out.Reset()
	assert.False(t, s.dot(".last"))
	assert.Contains(t, tr.Output(), "no question asked yet")

	s.last = &workflow.Result{Question: "q", Success: true}
	tr.Out.Reset()
	assert.False(t, s.dot(".last"))
	assert.Contains(t, tr.Output(), `"question": "q"`)

	assert.False(t, s.dot(".verbose"))
	assert.True(t, s.verbose)

	assert.False(t, s.dot(".bogus"))
	assert.Contains(t, tr.ErrOut.String(), "Unknown command: .bogus")

	assert.True(t, s.dot(".QUIT"))
	assert.True(t, s.dot(".exit"))
}
