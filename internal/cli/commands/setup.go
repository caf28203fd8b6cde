package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strings"

	"github.com/leapstack-labs/askql/internal/cli/config"
	"github.com/leapstack-labs/askql/internal/cli/output"
	"github.com/leapstack-labs/askql/internal/executor"
	"github.com/leapstack-labs/askql/internal/format"
	"github.com/leapstack-labs/askql/internal/oracle"
	"github.com/leapstack-labs/askql/internal/schema"
	"github.com/leapstack-labs/askql/internal/sqlgen"
	"github.com/leapstack-labs/askql/internal/validator"
	"github.com/leapstack-labs/askql/internal/workflow"
	"github.com/leapstack-labs/askql/pkg/adapter"
	"github.com/leapstack-labs/askql/pkg/core"
	"github.com/spf13/cobra"

	// Register data store adapters.
	_ "github.com/leapstack-labs/askql/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/askql/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/askql/pkg/adapters/sqlite"
)

// newOracle builds the text-generation oracle. Tests replace it.
var newOracle = func(cfg config.OracleConfig, logger *slog.Logger) (oracle.Oracle, error) {
	return oracle.NewOpenAI(oracle.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	})
}

// dialectNames maps adapter dialects to the names used in prompts.
var dialectNames = map[string]string{
	"duckdb":   "DuckDB",
	"postgres": "PostgreSQL",
	"sqlite":   "SQLite",
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Adapter  core.Adapter
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext connected to the target.
// Query commands connect read-only. Returns the context and a cleanup
// function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	return newCommandContext(cmd, true)
}

// NewCommandContextReadWrite is NewCommandContext for commands that write.
func NewCommandContextReadWrite(cmd *cobra.Command) (*CommandContext, func(), error) {
	return newCommandContext(cmd, false)
}

func newCommandContext(cmd *cobra.Command, readOnly bool) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutAdapter(cmd)

	target := *cc.Cfg.Target
	if readOnly {
		target = readOnlyTarget(target)
	}
	adp, err := connect(cmd.Context(), &target, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Adapter = adp

	cleanup := func() {
		if err := adp.Close(); err != nil {
			cc.Logger.Warn("failed to close adapter", "error", err)
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutAdapter creates a CommandContext without a
// connection. Useful for commands that don't need database access.
func NewCommandContextWithoutAdapter(cmd *cobra.Command) *CommandContext {
	cfg := getConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	return &CommandContext{Cfg: cfg, Logger: logger, Renderer: r}
}

// getConfig returns the config loaded by the root command, or defaults.
func getConfig(ctx context.Context) *config.Config {
	if cfg := config.GetConfig(ctx); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		return &config.Config{
			Target:       &config.TargetConfig{Type: "duckdb"},
			OutputFormat: config.DefaultOutput,
			Format:       config.FormatConfig{MaxRows: config.DefaultMaxRows, Style: config.DefaultStyle},
		}
	}
	return cfg
}

// readOnlyTarget turns on read-only mode for file-backed targets unless the
// config says otherwise.
func readOnlyTarget(t config.TargetConfig) config.TargetConfig {
	if _, set := t.Options["read_only"]; set {
		return t
	}
	if t.Type != "postgres" && (t.Database == "" || t.Database == ":memory:") {
		return t
	}
	opts := make(map[string]string, len(t.Options)+1)
	maps.Copy(opts, t.Options)
	opts["read_only"] = "true"
	t.Options = opts
	return t
}

func connect(ctx context.Context, t *config.TargetConfig, logger *slog.Logger) (core.Adapter, error) {
	if t.Type != "postgres" && t.Database != "" && t.Database != ":memory:" {
		if ro := t.Options["read_only"]; ro == "true" {
			if _, err := os.Stat(t.Database); errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("database not found at %s\nHint: run 'askql setup' to create the sample database", t.Database)
			}
		}
	}
	adp, err := adapter.NewAdapter(t.AdapterConfig(), logger)
	if err != nil {
		return nil, err
	}
	if err := adp.Connect(ctx, t.AdapterConfig()); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", t.Type, err)
	}
	return adp, nil
}

// LoadSchema returns the schema description given to the oracle.
func (c *CommandContext) LoadSchema(ctx context.Context) (*schema.Schema, error) {
	if c.Cfg.Schema.Discover {
		if c.Adapter == nil {
			return nil, errors.New("schema discovery needs a database connection")
		}
		return schema.Discover(ctx, c.Adapter)
	}
	s, err := schema.LoadFile(c.Cfg.Schema.File)
	if err != nil {
		return nil, fmt.Errorf("%w\nHint: run 'askql setup' or set schema.discover: true", err)
	}
	return s, nil
}

// NewController wires the workflow around the connected adapter.
func (c *CommandContext) NewController(ctx context.Context) (*workflow.Controller, error) {
	s, err := c.LoadSchema(ctx)
	if err != nil {
		return nil, err
	}
	return c.NewControllerWithSchema(s.Describe())
}

// NewControllerWithSchema is NewController with a prepared description.
func (c *CommandContext) NewControllerWithSchema(description string) (*workflow.Controller, error) {
	o, err := newOracle(c.Cfg.Oracle, c.Logger)
	if err != nil {
		if errors.Is(err, oracle.ErrNoAPIKey) {
			return nil, fmt.Errorf("%w\nHint: set OPENAI_API_KEY or oracle.api_key in askql.yaml", err)
		}
		return nil, err
	}

	dialect := c.Adapter.DialectName()
	if name, ok := dialectNames[strings.ToLower(dialect)]; ok {
		dialect = name
	}
	gencfg := sqlgen.Config{Dialect: dialect, Logger: c.Logger}

	return workflow.New(workflow.Config{
		Schema:            description,
		MaxRetries:        c.Cfg.Workflow.MaxRetries,
		StopOnRepeatedSQL: c.Cfg.Workflow.StopOnRepeatedSQL,
		Logger:            c.Logger,
	}, workflow.Deps{
		Generator: sqlgen.NewGenerator(o, gencfg),
		Corrector: sqlgen.NewCorrector(o, gencfg),
		Validator: validator.New(c.Adapter, validator.Config{
			Timeout: c.Cfg.Workflow.ValidationTimeout,
			Logger:  c.Logger,
		}),
		Executor: executor.New(c.Adapter, executor.Config{
			Timeout: c.Cfg.Workflow.ExecutionTimeout,
			Logger:  c.Logger,
		}),
		Formatter: format.New(format.Config{
			MaxRows: c.Cfg.Format.MaxRows,
			Style:   format.Style(c.Cfg.Format.Style),
		}),
	})
}
