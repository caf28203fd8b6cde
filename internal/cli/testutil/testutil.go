// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leapstack-labs/askql/internal/cli/config"
	"github.com/leapstack-labs/askql/internal/cli/output"
	"github.com/leapstack-labs/askql/internal/sample"
	"github.com/leapstack-labs/askql/pkg/adapters/sqlite"
	"github.com/leapstack-labs/askql/pkg/core"
)

// Seed is the sample data seed used by test projects.
const Seed = 42

// Project is a temporary askql project backed by a SQLite sample database.
type Project struct {
	Dir        string
	Database   string
	SchemaFile string
}

// SetupTestProject creates a project with the sample database and schema
// file in a temp dir.
func SetupTestProject(t *testing.T) *Project {
	t.Helper()

	dir := t.TempDir()
	p := &Project{
		Dir:        dir,
		Database:   filepath.Join(dir, "data", "askql.sqlite"),
		SchemaFile: filepath.Join(dir, config.DefaultSchemaFile),
	}
	if err := os.MkdirAll(filepath.Dir(p.Database), 0o750); err != nil {
		t.Fatalf("failed to create data dir: %v", err)
	}

	ctx := context.Background()
	adp := sqlite.New(nil)
	if err := adp.Connect(ctx, core.AdapterConfig{Type: "sqlite", Path: p.Database}); err != nil {
		t.Fatalf("failed to open sample database: %v", err)
	}
	defer func() { _ = adp.Close() }()
	if err := sample.Setup(ctx, adp, sample.Options{Seed: Seed}); err != nil {
		t.Fatalf("failed to load sample data: %v", err)
	}

	if err := os.WriteFile(p.SchemaFile, sample.SchemaCSV(), 0o600); err != nil {
		t.Fatalf("failed to write schema: %v", err)
	}
	return p
}

// Config returns a validated configuration pointing at the project.
func (p *Project) Config() *config.Config {
	return &config.Config{
		Target: &config.TargetConfig{
			Type:     "sqlite",
			Database: p.Database,
			Schema:   "main",
		},
		Schema: config.SchemaConfig{File: p.SchemaFile},
		Oracle: config.OracleConfig{
			BaseURL:     config.DefaultBaseURL,
			APIKey:      "test-key",
			Model:       config.DefaultModel,
			MaxAttempts: 1,
		},
		Workflow:     config.WorkflowConfig{MaxRetries: config.DefaultMaxRetries},
		Format:       config.FormatConfig{MaxRows: config.DefaultMaxRows, Style: config.DefaultStyle},
		Server:       config.ServerConfig{Addr: "127.0.0.1:0"},
		OutputFormat: config.DefaultOutput,
		ProjectRoot:  p.Dir,
	}
}

// WithConfig returns ctx carrying cfg the way the root command stores it.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, config.ConfigKey(), cfg)
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a renderer writing to buffers.
func NewTestRenderer(mode output.Mode) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRenderer(out, errOut, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
