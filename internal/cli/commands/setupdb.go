package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/askql/internal/sample"
	"github.com/spf13/cobra"
)

// SetupOptions holds options for the setup command.
type SetupOptions struct {
	Seed        uint64
	Force       bool
	WriteSchema bool
}

// NewSetupCommand creates the setup command.
func NewSetupCommand() *cobra.Command {
	opts := &SetupOptions{}

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the sample database",
		Long: `Create the customers, products and orders tables in the target and fill
them with generated sample data (50 customers, 30 products, 200 orders).

The schema CSV is written to schema.file when it does not exist yet.`,
		Example: `  askql setup
  askql setup --force --seed 42
  askql setup --database data/demo.sqlite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd, opts)
		},
	}

	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "Random seed for reproducible data (0 picks one)")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Drop existing sample tables first")
	cmd.Flags().BoolVar(&opts.WriteSchema, "write-schema", true, "Write the schema CSV if it is missing")
	return cmd
}

func runSetup(cmd *cobra.Command, opts *SetupOptions) error {
	ctx := cmd.Context()
	cc := NewCommandContextWithoutAdapter(cmd)

	if t := cc.Cfg.Target; t.Type != "postgres" && t.Database != "" && t.Database != ":memory:" {
		if dir := filepath.Dir(t.Database); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	cc, cleanup, err := NewCommandContextReadWrite(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cc.Renderer.Printf("Creating sample database in %s...\n", describeTarget(cc))
	if err := sample.Setup(ctx, cc.Adapter, sample.Options{
		Seed:    opts.Seed,
		Replace: opts.Force,
		Logger:  cc.Logger,
	}); err != nil {
		return fmt.Errorf("%w\nHint: use --force to replace existing tables", err)
	}

	for _, t := range sample.Schema().Tables {
		rows, err := cc.Adapter.Query(ctx, "SELECT COUNT(*) FROM "+t.Name)
		if err != nil {
			return fmt.Errorf("failed to verify %s: %w", t.Name, err)
		}
		var n int64
		if rows.Next() {
			err = rows.Scan(&n)
		}
		_ = rows.Close()
		if err != nil {
			return fmt.Errorf("failed to verify %s: %w", t.Name, err)
		}
		cc.Renderer.Printf("  - %s: %d rows\n", t.Name, n)
	}

	if opts.WriteSchema && cc.Cfg.Schema.File != "" {
		written, err := writeSchemaFile(cc.Cfg.Schema.File)
		if err != nil {
			return err
		}
		if written {
			cc.Renderer.Printf("Wrote schema to %s\n", cc.Cfg.Schema.File)
		}
	}

	cc.Renderer.Println(cc.Renderer.Styles().Success.Render("Sample database ready."))
	return nil
}

func writeSchemaFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.WriteFile(path, sample.SchemaCSV(), 0o600); err != nil {
		return false, fmt.Errorf("failed to write schema: %w", err)
	}
	return true, nil
}

func describeTarget(cc *CommandContext) string {
	t := cc.Cfg.Target
	switch {
	case t.Type == "postgres":
		return fmt.Sprintf("postgres://%s:%d/%s", t.Host, t.Port, t.Database)
	case t.Database == "" || t.Database == ":memory:":
		return t.Type + " (in-memory)"
	default:
		return t.Database
	}
}
