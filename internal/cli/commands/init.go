package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/askql/internal/cli/config"
	"github.com/spf13/cobra"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Type  string
	Force bool
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new askql project",
		Long: `Write a starter askql.yaml and the sample schema file.

The API key is written as a ${OPENAI_API_KEY} reference, never in clear.
Run 'askql setup' afterwards to create the sample database.`,
		Example: `  # Initialize in current directory
  askql init

  # Initialize a project against Postgres
  askql init analytics --type postgres`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "duckdb", "Target type (duckdb|sqlite|postgres)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite existing configuration")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, opts *InitOptions) error {
	r := NewCommandContextWithoutAdapter(cmd).Renderer

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil && !opts.Force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", configPath)
	}

	var buf bytes.Buffer
	if err := config.WriteStarter(&buf, opts.Type); err != nil {
		return err
	}
	if err := os.WriteFile(configPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	r.Println(r.Styles().Success.Render("created ") + configPath)

	written, err := writeSchemaFile(filepath.Join(dir, config.DefaultSchemaFile))
	if err != nil {
		return err
	}
	if written {
		r.Println(r.Styles().Success.Render("created ") + filepath.Join(dir, config.DefaultSchemaFile))
	}

	r.Println("")
	r.Println("Next steps:")
	r.Printf("  1. export %s=...\n", config.FallbackAPIKeyEnv)
	r.Println("  2. askql setup")
	r.Println("  3. askql ask \"How many customers are there?\"")
	return nil
}
