package commands

import (
	"github.com/spf13/cobra"
)

// SchemaOptions holds options for the schema command.
type SchemaOptions struct {
	CSV bool
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	opts := &SchemaOptions{}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the schema given to the model",
		Long: `Print the schema description exactly as the model sees it. With
schema.discover it is read from the target; otherwise from schema.file.

Use --csv to print it as a schema file, e.g. to snapshot a discovered schema.`,
		Example: `  askql schema
  askql schema --csv > database_schema.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutAdapter(cmd)
			if cc.Cfg.Schema.Discover {
				var cleanup func()
				var err error
				cc, cleanup, err = NewCommandContext(cmd)
				if err != nil {
					return err
				}
				defer cleanup()
			}

			s, err := cc.LoadSchema(cmd.Context())
			if err != nil {
				return err
			}
			if opts.CSV {
				return s.Write(cc.Renderer.Writer())
			}
			cc.Renderer.Println(s.Describe())
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.CSV, "csv", false, "Print as CSV")
	return cmd
}
