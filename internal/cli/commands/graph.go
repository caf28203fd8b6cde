package commands

import (
	"fmt"

	"github.com/leapstack-labs/askql/internal/cli/output"
	"github.com/leapstack-labs/askql/internal/workflow"
	"github.com/spf13/cobra"
)

// GraphOptions holds options for the graph command.
type GraphOptions struct {
	Format string
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	opts := &GraphOptions{}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the workflow state machine",
		Long: `Print the query-correction state machine as a Mermaid flowchart or a
Graphviz DOT graph. Edges are labelled with the outcome that takes them;
branching edges are dashed. With --output json the edge list is printed.`,
		Example: `  askql graph > workflow.mmd
  askql graph --format dot | dot -Tsvg > workflow.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutAdapter(cmd)
			if cc.Renderer.Mode() == output.ModeJSON {
				return cc.Renderer.JSON(workflow.Edges())
			}
			switch opts.Format {
			case "mermaid":
				_, err := fmt.Fprint(cc.Renderer.Writer(), workflow.Mermaid())
				return err
			case "dot":
				_, err := fmt.Fprint(cc.Renderer.Writer(), workflow.DOT())
				return err
			default:
				return fmt.Errorf("unknown graph format %q (want mermaid or dot)", opts.Format)
			}
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "mermaid", "Graph format: mermaid or dot")
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(
		[]string{"mermaid", "dot"}, cobra.ShellCompDirectiveNoFileComp))
	return cmd
}
