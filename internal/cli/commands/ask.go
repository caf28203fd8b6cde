package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/askql/internal/cli/output"
	"github.com/spf13/cobra"
)

// AskOptions holds options for the ask command.
type AskOptions struct {
	Input string
}

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	opts := &AskOptions{}

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Answer a question with SQL",
		Long: `Translate a natural-language question into SQL, check that it is a safe
SELECT, run it and print the results.

If the query fails to execute, askql sends the engine error back to the
model and retries with the corrected SQL, up to workflow.max_retries times.

When invoked without arguments and without --input, the question is read
from stdin.`,
		Example: `  askql ask "How many customers are there?"
  askql ask Show me the top 5 most expensive products
  echo "What is the total revenue?" | askql ask
  askql ask -o json "List all customers from New York"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read the question from a file")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string, opts *AskOptions) error {
	question, err := readQuestion(cmd.InOrStdin(), args, opts.Input)
	if err != nil {
		return err
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctrl, err := cc.NewController(cmd.Context())
	if err != nil {
		return err
	}

	res := ctrl.Run(cmd.Context(), question)
	if err := renderResult(cc.Renderer, res, cc.Cfg.Verbose); err != nil {
		return err
	}
	if !res.Success {
		return &errRunFailed{stage: res.Stage}
	}
	return nil
}

func readQuestion(stdin io.Reader, args []string, input string) (string, error) {
	var q string
	switch {
	case len(args) > 0:
		q = strings.Join(args, " ")
	case input != "":
		content, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		q = string(content)
	case output.IsTerminal(stdin):
		return "", errors.New("no question given\nHint: pass a question, or use 'askql repl' for an interactive session")
	default:
		content, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		q = string(content)
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return "", errors.New("no question given")
	}
	return q, nil
}
